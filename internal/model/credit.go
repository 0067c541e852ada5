package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CreditTerms кредитная часть карты.
// TotalDebt всегда равен PrincipalDebt + AccruedInterest и пересчитывается через RecomputeTotalDebt.
type CreditTerms struct {
	CreditLimit        decimal.Decimal `json:"credit_limit" db:"credit_limit"`
	InterestRate       decimal.Decimal `json:"interest_rate" db:"interest_rate"` // годовых, %
	MinimumPaymentRate decimal.Decimal `json:"minimum_payment_rate" db:"minimum_payment_rate"`
	GracePeriodDays    int             `json:"grace_period_days" db:"grace_period_days"`
	PrincipalDebt      decimal.Decimal `json:"principal_debt" db:"principal_debt"`
	AccruedInterest    decimal.Decimal `json:"accrued_interest" db:"accrued_interest"`
	TotalDebt          decimal.Decimal `json:"total_debt" db:"total_debt"`
	PaymentDueDate     time.Time       `json:"payment_due_date" db:"payment_due_date"`
}

func (t *CreditTerms) RecomputeTotalDebt() {
	t.TotalDebt = t.PrincipalDebt.Add(t.AccruedInterest)
}

func (t *CreditTerms) HasDebt() bool {
	return t.TotalDebt.IsPositive()
}

func (t *CreditTerms) IsOverCreditLimit() bool {
	return t.PrincipalDebt.GreaterThan(t.CreditLimit)
}

// MinimumPayment минимальный платёж от общей задолженности, округлённый до копеек
func (t *CreditTerms) MinimumPayment() decimal.Decimal {
	return t.TotalDebt.Mul(t.MinimumPaymentRate).Div(hundred).Round(2)
}

// HasOverpayment true, если баланс кредитной карты превышает лимит
func (c *Card) HasOverpayment() bool {
	return c.IsCredit() && c.Balance.GreaterThan(c.Credit.CreditLimit)
}

// NextPaymentDueDate первое число месяца, следующего за now
func NextPaymentDueDate(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
}

type CreateCreditCardRequest struct {
	CreditLimit        decimal.Decimal  `json:"credit_limit"`
	InterestRate       decimal.Decimal  `json:"interest_rate"`
	MinimumPaymentRate *decimal.Decimal `json:"minimum_payment_rate,omitempty"`
	GracePeriodDays    *int             `json:"grace_period_days,omitempty"`
}

type LimitChangeRequest struct {
	NewLimit decimal.Decimal `json:"new_limit"`
}

type InterestRateRequest struct {
	InterestRate decimal.Decimal `json:"interest_rate"`
}

// AccrualReport итог ежемесячного начисления процентов
type AccrualReport struct {
	Processed int             `json:"processed"`
	Accrued   int             `json:"accrued"`
	Skipped   int             `json:"skipped"`
	Failed    int             `json:"failed"`
	Interest  decimal.Decimal `json:"interest"`
	FailedIDs []uuid.UUID     `json:"failed_ids,omitempty"`
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CardType string

const (
	CardTypeDebit  CardType = "DEBIT"
	CardTypeCredit CardType = "CREDIT"
)

func (t CardType) Valid() bool {
	return t == CardTypeDebit || t == CardTypeCredit
}

type CardStatus string

const (
	CardStatusActive       CardStatus = "ACTIVE"
	CardStatusBlocked      CardStatus = "BLOCKED"
	CardStatusPendingBlock CardStatus = "PENDING_BLOCK" // владелец запросил блокировку
	CardStatusClosed       CardStatus = "CLOSED"        // терминальный статус
)

// Card банковская карта (счёт). Для кредитных карт Credit не nil.
type Card struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	Number     string          `json:"number" db:"card_number"`
	UserID     uuid.UUID       `json:"user_id" db:"user_id"`
	Type       CardType        `json:"type" db:"card_type"`
	Status     CardStatus      `json:"status" db:"status"`
	Balance    decimal.Decimal `json:"balance" db:"balance"`
	ExpiryDate time.Time       `json:"expiry_date" db:"expiry_date"`
	Credit     *CreditTerms    `json:"credit,omitempty"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// Clone возвращает независимую копию карты
func (c *Card) Clone() *Card {
	cp := *c
	if c.Credit != nil {
		terms := *c.Credit
		cp.Credit = &terms
	}
	return &cp
}

func (c *Card) IsCredit() bool {
	return c.Type == CardTypeCredit && c.Credit != nil
}

// Expired сравнивает даты без учёта времени суток
func (c *Card) Expired(now time.Time) bool {
	return truncateDay(now).After(truncateDay(c.ExpiryDate))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CardRef ссылка на карту по идентификатору или по номеру
type CardRef struct {
	ID     uuid.UUID
	Number string
}

func RefByID(id uuid.UUID) CardRef { return CardRef{ID: id} }
func RefByNumber(number string) CardRef { return CardRef{Number: number} }

func (r CardRef) IsZero() bool {
	return r.ID == uuid.Nil && r.Number == ""
}

func (r CardRef) String() string {
	if r.Number != "" {
		return MaskNumberShort(r.Number)
	}
	return r.ID.String()
}

// CardResponse публичное представление карты
type CardResponse struct {
	ID           uuid.UUID       `json:"id"`
	MaskedNumber string          `json:"masked_number"`
	UserID       uuid.UUID       `json:"user_id"`
	Type         CardType        `json:"type"`
	Status       CardStatus      `json:"status"`
	Balance      decimal.Decimal `json:"balance"`
	ExpiryDate   string          `json:"expiry_date"`
	Credit       *CreditInfo     `json:"credit,omitempty"`
}

type CreditInfo struct {
	CreditLimit        decimal.Decimal `json:"credit_limit"`
	InterestRate       decimal.Decimal `json:"interest_rate"`
	MinimumPaymentRate decimal.Decimal `json:"minimum_payment_rate"`
	GracePeriodDays    int             `json:"grace_period_days"`
	PrincipalDebt      decimal.Decimal `json:"principal_debt"`
	AccruedInterest    decimal.Decimal `json:"accrued_interest"`
	TotalDebt          decimal.Decimal `json:"total_debt"`
	MinimumPayment     decimal.Decimal `json:"minimum_payment"`
	PaymentDueDate     string          `json:"payment_due_date"`
}

func (c *Card) ToResponse() CardResponse {
	resp := CardResponse{
		ID:           c.ID,
		MaskedNumber: MaskNumber(c.Number),
		UserID:       c.UserID,
		Type:         c.Type,
		Status:       c.Status,
		Balance:      c.Balance,
		ExpiryDate:   c.ExpiryDate.Format("01/06"),
	}
	if c.IsCredit() {
		t := c.Credit
		resp.Credit = &CreditInfo{
			CreditLimit:        t.CreditLimit,
			InterestRate:       t.InterestRate,
			MinimumPaymentRate: t.MinimumPaymentRate,
			GracePeriodDays:    t.GracePeriodDays,
			PrincipalDebt:      t.PrincipalDebt,
			AccruedInterest:    t.AccruedInterest,
			TotalDebt:          t.TotalDebt,
			MinimumPayment:     t.MinimumPayment(),
			PaymentDueDate:     t.PaymentDueDate.Format("2006-01-02"),
		}
	}
	return resp
}

// MaskNumber маскирует номер для ответов API: **** **** **** 1234
func MaskNumber(number string) string {
	if len(number) < 4 {
		return "****"
	}
	return "**** **** **** " + number[len(number)-4:]
}

// MaskNumberShort маскирует номер для текстов уведомлений: ****1234
func MaskNumberShort(number string) string {
	if len(number) < 4 {
		return number
	}
	return "****" + number[len(number)-4:]
}

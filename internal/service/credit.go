package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bank-cards-api/internal/model"
)

var (
	monthsInYear = decimal.NewFromInt(12)
	hundred      = decimal.NewFromInt(100)
)

// CreditBehavior баланс кредитной карты это доступная сумма: лимит минус основной долг плюс переплата
type CreditBehavior struct{}

func creditTerms(card *model.Card) (*model.CreditTerms, error) {
	if !card.IsCredit() {
		return nil, fmt.Errorf("карта %s не кредитная: %w", model.MaskNumberShort(card.Number), model.ErrInvalidOperation)
	}
	return card.Credit, nil
}

// Deposit платёж по карте: сначала гасятся проценты, остаток уменьшает основной долг.
// Основной долг не опускается ниже нуля, излишек остаётся на балансе переплатой.
func (CreditBehavior) Deposit(card *model.Card, amount decimal.Decimal, now time.Time) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if err := CheckOperable(card, now); err != nil {
		return err
	}
	t, err := creditTerms(card)
	if err != nil {
		return err
	}

	toInterest := decimal.Min(t.AccruedInterest, amount)
	t.AccruedInterest = t.AccruedInterest.Sub(toInterest)

	remaining := amount.Sub(toInterest)
	if remaining.IsPositive() {
		card.Balance = card.Balance.Add(remaining)
		t.PrincipalDebt = decimal.Max(decimal.Zero, t.PrincipalDebt.Sub(remaining))
	}

	t.RecomputeTotalDebt()
	return nil
}

// Withdraw списание: траты сверх свободного лимита увеличивают основной долг
func (CreditBehavior) Withdraw(card *model.Card, amount decimal.Decimal, now time.Time) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if err := CheckOperable(card, now); err != nil {
		return err
	}
	t, err := creditTerms(card)
	if err != nil {
		return err
	}
	if amount.GreaterThan(card.Balance) {
		return fmt.Errorf("сумма %s превышает доступный кредит %s (exceeds available credit): %w",
			amount, card.Balance, model.ErrInvalidOperation)
	}

	card.Balance = card.Balance.Sub(amount)

	availableOwnFunds := t.CreditLimit.Sub(t.PrincipalDebt)
	if card.Balance.LessThan(availableOwnFunds) {
		t.PrincipalDebt = t.PrincipalDebt.Add(availableOwnFunds.Sub(card.Balance))
	}

	t.RecomputeTotalDebt()
	return nil
}

func (CreditBehavior) CanDelete(card *model.Card) error {
	t, err := creditTerms(card)
	if err != nil {
		return err
	}
	if !t.TotalDebt.IsZero() {
		return fmt.Errorf("нельзя удалить карту с задолженностью %s: %w", t.TotalDebt, model.ErrInvalidOperation)
	}
	if card.HasOverpayment() {
		return fmt.Errorf("нельзя удалить карту с переплатой %s: %w", card.Balance.Sub(t.CreditLimit), model.ErrInvalidOperation)
	}
	return nil
}

// MonthlyInterest проценты за месяц: principal * (rate / 12) / 100, округление до копеек half-up
func MonthlyInterest(principal, annualRate decimal.Decimal) decimal.Decimal {
	monthlyRate := annualRate.DivRound(monthsInYear, 10)
	return principal.Mul(monthlyRate).Div(hundred).Round(2)
}

// Accrue начисляет месячные проценты. Без основного долга ничего не меняет.
func (CreditBehavior) Accrue(card *model.Card) (decimal.Decimal, error) {
	t, err := creditTerms(card)
	if err != nil {
		return decimal.Zero, err
	}
	if !t.PrincipalDebt.IsPositive() {
		return decimal.Zero, nil
	}

	interest := MonthlyInterest(t.PrincipalDebt, t.InterestRate)
	t.AccruedInterest = t.AccruedInterest.Add(interest)
	t.RecomputeTotalDebt()
	return interest, nil
}

// IncreaseLimit поднимает лимит, баланс растёт на разницу
func (CreditBehavior) IncreaseLimit(card *model.Card, newLimit decimal.Decimal) error {
	t, err := creditTerms(card)
	if err != nil {
		return err
	}
	if err := validateLimit(newLimit); err != nil {
		return err
	}
	if !newLimit.GreaterThan(t.CreditLimit) {
		return fmt.Errorf("новый лимит %s должен быть больше текущего %s: %w", newLimit, t.CreditLimit, model.ErrInvalidOperation)
	}
	delta := newLimit.Sub(t.CreditLimit)
	t.CreditLimit = newLimit
	card.Balance = card.Balance.Add(delta)
	return nil
}

// DecreaseLimit снижает лимит, баланс уменьшается на разницу
func (CreditBehavior) DecreaseLimit(card *model.Card, newLimit decimal.Decimal) error {
	t, err := creditTerms(card)
	if err != nil {
		return err
	}
	if err := validateLimit(newLimit); err != nil {
		return err
	}
	if !newLimit.IsPositive() {
		return fmt.Errorf("лимит должен быть положительным: %w", model.ErrInvalidOperation)
	}
	if newLimit.LessThan(card.Balance) {
		return fmt.Errorf("новый лимит %s меньше баланса %s: %w", newLimit, card.Balance, model.ErrInvalidOperation)
	}
	if !newLimit.LessThan(t.CreditLimit) {
		return fmt.Errorf("новый лимит %s должен быть меньше текущего %s: %w", newLimit, t.CreditLimit, model.ErrInvalidOperation)
	}
	newBalance := card.Balance.Sub(t.CreditLimit.Sub(newLimit))
	if newBalance.IsNegative() {
		return fmt.Errorf("новый лимит %s меньше основного долга %s: %w", newLimit, t.PrincipalDebt, model.ErrInvalidOperation)
	}
	t.CreditLimit = newLimit
	card.Balance = newBalance
	return nil
}

func (CreditBehavior) SetInterestRate(card *model.Card, rate decimal.Decimal) error {
	t, err := creditTerms(card)
	if err != nil {
		return err
	}
	if rate.IsNegative() {
		return fmt.Errorf("процентная ставка не может быть отрицательной: %w", model.ErrInvalidOperation)
	}
	if err := validateRate(rate); err != nil {
		return err
	}
	t.InterestRate = rate
	return nil
}

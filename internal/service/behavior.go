package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bank-cards-api/internal/model"
)

// Behavior арифметика операций для конкретного типа карты.
// Методы изменяют переданную карту; сохранение выполняет вызывающая сторона.
type Behavior interface {
	Deposit(card *model.Card, amount decimal.Decimal, now time.Time) error
	Withdraw(card *model.Card, amount decimal.Decimal, now time.Time) error
	// CanDelete проверяет, что карту можно удалить без потери средств или долга
	CanDelete(card *model.Card) error
}

// Behaviors таблица поведения по типу карты
type Behaviors map[model.CardType]Behavior

func DefaultBehaviors() Behaviors {
	return Behaviors{
		model.CardTypeDebit:  DebitBehavior{},
		model.CardTypeCredit: CreditBehavior{},
	}
}

func (b Behaviors) For(card *model.Card) (Behavior, error) {
	behavior, ok := b[card.Type]
	if !ok {
		return nil, fmt.Errorf("неизвестный тип карты %q: %w", card.Type, model.ErrInvalidOperation)
	}
	return behavior, nil
}

const (
	// moneyScale точность денежных колонок NUMERIC(19,2)
	moneyScale = 2
	// rateScale точность ставок NUMERIC(9,4)
	rateScale = 4
)

// hasScale true, если у значения не больше places знаков после запятой.
// Запись "1.500" допустима, "1.005" нет.
func hasScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("сумма должна быть положительной, получено %s: %w", amount, model.ErrInvalidAmount)
	}
	if !hasScale(amount, moneyScale) {
		return fmt.Errorf("сумма %s точнее копейки: %w", amount, model.ErrInvalidAmount)
	}
	return nil
}

func validateLimit(limit decimal.Decimal) error {
	if !hasScale(limit, moneyScale) {
		return fmt.Errorf("кредитный лимит %s точнее копейки: %w", limit, model.ErrInvalidAmount)
	}
	return nil
}

func validateRate(rate decimal.Decimal) error {
	if !hasScale(rate, rateScale) {
		return fmt.Errorf("ставка %s содержит больше %d знаков после запятой: %w", rate, rateScale, model.ErrInvalidOperation)
	}
	return nil
}

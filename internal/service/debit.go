package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bank-cards-api/internal/model"
)

// DebitBehavior баланс дебетовой карты это собственные средства, он не бывает отрицательным
type DebitBehavior struct{}

func (DebitBehavior) Deposit(card *model.Card, amount decimal.Decimal, now time.Time) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if err := CheckOperable(card, now); err != nil {
		return err
	}
	card.Balance = card.Balance.Add(amount)
	return nil
}

func (DebitBehavior) Withdraw(card *model.Card, amount decimal.Decimal, now time.Time) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if err := CheckOperable(card, now); err != nil {
		return err
	}
	if amount.GreaterThan(card.Balance) {
		return fmt.Errorf("на карте %s доступно %s, запрошено %s: %w",
			model.MaskNumberShort(card.Number), card.Balance, amount, model.ErrInsufficientFunds)
	}
	card.Balance = card.Balance.Sub(amount)
	return nil
}

func (DebitBehavior) CanDelete(card *model.Card) error {
	if !card.Balance.IsZero() {
		return fmt.Errorf("нельзя удалить карту с ненулевым балансом: %w", model.ErrInvalidOperation)
	}
	return nil
}

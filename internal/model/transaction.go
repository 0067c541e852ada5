package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OperationType string

const (
	OperationDeposit  OperationType = "deposit"  // пополнение карты
	OperationWithdraw OperationType = "withdraw" // списание с карты
	OperationTransfer OperationType = "transfer" // перевод между картами
)

// Transaction неизменяемая запись об операции.
// Пополнение: только ToCard, списание: только FromCard, перевод: обе.
type Transaction struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	FromCard    *string         `json:"from_card,omitempty" db:"from_card"`
	ToCard      *string         `json:"to_card,omitempty" db:"to_card"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Type        OperationType   `json:"type" db:"operation_type"`
	Timestamp   time.Time       `json:"timestamp" db:"created_at"`
	Comment     string          `json:"comment,omitempty" db:"comment"`
	UserID      uuid.UUID       `json:"user_id" db:"user_id"`
	InitiatedBy uuid.UUID       `json:"initiated_by" db:"initiated_by"`
}

// TransactionResponse запись для API с маскированными номерами
type TransactionResponse struct {
	ID        uuid.UUID       `json:"id"`
	FromCard  string          `json:"from_card,omitempty"`
	ToCard    string          `json:"to_card,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Type      OperationType   `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Comment   string          `json:"comment,omitempty"`
	UserID    uuid.UUID       `json:"user_id"`
}

func (t *Transaction) ToResponse() TransactionResponse {
	resp := TransactionResponse{
		ID:        t.ID,
		Amount:    t.Amount,
		Type:      t.Type,
		Timestamp: t.Timestamp,
		Comment:   t.Comment,
		UserID:    t.UserID,
	}
	if t.FromCard != nil {
		resp.FromCard = MaskNumber(*t.FromCard)
	}
	if t.ToCard != nil {
		resp.ToCard = MaskNumber(*t.ToCard)
	}
	return resp
}

// Touches true, если одна из сторон операции совпадает с number
func (t *Transaction) Touches(number string) bool {
	return (t.FromCard != nil && *t.FromCard == number) || (t.ToCard != nil && *t.ToCard == number)
}

// NotificationEvent внутреннее событие по совершённой операции, номера не маскируются
type NotificationEvent struct {
	TransactionID   uuid.UUID       `json:"transaction_id"`
	Type            OperationType   `json:"type"`
	CardNumber      string          `json:"card_number"`
	CardTransferTo  string          `json:"card_transfer_to,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Comment         string          `json:"comment,omitempty"`
	UserID          uuid.UUID       `json:"user_id"`
	RecipientUserID *uuid.UUID      `json:"recipient_user_id,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

// NewNotificationEvent строит событие по транзакции.
// Для пополнения номер берётся из ToCard, иначе из FromCard.
func NewNotificationEvent(t *Transaction, recipient *uuid.UUID) NotificationEvent {
	ev := NotificationEvent{
		TransactionID: t.ID,
		Type:          t.Type,
		Amount:        t.Amount,
		Comment:       t.Comment,
		UserID:        t.UserID,
		Timestamp:     t.Timestamp,
	}
	if t.Type == OperationDeposit {
		if t.ToCard != nil {
			ev.CardNumber = *t.ToCard
		}
		return ev
	}
	if t.FromCard != nil {
		ev.CardNumber = *t.FromCard
	}
	if t.Type == OperationTransfer && t.ToCard != nil {
		ev.CardTransferTo = *t.ToCard
		ev.RecipientUserID = recipient
	}
	return ev
}

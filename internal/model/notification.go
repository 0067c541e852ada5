package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type NotificationType string

const (
	NotificationDeposit  NotificationType = "DEPOSIT"
	NotificationWithdraw NotificationType = "WITHDRAW"
	NotificationTransfer NotificationType = "TRANSFER"
	NotificationPayment  NotificationType = "PAYMENT"
	NotificationFraud    NotificationType = "FRAUD"
	NotificationInfo     NotificationType = "INFO"
)

// NotificationDirection сторона операции: инициатор или получатель перевода
type NotificationDirection string

const (
	DirectionOutgoing NotificationDirection = "OUTGOING"
	DirectionIncoming NotificationDirection = "INCOMING"
)

// Notification уведомление пользователя. Уникально по (ReferenceID, UserID, Direction):
// перевод между своими картами даёт пользователю две записи.
type Notification struct {
	ID             uuid.UUID             `json:"id" db:"id"`
	UserID         uuid.UUID             `json:"user_id" db:"user_id"`
	Type           NotificationType      `json:"type" db:"notification_type"`
	Title          string                `json:"title" db:"title"`
	Message        string                `json:"message" db:"message"`
	CardNumber     string                `json:"card_number" db:"card_number"`
	CardTransferTo string                `json:"card_transfer_to,omitempty" db:"card_transfer_to"`
	Amount         decimal.Decimal       `json:"amount" db:"amount"`
	Comment        string                `json:"comment,omitempty" db:"comment"`
	ReferenceID    uuid.UUID             `json:"reference_id" db:"reference_id"`
	Direction      NotificationDirection `json:"direction" db:"direction"`
	Read           bool                  `json:"read" db:"is_read"`
	CreatedAt      time.Time             `json:"created_at" db:"created_at"`
}

// ToResponse маскирует номера карт
func (n Notification) ToResponse() Notification {
	n.CardNumber = MaskNumberShort(n.CardNumber)
	if n.CardTransferTo != "" {
		n.CardTransferTo = MaskNumberShort(n.CardTransferTo)
	}
	return n
}

package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bank-cards-api/internal/model"
)

// CardStore чтение и создание карт вне транзакции леджера
type CardStore interface {
	Create(ctx context.Context, card *model.Card) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Card, error)
	GetByNumber(ctx context.Context, number string) (*model.Card, error)
	ExistsByNumber(ctx context.Context, number string) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Card, error)
	ListByStatus(ctx context.Context, status model.CardStatus, page model.PageRequest) (model.Page[model.Card], error)
	ListAll(ctx context.Context, page model.PageRequest) (model.Page[model.Card], error)
	// SearchByNumber ищет по фрагменту номера; ownerID ограничивает выдачу картами владельца
	SearchByNumber(ctx context.Context, fragment string, ownerID *uuid.UUID) ([]model.Card, error)
	// ListCreditAfter страница кредитных карт с номером больше afterNumber, по возрастанию номера
	ListCreditAfter(ctx context.Context, afterNumber string, limit int) ([]model.Card, error)
}

type TransactionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	ListByCardNumbers(ctx context.Context, numbers []string) ([]model.Transaction, error)
	ListAll(ctx context.Context, page model.PageRequest) (model.Page[model.Transaction], error)
}

// LedgerStore атомарная единица изменения балансов.
// Все изменения внутри fn фиксируются вместе либо откатываются при ошибке.
type LedgerStore interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

type LedgerTx interface {
	// LockCards блокирует карты по возрастанию номера с ограниченным ожиданием (model.ErrLockTimeout)
	LockCards(ctx context.Context, numbers ...string) (map[string]*model.Card, error)
	SaveCard(ctx context.Context, card *model.Card) error
	DeleteCard(ctx context.Context, id uuid.UUID) error
	CreateTransaction(ctx context.Context, t *model.Transaction) error
}

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	List(ctx context.Context, page model.PageRequest) (model.Page[model.User], error)
	SetBlocked(ctx context.Context, id uuid.UUID, blocked bool, at time.Time) error
}

type NotificationStore interface {
	// Create возвращает false, если уведомление для (ReferenceID, UserID, Direction) уже существует
	Create(ctx context.Context, n *model.Notification) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]model.Notification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

type Publisher interface {
	Publish(ctx context.Context, event model.NotificationEvent) error
}

type Mailer interface {
	Send(to, subject, body string) error
}

type KeyRateSource interface {
	KeyRate(ctx context.Context) (decimal.Decimal, error)
}

package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"

	"bank-cards-api/internal/model"
	"bank-cards-api/internal/repository/memory"
	"bank-cards-api/internal/service"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.NotificationEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, ev model.NotificationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Events() []model.NotificationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.NotificationEvent(nil), p.events...)
}

type fixture struct {
	db            *memory.DB
	cards         *memory.CardRepository
	transactions  *memory.TransactionRepository
	users         *memory.UserRepository
	notifications *memory.NotificationRepository
	ledger        *memory.LedgerRepository
	publisher     *recordingPublisher

	lifecycle *service.Lifecycle
	cardSvc   *service.CardService
	creditSvc *service.CreditCardService
	txSvc     *service.TransactionService

	admin model.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()

	db := memory.NewDB()
	f := &fixture{
		db:            db,
		cards:         memory.NewCardRepository(db),
		transactions:  memory.NewTransactionRepository(db),
		users:         memory.NewUserRepository(db),
		notifications: memory.NewNotificationRepository(db),
		ledger:        memory.NewLedgerRepository(db, 2*time.Second),
		publisher:     &recordingPublisher{},
		admin:         model.Principal{UserID: uuid.New(), Role: model.RoleAdmin},
	}
	f.lifecycle = service.NewLifecycle(f.cards, logger)
	f.cardSvc = service.NewCardService(f.cards, f.ledger, f.lifecycle, 5, logger)
	f.creditSvc = service.NewCreditCardService(f.cards, f.ledger, f.lifecycle, nil, service.DefaultCreditSettings(), logger)
	f.txSvc = service.NewTransactionService(f.cards, f.transactions, f.ledger, f.publisher, time.Second, logger)
	return f
}

func newUser() model.Principal {
	return model.Principal{UserID: uuid.New(), Role: model.RoleUser}
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// debitCard выпускает дебетовую карту и пополняет её на balance
func (f *fixture) debitCard(t *testing.T, owner model.Principal, balance string) *model.Card {
	t.Helper()
	ctx := context.Background()

	resp, err := f.cardSvc.CreateDebit(ctx, owner, owner.UserID)
	if err != nil {
		t.Fatalf("CreateDebit() error = %v", err)
	}
	if b := amount(balance); b.IsPositive() {
		if _, err := f.txSvc.Deposit(ctx, owner, model.RefByID(resp.ID), b, "seed"); err != nil {
			t.Fatalf("Deposit() error = %v", err)
		}
	}
	return f.card(t, resp.ID)
}

func (f *fixture) creditCard(t *testing.T, owner model.Principal, limit, rate string) *model.Card {
	t.Helper()
	resp, err := f.creditSvc.CreateForUser(context.Background(), f.admin, owner.UserID, model.CreateCreditCardRequest{
		CreditLimit:  amount(limit),
		InterestRate: amount(rate),
	})
	if err != nil {
		t.Fatalf("CreateForUser() error = %v", err)
	}
	return f.card(t, resp.ID)
}

func (f *fixture) card(t *testing.T, id uuid.UUID) *model.Card {
	t.Helper()
	card, err := f.cards.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	return card
}

func (f *fixture) balance(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	return f.card(t, id).Balance
}

func assertKind(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("error = %v, want %v", err, want)
	}
}

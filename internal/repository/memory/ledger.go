package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"bank-cards-api/internal/model"
	"bank-cards-api/internal/service"
)

const DefaultLockTimeout = 5 * time.Second

// LedgerRepository выполняет изменения над копиями карт и применяет их при успешном завершении
type LedgerRepository struct {
	db          *DB
	lockTimeout time.Duration
}

func NewLedgerRepository(db *DB, lockTimeout time.Duration) *LedgerRepository {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &LedgerRepository{db: db, lockTimeout: lockTimeout}
}

func (r *LedgerRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx service.LedgerTx) error) error {
	tx := &ledgerTx{
		repo:    r,
		locked:  make(map[string]bool),
		staged:  make(map[uuid.UUID]*model.Card),
		deleted: make(map[uuid.UUID]bool),
	}
	defer tx.releaseAll()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	// отменённый запрос не фиксирует изменения
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

type ledgerTx struct {
	repo    *LedgerRepository
	locked  map[string]bool
	order   []string
	staged  map[uuid.UUID]*model.Card
	deleted map[uuid.UUID]bool
	txs     []model.Transaction
}

func (t *ledgerTx) LockCards(ctx context.Context, numbers ...string) (map[string]*model.Card, error) {
	sorted := append([]string(nil), numbers...)
	sort.Strings(sorted)

	result := make(map[string]*model.Card, len(sorted))
	for _, number := range sorted {
		if _, done := result[number]; done {
			continue
		}
		if !t.locked[number] {
			if err := t.repo.db.acquire(ctx, number, t.repo.lockTimeout); err != nil {
				return nil, err
			}
			t.locked[number] = true
			t.order = append(t.order, number)
		}

		card, err := t.current(number)
		if err != nil {
			return nil, err
		}
		result[number] = card
	}
	return result, nil
}

// current читает карту с учётом изменений, сделанных в этой транзакции
func (t *ledgerTx) current(number string) (*model.Card, error) {
	db := t.repo.db
	db.mu.RLock()
	defer db.mu.RUnlock()

	id, ok := db.byNumber[number]
	if !ok || t.deleted[id] {
		return nil, fmt.Errorf("card %s: %w", model.MaskNumberShort(number), model.ErrNotFound)
	}
	if staged, ok := t.staged[id]; ok {
		return staged.Clone(), nil
	}
	return db.cards[id].Clone(), nil
}

func (t *ledgerTx) SaveCard(ctx context.Context, card *model.Card) error {
	if !t.locked[card.Number] {
		return fmt.Errorf("card %s is not locked by this transaction", model.MaskNumberShort(card.Number))
	}
	t.staged[card.ID] = card.Clone()
	return nil
}

func (t *ledgerTx) DeleteCard(ctx context.Context, id uuid.UUID) error {
	t.deleted[id] = true
	delete(t.staged, id)
	return nil
}

func (t *ledgerTx) CreateTransaction(ctx context.Context, tr *model.Transaction) error {
	t.txs = append(t.txs, *tr)
	return nil
}

func (t *ledgerTx) commit() error {
	db := t.repo.db
	db.mu.Lock()
	defer db.mu.Unlock()

	for id := range t.staged {
		if _, ok := db.cards[id]; !ok {
			return fmt.Errorf("card %s: %w", id, model.ErrNotFound)
		}
	}
	for id, card := range t.staged {
		db.cards[id] = card
	}
	for id := range t.deleted {
		if card, ok := db.cards[id]; ok {
			delete(db.byNumber, card.Number)
			delete(db.cards, id)
		}
	}
	db.transactions = append(db.transactions, t.txs...)
	return nil
}

func (t *ledgerTx) releaseAll() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.repo.db.release(t.order[i])
	}
}

var (
	_ service.CardStore         = (*CardRepository)(nil)
	_ service.TransactionStore  = (*TransactionRepository)(nil)
	_ service.LedgerStore       = (*LedgerRepository)(nil)
	_ service.UserStore         = (*UserRepository)(nil)
	_ service.NotificationStore = (*NotificationRepository)(nil)
)

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bank-cards-api/internal/model"
	"bank-cards-api/internal/service"
)

const DefaultLockTimeout = 5 * time.Second

// LedgerRepository транзакция PostgreSQL для изменения балансов.
// Ожидание блокировки строки ограничено lock_timeout.
type LedgerRepository struct {
	db          *sql.DB
	lockTimeout time.Duration
	logger      *logrus.Logger
}

func NewLedgerRepository(db *sql.DB, lockTimeout time.Duration, logger *logrus.Logger) *LedgerRepository {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &LedgerRepository{db: db, lockTimeout: lockTimeout, logger: logger}
}

func (r *LedgerRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx service.LedgerTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.WithError(err).Warn("Ошибка при откате транзакции")
		}
	}()

	// SET не принимает параметры, значение формируется из целого числа
	setTimeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
	if _, err := tx.ExecContext(ctx, setTimeout); err != nil {
		return fmt.Errorf("failed to set lock timeout: %w", err)
	}

	if err := fn(ctx, &ledgerTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapError(err, "failed to commit transaction")
	}
	return nil
}

type ledgerTx struct {
	tx *sql.Tx
}

// LockCards блокирует строки по одной в порядке возрастания номера,
// чтобы встречные переводы не приводили к взаимной блокировке
func (t *ledgerTx) LockCards(ctx context.Context, numbers ...string) (map[string]*model.Card, error) {
	sorted := append([]string(nil), numbers...)
	sort.Strings(sorted)

	result := make(map[string]*model.Card, len(sorted))
	for _, number := range sorted {
		if _, ok := result[number]; ok {
			continue
		}
		card, err := getByNumber(ctx, t.tx, number, true)
		if err != nil {
			return nil, err
		}
		result[number] = card
	}
	return result, nil
}

func (t *ledgerTx) SaveCard(ctx context.Context, card *model.Card) error {
	query := `
		UPDATE cards
		SET status = $2, balance = $3, expiry_date = $4,
			credit_limit = $5, interest_rate = $6, minimum_payment_rate = $7, grace_period_days = $8,
			principal_debt = $9, accrued_interest = $10, total_debt = $11, payment_due_date = $12,
			updated_at = $13
		WHERE id = $1
	`
	card.UpdatedAt = time.Now()
	args := append([]any{card.ID}, cardState(card)...)
	args = append(args, card.UpdatedAt)

	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err, "failed to update card")
	}
	return expectOne(res, "card "+model.MaskNumberShort(card.Number))
}

func (t *ledgerTx) DeleteCard(ctx context.Context, id uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "failed to delete card")
	}
	return expectOne(res, fmt.Sprintf("card %s", id))
}

func (t *ledgerTx) CreateTransaction(ctx context.Context, tr *model.Transaction) error {
	query := `
		INSERT INTO transactions (id, from_card, to_card, amount, operation_type, comment, user_id, initiated_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := t.tx.ExecContext(ctx, query,
		tr.ID,
		tr.FromCard,
		tr.ToCard,
		tr.Amount,
		tr.Type,
		tr.Comment,
		tr.UserID,
		tr.InitiatedBy,
		tr.Timestamp,
	)
	return mapError(err, "failed to create transaction")
}

func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"bank-cards-api/internal/model"
)

const transactionColumns = `id, from_card, to_card, amount, operation_type, comment, user_id, initiated_by, created_at`

type TransactionRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewTransactionRepository(db *sql.DB, logger *logrus.Logger) *TransactionRepository {
	return &TransactionRepository{db: db, logger: logger}
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("transaction %s", id))
	}
	return t, nil
}

// ListByCardNumbers операции, где любая из карт отправитель или получатель, новые первыми
func (r *TransactionRepository) ListByCardNumbers(ctx context.Context, numbers []string) ([]model.Transaction, error) {
	if len(numbers) == 0 {
		return []model.Transaction{}, nil
	}
	r.logger.WithField("cards", len(numbers)).Debug("Запрос транзакций по картам")

	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE from_card = ANY($1) OR to_card = ANY($1)
		ORDER BY created_at DESC`
	return r.list(ctx, query, pq.Array(numbers))
}

func (r *TransactionRepository) ListAll(ctx context.Context, req model.PageRequest) (model.Page[model.Transaction], error) {
	req = req.Normalize()
	page := model.Page[model.Transaction]{Page: req.Page, Size: req.Size, Items: []model.Transaction{}}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("failed to count transactions: %w", err)
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	items, err := r.list(ctx, query, req.Size, req.Offset())
	if err != nil {
		return page, err
	}
	page.Items = items
	return page, nil
}

func (r *TransactionRepository) list(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.WithError(err).Error("Ошибка выполнения запроса транзакций")
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	result := make([]model.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return result, nil
}

func scanTransaction(s scanner) (*model.Transaction, error) {
	var (
		t        model.Transaction
		from, to sql.NullString
	)
	if err := s.Scan(&t.ID, &from, &to, &t.Amount, &t.Type, &t.Comment, &t.UserID, &t.InitiatedBy, &t.Timestamp); err != nil {
		return nil, err
	}
	if from.Valid {
		t.FromCard = &from.String
	}
	if to.Valid {
		t.ToCard = &to.String
	}
	return &t, nil
}

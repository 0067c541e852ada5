package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"bank-cards-api/internal/model"
)

type TransactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for i := range r.db.transactions {
		if r.db.transactions[i].ID == id {
			t := r.db.transactions[i]
			return &t, nil
		}
	}
	return nil, fmt.Errorf("transaction %s: %w", id, model.ErrNotFound)
}

func (r *TransactionRepository) ListByCardNumbers(ctx context.Context, numbers []string) ([]model.Transaction, error) {
	return r.filter(func(t *model.Transaction) bool {
		for _, n := range numbers {
			if t.Touches(n) {
				return true
			}
		}
		return false
	}), nil
}

func (r *TransactionRepository) ListAll(ctx context.Context, page model.PageRequest) (model.Page[model.Transaction], error) {
	return paginate(r.filter(func(*model.Transaction) bool { return true }), page), nil
}

// filter возвращает записи от новых к старым
func (r *TransactionRepository) filter(keep func(*model.Transaction) bool) []model.Transaction {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	result := make([]model.Transaction, 0)
	for i := range r.db.transactions {
		if keep(&r.db.transactions[i]) {
			result = append(result, r.db.transactions[i])
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Timestamp.After(result[j].Timestamp) })
	return result
}

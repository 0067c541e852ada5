package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"bank-cards-api/internal/model"
)

type CardRepository struct {
	db *DB
}

func NewCardRepository(db *DB) *CardRepository {
	return &CardRepository{db: db}
}

func (r *CardRepository) Create(ctx context.Context, card *model.Card) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.byNumber[card.Number]; ok {
		return fmt.Errorf("card already exists: %w", model.ErrConstraintViolation)
	}
	if _, ok := r.db.cards[card.ID]; ok {
		return fmt.Errorf("card already exists: %w", model.ErrConstraintViolation)
	}
	r.db.cards[card.ID] = card.Clone()
	r.db.byNumber[card.Number] = card.ID
	return nil
}

func (r *CardRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	card, ok := r.db.cards[id]
	if !ok {
		return nil, fmt.Errorf("card %s: %w", id, model.ErrNotFound)
	}
	return card.Clone(), nil
}

func (r *CardRepository) GetByNumber(ctx context.Context, number string) (*model.Card, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	id, ok := r.db.byNumber[number]
	if !ok {
		return nil, fmt.Errorf("card %s: %w", model.MaskNumberShort(number), model.ErrNotFound)
	}
	return r.db.cards[id].Clone(), nil
}

func (r *CardRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	_, ok := r.db.byNumber[number]
	return ok, nil
}

func (r *CardRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Card, error) {
	return r.filter(func(c *model.Card) bool { return c.UserID == userID }), nil
}

func (r *CardRepository) ListByStatus(ctx context.Context, status model.CardStatus, page model.PageRequest) (model.Page[model.Card], error) {
	return paginate(r.filter(func(c *model.Card) bool { return c.Status == status }), page), nil
}

func (r *CardRepository) ListAll(ctx context.Context, page model.PageRequest) (model.Page[model.Card], error) {
	return paginate(r.filter(func(*model.Card) bool { return true }), page), nil
}

func (r *CardRepository) SearchByNumber(ctx context.Context, fragment string, ownerID *uuid.UUID) ([]model.Card, error) {
	return r.filter(func(c *model.Card) bool {
		if ownerID != nil && c.UserID != *ownerID {
			return false
		}
		return strings.Contains(c.Number, fragment)
	}), nil
}

func (r *CardRepository) ListCreditAfter(ctx context.Context, afterNumber string, limit int) ([]model.Card, error) {
	cards := r.filter(func(c *model.Card) bool {
		return c.Type == model.CardTypeCredit && c.Number > afterNumber
	})
	if len(cards) > limit {
		cards = cards[:limit]
	}
	return cards, nil
}

// filter возвращает копии карт, отсортированные по номеру
func (r *CardRepository) filter(keep func(*model.Card) bool) []model.Card {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	cards := make([]model.Card, 0)
	for _, c := range r.db.cards {
		if keep(c) {
			cards = append(cards, *c.Clone())
		}
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Number < cards[j].Number })
	return cards
}

func paginate[T any](items []T, req model.PageRequest) model.Page[T] {
	req = req.Normalize()
	page := model.Page[T]{Page: req.Page, Size: req.Size, Total: len(items), Items: []T{}}

	start := req.Offset()
	if start >= len(items) {
		return page
	}
	end := start + req.Size
	if end > len(items) {
		end = len(items)
	}
	page.Items = items[start:end]
	return page
}

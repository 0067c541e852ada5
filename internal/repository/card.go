package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bank-cards-api/internal/model"
)

const cardColumns = `id, card_number, user_id, card_type, status, balance, expiry_date,
	credit_limit, interest_rate, minimum_payment_rate, grace_period_days,
	principal_debt, accrued_interest, total_debt, payment_due_date,
	created_at, updated_at`

type CardRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewCardRepository(db *sql.DB, logger *logrus.Logger) *CardRepository {
	return &CardRepository{db: db, logger: logger}
}

func (r *CardRepository) Create(ctx context.Context, card *model.Card) error {
	query := `
		INSERT INTO cards (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	args := append([]any{card.ID, card.Number, card.UserID, card.Type}, cardState(card)...)
	args = append(args, card.CreatedAt, card.UpdatedAt)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithError(err).WithField("card_id", card.ID).Error("Ошибка при создании карты")
		return mapError(err, "failed to create card")
	}
	return nil
}

func (r *CardRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`
	card, err := scanCard(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("card %s", id))
	}
	return card, nil
}

func (r *CardRepository) GetByNumber(ctx context.Context, number string) (*model.Card, error) {
	return getByNumber(ctx, r.db, number, false)
}

func (r *CardRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM cards WHERE card_number = $1)`, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check card existence: %w", err)
	}
	return exists, nil
}

func (r *CardRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE user_id = $1 ORDER BY card_number`
	return r.list(ctx, query, userID)
}

func (r *CardRepository) ListByStatus(ctx context.Context, status model.CardStatus, page model.PageRequest) (model.Page[model.Card], error) {
	return r.page(ctx, "WHERE status = $1", page, status)
}

func (r *CardRepository) ListAll(ctx context.Context, page model.PageRequest) (model.Page[model.Card], error) {
	return r.page(ctx, "", page)
}

func (r *CardRepository) SearchByNumber(ctx context.Context, fragment string, ownerID *uuid.UUID) ([]model.Card, error) {
	// фрагмент содержит только цифры, спецсимволы LIKE экранировать не нужно
	pattern := "%" + fragment + "%"
	if ownerID != nil {
		query := `SELECT ` + cardColumns + ` FROM cards WHERE card_number LIKE $1 AND user_id = $2 ORDER BY card_number`
		return r.list(ctx, query, pattern, *ownerID)
	}
	query := `SELECT ` + cardColumns + ` FROM cards WHERE card_number LIKE $1 ORDER BY card_number`
	return r.list(ctx, query, pattern)
}

func (r *CardRepository) ListCreditAfter(ctx context.Context, afterNumber string, limit int) ([]model.Card, error) {
	query := `SELECT ` + cardColumns + `
		FROM cards
		WHERE card_type = $1 AND card_number > $2
		ORDER BY card_number
		LIMIT $3`
	return r.list(ctx, query, model.CardTypeCredit, afterNumber, limit)
}

func (r *CardRepository) page(ctx context.Context, where string, req model.PageRequest, args ...any) (model.Page[model.Card], error) {
	req = req.Normalize()
	result := model.Page[model.Card]{Page: req.Page, Size: req.Size, Items: []model.Card{}}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards `+where, args...).Scan(&result.Total); err != nil {
		return result, fmt.Errorf("failed to count cards: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM cards %s ORDER BY card_number LIMIT $%d OFFSET $%d`, cardColumns, where, n+1, n+2)
	items, err := r.list(ctx, query, append(args, req.Size, req.Offset())...)
	if err != nil {
		return result, err
	}
	result.Items = items
	return result, nil
}

func (r *CardRepository) list(ctx context.Context, query string, args ...any) ([]model.Card, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	cards := make([]model.Card, 0)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return cards, nil
}

func getByNumber(ctx context.Context, q querier, number string, forUpdate bool) (*model.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE card_number = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	card, err := scanCard(q.QueryRowContext(ctx, query, number))
	if err != nil {
		return nil, mapError(err, "card "+model.MaskNumberShort(number))
	}
	return card, nil
}

// cardState изменяемые поля карты в порядке колонок от status до payment_due_date
func cardState(card *model.Card) []any {
	var (
		limit, rate, minRate     decimal.NullDecimal
		principal, accrued, debt decimal.NullDecimal
		grace                    sql.NullInt32
		dueDate                  sql.NullTime
	)
	if c := card.Credit; c != nil && card.Type == model.CardTypeCredit {
		limit = decimal.NewNullDecimal(c.CreditLimit)
		rate = decimal.NewNullDecimal(c.InterestRate)
		minRate = decimal.NewNullDecimal(c.MinimumPaymentRate)
		grace = sql.NullInt32{Int32: int32(c.GracePeriodDays), Valid: true}
		principal = decimal.NewNullDecimal(c.PrincipalDebt)
		accrued = decimal.NewNullDecimal(c.AccruedInterest)
		debt = decimal.NewNullDecimal(c.TotalDebt)
		dueDate = sql.NullTime{Time: c.PaymentDueDate, Valid: !c.PaymentDueDate.IsZero()}
	}
	return []any{
		card.Status, card.Balance, card.ExpiryDate,
		limit, rate, minRate, grace, principal, accrued, debt, dueDate,
	}
}

func scanCard(s scanner) (*model.Card, error) {
	var (
		card                     model.Card
		limit, rate, minRate     decimal.NullDecimal
		principal, accrued, debt decimal.NullDecimal
		grace                    sql.NullInt32
		dueDate                  sql.NullTime
	)
	err := s.Scan(
		&card.ID, &card.Number, &card.UserID, &card.Type, &card.Status, &card.Balance, &card.ExpiryDate,
		&limit, &rate, &minRate, &grace, &principal, &accrued, &debt, &dueDate,
		&card.CreatedAt, &card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	card.Number = strings.TrimSpace(card.Number)

	if card.Type == model.CardTypeCredit {
		card.Credit = &model.CreditTerms{
			CreditLimit:        limit.Decimal,
			InterestRate:       rate.Decimal,
			MinimumPaymentRate: minRate.Decimal,
			GracePeriodDays:    int(grace.Int32),
			PrincipalDebt:      principal.Decimal,
			AccruedInterest:    accrued.Decimal,
			TotalDebt:          debt.Decimal,
			PaymentDueDate:     dueDate.Time,
		}
	}
	return &card, nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bank-cards-api/internal/model"
)

// CreditSettings значения по умолчанию для кредитных карт
type CreditSettings struct {
	DefaultLimit       decimal.Decimal
	DefaultRate        decimal.Decimal
	RateMargin         decimal.Decimal // надбавка к ключевой ставке
	MinimumPaymentRate decimal.Decimal
	GracePeriodDays    int
	ValidityYears      int
	AccrualPageSize    int
}

func DefaultCreditSettings() CreditSettings {
	return CreditSettings{
		DefaultLimit:       decimal.NewFromInt(50000),
		DefaultRate:        decimal.NewFromInt(25),
		RateMargin:         decimal.NewFromInt(5),
		MinimumPaymentRate: decimal.NewFromInt(5),
		GracePeriodDays:    50,
		ValidityYears:      defaultCardYears,
		AccrualPageSize:    500,
	}
}

type CreditCardService struct {
	cards     CardStore
	ledger    LedgerStore
	lifecycle *Lifecycle
	keyRate   KeyRateSource
	behavior  CreditBehavior
	settings  CreditSettings
	now       func() time.Time
	logger    *logrus.Logger
}

// NewCreditCardService keyRate может быть nil, тогда используется ставка из настроек
func NewCreditCardService(
	cards CardStore,
	ledger LedgerStore,
	lifecycle *Lifecycle,
	keyRate KeyRateSource,
	settings CreditSettings,
	logger *logrus.Logger,
) *CreditCardService {
	if settings.AccrualPageSize <= 0 {
		settings.AccrualPageSize = DefaultCreditSettings().AccrualPageSize
	}
	return &CreditCardService{
		cards:     cards,
		ledger:    ledger,
		lifecycle: lifecycle,
		keyRate:   keyRate,
		settings:  settings,
		now:       time.Now,
		logger:    logger,
	}
}

// CreateForUser выпуск кредитной карты администратором с явными условиями
func (s *CreditCardService) CreateForUser(
	ctx context.Context,
	p model.Principal,
	userID uuid.UUID,
	req model.CreateCreditCardRequest,
) (*model.CardResponse, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	if !req.CreditLimit.IsPositive() {
		return nil, fmt.Errorf("кредитный лимит должен быть положительным: %w", model.ErrInvalidOperation)
	}
	if req.InterestRate.IsNegative() {
		return nil, fmt.Errorf("процентная ставка не может быть отрицательной: %w", model.ErrInvalidOperation)
	}
	if err := validateLimit(req.CreditLimit); err != nil {
		return nil, err
	}
	if err := validateRate(req.InterestRate); err != nil {
		return nil, err
	}

	minRate := s.settings.MinimumPaymentRate
	if req.MinimumPaymentRate != nil {
		minRate = *req.MinimumPaymentRate
		if !minRate.IsPositive() || minRate.GreaterThan(hundred) {
			return nil, fmt.Errorf("ставка минимального платежа должна быть в диапазоне (0, 100]: %w", model.ErrInvalidOperation)
		}
		if err := validateRate(minRate); err != nil {
			return nil, err
		}
	}
	grace := s.settings.GracePeriodDays
	if req.GracePeriodDays != nil {
		if *req.GracePeriodDays < 0 {
			return nil, fmt.Errorf("льготный период не может быть отрицательным: %w", model.ErrInvalidOperation)
		}
		grace = *req.GracePeriodDays
	}

	return s.issue(ctx, userID, req.CreditLimit, req.InterestRate, minRate, grace)
}

// CreateSelf выпуск кредитной карты пользователем себе на стандартных условиях.
// У пользователя может быть только одна незакрытая кредитная карта.
func (s *CreditCardService) CreateSelf(ctx context.Context, p model.Principal) (*model.CardResponse, error) {
	existing, err := s.cards.ListByUser(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения карт пользователя: %w", err)
	}
	for _, c := range existing {
		if c.Type == model.CardTypeCredit && c.Status != model.CardStatusClosed {
			s.logger.WithField("user_id", p.UserID).Warn("Повторный выпуск кредитной карты")
			return nil, fmt.Errorf("у пользователя уже есть кредитная карта: %w", model.ErrInvalidOperation)
		}
	}

	rate := s.defaultRate(ctx)
	return s.issue(ctx, p.UserID, s.settings.DefaultLimit, rate, s.settings.MinimumPaymentRate, s.settings.GracePeriodDays)
}

// defaultRate ключевая ставка ЦБ плюс надбавка, при недоступности сервиса ставка из настроек
func (s *CreditCardService) defaultRate(ctx context.Context) decimal.Decimal {
	if s.keyRate == nil {
		return s.settings.DefaultRate
	}
	rate, err := s.keyRate.KeyRate(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Ключевая ставка недоступна, используется ставка по умолчанию")
		return s.settings.DefaultRate
	}
	return rate.Add(s.settings.RateMargin).Round(rateScale)
}

func (s *CreditCardService) issue(
	ctx context.Context,
	userID uuid.UUID,
	limit, rate, minPaymentRate decimal.Decimal,
	grace int,
) (*model.CardResponse, error) {
	now := s.now()
	card := &model.Card{
		ID:         uuid.New(),
		UserID:     userID,
		Type:       model.CardTypeCredit,
		Status:     model.CardStatusActive,
		Balance:    limit,
		ExpiryDate: expiryFrom(now, s.settings.ValidityYears),
		Credit: &model.CreditTerms{
			CreditLimit:        limit,
			InterestRate:       rate,
			MinimumPaymentRate: minPaymentRate,
			GracePeriodDays:    grace,
			PrincipalDebt:      decimal.Zero,
			AccruedInterest:    decimal.Zero,
			PaymentDueDate:     model.NextPaymentDueDate(now),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	card.Credit.RecomputeTotalDebt()

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"limit":   limit.String(),
		"rate":    rate.String(),
	}).Info("Выпуск кредитной карты")
	if err := s.lifecycle.Issue(ctx, card); err != nil {
		s.logger.WithError(err).Error("Ошибка выпуска кредитной карты")
		return nil, fmt.Errorf("ошибка выпуска кредитной карты: %w", err)
	}

	resp := card.ToResponse()
	return &resp, nil
}

func (s *CreditCardService) IncreaseLimit(ctx context.Context, p model.Principal, ref model.CardRef, newLimit decimal.Decimal) (*model.CardResponse, error) {
	return s.mutate(ctx, p, ref, "increase_limit", func(card *model.Card) error {
		return s.behavior.IncreaseLimit(card, newLimit)
	})
}

func (s *CreditCardService) DecreaseLimit(ctx context.Context, p model.Principal, ref model.CardRef, newLimit decimal.Decimal) (*model.CardResponse, error) {
	return s.mutate(ctx, p, ref, "decrease_limit", func(card *model.Card) error {
		return s.behavior.DecreaseLimit(card, newLimit)
	})
}

// ChangeLimit выбирает повышение или снижение по сравнению с текущим лимитом
func (s *CreditCardService) ChangeLimit(ctx context.Context, p model.Principal, ref model.CardRef, newLimit decimal.Decimal) (*model.CardResponse, error) {
	return s.mutate(ctx, p, ref, "change_limit", func(card *model.Card) error {
		if card.IsCredit() && newLimit.GreaterThan(card.Credit.CreditLimit) {
			return s.behavior.IncreaseLimit(card, newLimit)
		}
		return s.behavior.DecreaseLimit(card, newLimit)
	})
}

func (s *CreditCardService) SetInterestRate(ctx context.Context, p model.Principal, ref model.CardRef, rate decimal.Decimal) (*model.CardResponse, error) {
	return s.mutate(ctx, p, ref, "set_interest_rate", func(card *model.Card) error {
		return s.behavior.SetInterestRate(card, rate)
	})
}

// mutate административное изменение условий под блокировкой карты
func (s *CreditCardService) mutate(
	ctx context.Context,
	p model.Principal,
	ref model.CardRef,
	action string,
	apply func(card *model.Card) error,
) (*model.CardResponse, error) {
	log := s.logger.WithFields(logrus.Fields{
		"action": action,
		"card":   ref.String(),
		"by":     p.UserID,
	})
	if err := requireAdmin(p); err != nil {
		log.Warn("Попытка изменения условий кредитной карты без прав администратора")
		return nil, err
	}
	card, err := findCard(ctx, s.cards, ref)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения карты: %w", err)
	}

	var updated *model.Card
	err = s.ledger.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		locked, err := tx.LockCards(ctx, card.Number)
		if err != nil {
			return err
		}
		current := locked[card.Number]
		if err := apply(current); err != nil {
			return err
		}
		current.UpdatedAt = s.now()
		if err := tx.SaveCard(ctx, current); err != nil {
			return fmt.Errorf("ошибка сохранения карты: %w", err)
		}
		updated = current
		return nil
	})
	if err != nil {
		log.WithError(err).Warn("Изменение условий кредитной карты отклонено")
		return nil, err
	}

	log.Info("Условия кредитной карты изменены")
	resp := updated.ToResponse()
	return &resp, nil
}

// AccrueMonthlyInterest начисляет проценты по всем кредитным картам постранично.
// Каждая карта обрабатывается в отдельной транзакции, ошибка по одной карте не прерывает обход.
func (s *CreditCardService) AccrueMonthlyInterest(ctx context.Context) (model.AccrualReport, error) {
	report := model.AccrualReport{Interest: decimal.Zero}
	after := ""

	s.logger.WithField("page_size", s.settings.AccrualPageSize).Info("Запуск начисления процентов по кредитным картам")
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		page, err := s.cards.ListCreditAfter(ctx, after, s.settings.AccrualPageSize)
		if err != nil {
			s.logger.WithError(err).Error("Ошибка получения страницы кредитных карт")
			return report, fmt.Errorf("ошибка получения кредитных карт: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for i := range page {
			card := &page[i]
			report.Processed++

			if card.Credit == nil || !card.Credit.PrincipalDebt.IsPositive() {
				report.Skipped++
				continue
			}

			interest, err := s.accrueOne(ctx, card.Number)
			if err != nil {
				report.Failed++
				report.FailedIDs = append(report.FailedIDs, card.ID)
				s.logger.WithError(err).WithField("card_id", card.ID).Error("Ошибка начисления процентов по карте")
				continue
			}
			if interest.IsPositive() {
				report.Accrued++
				report.Interest = report.Interest.Add(interest)
			} else {
				report.Skipped++
			}
		}

		after = page[len(page)-1].Number
		if len(page) < s.settings.AccrualPageSize {
			break
		}
	}

	s.logger.WithFields(logrus.Fields{
		"processed": report.Processed,
		"accrued":   report.Accrued,
		"skipped":   report.Skipped,
		"failed":    report.Failed,
		"interest":  report.Interest.String(),
	}).Info("Начисление процентов завершено")
	return report, nil
}

func (s *CreditCardService) accrueOne(ctx context.Context, number string) (decimal.Decimal, error) {
	interest := decimal.Zero
	err := s.ledger.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		locked, err := tx.LockCards(ctx, number)
		if err != nil {
			return err
		}
		card := locked[number]

		interest, err = s.behavior.Accrue(card)
		if err != nil {
			return err
		}
		if !interest.IsPositive() {
			return nil
		}

		now := s.now()
		card.Credit.PaymentDueDate = model.NextPaymentDueDate(now)
		card.UpdatedAt = now
		return tx.SaveCard(ctx, card)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return interest, nil
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bank-cards-api/internal/model"
)

// CardService выпуск дебетовых карт, просмотр и управление статусом карт
type CardService struct {
	cards         CardStore
	ledger        LedgerStore
	lifecycle     *Lifecycle
	behaviors     Behaviors
	validityYears int
	now           func() time.Time
	logger        *logrus.Logger
}

func NewCardService(
	cards CardStore,
	ledger LedgerStore,
	lifecycle *Lifecycle,
	validityYears int,
	logger *logrus.Logger,
) *CardService {
	return &CardService{
		cards:         cards,
		ledger:        ledger,
		lifecycle:     lifecycle,
		behaviors:     DefaultBehaviors(),
		validityYears: validityYears,
		now:           time.Now,
		logger:        logger,
	}
}

// CreateDebit выпускает дебетовую карту пользователю userID.
// Пользователь может выпустить карту себе, администратор любому пользователю.
func (s *CardService) CreateDebit(ctx context.Context, p model.Principal, userID uuid.UUID) (*model.CardResponse, error) {
	if err := requireSelfOrAdmin(p, userID); err != nil {
		s.logger.WithField("user_id", p.UserID).Warn("Попытка выпуска карты другому пользователю")
		return nil, err
	}

	now := s.now()
	card := &model.Card{
		ID:         uuid.New(),
		UserID:     userID,
		Type:       model.CardTypeDebit,
		Status:     model.CardStatusActive,
		Balance:    decimal.Zero,
		ExpiryDate: expiryFrom(now, s.validityYears),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.logger.WithField("user_id", userID).Info("Выпуск дебетовой карты")
	if err := s.lifecycle.Issue(ctx, card); err != nil {
		s.logger.WithError(err).Error("Ошибка выпуска дебетовой карты")
		return nil, fmt.Errorf("ошибка выпуска карты: %w", err)
	}

	resp := card.ToResponse()
	return &resp, nil
}

func (s *CardService) Get(ctx context.Context, p model.Principal, ref model.CardRef) (*model.CardResponse, error) {
	card, err := findCard(ctx, s.cards, ref)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения карты: %w", err)
	}
	if err := requireOwner(p, card); err != nil {
		return nil, err
	}
	resp := card.ToResponse()
	return &resp, nil
}

// ListByUser карты пользователя, доступно ему самому и администратору
func (s *CardService) ListByUser(ctx context.Context, p model.Principal, userID uuid.UUID) ([]model.CardResponse, error) {
	if err := requireSelfOrAdmin(p, userID); err != nil {
		return nil, err
	}
	cards, err := s.cards.ListByUser(ctx, userID)
	if err != nil {
		s.logger.WithError(err).Error("Ошибка получения карт пользователя")
		return nil, fmt.Errorf("ошибка получения карт: %w", err)
	}
	return toResponses(cards), nil
}

func (s *CardService) ListAll(ctx context.Context, p model.Principal, page model.PageRequest) (model.Page[model.CardResponse], error) {
	if err := requireAdmin(p); err != nil {
		return model.Page[model.CardResponse]{}, err
	}
	result, err := s.cards.ListAll(ctx, page.Normalize())
	if err != nil {
		return model.Page[model.CardResponse]{}, fmt.Errorf("ошибка получения карт: %w", err)
	}
	return toResponsePage(result), nil
}

// Search поиск по фрагменту номера. Пользователь ищет только среди своих карт.
func (s *CardService) Search(ctx context.Context, p model.Principal, fragment string) ([]model.CardResponse, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" || strings.Trim(fragment, "0123456789") != "" {
		return nil, fmt.Errorf("фрагмент номера должен состоять из цифр: %w", model.ErrInvalidOperation)
	}

	var owner *uuid.UUID
	if !p.IsAdmin() {
		owner = &p.UserID
	}
	cards, err := s.cards.SearchByNumber(ctx, fragment, owner)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска карт: %w", err)
	}
	return toResponses(cards), nil
}

// BlockRequests карты, ожидающие решения администратора по блокировке
func (s *CardService) BlockRequests(ctx context.Context, p model.Principal, page model.PageRequest) (model.Page[model.CardResponse], error) {
	if err := requireAdmin(p); err != nil {
		return model.Page[model.CardResponse]{}, err
	}
	result, err := s.cards.ListByStatus(ctx, model.CardStatusPendingBlock, page.Normalize())
	if err != nil {
		return model.Page[model.CardResponse]{}, fmt.Errorf("ошибка получения заявок на блокировку: %w", err)
	}
	return toResponsePage(result), nil
}

// Block блокировка администратором, в том числе одобрение заявки владельца
func (s *CardService) Block(ctx context.Context, p model.Principal, ref model.CardRef) (*model.CardResponse, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	return s.changeStatus(ctx, p, ref, model.CardStatusBlocked)
}

// Unblock разблокировка администратором, в том числе отклонение заявки владельца
func (s *CardService) Unblock(ctx context.Context, p model.Principal, ref model.CardRef) (*model.CardResponse, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	return s.changeStatus(ctx, p, ref, model.CardStatusActive)
}

// RequestBlock заявка владельца на блокировку карты
func (s *CardService) RequestBlock(ctx context.Context, p model.Principal, ref model.CardRef) (*model.CardResponse, error) {
	return s.changeStatus(ctx, p, ref, model.CardStatusPendingBlock)
}

// Close закрытие карты владельцем или администратором, только без остатка и долга
func (s *CardService) Close(ctx context.Context, p model.Principal, ref model.CardRef) (*model.CardResponse, error) {
	return s.changeStatus(ctx, p, ref, model.CardStatusClosed)
}

func (s *CardService) changeStatus(
	ctx context.Context,
	p model.Principal,
	ref model.CardRef,
	to model.CardStatus,
) (*model.CardResponse, error) {
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
		check := requireOwner
		if to == model.CardStatusPendingBlock {
			// заявку подаёт только сам держатель, администратор блокирует напрямую
			check = requireHolder
		}
		if err := check(p, current); err != nil {
			return err
		}

		from := current.Status
		if err := Transition(current, to); err != nil {
			return err
		}
		current.UpdatedAt = s.now()
		if err := tx.SaveCard(ctx, current); err != nil {
			return fmt.Errorf("ошибка сохранения карты: %w", err)
		}

		s.logger.WithFields(logrus.Fields{
			"card_id": current.ID,
			"from":    from,
			"to":      to,
			"by":      p.UserID,
		}).Info("Статус карты изменён")
		updated = current
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("card_id", card.ID).Warn("Изменение статуса карты отклонено")
		return nil, err
	}

	resp := updated.ToResponse()
	return &resp, nil
}

// Delete принудительное удаление администратором. Карта не должна хранить средства или долг.
func (s *CardService) Delete(ctx context.Context, p model.Principal, ref model.CardRef) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	card, err := findCard(ctx, s.cards, ref)
	if err != nil {
		return fmt.Errorf("ошибка получения карты: %w", err)
	}

	err = s.ledger.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		locked, err := tx.LockCards(ctx, card.Number)
		if err != nil {
			return err
		}
		current := locked[card.Number]
		behavior, err := s.behaviors.For(current)
		if err != nil {
			return err
		}
		if err := behavior.CanDelete(current); err != nil {
			return err
		}
		return tx.DeleteCard(ctx, current.ID)
	})
	if err != nil {
		s.logger.WithError(err).WithField("card_id", card.ID).Warn("Удаление карты отклонено")
		return err
	}

	s.logger.WithField("card_id", card.ID).Info("Карта удалена")
	return nil
}

func toResponses(cards []model.Card) []model.CardResponse {
	result := make([]model.CardResponse, 0, len(cards))
	for i := range cards {
		result = append(result, cards[i].ToResponse())
	}
	return result
}

func toResponsePage(page model.Page[model.Card]) model.Page[model.CardResponse] {
	return model.Page[model.CardResponse]{
		Items: toResponses(page.Items),
		Page:  page.Page,
		Size:  page.Size,
		Total: page.Total,
	}
}

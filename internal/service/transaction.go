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

const defaultPublishTimeout = 3 * time.Second

// TransactionService точки входа денежных операций. Изменение балансов и запись транзакции
// выполняются в одной транзакции леджера, событие публикуется только после фиксации.
type TransactionService struct {
	cards          CardStore
	transactions   TransactionStore
	ledger         LedgerStore
	publisher      Publisher
	behaviors      Behaviors
	publishTimeout time.Duration
	now            func() time.Time
	logger         *logrus.Logger
}

func NewTransactionService(
	cards CardStore,
	transactions TransactionStore,
	ledger LedgerStore,
	publisher Publisher,
	publishTimeout time.Duration,
	logger *logrus.Logger,
) *TransactionService {
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}
	return &TransactionService{
		cards:          cards,
		transactions:   transactions,
		ledger:         ledger,
		publisher:      publisher,
		behaviors:      DefaultBehaviors(),
		publishTimeout: publishTimeout,
		now:            time.Now,
		logger:         logger,
	}
}

// Deposit пополнение карты владельцем или администратором
func (s *TransactionService) Deposit(
	ctx context.Context,
	p model.Principal,
	ref model.CardRef,
	amount decimal.Decimal,
	comment string,
) (*model.CardResponse, error) {
	return s.single(ctx, p, ref, amount, comment, model.OperationDeposit)
}

// Withdraw списание с карты владельцем или администратором
func (s *TransactionService) Withdraw(
	ctx context.Context,
	p model.Principal,
	ref model.CardRef,
	amount decimal.Decimal,
	comment string,
) (*model.CardResponse, error) {
	return s.single(ctx, p, ref, amount, comment, model.OperationWithdraw)
}

func (s *TransactionService) single(
	ctx context.Context,
	p model.Principal,
	ref model.CardRef,
	amount decimal.Decimal,
	comment string,
	op model.OperationType,
) (*model.CardResponse, error) {
	log := s.logger.WithFields(logrus.Fields{
		"operation": op,
		"card":      ref.String(),
		"amount":    amount.String(),
		"user_id":   p.UserID,
	})

	if err := validateAmount(amount); err != nil {
		log.Warn("Попытка операции на неположительную сумму")
		return nil, err
	}

	number, err := s.resolveNumber(ctx, ref)
	if err != nil {
		log.WithError(err).Warn("Карта не найдена")
		return nil, err
	}

	var (
		updated *model.Card
		record  *model.Transaction
	)
	err = s.ledger.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		locked, err := tx.LockCards(ctx, number)
		if err != nil {
			return err
		}
		card := locked[number]

		if err := requireOwner(p, card); err != nil {
			return err
		}
		behavior, err := s.behaviors.For(card)
		if err != nil {
			return err
		}

		now := s.now()
		if op == model.OperationDeposit {
			err = behavior.Deposit(card, amount, now)
		} else {
			err = behavior.Withdraw(card, amount, now)
		}
		if err != nil {
			return err
		}

		card.UpdatedAt = now
		if err := tx.SaveCard(ctx, card); err != nil {
			return fmt.Errorf("ошибка сохранения карты: %w", err)
		}

		record = newTransaction(op, card.UserID, p.UserID, amount, comment, now)
		if op == model.OperationDeposit {
			record.ToCard = &card.Number
		} else {
			record.FromCard = &card.Number
		}
		if err := tx.CreateTransaction(ctx, record); err != nil {
			return fmt.Errorf("ошибка записи транзакции: %w", err)
		}

		updated = card
		return nil
	})
	if err != nil {
		log.WithError(err).Warn("Операция по карте отклонена")
		return nil, err
	}

	log.WithField("transaction_id", record.ID).Info("Операция по карте выполнена")
	s.publish(ctx, model.NewNotificationEvent(record, nil))

	resp := updated.ToResponse()
	return &resp, nil
}

// Transfer перевод между картами. Обе карты блокируются в порядке возрастания номеров,
// списание и зачисление фиксируются вместе или не фиксируются вовсе.
func (s *TransactionService) Transfer(
	ctx context.Context,
	p model.Principal,
	fromRef, toRef model.CardRef,
	amount decimal.Decimal,
	comment string,
) (*model.CardResponse, error) {
	log := s.logger.WithFields(logrus.Fields{
		"operation": model.OperationTransfer,
		"from":      fromRef.String(),
		"to":        toRef.String(),
		"amount":    amount.String(),
		"user_id":   p.UserID,
	})

	if sameRef(fromRef, toRef) {
		log.Warn("Попытка перевода на ту же карту")
		return nil, fmt.Errorf("перевод на ту же карту невозможен: %w", model.ErrInvalidOperation)
	}
	if err := validateAmount(amount); err != nil {
		log.Warn("Попытка перевода неположительной суммы")
		return nil, err
	}

	fromNumber, err := s.resolveNumber(ctx, fromRef)
	if err != nil {
		log.WithError(err).Warn("Карта отправителя не найдена")
		return nil, fmt.Errorf("ошибка получения карты отправителя: %w", err)
	}
	toNumber, err := s.resolveNumber(ctx, toRef)
	if err != nil {
		log.WithError(err).Warn("Карта получателя не найдена")
		return nil, fmt.Errorf("ошибка получения карты получателя: %w", err)
	}
	if fromNumber == toNumber {
		log.Warn("Попытка перевода на ту же карту")
		return nil, fmt.Errorf("перевод на ту же карту невозможен: %w", model.ErrInvalidOperation)
	}

	var (
		source    *model.Card
		recipient uuid.UUID
		record    *model.Transaction
	)
	err = s.ledger.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		locked, err := tx.LockCards(ctx, fromNumber, toNumber)
		if err != nil {
			return err
		}
		from, to := locked[fromNumber], locked[toNumber]

		if err := requireOwner(p, from); err != nil {
			return err
		}
		fromBehavior, err := s.behaviors.For(from)
		if err != nil {
			return err
		}
		toBehavior, err := s.behaviors.For(to)
		if err != nil {
			return err
		}

		now := s.now()
		if err := fromBehavior.Withdraw(from, amount, now); err != nil {
			return fmt.Errorf("ошибка списания с карты отправителя: %w", err)
		}
		if err := toBehavior.Deposit(to, amount, now); err != nil {
			return fmt.Errorf("ошибка зачисления на карту получателя: %w", err)
		}

		from.UpdatedAt, to.UpdatedAt = now, now
		if err := tx.SaveCard(ctx, from); err != nil {
			return fmt.Errorf("ошибка сохранения карты отправителя: %w", err)
		}
		if err := tx.SaveCard(ctx, to); err != nil {
			return fmt.Errorf("ошибка сохранения карты получателя: %w", err)
		}

		record = newTransaction(model.OperationTransfer, from.UserID, p.UserID, amount, comment, now)
		record.FromCard = &from.Number
		record.ToCard = &to.Number
		if err := tx.CreateTransaction(ctx, record); err != nil {
			return fmt.Errorf("ошибка записи транзакции перевода: %w", err)
		}

		source = from
		recipient = to.UserID
		return nil
	})
	if err != nil {
		log.WithError(err).Warn("Перевод отклонён")
		return nil, err
	}

	log.WithField("transaction_id", record.ID).Info("Перевод успешно выполнен")
	s.publish(ctx, model.NewNotificationEvent(record, &recipient))

	resp := source.ToResponse()
	return &resp, nil
}

// publish не влияет на результат операции: деньги уже перемещены
func (s *TransactionService) publish(ctx context.Context, event model.NotificationEvent) {
	if s.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(pctx, event); err != nil {
		s.logger.WithError(err).WithField("transaction_id", event.TransactionID).
			Error("Не удалось опубликовать событие по операции")
	}
}

// ByID транзакция доступна администратору и владельцу любой из её карт
func (s *TransactionService) ByID(ctx context.Context, p model.Principal, id uuid.UUID) (*model.Transaction, error) {
	t, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакции: %w", err)
	}
	if p.IsAdmin() || t.UserID == p.UserID {
		return t, nil
	}

	cards, err := s.cards.ListByUser(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения карт пользователя: %w", err)
	}
	for _, c := range cards {
		if t.Touches(c.Number) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("транзакция не относится к картам пользователя: %w", model.ErrAccessDenied)
}

func (s *TransactionService) ByCard(ctx context.Context, p model.Principal, number string) ([]model.Transaction, error) {
	card, err := s.cards.GetByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения карты: %w", err)
	}
	if err := requireOwner(p, card); err != nil {
		return nil, err
	}
	return s.transactions.ListByCardNumbers(ctx, []string{card.Number})
}

// ByUser операции по всем картам пользователя, пустой список если карт нет
func (s *TransactionService) ByUser(ctx context.Context, p model.Principal, userID uuid.UUID) ([]model.Transaction, error) {
	if err := requireSelfOrAdmin(p, userID); err != nil {
		return nil, err
	}
	cards, err := s.cards.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения карт пользователя: %w", err)
	}
	if len(cards) == 0 {
		return []model.Transaction{}, nil
	}

	numbers := make([]string, 0, len(cards))
	for _, c := range cards {
		numbers = append(numbers, c.Number)
	}
	return s.transactions.ListByCardNumbers(ctx, numbers)
}

func (s *TransactionService) All(ctx context.Context, p model.Principal, page model.PageRequest) (model.Page[model.Transaction], error) {
	if err := requireAdmin(p); err != nil {
		return model.Page[model.Transaction]{}, err
	}
	return s.transactions.ListAll(ctx, page.Normalize())
}

func (s *TransactionService) resolveNumber(ctx context.Context, ref model.CardRef) (string, error) {
	if ref.Number != "" {
		return ref.Number, nil
	}
	card, err := findCard(ctx, s.cards, ref)
	if err != nil {
		return "", err
	}
	return card.Number, nil
}

func sameRef(a, b model.CardRef) bool {
	if a.Number != "" && a.Number == b.Number {
		return true
	}
	return a.ID != uuid.Nil && a.ID == b.ID
}

func newTransaction(
	op model.OperationType,
	ownerID, initiatorID uuid.UUID,
	amount decimal.Decimal,
	comment string,
	now time.Time,
) *model.Transaction {
	return &model.Transaction{
		ID:          uuid.New(),
		Amount:      amount,
		Type:        op,
		Timestamp:   now,
		Comment:     comment,
		UserID:      ownerID,
		InitiatedBy: initiatorID,
	}
}

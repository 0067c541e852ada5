package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bank-cards-api/internal/model"
)

const (
	cardNumberPrefix  = "4"
	cardNumberLength  = 16
	maxNumberAttempts = 10
	defaultCardYears  = 5
)

// Lifecycle генерация номеров карт и проверки состояния, общие для всех типов карт
type Lifecycle struct {
	cards  CardStore
	random io.Reader
	logger *logrus.Logger
}

func NewLifecycle(cards CardStore, logger *logrus.Logger) *Lifecycle {
	return &Lifecycle{
		cards:  cards,
		random: rand.Reader,
		logger: logger,
	}
}

// GenerateNumber возвращает свободный 16-значный номер с контрольной цифрой Луна.
// При исчерпании попыток возвращает ошибку, но никогда не дубликат.
func (l *Lifecycle) GenerateNumber(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		number, err := generateCardNumber(l.random)
		if err != nil {
			return "", fmt.Errorf("ошибка генерации номера карты: %w", err)
		}

		exists, err := l.cards.ExistsByNumber(ctx, number)
		if err != nil {
			return "", fmt.Errorf("ошибка проверки уникальности номера: %w", err)
		}
		if !exists {
			return number, nil
		}

		l.logger.WithField("attempt", attempt).Warn("Сгенерированный номер карты уже занят, повтор")
	}
	return "", fmt.Errorf("не удалось сгенерировать уникальный номер карты за %d попыток", maxNumberAttempts)
}

// Issue присваивает карте свободный номер и сохраняет её.
// Конфликт уникальности при вставке приводит к повторной генерации номера.
func (l *Lifecycle) Issue(ctx context.Context, card *model.Card) error {
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		number, err := l.GenerateNumber(ctx)
		if err != nil {
			return err
		}
		card.Number = number

		err = l.cards.Create(ctx, card)
		if err == nil {
			l.logger.WithFields(logrus.Fields{
				"card_id": card.ID,
				"type":    card.Type,
				"user_id": card.UserID,
			}).Info("Карта выпущена")
			return nil
		}
		if !errors.Is(err, model.ErrConstraintViolation) {
			return fmt.Errorf("ошибка сохранения карты: %w", err)
		}
		l.logger.WithField("attempt", attempt).Warn("Конфликт номера карты при сохранении, повтор")
	}
	return fmt.Errorf("не удалось выпустить карту за %d попыток", maxNumberAttempts)
}

// findCard ищет карту по идентификатору или номеру
func findCard(ctx context.Context, cards CardStore, ref model.CardRef) (*model.Card, error) {
	switch {
	case ref.Number != "":
		return cards.GetByNumber(ctx, ref.Number)
	case ref.ID != uuid.Nil:
		return cards.GetByID(ctx, ref.ID)
	default:
		return nil, fmt.Errorf("не указана карта: %w", model.ErrNotFound)
	}
}

func generateCardNumber(r io.Reader) (string, error) {
	prefix := cardNumberPrefix
	ten := big.NewInt(10)
	for len(prefix) < cardNumberLength-1 {
		n, err := rand.Int(r, ten)
		if err != nil {
			return "", err
		}
		prefix += n.String()
	}
	return prefix + strconv.Itoa(luhnCheckDigit(prefix)), nil
}

func luhnCheckDigit(prefix string) int {
	sum := 0
	isSecondDigit := true
	for i := len(prefix) - 1; i >= 0; i-- {
		digit := int(prefix[i] - '0')
		if isSecondDigit {
			digit *= 2
			if digit > 9 {
				digit = digit%10 + digit/10
			}
		}
		sum += digit
		isSecondDigit = !isSecondDigit
	}
	return (10 - (sum % 10)) % 10
}

// ValidLuhn проверяет полный номер вместе с контрольной цифрой
func ValidLuhn(number string) bool {
	if len(number) < 2 {
		return false
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return false
		}
	}
	last := int(number[len(number)-1] - '0')
	return luhnCheckDigit(number[:len(number)-1]) == last
}

// CheckOperable запрещает операции по заблокированной, закрытой или просроченной карте.
// PENDING_BLOCK не ограничивает движение средств.
func CheckOperable(card *model.Card, now time.Time) error {
	switch card.Status {
	case model.CardStatusBlocked, model.CardStatusClosed:
		return fmt.Errorf("карта %s в статусе %s: %w", model.MaskNumberShort(card.Number), card.Status, model.ErrAccountBlocked)
	}
	if card.Expired(now) {
		return fmt.Errorf("срок действия карты %s истёк: %w", model.MaskNumberShort(card.Number), model.ErrAccountBlocked)
	}
	return nil
}

var transitions = map[model.CardStatus][]model.CardStatus{
	model.CardStatusActive:       {model.CardStatusBlocked, model.CardStatusPendingBlock, model.CardStatusClosed},
	model.CardStatusBlocked:      {model.CardStatusActive, model.CardStatusClosed},
	model.CardStatusPendingBlock: {model.CardStatusBlocked, model.CardStatusActive, model.CardStatusClosed},
}

// Transition переводит карту в статус to, если переход разрешён
func Transition(card *model.Card, to model.CardStatus) error {
	allowed := false
	for _, s := range transitions[card.Status] {
		if s == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("переход %s -> %s недопустим: %w", card.Status, to, model.ErrInvalidOperation)
	}
	if to == model.CardStatusClosed {
		if err := checkSettled(card); err != nil {
			return err
		}
	}
	card.Status = to
	return nil
}

// checkSettled требует нулевой баланс дебетовой карты или отсутствие долга и переплаты по кредитной
func checkSettled(card *model.Card) error {
	if card.IsCredit() {
		if card.Credit.HasDebt() {
			return fmt.Errorf("по карте есть задолженность %s: %w", card.Credit.TotalDebt, model.ErrInvalidOperation)
		}
		if card.HasOverpayment() {
			return fmt.Errorf("по карте есть переплата: %w", model.ErrInvalidOperation)
		}
		return nil
	}
	if !card.Balance.IsZero() {
		return fmt.Errorf("баланс карты не нулевой: %w", model.ErrInvalidOperation)
	}
	return nil
}

func requireAdmin(p model.Principal) error {
	if !p.IsAdmin() {
		return fmt.Errorf("операция доступна только администратору: %w", model.ErrAccessDenied)
	}
	return nil
}

func requireHolder(p model.Principal, card *model.Card) error {
	if p.UserID != card.UserID {
		return fmt.Errorf("заявку может подать только держатель карты: %w", model.ErrAccessDenied)
	}
	return nil
}

func requireOwner(p model.Principal, card *model.Card) error {
	if !p.Owns(card.UserID) {
		return fmt.Errorf("карта не принадлежит пользователю: %w", model.ErrAccessDenied)
	}
	return nil
}

func requireSelfOrAdmin(p model.Principal, userID uuid.UUID) error {
	if !p.Owns(userID) {
		return fmt.Errorf("доступ к данным другого пользователя запрещён: %w", model.ErrAccessDenied)
	}
	return nil
}

func expiryFrom(now time.Time, years int) time.Time {
	if years <= 0 {
		years = defaultCardYears
	}
	return now.AddDate(years, 0, 0)
}

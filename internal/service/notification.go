package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bank-cards-api/internal/model"
)

var notificationTitles = map[model.NotificationType]string{
	model.NotificationDeposit:  "Зачисление",
	model.NotificationWithdraw: "Снятие",
	model.NotificationTransfer: "Перевод",
	model.NotificationPayment:  "Платёж",
	model.NotificationFraud:    "Подозрительная операция",
	model.NotificationInfo:     "Информация",
}

func notificationType(op model.OperationType) model.NotificationType {
	switch op {
	case model.OperationDeposit:
		return model.NotificationDeposit
	case model.OperationWithdraw:
		return model.NotificationWithdraw
	case model.OperationTransfer:
		return model.NotificationTransfer
	default:
		return model.NotificationInfo
	}
}

// notificationMessage текст уведомления, номера карт маскируются до последних четырёх цифр
func notificationMessage(ev model.NotificationEvent, typ model.NotificationType) string {
	cardPart := "счёт: " + model.MaskNumberShort(ev.CardNumber)
	amountPart := ""
	if !ev.Amount.IsZero() {
		amountPart = " на сумму " + ev.Amount.StringFixed(2) + " ₽"
	}
	commentPart := ""
	if c := strings.TrimSpace(ev.Comment); c != "" {
		commentPart = " (Комментарий: " + c + ")"
	}

	switch typ {
	case model.NotificationDeposit:
		return "Пополнение " + cardPart + amountPart + commentPart
	case model.NotificationWithdraw:
		return "Снятие средств с " + cardPart + amountPart + commentPart
	case model.NotificationTransfer:
		return "Перевод со счёта " + model.MaskNumberShort(ev.CardNumber) + amountPart +
			" на счёт " + model.MaskNumberShort(ev.CardTransferTo) + commentPart
	case model.NotificationPayment:
		return "Платёж по " + cardPart + amountPart + commentPart
	case model.NotificationFraud:
		return "Обнаружена подозрительная активность по вашему счёту. Срочно свяжитесь с банком!" + commentPart
	default:
		if commentPart == "" {
			return "Информационное уведомление"
		}
		return strings.TrimSpace(commentPart)
	}
}

// incomingTransferMessage текст перевода с точки зрения получателя
func incomingTransferMessage(ev model.NotificationEvent) string {
	msg := "Поступление перевода на счёт: " + model.MaskNumberShort(ev.CardTransferTo) +
		" на сумму " + ev.Amount.StringFixed(2) + " ₽" +
		" со счёта " + model.MaskNumberShort(ev.CardNumber)
	if c := strings.TrimSpace(ev.Comment); c != "" {
		msg += " (Комментарий: " + c + ")"
	}
	return msg
}

// NotificationProjector превращает события по операциям в уведомления пользователей.
// Повторная доставка события не создаёт дубликатов.
type NotificationProjector struct {
	notifications NotificationStore
	cards         CardStore
	users         UserStore
	mailer        Mailer
	now           func() time.Time
	logger        *logrus.Logger
}

// NewNotificationProjector users и mailer могут быть nil, тогда письма не отправляются
func NewNotificationProjector(
	notifications NotificationStore,
	cards CardStore,
	users UserStore,
	mailer Mailer,
	logger *logrus.Logger,
) *NotificationProjector {
	return &NotificationProjector{
		notifications: notifications,
		cards:         cards,
		users:         users,
		mailer:        mailer,
		now:           time.Now,
		logger:        logger,
	}
}

// Handle создаёт уведомление инициатору, а для перевода и зеркальное уведомление получателю
func (p *NotificationProjector) Handle(ctx context.Context, ev model.NotificationEvent) error {
	log := p.logger.WithFields(logrus.Fields{
		"transaction_id": ev.TransactionID,
		"type":           ev.Type,
	})
	if ev.TransactionID == uuid.Nil || ev.UserID == uuid.Nil {
		return fmt.Errorf("событие без идентификатора транзакции или пользователя: %w", model.ErrInvalidOperation)
	}

	typ := notificationType(ev.Type)
	primary := &model.Notification{
		ID:          uuid.New(),
		UserID:      ev.UserID,
		Type:        typ,
		Title:       notificationTitles[typ],
		Message:     notificationMessage(ev, typ),
		CardNumber:  ev.CardNumber,
		Amount:      ev.Amount,
		Comment:     ev.Comment,
		ReferenceID: ev.TransactionID,
		Direction:   model.DirectionOutgoing,
		CreatedAt:   p.now(),
	}
	if typ == model.NotificationTransfer {
		primary.CardTransferTo = ev.CardTransferTo
	}
	if err := p.store(ctx, primary); err != nil {
		return err
	}

	if typ != model.NotificationTransfer || ev.CardTransferTo == "" {
		log.Debug("Уведомление по операции создано")
		return nil
	}

	recipient, err := p.recipientOf(ctx, ev)
	if err != nil {
		return fmt.Errorf("не удалось определить получателя перевода: %w", err)
	}
	mirror := &model.Notification{
		ID:             uuid.New(),
		UserID:         recipient,
		Type:           typ,
		Title:          primary.Title,
		Message:        incomingTransferMessage(ev),
		CardNumber:     ev.CardTransferTo,
		CardTransferTo: ev.CardNumber,
		Amount:         ev.Amount,
		Comment:        ev.Comment,
		ReferenceID:    ev.TransactionID,
		Direction:      model.DirectionIncoming,
		CreatedAt:      primary.CreatedAt,
	}
	if err := p.store(ctx, mirror); err != nil {
		return err
	}

	log.WithField("recipient_id", recipient).Debug("Уведомления по переводу созданы")
	return nil
}

func (p *NotificationProjector) recipientOf(ctx context.Context, ev model.NotificationEvent) (uuid.UUID, error) {
	if ev.RecipientUserID != nil && *ev.RecipientUserID != uuid.Nil {
		return *ev.RecipientUserID, nil
	}
	card, err := p.cards.GetByNumber(ctx, ev.CardTransferTo)
	if err != nil {
		return uuid.Nil, err
	}
	return card.UserID, nil
}

func (p *NotificationProjector) store(ctx context.Context, n *model.Notification) error {
	created, err := p.notifications.Create(ctx, n)
	if err != nil {
		return fmt.Errorf("ошибка сохранения уведомления: %w", err)
	}
	if !created {
		p.logger.WithFields(logrus.Fields{
			"reference_id": n.ReferenceID,
			"user_id":      n.UserID,
			"direction":    n.Direction,
		}).Debug("Уведомление уже существует, повторная доставка пропущена")
		return nil
	}
	p.sendEmail(ctx, n)
	return nil
}

// sendEmail письмо держателю карты, ошибки только логируются
func (p *NotificationProjector) sendEmail(ctx context.Context, n *model.Notification) {
	if p.mailer == nil || p.users == nil {
		return
	}
	user, err := p.users.GetByID(ctx, n.UserID)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			p.logger.WithError(err).Warn("Не удалось получить пользователя для отправки письма")
		}
		return
	}
	if user.Email == "" {
		return
	}
	if err := p.mailer.Send(user.Email, n.Title, n.Message); err != nil {
		p.logger.WithError(err).Warn("Не удалось отправить email уведомление")
	}
}

// NotificationService чтение уведомлений текущего пользователя
type NotificationService struct {
	notifications NotificationStore
	logger        *logrus.Logger
}

func NewNotificationService(notifications NotificationStore, logger *logrus.Logger) *NotificationService {
	return &NotificationService{notifications: notifications, logger: logger}
}

func (s *NotificationService) List(ctx context.Context, p model.Principal, unreadOnly bool) ([]model.Notification, error) {
	items, err := s.notifications.ListByUser(ctx, p.UserID, unreadOnly)
	if err != nil {
		s.logger.WithError(err).Error("Ошибка получения уведомлений")
		return nil, fmt.Errorf("ошибка получения уведомлений: %w", err)
	}
	result := make([]model.Notification, 0, len(items))
	for _, n := range items {
		result = append(result, n.ToResponse())
	}
	return result, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, p model.Principal, id uuid.UUID) error {
	if err := s.notifications.MarkRead(ctx, id, p.UserID); err != nil {
		return fmt.Errorf("ошибка отметки уведомления: %w", err)
	}
	return nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, p model.Principal) (int, error) {
	return s.notifications.CountUnread(ctx, p.UserID)
}

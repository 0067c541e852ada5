package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"

	"bank-cards-api/internal/model"
	"bank-cards-api/internal/service"
)

type sentMail struct {
	to, subject, body string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (f *fixture) registerUser(t *testing.T, p model.Principal, email string) {
	t.Helper()
	err := f.users.Create(context.Background(), &model.User{
		ID:        p.UserID,
		Username:  strings.Split(email, "@")[0],
		Email:     email,
		Role:      p.Role,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Create() user error = %v", err)
	}
}

func TestProjectorTransferCreatesMirrorNotification(t *testing.T) {
	logger, _ := test.NewNullLogger()
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := newUser(), newUser()
	f.registerUser(t, alice, "alice@example.com")
	f.registerUser(t, bob, "bob@example.com")

	from := f.debitCard(t, alice, "100")
	to := f.debitCard(t, bob, "0")
	if _, err := f.txSvc.Transfer(ctx, alice, model.RefByID(from.ID), model.RefByID(to.ID), amount("30"), "долг"); err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	events := f.publisher.Events()
	ev := events[len(events)-1]

	mailer := &recordingMailer{}
	projector := service.NewNotificationProjector(f.notifications, f.cards, f.users, mailer, logger)

	// повторная доставка не создаёт дубликатов
	for i := 0; i < 2; i++ {
		if err := projector.Handle(ctx, ev); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
	}

	notifications := service.NewNotificationService(f.notifications, logger)
	sent, err := notifications.List(ctx, alice, false)
	if err != nil || len(sent) != 1 {
		t.Fatalf("sender notifications = %d, %v", len(sent), err)
	}
	received, err := notifications.List(ctx, bob, false)
	if err != nil || len(received) != 1 {
		t.Fatalf("recipient notifications = %d, %v", len(received), err)
	}

	fromTail, toTail := from.Number[12:], to.Number[12:]
	if msg := sent[0].Message; !strings.Contains(msg, "****"+fromTail) || !strings.Contains(msg, "****"+toTail) {
		t.Errorf("sender message = %q", msg)
	}
	if msg := received[0].Message; !strings.HasPrefix(msg, "Поступление перевода") || !strings.Contains(msg, "30.00") {
		t.Errorf("recipient message = %q", msg)
	}
	for _, n := range append(sent, received...) {
		if strings.Contains(n.Message, from.Number) || strings.Contains(n.Message, to.Number) {
			t.Errorf("message exposes full card number: %q", n.Message)
		}
		if n.ReferenceID != ev.TransactionID {
			t.Errorf("reference id = %s, want %s", n.ReferenceID, ev.TransactionID)
		}
	}

	if len(mailer.sent) != 2 {
		t.Errorf("emails sent = %d, want 2", len(mailer.sent))
	}
}

func TestProjectorTransferBetweenOwnCards(t *testing.T) {
	logger, _ := test.NewNullLogger()
	f := newFixture(t)
	ctx := context.Background()
	alice := newUser()

	from := f.debitCard(t, alice, "100")
	to := f.debitCard(t, alice, "0")
	if _, err := f.txSvc.Transfer(ctx, alice, model.RefByID(from.ID), model.RefByID(to.ID), amount("30"), ""); err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	events := f.publisher.Events()
	ev := events[len(events)-1]

	projector := service.NewNotificationProjector(f.notifications, f.cards, nil, nil, logger)
	for i := 0; i < 2; i++ {
		if err := projector.Handle(ctx, ev); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
	}

	list, err := f.notifications.ListByUser(ctx, alice.UserID, false)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	directions := map[model.NotificationDirection]int{}
	for _, n := range list {
		if n.ReferenceID == ev.TransactionID {
			directions[n.Direction]++
		}
	}
	if directions[model.DirectionOutgoing] != 1 || directions[model.DirectionIncoming] != 1 {
		t.Errorf("transfer notifications by direction = %v, want one outgoing and one incoming", directions)
	}
}

func TestProjectorDepositMessage(t *testing.T) {
	logger, _ := test.NewNullLogger()
	f := newFixture(t)
	ctx := context.Background()
	user := newUser()
	card := f.debitCard(t, user, "25")

	ev := f.publisher.Events()[0]
	projector := service.NewNotificationProjector(f.notifications, f.cards, nil, nil, logger)
	if err := projector.Handle(ctx, ev); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	list, err := f.notifications.ListByUser(ctx, user.UserID, false)
	if err != nil || len(list) != 1 {
		t.Fatalf("notifications = %d, %v", len(list), err)
	}
	want := "Пополнение счёт: ****" + card.Number[12:] + " на сумму 25.00 ₽ (Комментарий: seed)"
	if list[0].Message != want {
		t.Errorf("message = %q, want %q", list[0].Message, want)
	}
	if list[0].Type != model.NotificationDeposit || list[0].Title != "Зачисление" {
		t.Errorf("type = %s, title = %s", list[0].Type, list[0].Title)
	}

	if err := projector.Handle(ctx, model.NotificationEvent{Type: model.OperationDeposit}); err == nil {
		t.Error("Handle() accepted event without ids")
	}
}

func TestNotificationReadState(t *testing.T) {
	logger, _ := test.NewNullLogger()
	f := newFixture(t)
	ctx := context.Background()
	user := newUser()
	f.debitCard(t, user, "10")
	card := f.debitCard(t, user, "20")
	if _, err := f.txSvc.Withdraw(ctx, user, model.RefByID(card.ID), amount("5"), ""); err != nil {
		t.Fatalf("Withdraw() error = %v", err)
	}

	projector := service.NewNotificationProjector(f.notifications, f.cards, nil, nil, logger)
	for _, ev := range f.publisher.Events() {
		if err := projector.Handle(ctx, ev); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
	}

	svc := service.NewNotificationService(f.notifications, logger)
	count, err := svc.UnreadCount(ctx, user)
	if err != nil || count != 3 {
		t.Fatalf("UnreadCount() = %d, %v", count, err)
	}

	list, _ := svc.List(ctx, user, true)
	if err := svc.MarkRead(ctx, newUser(), list[0].ID); err == nil {
		t.Error("MarkRead() by another user succeeded")
	}
	if err := svc.MarkRead(ctx, user, list[0].ID); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if err := svc.MarkRead(ctx, user, uuid.New()); err == nil {
		t.Error("MarkRead() of unknown notification succeeded")
	}

	unread, _ := svc.List(ctx, user, true)
	all, _ := svc.List(ctx, user, false)
	if len(unread) != 2 || len(all) != 3 {
		t.Errorf("unread = %d, all = %d", len(unread), len(all))
	}
}

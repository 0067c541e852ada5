package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bank-cards-api/internal/model"
)

func TestDepositWithdrawFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := newUser()
	card := f.debitCard(t, user, "100")

	resp, err := f.txSvc.Withdraw(ctx, user, model.RefByNumber(card.Number), amount("50"), "")
	if err != nil {
		t.Fatalf("Withdraw() error = %v", err)
	}
	if !resp.Balance.Equal(amount("50")) {
		t.Errorf("balance = %s, want 50", resp.Balance)
	}

	_, err = f.txSvc.Withdraw(ctx, user, model.RefByID(card.ID), amount("100"), "")
	assertKind(t, err, model.ErrInsufficientFunds)
	if b := f.balance(t, card.ID); !b.Equal(amount("50")) {
		t.Errorf("balance after rejected withdraw = %s", b)
	}

	history, err := f.txSvc.ByCard(ctx, user, card.Number)
	if err != nil {
		t.Fatalf("ByCard() error = %v", err)
	}
	if len(history) != 2 {
		t.Errorf("history length = %d, want 2", len(history))
	}
	if len(f.publisher.Events()) != 2 {
		t.Errorf("published events = %d, want 2", len(f.publisher.Events()))
	}
}

func TestOperationValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := newUser()
	card := f.debitCard(t, user, "10")

	_, err := f.txSvc.Deposit(ctx, user, model.RefByID(card.ID), decimal.Zero, "")
	assertKind(t, err, model.ErrInvalidAmount)

	_, err = f.txSvc.Deposit(ctx, user, model.RefByNumber("4000000000000002"), amount("1"), "")
	assertKind(t, err, model.ErrNotFound)

	_, err = f.txSvc.Withdraw(ctx, newUser(), model.RefByID(card.ID), amount("1"), "")
	assertKind(t, err, model.ErrAccessDenied)

	if b := f.balance(t, card.ID); !b.Equal(amount("10")) {
		t.Errorf("balance = %s, want 10", b)
	}
}

func TestExpiredCardIsNotOperable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := newUser()

	expired := &model.Card{
		ID:         uuid.New(),
		Number:     "4000000000000002",
		UserID:     user.UserID,
		Type:       model.CardTypeDebit,
		Status:     model.CardStatusActive,
		Balance:    amount("10"),
		ExpiryDate: time.Now().AddDate(0, 0, -2),
	}
	if err := f.cards.Create(ctx, expired); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err := f.txSvc.Deposit(ctx, user, model.RefByID(expired.ID), amount("1"), "")
	assertKind(t, err, model.ErrAccountBlocked)
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := newUser()
	card := f.debitCard(t, user, "100")

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		other     []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.txSvc.Withdraw(ctx, user, model.RefByID(card.ID), amount("15"), "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case !errors.Is(err, model.ErrInsufficientFunds):
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	if len(other) > 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if succeeded != 6 {
		t.Errorf("succeeded = %d, want 6", succeeded)
	}
	if b := f.balance(t, card.ID); !b.Equal(amount("10")) {
		t.Errorf("balance = %s, want 10", b)
	}
	history, err := f.txSvc.ByCard(ctx, user, card.Number)
	if err != nil {
		t.Fatalf("ByCard() error = %v", err)
	}
	if len(history) != 1+succeeded {
		t.Errorf("history length = %d, want %d", len(history), 1+succeeded)
	}
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := newUser(), newUser()
	from := f.debitCard(t, alice, "100")
	to := f.debitCard(t, bob, "0")

	resp, err := f.txSvc.Transfer(ctx, alice, model.RefByID(from.ID), model.RefByNumber(to.Number), amount("30"), "обед")
	if err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if !resp.Balance.Equal(amount("70")) {
		t.Errorf("source balance = %s, want 70", resp.Balance)
	}
	if b := f.balance(t, to.ID); !b.Equal(amount("30")) {
		t.Errorf("destination balance = %s, want 30", b)
	}

	events := f.publisher.Events()
	last := events[len(events)-1]
	if last.Type != model.OperationTransfer || last.CardTransferTo != to.Number {
		t.Errorf("unexpected event %+v", last)
	}
	if last.RecipientUserID == nil || *last.RecipientUserID != bob.UserID {
		t.Errorf("recipient = %v, want %s", last.RecipientUserID, bob.UserID)
	}

	// получатель видит перевод, пришедший на его карту
	if _, err := f.txSvc.ByID(ctx, bob, last.TransactionID); err != nil {
		t.Errorf("ByID() for recipient error = %v", err)
	}
	_, err = f.txSvc.ByID(ctx, newUser(), last.TransactionID)
	assertKind(t, err, model.ErrAccessDenied)
}

func TestTransferRollsBackWhenDestinationBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := newUser(), newUser()
	from := f.debitCard(t, alice, "100")
	to := f.debitCard(t, bob, "0")

	if _, err := f.cardSvc.Block(ctx, f.admin, model.RefByID(to.ID)); err != nil {
		t.Fatalf("Block() error = %v", err)
	}
	published := len(f.publisher.Events())

	_, err := f.txSvc.Transfer(ctx, alice, model.RefByID(from.ID), model.RefByID(to.ID), amount("40"), "")
	assertKind(t, err, model.ErrAccountBlocked)

	if b := f.balance(t, from.ID); !b.Equal(amount("100")) {
		t.Errorf("source balance = %s, want 100", b)
	}
	if b := f.balance(t, to.ID); !b.IsZero() {
		t.Errorf("destination balance = %s, want 0", b)
	}
	history, _ := f.txSvc.ByCard(ctx, alice, from.Number)
	for _, tr := range history {
		if tr.Type == model.OperationTransfer {
			t.Error("rejected transfer was recorded")
		}
	}
	if len(f.publisher.Events()) != published {
		t.Error("event published for rejected transfer")
	}
}

func TestTransferToSameCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := newUser()
	card := f.debitCard(t, user, "100")

	_, err := f.txSvc.Transfer(ctx, user, model.RefByID(card.ID), model.RefByID(card.ID), amount("1"), "")
	assertKind(t, err, model.ErrInvalidOperation)

	_, err = f.txSvc.Transfer(ctx, user, model.RefByID(card.ID), model.RefByNumber(card.Number), amount("1"), "")
	assertKind(t, err, model.ErrInvalidOperation)
}

func TestTransferPaysOffCreditCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := newUser()
	debit := f.debitCard(t, user, "100")
	credit := f.creditCard(t, user, "1000", "12")

	if _, err := f.txSvc.Withdraw(ctx, user, model.RefByID(credit.ID), amount("200"), ""); err != nil {
		t.Fatalf("Withdraw() error = %v", err)
	}
	if _, err := f.txSvc.Transfer(ctx, user, model.RefByID(debit.ID), model.RefByID(credit.ID), amount("50"), ""); err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}

	got := f.card(t, credit.ID)
	if !got.Balance.Equal(amount("850")) || !got.Credit.PrincipalDebt.Equal(amount("150")) {
		t.Errorf("credit balance = %s, principal = %s", got.Balance, got.Credit.PrincipalDebt)
	}
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := newUser()
	card := f.debitCard(t, user, "0")

	f.publisher.err = errors.New("broker unavailable")
	if _, err := f.txSvc.Deposit(ctx, user, model.RefByID(card.ID), amount("25"), ""); err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}
	if b := f.balance(t, card.ID); !b.Equal(amount("25")) {
		t.Errorf("balance = %s, want 25", b)
	}
}

func TestTransactionQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := newUser()

	history, err := f.txSvc.ByUser(ctx, user, user.UserID)
	if err != nil {
		t.Fatalf("ByUser() error = %v", err)
	}
	if history == nil || len(history) != 0 {
		t.Errorf("ByUser() without cards = %v, want empty slice", history)
	}

	f.debitCard(t, user, "10")
	f.debitCard(t, user, "20")
	history, err = f.txSvc.ByUser(ctx, user, user.UserID)
	if err != nil || len(history) != 2 {
		t.Errorf("ByUser() = %d items, %v", len(history), err)
	}

	_, err = f.txSvc.ByUser(ctx, newUser(), user.UserID)
	assertKind(t, err, model.ErrAccessDenied)

	_, err = f.txSvc.All(ctx, user, model.PageRequest{})
	assertKind(t, err, model.ErrAccessDenied)

	page, err := f.txSvc.All(ctx, f.admin, model.PageRequest{Size: 1})
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if page.Total != 2 || len(page.Items) != 1 {
		t.Errorf("page total = %d, items = %d", page.Total, len(page.Items))
	}
}

func TestSubKopeckAmountsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := newUser()
	from := f.debitCard(t, user, "1")
	to := f.debitCard(t, newUser(), "0")

	_, err := f.txSvc.Deposit(ctx, user, model.RefByID(from.ID), amount("0.001"), "")
	assertKind(t, err, model.ErrInvalidAmount)

	_, err = f.txSvc.Transfer(ctx, user, model.RefByID(from.ID), model.RefByID(to.ID), amount("0.005"), "")
	assertKind(t, err, model.ErrInvalidAmount)

	if b := f.balance(t, from.ID); !b.Equal(amount("1")) {
		t.Errorf("source balance = %s, want 1", b)
	}
	if b := f.balance(t, to.ID); !b.IsZero() {
		t.Errorf("destination balance = %s, want 0", b)
	}
}

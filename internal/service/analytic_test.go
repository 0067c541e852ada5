package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"bank-cards-api/internal/model"
	"bank-cards-api/internal/service"
)

func TestFinancialStats(t *testing.T) {
	logger, _ := test.NewNullLogger()
	f := newFixture(t)
	ctx := context.Background()
	user, other := newUser(), newUser()

	a := f.debitCard(t, user, "100")
	b := f.debitCard(t, user, "0")
	c := f.debitCard(t, other, "80")

	if _, err := f.txSvc.Transfer(ctx, user, model.RefByID(a.ID), model.RefByID(b.ID), amount("30"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.txSvc.Withdraw(ctx, user, model.RefByID(b.ID), amount("10"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.txSvc.Transfer(ctx, other, model.RefByID(c.ID), model.RefByID(a.ID), amount("50"), ""); err != nil {
		t.Fatal(err)
	}

	svc := service.NewAnalyticService(f.cards, f.transactions, logger)
	now := time.Now()

	stats, err := svc.GetFinancialStats(ctx, user, user.UserID, now.Add(-time.Hour), now)
	if err != nil {
		t.Fatalf("GetFinancialStats() error = %v", err)
	}
	if !stats.TotalIncome.Equal(amount("150")) || !stats.TotalExpenses.Equal(amount("10")) || !stats.NetBalance.Equal(amount("140")) {
		t.Errorf("income = %s, expenses = %s, net = %s", stats.TotalIncome, stats.TotalExpenses, stats.NetBalance)
	}
	if transfer := stats.ByType[model.OperationTransfer]; transfer.Count != 1 || !transfer.Income.Equal(amount("50")) {
		t.Errorf("transfer stats = %+v", transfer)
	}

	past, err := svc.GetFinancialStats(ctx, user, user.UserID, now.AddDate(0, 0, -10), now.AddDate(0, 0, -5))
	if err != nil || !past.TotalIncome.IsZero() || len(past.ByType) != 0 {
		t.Errorf("stats for empty period = %+v, %v", past, err)
	}

	_, err = svc.GetFinancialStats(ctx, user, user.UserID, now, now.AddDate(0, 0, -1))
	assertKind(t, err, model.ErrInvalidOperation)

	_, err = svc.GetFinancialStats(ctx, other, user.UserID, now.Add(-time.Hour), now)
	assertKind(t, err, model.ErrAccessDenied)

	if _, err := svc.GetFinancialStats(ctx, f.admin, user.UserID, now.Add(-time.Hour), now); err != nil {
		t.Errorf("GetFinancialStats() by admin error = %v", err)
	}
}

func TestCreditLoad(t *testing.T) {
	logger, _ := test.NewNullLogger()
	f := newFixture(t)
	ctx := context.Background()
	user := newUser()

	used := f.creditCard(t, user, "1000", "12")
	f.creditCard(t, user, "1000", "12")
	closed := f.creditCard(t, user, "5000", "12")
	f.debitCard(t, user, "100")

	if _, err := f.txSvc.Withdraw(ctx, user, model.RefByID(used.ID), amount("200"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.cardSvc.Close(ctx, user, model.RefByID(closed.ID)); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	svc := service.NewAnalyticService(f.cards, f.transactions, logger)
	load, err := svc.GetCreditLoad(ctx, user, user.UserID)
	if err != nil {
		t.Fatalf("GetCreditLoad() error = %v", err)
	}
	if load.CreditCards != 2 || !load.TotalLimit.Equal(amount("2000")) || !load.TotalDebt.Equal(amount("200")) {
		t.Errorf("load = %+v", load)
	}
	if !load.Utilization.Equal(amount("10")) || !load.MinimumPayments.Equal(amount("10")) {
		t.Errorf("utilization = %s, minimum payments = %s", load.Utilization, load.MinimumPayments)
	}

	_, err = svc.GetCreditLoad(ctx, newUser(), user.UserID)
	assertKind(t, err, model.ErrAccessDenied)
}

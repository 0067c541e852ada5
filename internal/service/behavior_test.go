package service

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bank-cards-api/internal/model"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func debitCard(balance string) *model.Card {
	return &model.Card{
		Number:     "4000000000000002",
		Type:       model.CardTypeDebit,
		Status:     model.CardStatusActive,
		Balance:    dec(balance),
		ExpiryDate: testNow.AddDate(3, 0, 0),
	}
}

func creditCard(limit, balance, principal, accrued string) *model.Card {
	card := &model.Card{
		Number:     "4000000000000010",
		Type:       model.CardTypeCredit,
		Status:     model.CardStatusActive,
		Balance:    dec(balance),
		ExpiryDate: testNow.AddDate(3, 0, 0),
		Credit: &model.CreditTerms{
			CreditLimit:        dec(limit),
			InterestRate:       dec("12"),
			MinimumPaymentRate: dec("5"),
			PrincipalDebt:      dec(principal),
			AccruedInterest:    dec(accrued),
		},
	}
	card.Credit.RecomputeTotalDebt()
	return card
}

func TestDebitBehavior(t *testing.T) {
	b := DebitBehavior{}
	card := debitCard("0")

	if err := b.Deposit(card, dec("100"), testNow); err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}
	if err := b.Withdraw(card, dec("50"), testNow); err != nil {
		t.Fatalf("Withdraw() error = %v", err)
	}
	err := b.Withdraw(card, dec("100"), testNow)
	if !errors.Is(err, model.ErrInsufficientFunds) {
		t.Fatalf("Withdraw() error = %v, want ErrInsufficientFunds", err)
	}
	if !card.Balance.Equal(dec("50")) {
		t.Errorf("balance = %s, want 50", card.Balance)
	}
}

func TestDebitBehaviorRejects(t *testing.T) {
	b := DebitBehavior{}

	for _, amount := range []string{"0", "-5"} {
		card := debitCard("10")
		if err := b.Deposit(card, dec(amount), testNow); !errors.Is(err, model.ErrInvalidAmount) {
			t.Errorf("Deposit(%s) error = %v, want ErrInvalidAmount", amount, err)
		}
		if !card.Balance.Equal(dec("10")) {
			t.Errorf("balance changed on rejected deposit")
		}
	}

	blocked := debitCard("10")
	blocked.Status = model.CardStatusBlocked
	if err := b.Withdraw(blocked, dec("1"), testNow); !errors.Is(err, model.ErrAccountBlocked) {
		t.Errorf("Withdraw() on blocked card error = %v", err)
	}

	if err := b.CanDelete(debitCard("0.01")); !errors.Is(err, model.ErrInvalidOperation) {
		t.Errorf("CanDelete() error = %v", err)
	}
}

func TestCreditWithdrawCreatesDebt(t *testing.T) {
	b := CreditBehavior{}
	card := creditCard("1000", "1000", "0", "0")

	if err := b.Withdraw(card, dec("200"), testNow); err != nil {
		t.Fatalf("Withdraw() error = %v", err)
	}
	if !card.Balance.Equal(dec("800")) || !card.Credit.PrincipalDebt.Equal(dec("200")) {
		t.Errorf("balance = %s, principal = %s", card.Balance, card.Credit.PrincipalDebt)
	}
	if !card.Credit.TotalDebt.Equal(dec("200")) {
		t.Errorf("total debt = %s", card.Credit.TotalDebt)
	}

	err := b.Withdraw(card, dec("800.01"), testNow)
	if !errors.Is(err, model.ErrInvalidOperation) {
		t.Fatalf("Withdraw() over available credit error = %v", err)
	}
	if !card.Balance.Equal(dec("800")) {
		t.Errorf("balance changed on rejected withdraw: %s", card.Balance)
	}
}

func TestCreditDepositPaysInterestFirst(t *testing.T) {
	b := CreditBehavior{}
	card := creditCard("1000", "500", "500", "50")

	if err := b.Deposit(card, dec("60"), testNow); err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}
	if !card.Credit.AccruedInterest.IsZero() {
		t.Errorf("accrued = %s, want 0", card.Credit.AccruedInterest)
	}
	if !card.Credit.PrincipalDebt.Equal(dec("490")) {
		t.Errorf("principal = %s, want 490", card.Credit.PrincipalDebt)
	}
	if !card.Balance.Equal(dec("510")) {
		t.Errorf("balance = %s, want 510", card.Balance)
	}
	if !card.Credit.TotalDebt.Equal(dec("490")) {
		t.Errorf("total debt = %s, want 490", card.Credit.TotalDebt)
	}
}

func TestCreditDepositOnlyCoversInterest(t *testing.T) {
	b := CreditBehavior{}
	card := creditCard("1000", "500", "500", "50")

	if err := b.Deposit(card, dec("20"), testNow); err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}
	if !card.Credit.AccruedInterest.Equal(dec("30")) || !card.Balance.Equal(dec("500")) {
		t.Errorf("accrued = %s, balance = %s", card.Credit.AccruedInterest, card.Balance)
	}
}

func TestCreditOverpaymentKeepsPrincipalAtZero(t *testing.T) {
	b := CreditBehavior{}
	card := creditCard("1000", "900", "100", "0")

	if err := b.Deposit(card, dec("150"), testNow); err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}
	if !card.Credit.PrincipalDebt.IsZero() {
		t.Errorf("principal = %s, want 0", card.Credit.PrincipalDebt)
	}
	if !card.Balance.Equal(dec("1050")) || !card.HasOverpayment() {
		t.Errorf("balance = %s, want overpayment 1050", card.Balance)
	}

	// списание переплаты не создаёт долга
	if err := b.Withdraw(card, dec("50"), testNow); err != nil {
		t.Fatalf("Withdraw() error = %v", err)
	}
	if !card.Credit.PrincipalDebt.IsZero() {
		t.Errorf("principal = %s after spending overpayment", card.Credit.PrincipalDebt)
	}
}

func TestMonthlyInterest(t *testing.T) {
	tests := []struct {
		principal, rate, want string
	}{
		{"1000", "12", "10"},
		{"500", "25", "10.42"},
		{"0", "25", "0"},
		{"1234.56", "19.9", "20.47"},
	}
	for _, tt := range tests {
		if got := MonthlyInterest(dec(tt.principal), dec(tt.rate)); !got.Equal(dec(tt.want)) {
			t.Errorf("MonthlyInterest(%s, %s) = %s, want %s", tt.principal, tt.rate, got, tt.want)
		}
	}
}

func TestCreditAccrue(t *testing.T) {
	b := CreditBehavior{}
	card := creditCard("2000", "1000", "1000", "0")

	interest, err := b.Accrue(card)
	if err != nil {
		t.Fatalf("Accrue() error = %v", err)
	}
	if !interest.Equal(dec("10")) || !card.Credit.AccruedInterest.Equal(dec("10")) {
		t.Errorf("interest = %s, accrued = %s", interest, card.Credit.AccruedInterest)
	}
	if !card.Credit.TotalDebt.Equal(dec("1010")) {
		t.Errorf("total debt = %s", card.Credit.TotalDebt)
	}
	if !card.Balance.Equal(dec("1000")) {
		t.Errorf("accrual must not change balance, got %s", card.Balance)
	}

	clean := creditCard("2000", "2000", "0", "0")
	interest, err = b.Accrue(clean)
	if err != nil || !interest.IsZero() || !clean.Credit.AccruedInterest.IsZero() {
		t.Errorf("Accrue() without principal = %s, %v", interest, err)
	}
}

func TestCreditLimitChanges(t *testing.T) {
	b := CreditBehavior{}

	card := creditCard("1000", "800", "200", "0")
	if err := b.IncreaseLimit(card, dec("1500")); err != nil {
		t.Fatalf("IncreaseLimit() error = %v", err)
	}
	if !card.Balance.Equal(dec("1300")) || !card.Credit.CreditLimit.Equal(dec("1500")) {
		t.Errorf("balance = %s, limit = %s", card.Balance, card.Credit.CreditLimit)
	}

	card = creditCard("1000", "800", "200", "0")
	if err := b.DecreaseLimit(card, dec("900")); err != nil {
		t.Fatalf("DecreaseLimit() error = %v", err)
	}
	if !card.Balance.Equal(dec("700")) || !card.Credit.CreditLimit.Equal(dec("900")) {
		t.Errorf("balance = %s, limit = %s", card.Balance, card.Credit.CreditLimit)
	}

	for _, newLimit := range []string{"0", "-10", "700", "1000", "1200"} {
		card := creditCard("1000", "800", "200", "0")
		if err := b.DecreaseLimit(card, dec(newLimit)); !errors.Is(err, model.ErrInvalidOperation) {
			t.Errorf("DecreaseLimit(%s) error = %v", newLimit, err)
		}
		if !card.Credit.CreditLimit.Equal(dec("1000")) || !card.Balance.Equal(dec("800")) {
			t.Errorf("DecreaseLimit(%s) changed the card", newLimit)
		}
	}

	if err := b.IncreaseLimit(creditCard("1000", "1000", "0", "0"), dec("1000")); !errors.Is(err, model.ErrInvalidOperation) {
		t.Errorf("IncreaseLimit() to same value error = %v", err)
	}
	if err := b.SetInterestRate(creditCard("1000", "1000", "0", "0"), dec("-1")); !errors.Is(err, model.ErrInvalidOperation) {
		t.Errorf("SetInterestRate() negative error = %v", err)
	}
}

func TestBehaviorsFor(t *testing.T) {
	b := DefaultBehaviors()
	if _, err := b.For(&model.Card{Type: "PREPAID"}); !errors.Is(err, model.ErrInvalidOperation) {
		t.Errorf("For() unknown type error = %v", err)
	}
	if _, ok := mustBehavior(t, b, model.CardTypeCredit).(CreditBehavior); !ok {
		t.Error("credit card dispatched to wrong behavior")
	}
}

func mustBehavior(t *testing.T, b Behaviors, typ model.CardType) Behavior {
	t.Helper()
	behavior, err := b.For(&model.Card{Type: typ})
	if err != nil {
		t.Fatalf("For(%s) error = %v", typ, err)
	}
	return behavior
}

func TestValidateAmountScale(t *testing.T) {
	tests := []struct {
		amount string
		valid  bool
	}{
		{"1", true},
		{"0.01", true},
		{"1.5", true},
		{"1.500", true},
		{"0.001", false},
		{"0.005", false},
		{"1.999", false},
	}
	for _, tt := range tests {
		err := validateAmount(dec(tt.amount))
		if tt.valid && err != nil {
			t.Errorf("validateAmount(%s) error = %v", tt.amount, err)
		}
		if !tt.valid && !errors.Is(err, model.ErrInvalidAmount) {
			t.Errorf("validateAmount(%s) error = %v, want ErrInvalidAmount", tt.amount, err)
		}
	}

	card := debitCard("1")
	if err := (DebitBehavior{}).Deposit(card, dec("0.001"), testNow); !errors.Is(err, model.ErrInvalidAmount) {
		t.Errorf("Deposit(0.001) error = %v", err)
	}
	if !card.Balance.Equal(dec("1")) {
		t.Errorf("balance = %s, want 1", card.Balance)
	}
}

func TestCreditTermsScale(t *testing.T) {
	b := CreditBehavior{}

	card := creditCard("1000", "1000", "0", "0")
	if err := b.IncreaseLimit(card, dec("1500.005")); !errors.Is(err, model.ErrInvalidAmount) {
		t.Errorf("IncreaseLimit(1500.005) error = %v", err)
	}
	if err := b.DecreaseLimit(card, dec("900.001")); !errors.Is(err, model.ErrInvalidAmount) {
		t.Errorf("DecreaseLimit(900.001) error = %v", err)
	}
	if !card.Credit.CreditLimit.Equal(dec("1000")) || !card.Balance.Equal(dec("1000")) {
		t.Errorf("limit = %s, balance = %s after rejected changes", card.Credit.CreditLimit, card.Balance)
	}

	if err := b.SetInterestRate(card, dec("12.00001")); !errors.Is(err, model.ErrInvalidOperation) {
		t.Errorf("SetInterestRate(12.00001) error = %v", err)
	}
	if err := b.SetInterestRate(card, dec("12.3456")); err != nil {
		t.Fatalf("SetInterestRate(12.3456) error = %v", err)
	}
}

func TestCreditCanDelete(t *testing.T) {
	b := CreditBehavior{}

	if err := b.CanDelete(creditCard("1000", "1000", "0", "0")); err != nil {
		t.Errorf("CanDelete() settled card error = %v", err)
	}
	if err := b.CanDelete(creditCard("1000", "800", "200", "0")); !errors.Is(err, model.ErrInvalidOperation) {
		t.Errorf("CanDelete() with debt error = %v", err)
	}
	// переплата принадлежит клиенту
	if err := b.CanDelete(creditCard("1000", "1300", "0", "0")); !errors.Is(err, model.ErrInvalidOperation) {
		t.Errorf("CanDelete() with overpayment error = %v", err)
	}
}

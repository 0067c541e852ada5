package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"

	"bank-cards-api/internal/model"
)

func TestLuhnCheckDigit(t *testing.T) {
	if got := luhnCheckDigit("411111111111111"); got != 1 {
		t.Errorf("luhnCheckDigit() = %d, want 1", got)
	}
	for _, number := range []string{"4111111111111111", "4012888888881881"} {
		if !ValidLuhn(number) {
			t.Errorf("ValidLuhn(%s) = false", number)
		}
	}
	for _, number := range []string{"4111111111111112", "41111x1111111111", "4"} {
		if ValidLuhn(number) {
			t.Errorf("ValidLuhn(%s) = true", number)
		}
	}
}

func TestGenerateCardNumber(t *testing.T) {
	l := NewLifecycle(nil, nil)
	for i := 0; i < 100; i++ {
		number, err := generateCardNumber(l.random)
		if err != nil {
			t.Fatalf("generateCardNumber() error = %v", err)
		}
		if len(number) != 16 || !strings.HasPrefix(number, "4") || !ValidLuhn(number) {
			t.Fatalf("generated invalid number %s", number)
		}
	}
}

// takenCards считает все номера занятыми
type takenCards struct {
	CardStore
	checks int
}

func (s *takenCards) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	s.checks++
	return true, nil
}

func TestGenerateNumberGivesUpWithoutDuplicate(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := &takenCards{}
	l := NewLifecycle(store, logger)

	number, err := l.GenerateNumber(context.Background())
	if err == nil {
		t.Fatalf("GenerateNumber() = %s, want error", number)
	}
	if store.checks != maxNumberAttempts {
		t.Errorf("checks = %d, want %d", store.checks, maxNumberAttempts)
	}
}

func TestCheckOperable(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	valid := now.AddDate(1, 0, 0)

	tests := []struct {
		name    string
		status  model.CardStatus
		expiry  time.Time
		wantErr error
	}{
		{"active", model.CardStatusActive, valid, nil},
		{"pending block stays operable", model.CardStatusPendingBlock, valid, nil},
		{"blocked", model.CardStatusBlocked, valid, model.ErrAccountBlocked},
		{"closed", model.CardStatusClosed, valid, model.ErrAccountBlocked},
		{"expired", model.CardStatusActive, now.AddDate(0, 0, -1), model.ErrAccountBlocked},
		{"expires today", model.CardStatusActive, now, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := &model.Card{Number: "4000000000000002", Status: tt.status, ExpiryDate: tt.expiry}
			err := CheckOperable(card, now)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("CheckOperable() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("CheckOperable() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from, to model.CardStatus
		ok       bool
	}{
		{model.CardStatusActive, model.CardStatusBlocked, true},
		{model.CardStatusActive, model.CardStatusPendingBlock, true},
		{model.CardStatusPendingBlock, model.CardStatusBlocked, true},
		{model.CardStatusPendingBlock, model.CardStatusActive, true},
		{model.CardStatusBlocked, model.CardStatusActive, true},
		{model.CardStatusBlocked, model.CardStatusPendingBlock, false},
		{model.CardStatusClosed, model.CardStatusActive, false},
		{model.CardStatusActive, model.CardStatusActive, false},
	}
	for _, tt := range tests {
		card := &model.Card{Type: model.CardTypeDebit, Status: tt.from, Balance: decimal.Zero}
		err := Transition(card, tt.to)
		if tt.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tt.from, tt.to, err)
		}
		if !tt.ok && !errors.Is(err, model.ErrInvalidOperation) {
			t.Errorf("%s -> %s: error = %v, want ErrInvalidOperation", tt.from, tt.to, err)
		}
		if !tt.ok && card.Status != tt.from {
			t.Errorf("%s -> %s: status changed on rejected transition", tt.from, tt.to)
		}
	}
}

func TestCloseRequiresSettledCard(t *testing.T) {
	debit := &model.Card{Type: model.CardTypeDebit, Status: model.CardStatusActive, Balance: decimal.NewFromInt(1)}
	if err := Transition(debit, model.CardStatusClosed); !errors.Is(err, model.ErrInvalidOperation) {
		t.Errorf("closing funded debit card: error = %v", err)
	}

	limit := decimal.NewFromInt(1000)
	credit := &model.Card{
		Type:    model.CardTypeCredit,
		Status:  model.CardStatusActive,
		Balance: limit,
		Credit:  &model.CreditTerms{CreditLimit: limit},
	}
	if err := Transition(credit, model.CardStatusClosed); err != nil {
		t.Fatalf("closing settled credit card: %v", err)
	}

	indebted := &model.Card{
		Type:    model.CardTypeCredit,
		Status:  model.CardStatusActive,
		Balance: decimal.NewFromInt(900),
		Credit:  &model.CreditTerms{CreditLimit: limit, PrincipalDebt: decimal.NewFromInt(100), TotalDebt: decimal.NewFromInt(100)},
	}
	if err := Transition(indebted, model.CardStatusClosed); !errors.Is(err, model.ErrInvalidOperation) {
		t.Errorf("closing indebted credit card: error = %v", err)
	}

	overpaid := &model.Card{
		Type:    model.CardTypeCredit,
		Status:  model.CardStatusActive,
		Balance: decimal.NewFromInt(1050),
		Credit:  &model.CreditTerms{CreditLimit: limit},
	}
	if err := Transition(overpaid, model.CardStatusClosed); !errors.Is(err, model.ErrInvalidOperation) {
		t.Errorf("closing overpaid credit card: error = %v", err)
	}
}

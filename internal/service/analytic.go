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

type AnalyticService struct {
	cards        CardStore
	transactions TransactionStore
	logger       *logrus.Logger
}

func NewAnalyticService(cards CardStore, transactions TransactionStore, logger *logrus.Logger) *AnalyticService {
	return &AnalyticService{
		cards:        cards,
		transactions: transactions,
		logger:       logger,
	}
}

// GetFinancialStats возвращает статистику поступлений и списаний по картам пользователя за период.
// Переводы между собственными картами пользователя не учитываются.
func (s *AnalyticService) GetFinancialStats(
	ctx context.Context,
	p model.Principal,
	userID uuid.UUID,
	startDate, endDate time.Time,
) (*model.FinancialStats, error) {
	if err := requireSelfOrAdmin(p, userID); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"start_date": startDate.Format("2006-01-02"),
		"end_date":   endDate.Format("2006-01-02"),
	}).Debug("Начало расчета финансовой статистики")

	if startDate.After(endDate) {
		s.logger.Warn("Дата начала периода позже даты окончания")
		return nil, fmt.Errorf("дата начала не может быть позже даты окончания: %w", model.ErrInvalidOperation)
	}
	// конец периода включает весь последний день
	endExclusive := endDate.Add(24 * time.Hour)

	stats := &model.FinancialStats{
		From:          startDate,
		To:            endDate,
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
		NetBalance:    decimal.Zero,
		ByType:        make(map[model.OperationType]model.TypeStats),
	}

	cards, err := s.cards.ListByUser(ctx, userID)
	if err != nil {
		s.logger.WithError(err).Error("Ошибка получения карт пользователя")
		return nil, fmt.Errorf("не удалось получить карты пользователя: %w", err)
	}
	if len(cards) == 0 {
		s.logger.Info("У пользователя нет карт для анализа")
		return stats, nil
	}

	own := make(map[string]bool, len(cards))
	numbers := make([]string, 0, len(cards))
	for _, c := range cards {
		own[c.Number] = true
		numbers = append(numbers, c.Number)
	}

	transactions, err := s.transactions.ListByCardNumbers(ctx, numbers)
	if err != nil {
		s.logger.WithError(err).Error("Ошибка получения транзакций пользователя")
		return nil, fmt.Errorf("не удалось получить транзакции: %w", err)
	}

	for _, t := range transactions {
		if t.Timestamp.Before(startDate) || !t.Timestamp.Before(endExclusive) {
			continue
		}
		incoming := t.ToCard != nil && own[*t.ToCard]
		outgoing := t.FromCard != nil && own[*t.FromCard]
		if incoming && outgoing {
			continue
		}

		typeStats := stats.ByType[t.Type]
		if incoming {
			stats.TotalIncome = stats.TotalIncome.Add(t.Amount)
			typeStats.Income = typeStats.Income.Add(t.Amount)
		} else {
			stats.TotalExpenses = stats.TotalExpenses.Add(t.Amount)
			typeStats.Expenses = typeStats.Expenses.Add(t.Amount)
		}
		typeStats.Count++
		stats.ByType[t.Type] = typeStats
	}

	stats.NetBalance = stats.TotalIncome.Sub(stats.TotalExpenses)

	s.logger.WithFields(logrus.Fields{
		"income":   stats.TotalIncome.String(),
		"expenses": stats.TotalExpenses.String(),
		"balance":  stats.NetBalance.String(),
		"types":    len(stats.ByType),
	}).Info("Финансовая статистика успешно рассчитана")
	return stats, nil
}

// GetCreditLoad кредитная нагрузка по незакрытым кредитным картам пользователя
func (s *AnalyticService) GetCreditLoad(ctx context.Context, p model.Principal, userID uuid.UUID) (*model.CreditLoad, error) {
	if err := requireSelfOrAdmin(p, userID); err != nil {
		return nil, err
	}
	s.logger.WithField("user_id", userID).Info("Расчет кредитной нагрузки")

	cards, err := s.cards.ListByUser(ctx, userID)
	if err != nil {
		s.logger.WithError(err).Error("Ошибка получения карт пользователя")
		return nil, fmt.Errorf("не удалось получить карты пользователя: %w", err)
	}

	load := &model.CreditLoad{
		TotalLimit:      decimal.Zero,
		TotalDebt:       decimal.Zero,
		MinimumPayments: decimal.Zero,
		Utilization:     decimal.Zero,
	}
	for _, c := range cards {
		if !c.IsCredit() || c.Status == model.CardStatusClosed {
			continue
		}
		load.CreditCards++
		load.TotalLimit = load.TotalLimit.Add(c.Credit.CreditLimit)
		load.TotalDebt = load.TotalDebt.Add(c.Credit.TotalDebt)
		load.MinimumPayments = load.MinimumPayments.Add(c.Credit.MinimumPayment())
	}
	if load.TotalLimit.IsPositive() {
		load.Utilization = load.TotalDebt.Mul(hundred).Div(load.TotalLimit).Round(2)
	}
	return load, nil
}

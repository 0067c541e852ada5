package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FinancialStats статистика поступлений и списаний по картам пользователя за период
type FinancialStats struct {
	From          time.Time                   `json:"from"`
	To            time.Time                   `json:"to"`
	TotalIncome   decimal.Decimal             `json:"total_income"`
	TotalExpenses decimal.Decimal             `json:"total_expenses"`
	NetBalance    decimal.Decimal             `json:"net_balance"`
	ByType        map[OperationType]TypeStats `json:"by_type"`
}

type TypeStats struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Count    int             `json:"count"`
}

// CreditLoad кредитная нагрузка пользователя по кредитным картам
type CreditLoad struct {
	CreditCards     int             `json:"credit_cards"`
	TotalLimit      decimal.Decimal `json:"total_limit"`
	TotalDebt       decimal.Decimal `json:"total_debt"`
	MinimumPayments decimal.Decimal `json:"minimum_payments"`
	Utilization     decimal.Decimal `json:"utilization"` // доля использованного лимита, %
}

package model

import (
	"github.com/shopspring/decimal"
)

// Запросы на операции по картам. Card принимает UUID или номер карты.
type DepositRequest struct {
	Card    string          `json:"card"`
	Amount  decimal.Decimal `json:"amount"`
	Comment string          `json:"comment"`
}

type WithdrawRequest struct {
	Card    string          `json:"card"`
	Amount  decimal.Decimal `json:"amount"`
	Comment string          `json:"comment"`
}

type TransferRequest struct {
	FromCard string          `json:"from_card"`
	ToCard   string          `json:"to_card"`
	Amount   decimal.Decimal `json:"amount"`
	Comment  string          `json:"comment"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 500
)

type PageRequest struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

// Normalize приводит номер и размер страницы к допустимым значениям
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
}

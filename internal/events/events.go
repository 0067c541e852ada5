// Package events доставка событий по совершённым операциям до обработчиков уведомлений.
package events

import (
	"context"
	"time"

	"bank-cards-api/internal/model"
)

const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Handler обработчик события. Ошибка приводит к повторной доставке.
type Handler interface {
	Handle(ctx context.Context, event model.NotificationEvent) error
}

type HandlerFunc func(ctx context.Context, event model.NotificationEvent) error

func (f HandlerFunc) Handle(ctx context.Context, event model.NotificationEvent) error {
	return f(ctx, event)
}

// Options параметры опроса и повторов
type Options struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	Backoff      time.Duration // задержка перед повтором растёт линейно с числом попыток
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.Backoff <= 0 {
		o.Backoff = 10 * time.Second
	}
	return o
}

// nextDelay задержка перед попыткой номер attempts+1
func (o Options) nextDelay(attempts int) time.Duration {
	return o.Backoff * time.Duration(attempts)
}

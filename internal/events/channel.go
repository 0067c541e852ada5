package events

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"bank-cards-api/internal/model"
)

// ChannelBus доставка событий внутри процесса через буферизованный канал
type ChannelBus struct {
	events chan model.NotificationEvent
	opts   Options
	logger *logrus.Logger
}

func NewChannelBus(buffer int, opts Options, logger *logrus.Logger) *ChannelBus {
	if buffer <= 0 {
		buffer = 256
	}
	opts = opts.withDefaults()
	return &ChannelBus{
		events: make(chan model.NotificationEvent, buffer),
		opts:   opts,
		logger: logger,
	}
}

// Publish блокируется при заполненном буфере до отмены ctx
func (b *ChannelBus) Publish(ctx context.Context, event model.NotificationEvent) error {
	select {
	case b.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *ChannelBus) Run(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-b.events:
			b.deliver(ctx, h, event)
		}
	}
}

// deliver повторяет обработку до MaxAttempts, затем событие отбрасывается с записью в лог
func (b *ChannelBus) deliver(ctx context.Context, h Handler, event model.NotificationEvent) {
	for attempt := 1; attempt <= b.opts.MaxAttempts; attempt++ {
		err := h.Handle(ctx, event)
		if err == nil {
			return
		}
		log := b.logger.WithError(err).WithFields(logrus.Fields{
			"transaction_id": event.TransactionID,
			"attempt":        attempt,
		})
		if attempt == b.opts.MaxAttempts {
			log.Error("Событие не обработано после максимального числа попыток")
			return
		}
		log.Warn("Ошибка обработки события, повтор")

		select {
		case <-ctx.Done():
			return
		case <-time.After(b.opts.nextDelay(attempt)):
		}
	}
}

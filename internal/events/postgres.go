package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"bank-cards-api/internal/model"
)

// PostgresQueue очередь событий в таблице transaction_events.
// Несколько потребителей разбирают очередь параллельно благодаря FOR UPDATE SKIP LOCKED.
type PostgresQueue struct {
	pool   *pgxpool.Pool
	opts   Options
	logger *logrus.Logger
}

func NewPostgresQueue(pool *pgxpool.Pool, opts Options, logger *logrus.Logger) *PostgresQueue {
	return &PostgresQueue{pool: pool, opts: opts.withDefaults(), logger: logger}
}

// Connect создаёт пул соединений pgx и проверяет доступность базы
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return pool, nil
}

func (q *PostgresQueue) Publish(ctx context.Context, event model.NotificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}

	const query = `
		INSERT INTO transaction_events (id, transaction_id, payload, status, attempts, next_run_at, created_at)
		VALUES ($1, $2, $3, $4, 0, NOW(), NOW())
	`
	if _, err := q.pool.Exec(ctx, query, uuid.New(), event.TransactionID, payload, StatusPending); err != nil {
		return fmt.Errorf("ошибка записи события в очередь: %w", err)
	}
	return nil
}

// Run разбирает очередь до отмены ctx
func (q *PostgresQueue) Run(ctx context.Context, h Handler) error {
	q.logger.WithField("poll_interval", q.opts.PollInterval).Info("Обработчик очереди событий запущен")
	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	for {
		for {
			n, err := q.processBatch(ctx, h)
			if err != nil && ctx.Err() == nil {
				q.logger.WithError(err).Error("Ошибка обработки пакета событий")
			}
			// полный пакет означает, что в очереди могут остаться события
			if err != nil || n < q.opts.BatchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			q.logger.Info("Обработчик очереди событий остановлен")
			return nil
		case <-ticker.C:
		}
	}
}

type job struct {
	id       uuid.UUID
	payload  []byte
	attempts int
}

func (q *PostgresQueue) processBatch(ctx context.Context, h Handler) (int, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	const claim = `
		SELECT id, payload, attempts
		FROM transaction_events
		WHERE status = $1 AND next_run_at <= NOW()
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	rows, err := tx.Query(ctx, claim, StatusPending, q.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("ошибка выборки событий: %w", err)
	}
	jobs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (job, error) {
		var j job
		err := row.Scan(&j.id, &j.payload, &j.attempts)
		return j, err
	})
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения событий: %w", err)
	}

	for _, j := range jobs {
		if err := q.process(ctx, tx, h, j); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ошибка фиксации обработки событий: %w", err)
	}
	return len(jobs), nil
}

func (q *PostgresQueue) process(ctx context.Context, tx pgx.Tx, h Handler, j job) error {
	log := q.logger.WithFields(logrus.Fields{"event_id": j.id, "attempts": j.attempts})

	var event model.NotificationEvent
	if err := json.Unmarshal(j.payload, &event); err != nil {
		log.WithError(err).Error("Не удалось разобрать событие, событие отклонено")
		return q.mark(ctx, tx, j.id, StatusFailed, j.attempts, time.Now(), err)
	}

	handleErr := h.Handle(ctx, event)
	if handleErr == nil {
		return q.mark(ctx, tx, j.id, StatusCompleted, j.attempts+1, time.Now(), nil)
	}
	if errors.Is(handleErr, context.Canceled) && ctx.Err() != nil {
		return ctx.Err()
	}

	attempts := j.attempts + 1
	if attempts >= q.opts.MaxAttempts {
		log.WithError(handleErr).Error("Событие не обработано после максимального числа попыток")
		return q.mark(ctx, tx, j.id, StatusFailed, attempts, time.Now(), handleErr)
	}

	nextRun := time.Now().Add(q.opts.nextDelay(attempts))
	log.WithError(handleErr).WithField("next_run", nextRun).Warn("Ошибка обработки события, запланирован повтор")
	return q.mark(ctx, tx, j.id, StatusPending, attempts, nextRun, handleErr)
}

func (q *PostgresQueue) mark(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, attempts int, nextRun time.Time, cause error) error {
	var lastError *string
	if cause != nil {
		msg := cause.Error()
		lastError = &msg
	}
	const query = `
		UPDATE transaction_events
		SET status = $2, attempts = $3, next_run_at = $4, last_error = $5, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, query, id, status, attempts, nextRun, lastError); err != nil {
		return fmt.Errorf("ошибка обновления статуса события: %w", err)
	}
	return nil
}

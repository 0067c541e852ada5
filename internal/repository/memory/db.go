// Package memory хранилище в памяти с тем же контрактом блокировок, что и PostgreSQL:
// одна изменяющая операция на карту, ограниченное ожидание блокировки.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"bank-cards-api/internal/model"
)

// DB общее состояние для всех репозиториев пакета
type DB struct {
	mu            sync.RWMutex
	cards         map[uuid.UUID]*model.Card
	byNumber      map[string]uuid.UUID
	transactions  []model.Transaction
	users         map[uuid.UUID]*model.User
	notifications []model.Notification

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

func NewDB() *DB {
	return &DB{
		cards:    make(map[uuid.UUID]*model.Card),
		byNumber: make(map[string]uuid.UUID),
		users:    make(map[uuid.UUID]*model.User),
		locks:    make(map[string]chan struct{}),
	}
}

func (db *DB) cardLock(number string) chan struct{} {
	db.locksMu.Lock()
	defer db.locksMu.Unlock()

	ch, ok := db.locks[number]
	if !ok {
		ch = make(chan struct{}, 1)
		db.locks[number] = ch
	}
	return ch
}

// acquire ждёт блокировку карты не дольше timeout
func (db *DB) acquire(ctx context.Context, number string, timeout time.Duration) error {
	ch := db.cardLock(number)

	select {
	case ch <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return nil
	case <-timer.C:
		return fmt.Errorf("карта %s: %w", model.MaskNumberShort(number), model.ErrLockTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (db *DB) release(number string) {
	<-db.cardLock(number)
}

package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"bank-cards-api/internal/model"
)

type NotificationRepository struct {
	db *DB
}

func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.notifications {
		if existing.ReferenceID == n.ReferenceID && existing.UserID == n.UserID && existing.Direction == n.Direction {
			return false, nil
		}
	}
	r.db.notifications = append(r.db.notifications, *n)
	return true, nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]model.Notification, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	result := make([]model.Notification, 0)
	for _, n := range r.db.notifications {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		result = append(result, n)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for i := range r.db.notifications {
		if r.db.notifications[i].ID == id && r.db.notifications[i].UserID == userID {
			r.db.notifications[i].Read = true
			return nil
		}
	}
	return fmt.Errorf("notification %s: %w", id, model.ErrNotFound)
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	count := 0
	for _, n := range r.db.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

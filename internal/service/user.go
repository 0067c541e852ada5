package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bank-cards-api/internal/model"
)

// UserService управление пользователями администратором
type UserService struct {
	users  UserStore
	now    func() time.Time
	logger *logrus.Logger
}

func NewUserService(users UserStore, logger *logrus.Logger) *UserService {
	return &UserService{users: users, now: time.Now, logger: logger}
}

func (s *UserService) List(ctx context.Context, p model.Principal, page model.PageRequest) (model.Page[model.User], error) {
	if err := requireAdmin(p); err != nil {
		return model.Page[model.User]{}, err
	}
	result, err := s.users.List(ctx, page)
	if err != nil {
		return model.Page[model.User]{}, fmt.Errorf("ошибка получения списка пользователей: %w", err)
	}
	return result, nil
}

// Get профиль пользователя, доступен ему самому и администратору
func (s *UserService) Get(ctx context.Context, p model.Principal, id uuid.UUID) (*model.User, error) {
	if err := requireSelfOrAdmin(p, id); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return user, nil
}

// Block запрещает пользователю вход. Выпущенные токены действуют до истечения срока.
func (s *UserService) Block(ctx context.Context, p model.Principal, id uuid.UUID) (*model.User, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	if p.UserID == id {
		return nil, fmt.Errorf("администратор не может заблокировать сам себя: %w", model.ErrInvalidOperation)
	}
	return s.setBlocked(ctx, p, id, true)
}

func (s *UserService) Unblock(ctx context.Context, p model.Principal, id uuid.UUID) (*model.User, error) {
	return s.setBlocked(ctx, p, id, false)
}

func (s *UserService) setBlocked(ctx context.Context, p model.Principal, id uuid.UUID, blocked bool) (*model.User, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	if err := s.users.SetBlocked(ctx, id, blocked, s.now()); err != nil {
		return nil, fmt.Errorf("ошибка изменения блокировки пользователя: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"user_id": id,
		"blocked": blocked,
		"by":      p.UserID,
	}).Info("Блокировка пользователя изменена")

	return s.users.GetByID(ctx, id)
}

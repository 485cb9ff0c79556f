// Package members — service.go содержит бизнес-логику работы с пользователями.
package members

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/brand-votes/internal/auth"
	"serotonyl.ru/brand-votes/internal/common"
	"serotonyl.ru/brand-votes/internal/features/points"
)

// Store — хранилище пользователей.
type Store interface {
	GetUser(ctx context.Context, id int64) (*User, error)
	UpdateUser(ctx context.Context, id int64, mask UpdateMask) (*User, error)
	DeleteUser(ctx context.Context, id int64) (bool, error)
}

// Balances — источник баланса очков для профиля.
type Balances interface {
	Balance(ctx context.Context, userID int64) (*points.Balance, error)
}

// Service управляет пользователями.
type Service struct {
	store    Store
	balances Balances
}

// NewService создаёт сервис пользователей.
func NewService(store Store, balances Balances) *Service {
	return &Service{store: store, balances: balances}
}

// GetUser возвращает пользователя или NotFound.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, common.NotFound("members.GetUser", "пользователь")
	}
	return u, nil
}

// GetProfile возвращает профиль с балансом очков.
func (s *Service) GetProfile(ctx context.Context, id int64) (*Profile, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, u)
}

// Update меняет поля пользователя по маске. Только для админа.
func (s *Service) Update(ctx context.Context, p auth.Principal, id int64, mask UpdateMask) (*Profile, error) {
	const op = "members.Update"

	if err := auth.Authorize(p, auth.CapManageUsers); err != nil {
		return nil, err
	}
	if err := mask.Validate(); err != nil {
		return nil, err
	}

	u, err := s.store.UpdateUser(ctx, id, mask)
	if errors.Is(err, ErrUsernameTaken) {
		return nil, common.Validation(op, err.Error())
	}
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, common.NotFound(op, "пользователь")
	}

	log.WithFields(log.Fields{
		"user_id":  id,
		"admin_id": p.UserID,
	}).Info("Пользователь обновлён")
	return s.profile(ctx, u)
}

// Delete удаляет пользователя вместе с его голосами и очками. Только для админа.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id int64) (bool, error) {
	if err := auth.Authorize(p, auth.CapManageUsers); err != nil {
		return false, err
	}
	deleted, err := s.store.DeleteUser(ctx, id)
	if err != nil {
		return false, err
	}
	if !deleted {
		return false, common.NotFound("members.Delete", "пользователь")
	}

	log.WithFields(log.Fields{
		"user_id":  id,
		"admin_id": p.UserID,
	}).Warn("Пользователь удалён")
	return true, nil
}

func (s *Service) profile(ctx context.Context, u *User) (*Profile, error) {
	bal, err := s.balances.Balance(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &Profile{
		ID:        u.ID,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
		Points:    bal.Balance,
		IsAdmin:   u.IsAdmin,
	}, nil
}

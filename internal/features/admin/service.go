// Package admin — service.go: вход администратора и обслуживание сессий.
package admin

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/brand-votes/internal/auth"
	"serotonyl.ru/brand-votes/internal/common"
	"serotonyl.ru/brand-votes/internal/config"
	"serotonyl.ru/brand-votes/internal/features/members"
)

// Store — хранилище сессий и попыток входа.
type Store interface {
	CreateSession(ctx context.Context, s *Session) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	LogAttempt(ctx context.Context, userID int64, success bool) error
	CountFailedAttempts(ctx context.Context, userID int64, since time.Time) (int, error)
}

// Users — поиск пользователя для проверки флага is_admin.
type Users interface {
	GetUser(ctx context.Context, id int64) (*members.User, error)
}

// Service — вход администратора.
type Service struct {
	store        Store
	users        Users
	passwordHash string
	sessionTTL   time.Duration
	maxAttempts  int
	lockout      time.Duration
	now          func() time.Time
}

// NewService создаёт сервис входа.
func NewService(store Store, users Users, cfg *config.Config) *Service {
	return &Service{
		store:        store,
		users:        users,
		passwordHash: cfg.AdminPasswordHash,
		sessionTTL:   cfg.AdminSessionTTL,
		maxAttempts:  cfg.AdminMaxLoginAttempts,
		lockout:      cfg.AdminLoginLockoutPeriod,
		now:          time.Now,
	}
}

// Login проверяет пароль администратора и выдаёт повышенную сессию.
// Защита от перебора: после maxAttempts неудач за период lockout вход
// блокируется до конца периода.
func (s *Service) Login(ctx context.Context, p auth.Principal, password string) (*LoginResult, error) {
	const op = "admin.Login"

	if err := auth.Authorize(p, auth.CapAdminLogin); err != nil {
		return nil, err
	}
	user, err := s.users.GetUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsAdmin {
		return nil, common.Denied(op, "пользователь не администратор")
	}

	now := s.now()
	attempts, err := s.store.CountFailedAttempts(ctx, p.UserID, now.Add(-s.lockout))
	if err != nil {
		return nil, err
	}
	if attempts >= s.maxAttempts {
		log.WithField("user_id", p.UserID).Warn("Вход администратора заблокирован: слишком много попыток")
		return nil, common.Denied(op, fmt.Sprintf("слишком много попыток, подождите %s", s.lockout))
	}

	match := VerifyPassword(password, s.passwordHash)
	if err := s.store.LogAttempt(ctx, p.UserID, match); err != nil {
		return nil, err
	}
	if !match {
		log.WithFields(log.Fields{
			"user_id":  p.UserID,
			"attempts": attempts + 1,
		}).Warn("Неверный пароль администратора")
		return nil, common.Denied(op, "неверный пароль")
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	session := &Session{
		UserID:    p.UserID,
		TokenHash: auth.HashToken(token),
		Elevated:  true,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	log.WithField("user_id", p.UserID).Info("Администратор вошёл")
	return &LoginResult{Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// CleanupSessions удаляет истёкшие сессии.
func (s *Service) CleanupSessions(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredSessions(ctx, s.now())
}

// Package admin — repository.go работает с таблицами sessions и admin_login_attempts.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/brand-votes/internal/auth"
	"serotonyl.ru/brand-votes/internal/db/postgres"
)

// Repository работает с сессиями и попытками входа.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateSession создаёт сессию. Заполняет ID и CreatedAt.
func (r *Repository) CreateSession(ctx context.Context, s *Session) error {
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO sessions (user_id, token_hash, elevated, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, s.UserID, s.TokenHash, s.Elevated, s.ExpiresAt).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания сессии: %w", err)
	}
	return nil
}

// SessionByTokenHash находит сессию вместе с флагом is_admin пользователя.
func (r *Repository) SessionByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	var s auth.Session
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT s.user_id, u.is_admin, s.elevated, s.expires_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = $1
	`, tokenHash).Scan(&s.UserID, &s.IsAdmin, &s.Elevated, &s.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска сессии: %w", err)
	}
	return &s, nil
}

// DeleteExpiredSessions удаляет истёкшие сессии и возвращает их число.
func (r *Repository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := postgres.Conn(ctx, r.db).Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления сессий: %w", err)
	}
	return tag.RowsAffected(), nil
}

// LogAttempt записывает попытку входа.
func (r *Repository) LogAttempt(ctx context.Context, userID int64, success bool) error {
	_, err := postgres.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO admin_login_attempts (user_id, success) VALUES ($1, $2)
	`, userID, success)
	if err != nil {
		return fmt.Errorf("ошибка записи попытки входа: %w", err)
	}
	return nil
}

// CountFailedAttempts возвращает количество неудачных попыток начиная с since.
func (r *Repository) CountFailedAttempts(ctx context.Context, userID int64, since time.Time) (int, error) {
	var count int
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT COUNT(*) FROM admin_login_attempts
		WHERE user_id = $1 AND success = FALSE AND attempt_time >= $2
	`, userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта попыток входа: %w", err)
	}
	return count, nil
}

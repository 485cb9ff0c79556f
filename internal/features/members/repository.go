// Package members — repository.go выполняет операции с таблицей users.
package members

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/brand-votes/internal/db/postgres"
)

// ErrUsernameTaken — username уже занят другим пользователем.
var ErrUsernameTaken = errors.New("username уже занят")

// Repository предоставляет методы для работы с пользователями.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий пользователей.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetUser возвращает пользователя по id или (nil, nil).
func (r *Repository) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, username, is_admin, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Username, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return &u, nil
}

// UpdateUser применяет маску к пользователю и возвращает обновлённую запись
// или (nil, nil), если пользователя нет.
func (r *Repository) UpdateUser(ctx context.Context, id int64, mask UpdateMask) (*User, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id}
	if mask.Username != nil {
		args = append(args, *mask.Username)
		sets = append(sets, fmt.Sprintf("username = $%d", len(args)))
	}
	if mask.IsAdmin != nil {
		args = append(args, *mask.IsAdmin)
		sets = append(sets, fmt.Sprintf("is_admin = $%d", len(args)))
	}

	query := `
		UPDATE users SET ` + strings.Join(sets, ", ") + `
		WHERE id = $1
		RETURNING id, username, is_admin, created_at, updated_at
	`
	var u User
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, query, args...).
		Scan(&u.ID, &u.Username, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case postgres.IsUniqueViolation(err, "users_username_key"):
		return nil, ErrUsernameTaken
	case err != nil:
		return nil, fmt.Errorf("ошибка обновления пользователя: %w", err)
	}
	return &u, nil
}

// DeleteUser удаляет пользователя. Пакеты, голоса, начисления и сессии
// удаляются каскадом (ON DELETE CASCADE). Возвращает false, если удалять нечего.
func (r *Repository) DeleteUser(ctx context.Context, id int64) (bool, error) {
	tag, err := postgres.Conn(ctx, r.db).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("ошибка удаления пользователя: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

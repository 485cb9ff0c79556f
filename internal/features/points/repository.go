// Package points — repository.go работает с таблицами point_actions и point_balances.
package points

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/brand-votes/internal/db/postgres"
)

const constraintActionBatch = "point_actions_batch_id_key"

// Repository — PostgreSQL-хранилище очков.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий очков.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// LockBalance создаёт строку баланса при необходимости и блокирует её
// до конца транзакции (FOR UPDATE). Возвращает текущий баланс.
func (r *Repository) LockBalance(ctx context.Context, userID int64) (int64, error) {
	conn := postgres.Conn(ctx, r.db)
	if _, err := conn.Exec(ctx, `
		INSERT INTO point_balances (user_id, balance, total_earned)
		VALUES ($1, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return 0, fmt.Errorf("ошибка создания баланса: %w", err)
	}

	var balance int64
	err := conn.QueryRow(ctx, `
		SELECT balance FROM point_balances WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("ошибка блокировки баланса: %w", err)
	}
	return balance, nil
}

// ActionByBatch возвращает начисление за пакет или (nil, nil).
func (r *Repository) ActionByBatch(ctx context.Context, batchID uuid.UUID) (*PointAction, error) {
	var a PointAction
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, user_id, amount, reason, batch_id, balance_after, created_at
		FROM point_actions WHERE batch_id = $1
	`, batchID).Scan(&a.ID, &a.UserID, &a.Amount, &a.Reason, &a.BatchID, &a.BalanceAfter, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения начисления: %w", err)
	}
	return &a, nil
}

// InsertAction записывает начисление. Заполняет ID и CreatedAt.
// Повтор batch_id возвращает ErrDuplicateBatch.
func (r *Repository) InsertAction(ctx context.Context, a *PointAction) error {
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO point_actions (user_id, amount, reason, batch_id, balance_after)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, a.UserID, a.Amount, a.Reason, a.BatchID, a.BalanceAfter).Scan(&a.ID, &a.CreatedAt)
	if postgres.IsUniqueViolation(err, constraintActionBatch) {
		return ErrDuplicateBatch
	}
	if err != nil {
		return fmt.Errorf("ошибка записи начисления: %w", err)
	}
	return nil
}

// CreditBalance прибавляет amount к кешу баланса.
func (r *Repository) CreditBalance(ctx context.Context, userID, amount int64) error {
	_, err := postgres.Conn(ctx, r.db).Exec(ctx, `
		UPDATE point_balances
		SET balance = balance + $2, total_earned = total_earned + $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("ошибка начисления: %w", err)
	}
	return nil
}

// GetBalance возвращает кеш баланса. Пользователь без начислений — нулевой баланс.
func (r *Repository) GetBalance(ctx context.Context, userID int64) (*Balance, error) {
	b := Balance{UserID: userID}
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT balance, total_earned, updated_at FROM point_balances WHERE user_id = $1
	`, userID).Scan(&b.Balance, &b.TotalEarned, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения баланса: %w", err)
	}
	return &b, nil
}

// SumActions считает баланс по журналу.
func (r *Repository) SumActions(ctx context.Context, userID int64) (int64, error) {
	var sum int64
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM point_actions WHERE user_id = $1
	`, userID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта журнала: %w", err)
	}
	return sum, nil
}

// SetBalance перезаписывает кеш баланса значением из журнала.
func (r *Repository) SetBalance(ctx context.Context, userID, balance int64) error {
	_, err := postgres.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO point_balances (user_id, balance, total_earned)
		VALUES ($1, $2, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = EXCLUDED.balance, total_earned = EXCLUDED.total_earned, updated_at = NOW()
	`, userID, balance)
	if err != nil {
		return fmt.Errorf("ошибка записи баланса: %w", err)
	}
	return nil
}

// ListBalanceDrift находит пользователей, у которых кеш не совпадает с журналом.
func (r *Repository) ListBalanceDrift(ctx context.Context) ([]Drift, error) {
	rows, err := postgres.Conn(ctx, r.db).Query(ctx, `
		SELECT COALESCE(b.user_id, a.user_id), COALESCE(b.balance, 0), COALESCE(a.total, 0)
		FROM point_balances b
		FULL OUTER JOIN (
			SELECT user_id, SUM(amount) AS total FROM point_actions GROUP BY user_id
		) a ON a.user_id = b.user_id
		WHERE COALESCE(b.balance, 0) <> COALESCE(a.total, 0)
		ORDER BY 1
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка сверки балансов: %w", err)
	}
	defer rows.Close()

	var out []Drift
	for rows.Next() {
		var d Drift
		if err := rows.Scan(&d.UserID, &d.Cached, &d.Actual); err != nil {
			return nil, fmt.Errorf("ошибка сканирования расхождения: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListActions возвращает последние limit начислений пользователя.
func (r *Repository) ListActions(ctx context.Context, userID int64, limit int) ([]PointAction, error) {
	rows, err := postgres.Conn(ctx, r.db).Query(ctx, `
		SELECT id, user_id, amount, reason, batch_id, balance_after, created_at
		FROM point_actions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения начислений: %w", err)
	}
	defer rows.Close()

	var out []PointAction
	for rows.Next() {
		var a PointAction
		if err := rows.Scan(&a.ID, &a.UserID, &a.Amount, &a.Reason, &a.BatchID, &a.BalanceAfter, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования начисления: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

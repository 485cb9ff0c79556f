// Package ledger — repository.go работает с таблицами vote_batches и votes.
// Все методы берут соединение через postgres.Conn, поэтому внутри
// TxRunner.WithTx они выполняются в общей транзакции.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/brand-votes/internal/db/postgres"
)

// Имена ограничений из миграций.
const (
	constraintUserDay   = "vote_batches_user_day_key"
	constraintBatchPK   = "vote_batches_pkey"
	constraintBatchUser = "vote_batches_user_id_fkey"
	constraintVoteBrand = "votes_brand_id_fkey"
)

// Repository — PostgreSQL-хранилище пакетов голосов.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий голосов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// BatchExists сообщает, есть ли пакет пользователя за день.
func (r *Repository) BatchExists(ctx context.Context, userID int64, day time.Time) (bool, error) {
	var exists bool
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM vote_batches WHERE user_id = $1 AND vote_date = $2)
	`, userID, day).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки пакета: %w", err)
	}
	return exists, nil
}

// InsertBatch вставляет заголовок пакета.
// Второй писатель на ту же пару (user, day) получает ErrUserDayTaken:
// ограничение уникальности заставляет его дождаться первого и упасть.
func (r *Repository) InsertBatch(ctx context.Context, b *Batch) error {
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO vote_batches (batch_id, user_id, vote_date)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, b.ID, b.UserID, b.Date).Scan(&b.CreatedAt)
	switch {
	case err == nil:
		return nil
	case postgres.IsUniqueViolation(err, constraintUserDay):
		return ErrUserDayTaken
	case postgres.IsUniqueViolation(err, constraintBatchPK):
		return ErrBatchIDTaken
	case postgres.IsForeignKeyViolation(err, constraintBatchUser):
		return ErrUnknownUser
	default:
		return fmt.Errorf("ошибка записи пакета: %w", err)
	}
}

// InsertVotes вставляет голоса пакета одним запросом и возвращает их
// с присвоенными id, отсортированными по позиции.
func (r *Repository) InsertVotes(ctx context.Context, records []VoteRecord) ([]VoteRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}
	head := records[0]
	brandIDs := make([]int64, len(records))
	positions := make([]int32, len(records))
	for i, rec := range records {
		brandIDs[i] = rec.BrandID
		positions[i] = int32(rec.Position)
	}

	rows, err := postgres.Conn(ctx, r.db).Query(ctx, `
		INSERT INTO votes (batch_id, user_id, brand_id, vote_date, position)
		SELECT $1, $2, v.brand_id, $3, v.position
		FROM unnest($4::bigint[], $5::int[]) AS v(brand_id, position)
		RETURNING id, batch_id, user_id, brand_id, vote_date, position, created_at
	`, head.BatchID, head.UserID, head.Date, brandIDs, positions)
	if err != nil {
		return nil, fmt.Errorf("ошибка записи голосов: %w", err)
	}
	out, err := scanVotes(rows)
	if err != nil {
		if postgres.IsForeignKeyViolation(err, constraintVoteBrand) {
			return nil, ErrUnknownBrand
		}
		return nil, fmt.Errorf("ошибка записи голосов: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// GetBatch возвращает заголовок пакета или (nil, nil), если его нет.
func (r *Repository) GetBatch(ctx context.Context, batchID uuid.UUID) (*Batch, error) {
	var b Batch
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT batch_id, user_id, vote_date, created_at
		FROM vote_batches WHERE batch_id = $1
	`, batchID).Scan(&b.ID, &b.UserID, &b.Date, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пакета: %w", err)
	}
	return &b, nil
}

// ListBatchVotes возвращает голоса пакета по позиции.
func (r *Repository) ListBatchVotes(ctx context.Context, batchID uuid.UUID) ([]VoteRecord, error) {
	rows, err := postgres.Conn(ctx, r.db).Query(ctx, `
		SELECT id, batch_id, user_id, brand_id, vote_date, position, created_at
		FROM votes WHERE batch_id = $1
		ORDER BY position
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения голосов пакета: %w", err)
	}
	return scanVotes(rows)
}

// ListUserVotes возвращает голоса пользователя за день по позиции.
func (r *Repository) ListUserVotes(ctx context.Context, userID int64, day time.Time) ([]VoteRecord, error) {
	rows, err := postgres.Conn(ctx, r.db).Query(ctx, `
		SELECT id, batch_id, user_id, brand_id, vote_date, position, created_at
		FROM votes WHERE user_id = $1 AND vote_date = $2
		ORDER BY position
	`, userID, day)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения голосов: %w", err)
	}
	return scanVotes(rows)
}

func scanVotes(rows pgx.Rows) ([]VoteRecord, error) {
	defer rows.Close()

	var out []VoteRecord
	for rows.Next() {
		var v VoteRecord
		if err := rows.Scan(&v.ID, &v.BatchID, &v.UserID, &v.BrandID, &v.Date, &v.Position, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования голоса: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

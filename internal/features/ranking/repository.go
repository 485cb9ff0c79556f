// Package ranking — repository.go: агрегаты по таблице votes и снимки daily_leaderboards.
package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/brand-votes/internal/db/postgres"
)

// Repository — PostgreSQL-хранилище для рейтингов.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий рейтингов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CountVotes считает голоса по брендам за дни [from, to] включительно.
// Пустой brandIDs — все бренды.
func (r *Repository) CountVotes(ctx context.Context, from, to time.Time, brandIDs []int64) ([]BrandCount, error) {
	var filter []int64
	if len(brandIDs) > 0 {
		filter = brandIDs
	}
	rows, err := postgres.Conn(ctx, r.db).Query(ctx, `
		SELECT brand_id, COUNT(*)
		FROM votes
		WHERE vote_date BETWEEN $1 AND $2
		  AND ($3::bigint[] IS NULL OR brand_id = ANY($3::bigint[]))
		GROUP BY brand_id
		ORDER BY COUNT(*) DESC, brand_id ASC
	`, from, to, filter)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта голосов: %w", err)
	}
	defer rows.Close()

	var out []BrandCount
	for rows.Next() {
		var c BrandCount
		if err := rows.Scan(&c.BrandID, &c.Votes); err != nil {
			return nil, fmt.Errorf("ошибка сканирования рейтинга: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveSnapshot перезаписывает снимок рейтинга за день.
func (r *Repository) SaveSnapshot(ctx context.Context, day time.Time, counts []BrandCount) error {
	conn := postgres.Conn(ctx, r.db)
	if _, err := conn.Exec(ctx, `DELETE FROM daily_leaderboards WHERE vote_date = $1`, day); err != nil {
		return fmt.Errorf("ошибка очистки снимка: %w", err)
	}
	if len(counts) == 0 {
		return nil
	}

	brandIDs := make([]int64, len(counts))
	votes := make([]int64, len(counts))
	ranks := make([]int32, len(counts))
	for i, c := range counts {
		brandIDs[i] = c.BrandID
		votes[i] = c.Votes
		ranks[i] = int32(i + 1)
	}
	_, err := conn.Exec(ctx, `
		INSERT INTO daily_leaderboards (vote_date, brand_id, votes, rank)
		SELECT $1, s.brand_id, s.votes, s.rank
		FROM unnest($2::bigint[], $3::bigint[], $4::int[]) AS s(brand_id, votes, rank)
	`, day, brandIDs, votes, ranks)
	if err != nil {
		return fmt.Errorf("ошибка записи снимка: %w", err)
	}
	return nil
}

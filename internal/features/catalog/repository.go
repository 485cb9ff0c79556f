// Package catalog — repository.go работает с таблицей brands.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/brand-votes/internal/db/postgres"
)

// Repository — PostgreSQL-хранилище каталога.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий каталога.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetBrand возвращает бренд по id или (nil, nil).
func (r *Repository) GetBrand(ctx context.Context, id int64) (*Brand, error) {
	var b Brand
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, name, url, image_url, created_at FROM brands WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.URL, &b.ImageURL, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения бренда: %w", err)
	}
	return &b, nil
}

// SearchBrands ищет бренды по подстроке имени (без учёта регистра).
// Возвращает страницу и общее число совпадений.
func (r *Repository) SearchBrands(ctx context.Context, search string, offset, limit int) ([]Brand, int64, error) {
	conn := postgres.Conn(ctx, r.db)
	pattern := "%" + search + "%"

	var total int64
	if err := conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM brands WHERE name ILIKE $1
	`, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта брендов: %w", err)
	}

	rows, err := conn.Query(ctx, `
		SELECT id, name, url, image_url, created_at
		FROM brands
		WHERE name ILIKE $1
		ORDER BY name, id
		OFFSET $2 LIMIT $3
	`, pattern, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка поиска брендов: %w", err)
	}
	brands, err := scanBrands(rows)
	if err != nil {
		return nil, 0, err
	}
	return brands, total, nil
}

// ExistingBrandIDs возвращает те id из списка, которые есть в каталоге.
func (r *Repository) ExistingBrandIDs(ctx context.Context, ids []int64) ([]int64, error) {
	rows, err := postgres.Conn(ctx, r.db).Query(ctx, `
		SELECT id FROM brands WHERE id = ANY($1::bigint[])
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки брендов: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования id бренда: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// GetBrands возвращает бренды по списку id (отсутствующие пропускаются).
func (r *Repository) GetBrands(ctx context.Context, ids []int64) ([]Brand, error) {
	rows, err := postgres.Conn(ctx, r.db).Query(ctx, `
		SELECT id, name, url, image_url, created_at
		FROM brands WHERE id = ANY($1::bigint[])
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения брендов: %w", err)
	}
	return scanBrands(rows)
}

func scanBrands(rows pgx.Rows) ([]Brand, error) {
	defer rows.Close()

	var out []Brand
	for rows.Next() {
		var b Brand
		if err := rows.Scan(&b.ID, &b.Name, &b.URL, &b.ImageURL, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования бренда: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

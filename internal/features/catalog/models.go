// Package catalog — справочник брендов, за которые голосуют пользователи.
// models.go описывает бренд и его краткую карточку.
package catalog

import "time"

// Brand — бренд в каталоге.
type Brand struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	URL       string    `db:"url" json:"url"`
	ImageURL  string    `db:"image_url" json:"imageUrl"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// BrandSummary — карточка бренда в ответах с голосами.
type BrandSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

// Summary возвращает карточку бренда.
func (b Brand) Summary() BrandSummary {
	return BrandSummary{ID: b.ID, Name: b.Name, ImageURL: b.ImageURL}
}

// Page — страница списка брендов.
type Page struct {
	Page       int     `json:"page"`
	TotalCount int64   `json:"totalCount"`
	Brands     []Brand `json:"brands"`
}

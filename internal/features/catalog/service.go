// Package catalog — service.go: чтение каталога и проверка ссылок на бренды.
package catalog

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"

	"serotonyl.ru/brand-votes/internal/common"
)

// Ограничения пагинации
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Store — хранилище каталога.
type Store interface {
	GetBrand(ctx context.Context, id int64) (*Brand, error)
	SearchBrands(ctx context.Context, search string, offset, limit int) ([]Brand, int64, error)
	ExistingBrandIDs(ctx context.Context, ids []int64) ([]int64, error)
	GetBrands(ctx context.Context, ids []int64) ([]Brand, error)
}

// Service — каталог брендов с LRU-кешем карточек.
type Service struct {
	store     Store
	summaries *lru.Cache // int64 → BrandSummary
}

// NewService создаёт сервис каталога.
// cacheSize — сколько карточек брендов держать в памяти.
func NewService(store Store, cacheSize int) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания кеша брендов: %w", err)
	}
	return &Service{store: store, summaries: cache}, nil
}

// Get возвращает бренд или NotFound.
func (s *Service) Get(ctx context.Context, id int64) (*Brand, error) {
	b, err := s.store.GetBrand(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, common.NotFound("catalog.Get", "бренд")
	}
	s.summaries.Add(b.ID, b.Summary())
	return b, nil
}

// List возвращает страницу брендов (page с 1).
func (s *Service) List(ctx context.Context, search string, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	brands, total, err := s.store.SearchBrands(ctx, strings.TrimSpace(search), (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	if brands == nil {
		brands = []Brand{}
	}
	return &Page{Page: page, TotalCount: total, Brands: brands}, nil
}

// Missing возвращает id из списка, которых нет в каталоге (в исходном порядке).
// Идёт мимо кеша: удалённый бренд не должен проходить проверку.
func (s *Service) Missing(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	existing, err := s.store.ExistingBrandIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	found := make(map[int64]struct{}, len(existing))
	for _, id := range existing {
		found[id] = struct{}{}
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Summaries возвращает карточки брендов по id. Сначала смотрит в кеш,
// недостающие добирает одним запросом.
func (s *Service) Summaries(ctx context.Context, ids []int64) (map[int64]BrandSummary, error) {
	out := make(map[int64]BrandSummary, len(ids))
	var misses []int64
	for _, id := range ids {
		if v, ok := s.summaries.Get(id); ok {
			out[id] = v.(BrandSummary)
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return out, nil
	}

	brands, err := s.store.GetBrands(ctx, misses)
	if err != nil {
		return nil, err
	}
	for _, b := range brands {
		sum := b.Summary()
		s.summaries.Add(b.ID, sum)
		out[b.ID] = sum
	}
	return out, nil
}


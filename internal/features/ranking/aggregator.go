// Package ranking — aggregator.go: рейтинги за день и за окно дней.
package ranking

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/brand-votes/internal/common"
)

// MaxWindowDays — самое длинное окно для TallyWindow.
const MaxWindowDays = 366

// Store — агрегаты по журналу голосов.
type Store interface {
	CountVotes(ctx context.Context, from, to time.Time, brandIDs []int64) ([]BrandCount, error)
	SaveSnapshot(ctx context.Context, day time.Time, counts []BrandCount) error
}

// Aggregator строит рейтинги брендов из журнала голосов.
type Aggregator struct {
	store Store
	cache *Cache
}

// NewAggregator создаёт Aggregator. cache может быть nil.
func NewAggregator(store Store, cache *Cache) *Aggregator {
	return &Aggregator{store: store, cache: cache}
}

// Tally возвращает рейтинг за UTC-день.
// Непустой brandIDs ограничивает результат этими брендами; бренды без
// голосов попадают в ответ с нулём.
func (a *Aggregator) Tally(ctx context.Context, day time.Time, brandIDs []int64) ([]BrandCount, error) {
	day = common.VoteDay(day)

	full, ok := a.cache.Get(ctx, day)
	if !ok {
		var err error
		full, err = a.store.CountVotes(ctx, day, day, nil)
		if err != nil {
			return nil, err
		}
		a.cache.Set(ctx, day, full)
	}
	return restrict(full, brandIDs), nil
}

// TallyWindow возвращает рейтинг за дни [from, to] включительно.
func (a *Aggregator) TallyWindow(ctx context.Context, from, to time.Time, brandIDs []int64) ([]BrandCount, error) {
	const op = "ranking.TallyWindow"

	from, to = common.VoteDay(from), common.VoteDay(to)
	if to.Before(from) {
		return nil, common.Validation(op, "начало окна позже конца")
	}
	if to.Sub(from) > (MaxWindowDays-1)*24*time.Hour {
		return nil, common.Validation(op, fmt.Sprintf("окно не длиннее %d дней", MaxWindowDays))
	}

	counts, err := a.store.CountVotes(ctx, from, to, brandIDs)
	if err != nil {
		return nil, err
	}
	return restrict(counts, brandIDs), nil
}

// Invalidate сбрасывает кеш рейтинга дня.
func (a *Aggregator) Invalidate(ctx context.Context, day time.Time) {
	a.cache.Delete(ctx, common.VoteDay(day))
}

// Snapshot сохраняет рейтинг дня в daily_leaderboards.
// Возвращает число брендов в снимке.
func (a *Aggregator) Snapshot(ctx context.Context, day time.Time) (int, error) {
	day = common.VoteDay(day)
	counts, err := a.store.CountVotes(ctx, day, day, nil)
	if err != nil {
		return 0, err
	}
	SortTally(counts)
	if err := a.store.SaveSnapshot(ctx, day, counts); err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{
		"day":    common.FormatDay(day),
		"brands": len(counts),
	}).Info("Снимок рейтинга сохранён")
	return len(counts), nil
}

// restrict копирует рейтинг, оставляя только brandIDs (если заданы),
// дополняет нулями и сортирует.
func restrict(counts []BrandCount, brandIDs []int64) []BrandCount {
	if len(brandIDs) == 0 {
		out := make([]BrandCount, len(counts))
		copy(out, counts)
		SortTally(out)
		return out
	}

	byID := make(map[int64]int64, len(counts))
	for _, c := range counts {
		byID[c.BrandID] = c.Votes
	}
	seen := make(map[int64]struct{}, len(brandIDs))
	out := make([]BrandCount, 0, len(brandIDs))
	for _, id := range brandIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, BrandCount{BrandID: id, Votes: byID[id]})
	}
	SortTally(out)
	return out
}

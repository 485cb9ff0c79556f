// Package ranking — cache.go: Redis cache-aside для дневного рейтинга.
// Без клиента (REDIS_URL пуст или Redis недоступен) все операции — no-op.
package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/brand-votes/internal/common"
	"serotonyl.ru/brand-votes/internal/metrics"
)

// Cache хранит полный дневной рейтинг под ключом ranking:tally:YYYY-MM-DD.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache создаёт кеш. rdb может быть nil — тогда кеш выключен.
func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// Connect разбирает REDIS_URL и проверяет соединение.
// Любая проблема выключает кеш, а не роняет сервис.
func Connect(ctx context.Context, redisURL string) *redis.Client {
	if redisURL == "" {
		log.Info("Redis не настроен, кеш рейтингов выключен")
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.WithError(err).Warn("Некорректный REDIS_URL, кеш рейтингов выключен")
		return nil
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Redis недоступен, кеш рейтингов выключен")
		_ = rdb.Close()
		return nil
	}
	log.Info("Redis подключён, кеш рейтингов включён")
	return rdb
}

// Enabled сообщает, подключён ли Redis.
func (c *Cache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// Get возвращает рейтинг дня из кеша. ok=false — промах или кеш выключен.
func (c *Cache) Get(ctx context.Context, day time.Time) ([]BrandCount, bool) {
	if !c.Enabled() {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, tallyKey(day)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RankingCache.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		log.WithError(err).Warn("Ошибка чтения рейтинга из Redis")
		metrics.RankingCache.WithLabelValues("error").Inc()
		return nil, false
	}
	var counts []BrandCount
	if err := json.Unmarshal(data, &counts); err != nil {
		log.WithError(err).Warn("Битый рейтинг в Redis")
		metrics.RankingCache.WithLabelValues("error").Inc()
		return nil, false
	}
	metrics.RankingCache.WithLabelValues("hit").Inc()
	return counts, true
}

// Set кладёт рейтинг дня в кеш.
func (c *Cache) Set(ctx context.Context, day time.Time, counts []BrandCount) {
	if !c.Enabled() {
		return
	}
	if counts == nil {
		counts = []BrandCount{}
	}
	data, err := json.Marshal(counts)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, tallyKey(day), data, c.ttl).Err(); err != nil {
		log.WithError(err).Warn("Ошибка записи рейтинга в Redis")
	}
}

// Delete удаляет рейтинг дня (после фиксации нового пакета).
func (c *Cache) Delete(ctx context.Context, day time.Time) {
	if !c.Enabled() {
		return
	}
	if err := c.rdb.Del(ctx, tallyKey(day)).Err(); err != nil {
		log.WithError(err).Warn("Ошибка инвалидации рейтинга в Redis")
	}
}

func tallyKey(day time.Time) string {
	return "ranking:tally:" + common.FormatDay(day)
}

// Package events публикует события о зафиксированных пакетах голосов.
// Публикация идёт после коммита транзакции и не влияет на её исход:
// событие — уведомление для внешних потребителей, а не часть журнала.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BatchCommitted — событие «пакет голосов зафиксирован».
type BatchCommitted struct {
	BatchID     uuid.UUID `json:"batchId"`
	UserID      int64     `json:"userId"`
	Day         string    `json:"day"`      // YYYY-MM-DD (UTC)
	BrandIDs    []int64   `json:"brandIds"` // В порядке позиций
	Points      int64     `json:"points"`
	Balance     int64     `json:"balance"`
	CommittedAt time.Time `json:"committedAt"`
}

// Publisher отправляет события.
type Publisher interface {
	PublishBatch(ctx context.Context, e BatchCommitted) error
	Close() error
}

// Noop — публикатор, который ничего не отправляет (Kafka не настроена).
type Noop struct{}

// PublishBatch ничего не делает.
func (Noop) PublishBatch(context.Context, BatchCommitted) error { return nil }

// Close ничего не делает.
func (Noop) Close() error { return nil }

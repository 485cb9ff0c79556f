// Package voting собирает квоту, журнал голосов и очки в две операции:
// отправить пакет голосов и прочитать голоса пользователя за день.
// models.go описывает входные параметры и ответы.
package voting

import (
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/brand-votes/internal/features/catalog"
)

// CastOptions — необязательные параметры отправки пакета.
type CastOptions struct {
	// BatchID — ключ идемпотентности (заголовок Idempotency-Key).
	// Пустой — сгенерируется новый.
	BatchID uuid.UUID
}

// VoteView — голос с карточкой бренда.
type VoteView struct {
	ID       int64                `json:"id"`
	Date     string               `json:"date"` // YYYY-MM-DD (UTC)
	Position int                  `json:"position"`
	Brand    catalog.BrandSummary `json:"brand"`
}

// CastResult — итог отправки пакета.
type CastResult struct {
	BatchID  uuid.UUID  `json:"batchId"`
	Day      time.Time  `json:"-"`
	Votes    []VoteView `json:"votes"`
	Points   int64      `json:"points"`   // Начислено за пакет
	Balance  int64      `json:"balance"`  // Баланс после начисления
	Replayed bool       `json:"replayed"` // Повтор с тем же ключом, ничего не записано
}

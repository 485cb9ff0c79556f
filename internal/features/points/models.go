// Package points ведёт очки пользователей: журнал начислений и кеш баланса.
// models.go описывает начисление и баланс.
package points

import (
	"time"

	"github.com/google/uuid"
)

// PointAction — одно начисление очков. Журнал только дополняется.
// На каждый зафиксированный пакет голосов — ровно одно начисление
// с тем же BatchID.
type PointAction struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"userId"`
	Amount       int64     `db:"amount" json:"amount"`              // Всегда положительная в этом домене
	Reason       string    `db:"reason" json:"reason"`              // Причина: 'vote_batch'
	BatchID      uuid.UUID `db:"batch_id" json:"batchId"`           // Ключ идемпотентности
	BalanceAfter int64     `db:"balance_after" json:"balanceAfter"` // Баланс сразу после начисления
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Balance — кешированный баланс пользователя.
// Источник истины — сумма PointAction; кеш пересчитывается Recompute.
type Balance struct {
	UserID      int64     `db:"user_id" json:"userId"`
	Balance     int64     `db:"balance" json:"balance"`
	TotalEarned int64     `db:"total_earned" json:"totalEarned"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// Drift — расхождение кеша баланса с журналом.
type Drift struct {
	UserID int64
	Cached int64
	Actual int64
}

// Причины начисления
const (
	ReasonVoteBatch = "vote_batch" // Начисление за пакет голосов
)

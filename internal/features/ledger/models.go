// Package ledger хранит пакеты голосов пользователей за брендов.
// models.go описывает пакет и отдельный голос.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Batch — заголовок пакета голосов. На пару (UserID, Date) — не больше одного.
type Batch struct {
	ID        uuid.UUID `db:"batch_id"`   // Идентификатор корреляции (он же batchId у PointAction)
	UserID    int64     `db:"user_id"`    // Кто голосовал
	Date      time.Time `db:"vote_date"`  // UTC-день
	CreatedAt time.Time `db:"created_at"` // Момент фиксации
}

// VoteRecord — один голос за бренд внутри пакета. После фиксации не меняется.
type VoteRecord struct {
	ID        int64     `db:"id"`
	BatchID   uuid.UUID `db:"batch_id"`
	UserID    int64     `db:"user_id"`
	BrandID   int64     `db:"brand_id"`
	Date      time.Time `db:"vote_date"`
	Position  int       `db:"position"` // 1..N в порядке отправки
	CreatedAt time.Time `db:"created_at"`
}

// Ошибки хранилища, которые Ledger переводит в доменные.
var (
	// ErrUserDayTaken — у пользователя уже есть пакет за этот день
	ErrUserDayTaken = errors.New("пакет за этот день уже существует")
	// ErrBatchIDTaken — batch id уже занят
	ErrBatchIDTaken = errors.New("идентификатор пакета уже занят")
	// ErrUnknownBrand — голос ссылается на несуществующий бренд
	ErrUnknownBrand = errors.New("бренд не существует")
	// ErrUnknownUser — пакет ссылается на несуществующего пользователя
	ErrUnknownUser = errors.New("пользователь не существует")
)

// Package ledger — ledger.go: запись пакета голосов с позициями.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/brand-votes/internal/common"
)

// Store — хранилище пакетов и голосов.
type Store interface {
	BatchExists(ctx context.Context, userID int64, day time.Time) (bool, error)
	InsertBatch(ctx context.Context, b *Batch) error
	InsertVotes(ctx context.Context, records []VoteRecord) ([]VoteRecord, error)
	GetBatch(ctx context.Context, batchID uuid.UUID) (*Batch, error)
	ListBatchVotes(ctx context.Context, batchID uuid.UUID) ([]VoteRecord, error)
	ListUserVotes(ctx context.Context, userID int64, day time.Time) ([]VoteRecord, error)
}

// BrandResolver проверяет бренды по каталогу.
type BrandResolver interface {
	// Missing возвращает id из списка, которых нет в каталоге.
	Missing(ctx context.Context, brandIDs []int64) ([]int64, error)
}

// Ledger записывает пакеты голосов.
type Ledger struct {
	store     Store
	brands    BrandResolver
	maxBrands int
}

// NewLedger создаёт Ledger.
//
// Параметры:
//   - store: хранилище пакетов
//   - brands: каталог брендов
//   - maxBrands: максимум брендов в одном пакете
func NewLedger(store Store, brands BrandResolver, maxBrands int) *Ledger {
	return &Ledger{store: store, brands: brands, maxBrands: maxBrands}
}

// ValidateBrandIDs проверяет список брендов пакета:
// не пустой, не длиннее maxBrands, без повторов и без неположительных id.
func ValidateBrandIDs(brandIDs []int64, maxBrands int) error {
	const op = "ledger.ValidateBrandIDs"

	if len(brandIDs) == 0 {
		return common.Validation(op, "список брендов пуст")
	}
	if maxBrands > 0 && len(brandIDs) > maxBrands {
		return common.Validation(op, fmt.Sprintf("не больше %d брендов за раз", maxBrands))
	}
	seen := make(map[int64]struct{}, len(brandIDs))
	for _, id := range brandIDs {
		if id <= 0 {
			return common.Validation(op, fmt.Sprintf("некорректный id бренда: %d", id))
		}
		if _, dup := seen[id]; dup {
			return common.Validation(op, fmt.Sprintf("бренд %d указан дважды", id))
		}
		seen[id] = struct{}{}
	}
	return nil
}

// RecordVotes записывает пакет голосов пользователя за день.
// Позиция = 1 + индекс в brandIDs: порядок отправки не пересортировывается.
//
// Ошибки:
//   - Validation: пустой список, повторы, слишком много брендов, занятый batchID
//   - InvalidBrandReference: бренда нет в каталоге
//   - QuotaExceeded: пакет за (userID, day) уже зафиксирован, в том числе
//     параллельным запросом (ловится ограничением уникальности)
//
// Вызывающий обязан выполнять RecordVotes в транзакции: при ошибке
// посреди записи откат убирает заголовок пакета вместе с голосами.
func (l *Ledger) RecordVotes(ctx context.Context, userID int64, brandIDs []int64, day time.Time, batchID uuid.UUID) ([]VoteRecord, error) {
	const op = "ledger.RecordVotes"

	if err := ValidateBrandIDs(brandIDs, l.maxBrands); err != nil {
		return nil, err
	}
	if batchID == uuid.Nil {
		return nil, common.Validation(op, "пустой идентификатор пакета")
	}

	missing, err := l.brands.Missing(ctx, brandIDs)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки брендов: %w", err)
	}
	if len(missing) > 0 {
		return nil, common.InvalidBrandReference(op, missing)
	}

	day = common.VoteDay(day)
	batch := &Batch{ID: batchID, UserID: userID, Date: day}
	if err := l.store.InsertBatch(ctx, batch); err != nil {
		return nil, mapStoreError(op, err, brandIDs)
	}

	records := make([]VoteRecord, len(brandIDs))
	for i, brandID := range brandIDs {
		records[i] = VoteRecord{
			BatchID:  batchID,
			UserID:   userID,
			BrandID:  brandID,
			Date:     day,
			Position: i + 1,
		}
	}

	saved, err := l.store.InsertVotes(ctx, records)
	if err != nil {
		return nil, mapStoreError(op, err, brandIDs)
	}
	return saved, nil
}

// FindBatch возвращает пакет и его голоса. Если пакета нет — (nil, nil, nil).
func (l *Ledger) FindBatch(ctx context.Context, batchID uuid.UUID) (*Batch, []VoteRecord, error) {
	batch, err := l.store.GetBatch(ctx, batchID)
	if err != nil || batch == nil {
		return nil, nil, err
	}
	votes, err := l.store.ListBatchVotes(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}
	return batch, votes, nil
}

// UserVotes возвращает голоса пользователя за UTC-день по позиции.
func (l *Ledger) UserVotes(ctx context.Context, userID int64, day time.Time) ([]VoteRecord, error) {
	return l.store.ListUserVotes(ctx, userID, common.VoteDay(day))
}

func mapStoreError(op string, err error, brandIDs []int64) error {
	switch {
	case errors.Is(err, ErrUserDayTaken):
		e := common.QuotaExceeded(op)
		e.Err = ErrUserDayTaken
		return e
	case errors.Is(err, ErrBatchIDTaken):
		// Err сохраняется: по нему VoteSession отличает гонку повторов с одним ключом
		return &common.Error{Kind: common.KindValidation, Op: op, Message: "идентификатор пакета уже использован", Err: ErrBatchIDTaken}
	case errors.Is(err, ErrUnknownBrand):
		// Бренд удалили между проверкой и вставкой
		return common.InvalidBrandReference(op, brandIDs)
	case errors.Is(err, ErrUnknownUser):
		return common.NotFound(op, "пользователь")
	default:
		return err
	}
}

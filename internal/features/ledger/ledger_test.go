package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/brand-votes/internal/common"
	"serotonyl.ru/brand-votes/internal/features/catalog"
	"serotonyl.ru/brand-votes/internal/features/ledger"
	"serotonyl.ru/brand-votes/internal/testutil/memstore"
)

var day = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*memstore.Store, *ledger.Ledger) {
	t.Helper()
	store := memstore.New()
	brands, err := catalog.NewService(store, 16)
	require.NoError(t, err)
	return store, ledger.NewLedger(store, brands, 3)
}

func TestRecordVotes_PositionsFollowSubmissionOrder(t *testing.T) {
	store, l := setup(t)
	a := store.AddBrand("A")
	b := store.AddBrand("B")
	c := store.AddBrand("C")
	user := store.AddUser("u1", false)

	records, err := l.RecordVotes(context.Background(), user, []int64{b, a, c}, day.Add(15*time.Hour), uuid.New())
	require.NoError(t, err)
	require.Len(t, records, 3)

	positions := map[int64]int{}
	for _, r := range records {
		positions[r.BrandID] = r.Position
		assert.Equal(t, day, r.Date)
	}
	assert.Equal(t, map[int64]int{b: 1, a: 2, c: 3}, positions)
}

func TestValidateBrandIDs(t *testing.T) {
	tests := []struct {
		name    string
		ids     []int64
		wantErr bool
	}{
		{"ok", []int64{1, 2, 3}, false},
		{"empty", nil, true},
		{"duplicate", []int64{1, 2, 1}, true},
		{"too many", []int64{1, 2, 3, 4}, true},
		{"non positive", []int64{0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ledger.ValidateBrandIDs(tt.ids, 3)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, common.ErrValidation))
		})
	}
}

func TestRecordVotes_DuplicatePersistsNothing(t *testing.T) {
	store, l := setup(t)
	a := store.AddBrand("A")
	user := store.AddUser("u1", false)

	_, err := l.RecordVotes(context.Background(), user, []int64{a, a}, day, uuid.New())
	assert.True(t, errors.Is(err, common.ErrValidation))
	assert.Empty(t, store.Votes())
	assert.Empty(t, store.Batches())
}

func TestRecordVotes_UnknownBrand(t *testing.T) {
	store, l := setup(t)
	a := store.AddBrand("A")
	user := store.AddUser("u1", false)

	_, err := l.RecordVotes(context.Background(), user, []int64{a, 999}, day, uuid.New())
	require.True(t, errors.Is(err, common.ErrInvalidBrandReference))
	assert.Contains(t, err.Error(), "999")
	assert.Empty(t, store.Batches())
}

func TestRecordVotes_UserDayConstraintMapsToQuota(t *testing.T) {
	store, l := setup(t)
	a := store.AddBrand("A")
	b := store.AddBrand("B")
	user := store.AddUser("u1", false)
	ctx := context.Background()

	_, err := l.RecordVotes(ctx, user, []int64{a}, day, uuid.New())
	require.NoError(t, err)

	// Второй писатель дошёл до вставки, минуя проверку квоты
	_, err = l.RecordVotes(ctx, user, []int64{b}, day.Add(time.Hour), uuid.New())
	assert.True(t, errors.Is(err, common.ErrQuotaExceeded))
	assert.Len(t, store.Votes(), 1)

	// Следующий день свободен
	_, err = l.RecordVotes(ctx, user, []int64{b}, day.AddDate(0, 0, 1), uuid.New())
	assert.NoError(t, err)
}

func TestRecordVotes_BatchIDReuse(t *testing.T) {
	store, l := setup(t)
	a := store.AddBrand("A")
	u1 := store.AddUser("u1", false)
	u2 := store.AddUser("u2", false)
	id := uuid.New()
	ctx := context.Background()

	_, err := l.RecordVotes(ctx, u1, []int64{a}, day, id)
	require.NoError(t, err)

	_, err = l.RecordVotes(ctx, u2, []int64{a}, day, id)
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestFindBatchAndUserVotes(t *testing.T) {
	store, l := setup(t)
	a := store.AddBrand("A")
	b := store.AddBrand("B")
	user := store.AddUser("u1", false)
	id := uuid.New()
	ctx := context.Background()

	batch, votes, err := l.FindBatch(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, batch)
	assert.Nil(t, votes)

	_, err = l.RecordVotes(ctx, user, []int64{b, a}, day, id)
	require.NoError(t, err)

	batch, votes, err = l.FindBatch(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Equal(t, user, batch.UserID)
	require.Len(t, votes, 2)
	assert.Equal(t, b, votes[0].BrandID)

	mine, err := l.UserVotes(ctx, user, day.Add(23*time.Hour))
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

package members_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/brand-votes/internal/auth"
	"serotonyl.ru/brand-votes/internal/common"
	"serotonyl.ru/brand-votes/internal/features/catalog"
	"serotonyl.ru/brand-votes/internal/features/ledger"
	"serotonyl.ru/brand-votes/internal/features/members"
	"serotonyl.ru/brand-votes/internal/features/points"
	"serotonyl.ru/brand-votes/internal/testutil/memstore"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool { return &b }

func TestUpdateMask_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mask    members.UpdateMask
		wantErr bool
	}{
		{"empty", members.UpdateMask{}, true},
		{"username ok", members.UpdateMask{Username: strPtr("new_name_1")}, false},
		{"username short", members.UpdateMask{Username: strPtr("ab")}, true},
		{"username long", members.UpdateMask{Username: strPtr("abcdefghijklmnopqrstuvwxyz0123456")}, true},
		{"username spaces", members.UpdateMask{Username: strPtr("bad name")}, true},
		{"admin flag", members.UpdateMask{IsAdmin: boolPtr(true)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mask.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, common.ErrValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func newService(store *memstore.Store) *members.Service {
	return members.NewService(store, points.NewAccount(store, store))
}

func TestService_GetProfile(t *testing.T) {
	store := memstore.New()
	svc := newService(store)
	ctx := context.Background()
	id := store.AddUser("alice", false)

	_, err := points.NewAccount(store, store).AwardPoints(ctx, id, 6, points.ReasonVoteBatch, uuid.New())
	require.NoError(t, err)

	p, err := svc.GetProfile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, int64(6), p.Points)

	_, err = svc.GetProfile(ctx, 9999)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestService_UpdateRequiresAdmin(t *testing.T) {
	store := memstore.New()
	svc := newService(store)
	ctx := context.Background()
	id := store.AddUser("alice", false)
	store.AddUser("bob", false)
	admin := auth.Principal{UserID: store.AddUser("root", true), Admin: true}

	_, err := svc.Update(ctx, auth.Principal{UserID: id}, id, members.UpdateMask{IsAdmin: boolPtr(true)})
	assert.True(t, errors.Is(err, common.ErrAuthorizationDenied))

	p, err := svc.Update(ctx, admin, id, members.UpdateMask{Username: strPtr("alice_2")})
	require.NoError(t, err)
	assert.Equal(t, "alice_2", p.Username)

	_, err = svc.Update(ctx, admin, id, members.UpdateMask{Username: strPtr("bob")})
	assert.True(t, errors.Is(err, common.ErrValidation))

	_, err = svc.Update(ctx, admin, 9999, members.UpdateMask{IsAdmin: boolPtr(false)})
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestService_DeleteCascades(t *testing.T) {
	store := memstore.New()
	svc := newService(store)
	ctx := context.Background()
	brands, err := catalog.NewService(store, 8)
	require.NoError(t, err)
	l := ledger.NewLedger(store, brands, 3)
	acc := points.NewAccount(store, store)

	brand := store.AddBrand("Acme")
	id := store.AddUser("alice", false)
	batch := uuid.New()
	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	_, err = l.RecordVotes(ctx, id, []int64{brand}, day, batch)
	require.NoError(t, err)
	_, err = acc.AwardPoints(ctx, id, 3, points.ReasonVoteBatch, batch)
	require.NoError(t, err)

	admin := auth.Principal{UserID: store.AddUser("root", true), Admin: true}

	_, err = svc.Delete(ctx, auth.Principal{UserID: id}, id)
	assert.True(t, errors.Is(err, common.ErrAuthorizationDenied))

	ok, err := svc.Delete(ctx, admin, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, store.Votes())
	assert.Empty(t, store.Actions())
	assert.Empty(t, store.Batches())

	_, err = svc.Delete(ctx, admin, id)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

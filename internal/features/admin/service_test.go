package admin_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/brand-votes/internal/auth"
	"serotonyl.ru/brand-votes/internal/common"
	"serotonyl.ru/brand-votes/internal/config"
	"serotonyl.ru/brand-votes/internal/features/admin"
	"serotonyl.ru/brand-votes/internal/testutil/memstore"
)

func newService(t *testing.T, store *memstore.Store) *admin.Service {
	t.Helper()
	hash, err := admin.HashPassword("correct horse")
	require.NoError(t, err)
	return admin.NewService(store, store, &config.Config{
		AdminPasswordHash:       hash,
		AdminSessionTTL:         time.Hour,
		AdminMaxLoginAttempts:   3,
		AdminLoginLockoutPeriod: time.Hour,
	})
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := admin.HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, admin.VerifyPassword("s3cret", hash))
	assert.False(t, admin.VerifyPassword("S3cret", hash))
	assert.False(t, admin.VerifyPassword("s3cret", "not-a-hash"))
}

func TestLogin_IssuesElevatedSession(t *testing.T) {
	store := memstore.New()
	svc := newService(t, store)
	ctx := context.Background()
	id := store.AddUser("root", true)

	res, err := svc.Login(ctx, auth.Principal{UserID: id}, "correct horse")
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)

	p, err := auth.NewResolver(store).Resolve(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, id, p.UserID)
	assert.True(t, p.Admin)
}

func TestLogin_NonAdminDenied(t *testing.T) {
	store := memstore.New()
	svc := newService(t, store)
	id := store.AddUser("alice", false)

	_, err := svc.Login(context.Background(), auth.Principal{UserID: id}, "correct horse")
	assert.True(t, errors.Is(err, common.ErrAuthorizationDenied))

	_, err = svc.Login(context.Background(), auth.Principal{}, "correct horse")
	assert.True(t, errors.Is(err, common.ErrUnauthenticated))
}

func TestLogin_LockoutAfterFailedAttempts(t *testing.T) {
	store := memstore.New()
	svc := newService(t, store)
	ctx := context.Background()
	p := auth.Principal{UserID: store.AddUser("root", true)}

	for i := 0; i < 3; i++ {
		_, err := svc.Login(ctx, p, "wrong")
		require.True(t, errors.Is(err, common.ErrAuthorizationDenied))
	}

	_, err := svc.Login(ctx, p, "correct horse")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "слишком много попыток")
}

func TestCleanupSessions(t *testing.T) {
	store := memstore.New()
	svc := newService(t, store)
	id := store.AddUser("alice", false)
	store.AddSession("old", id, false, time.Now().Add(-time.Minute))
	store.AddSession("fresh", id, false, time.Now().Add(time.Hour))

	n, err := svc.CleanupSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

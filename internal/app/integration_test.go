package app

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/brand-votes/internal/auth"
	"serotonyl.ru/brand-votes/internal/common"
	"serotonyl.ru/brand-votes/internal/db/postgres"
	"serotonyl.ru/brand-votes/internal/features/catalog"
	"serotonyl.ru/brand-votes/internal/features/ledger"
	"serotonyl.ru/brand-votes/internal/features/points"
	"serotonyl.ru/brand-votes/internal/features/quota"
	"serotonyl.ru/brand-votes/internal/features/voting"
)

// Тесты ниже работают с настоящим PostgreSQL: DATABASE_URL указывает
// на пустую или тестовую базу, миграции накатываются автоматически.
// Каждый тест заводит своих пользователей, поэтому чистить таблицы не нужно.

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL не задан, тесты на PostgreSQL пропущены")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.RunMigrations(ctx, pool, migrations))
	return pool
}

func addUser(t *testing.T, pool *pgxpool.Pool) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (username) VALUES ($1) RETURNING id`,
		"it-"+uuid.NewString()[:8],
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func addBrand(t *testing.T, pool *pgxpool.Pool, name string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO brands (name) VALUES ($1) RETURNING id`, name,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// gatedPolicy держит транзакцию открытой после вставки голосов:
// Amount вызывается между RecordVotes и AwardPoints.
type gatedPolicy struct {
	points.Policy
	entered chan struct{}
	release chan struct{}
	once    atomic.Bool
}

func (g *gatedPolicy) Amount(n int) int64 {
	if g.once.CompareAndSwap(false, true) {
		close(g.entered)
		<-g.release
	}
	return g.Policy.Amount(n)
}

func newVotingService(t *testing.T, pool *pgxpool.Pool, policy points.Policy) *voting.Service {
	t.Helper()
	ledgerRepo := ledger.NewRepository(pool)
	brands, err := catalog.NewService(catalog.NewRepository(pool), 64)
	require.NoError(t, err)
	tx := postgres.NewTxRunner(pool)
	return voting.NewService(voting.Deps{
		Tx:     tx,
		Quota:  quota.NewEnforcer(ledgerRepo),
		Ledger: ledger.NewLedger(ledgerRepo, brands, 3),
		Points: points.NewAccount(points.NewRepository(pool), tx),
		Policy: policy,
		Brands: brands,
	})
}

// waitForLockWaiters ждёт, пока n запросов встанут в очередь на блокировку.
func waitForLockWaiters(t *testing.T, pool *pgxpool.Pool, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		var waiting int
		err := pool.QueryRow(context.Background(), `
			SELECT count(*) FROM pg_stat_activity
			WHERE datname = current_database() AND wait_event_type = 'Lock'
		`).Scan(&waiting)
		return err == nil && waiting >= n
	}, 10*time.Second, 20*time.Millisecond)
}

type castOutcome struct {
	res *voting.CastResult
	err error
}

// raceCasts запускает первую попытку, останавливает её внутри транзакции
// после вставки пакета, пускает вторую и отпускает первую, когда вторая
// упрётся в ограничение уникальности.
func raceCasts(t *testing.T, pool *pgxpool.Pool, p auth.Principal, brandIDs []int64, firstOpts, secondOpts voting.CastOptions) (first, second castOutcome) {
	t.Helper()
	weights := points.PositionWeights{Weights: []int64{3, 2, 1}, Default: 1}
	gate := &gatedPolicy{Policy: weights, entered: make(chan struct{}), release: make(chan struct{})}
	holder := newVotingService(t, pool, gate)
	racer := newVotingService(t, pool, weights)
	ctx := context.Background()

	firstDone := make(chan castOutcome, 1)
	go func() {
		res, err := holder.VoteForBrands(ctx, p, brandIDs, firstOpts)
		firstDone <- castOutcome{res, err}
	}()
	select {
	case <-gate.entered:
	case o := <-firstDone:
		t.Fatalf("первая попытка завершилась раньше времени: %v", o.err)
	}

	secondDone := make(chan castOutcome, 1)
	go func() {
		res, err := racer.VoteForBrands(ctx, p, brandIDs, secondOpts)
		secondDone <- castOutcome{res, err}
	}()
	waitForLockWaiters(t, pool, 1)
	close(gate.release)

	return <-firstDone, <-secondDone
}

func TestPostgres_ConcurrentCastsOneCommit(t *testing.T) {
	pool := testPool(t)
	a := addBrand(t, pool, "A")
	b := addBrand(t, pool, "B")
	p := auth.Principal{UserID: addUser(t, pool)}

	first, second := raceCasts(t, pool, p, []int64{a, b}, voting.CastOptions{}, voting.CastOptions{})

	require.NoError(t, first.err)
	assert.Equal(t, int64(5), first.res.Balance)
	require.Error(t, second.err)
	assert.True(t, errors.Is(second.err, common.ErrQuotaExceeded))
	assert.True(t, errors.Is(second.err, ledger.ErrUserDayTaken))

	var batches, votes, actions int
	ctx := context.Background()
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM vote_batches WHERE user_id = $1`, p.UserID).Scan(&batches))
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM votes WHERE user_id = $1`, p.UserID).Scan(&votes))
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM point_actions WHERE user_id = $1`, p.UserID).Scan(&actions))
	assert.Equal(t, 1, batches)
	assert.Equal(t, 2, votes)
	assert.Equal(t, 1, actions)
}

func TestPostgres_ConcurrentSameKeyReplays(t *testing.T) {
	pool := testPool(t)
	a := addBrand(t, pool, "A")
	p := auth.Principal{UserID: addUser(t, pool)}
	opts := voting.CastOptions{BatchID: uuid.New()}

	first, second := raceCasts(t, pool, p, []int64{a}, opts, opts)

	require.NoError(t, first.err)
	require.NoError(t, second.err)
	assert.False(t, first.res.Replayed)
	assert.True(t, second.res.Replayed)
	assert.Equal(t, first.res.Points, second.res.Points)
	assert.Equal(t, first.res.Balance, second.res.Balance)

	var actions int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT count(*) FROM point_actions WHERE batch_id = $1`, opts.BatchID).Scan(&actions))
	assert.Equal(t, 1, actions)
}

func TestPostgres_InsertBatchConstraints(t *testing.T) {
	pool := testPool(t)
	repo := ledger.NewRepository(pool)
	ctx := context.Background()
	userID := addUser(t, pool)
	day := common.VoteDay(time.Now())

	batch := &ledger.Batch{ID: uuid.New(), UserID: userID, Date: day}
	require.NoError(t, repo.InsertBatch(ctx, batch))
	assert.False(t, batch.CreatedAt.IsZero())

	err := repo.InsertBatch(ctx, &ledger.Batch{ID: uuid.New(), UserID: userID, Date: day})
	assert.ErrorIs(t, err, ledger.ErrUserDayTaken)

	err = repo.InsertBatch(ctx, &ledger.Batch{ID: batch.ID, UserID: userID, Date: day.AddDate(0, 0, -1)})
	assert.ErrorIs(t, err, ledger.ErrBatchIDTaken)

	err = repo.InsertBatch(ctx, &ledger.Batch{ID: uuid.New(), UserID: -1, Date: day})
	assert.ErrorIs(t, err, ledger.ErrUnknownUser)

	exists, err := repo.BatchExists(ctx, userID, day)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPostgres_ReconcileFixesDrift(t *testing.T) {
	pool := testPool(t)
	a := addBrand(t, pool, "A")
	p := auth.Principal{UserID: addUser(t, pool)}
	ctx := context.Background()

	svc := newVotingService(t, pool, points.PositionWeights{Weights: []int64{3, 2, 1}, Default: 1})
	_, err := svc.VoteForBrands(ctx, p, []int64{a}, voting.CastOptions{})
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `UPDATE point_balances SET balance = 100 WHERE user_id = $1`, p.UserID)
	require.NoError(t, err)

	repo := points.NewRepository(pool)
	account := points.NewAccount(repo, postgres.NewTxRunner(pool))

	drifts, err := repo.ListBalanceDrift(ctx)
	require.NoError(t, err)
	assert.Contains(t, drifts, points.Drift{UserID: p.UserID, Cached: 100, Actual: 3})

	fixed, err := account.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, fixed, 1)

	bal, err := account.Balance(ctx, p.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), bal.Balance)
}

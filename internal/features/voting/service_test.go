package voting_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/brand-votes/internal/auth"
	"serotonyl.ru/brand-votes/internal/common"
	"serotonyl.ru/brand-votes/internal/events"
	"serotonyl.ru/brand-votes/internal/features/catalog"
	"serotonyl.ru/brand-votes/internal/features/ledger"
	"serotonyl.ru/brand-votes/internal/features/points"
	"serotonyl.ru/brand-votes/internal/features/quota"
	"serotonyl.ru/brand-votes/internal/features/ranking"
	"serotonyl.ru/brand-votes/internal/features/voting"
	"serotonyl.ru/brand-votes/internal/testutil/memstore"
)

var noon = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.BatchCommitted
}

func (p *recordingPublisher) PublishBatch(_ context.Context, e events.BatchCommitted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type countingRankings struct{ n atomic.Int32 }

func (c *countingRankings) Invalidate(context.Context, time.Time) { c.n.Add(1) }

type env struct {
	store    *memstore.Store
	svc      *voting.Service
	account  *points.Account
	enforcer *quota.Enforcer
	pub      *recordingPublisher
	rankings *countingRankings
	clock    time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memstore.New()
	brands, err := catalog.NewService(store, 64)
	require.NoError(t, err)

	e := &env{store: store, clock: noon, pub: &recordingPublisher{}, rankings: &countingRankings{}}
	e.enforcer = quota.NewEnforcer(store)
	e.account = points.NewAccount(store, store)
	e.svc = voting.NewService(voting.Deps{
		Tx:        store,
		Quota:     e.enforcer,
		Ledger:    ledger.NewLedger(store, brands, 3),
		Points:    e.account,
		Policy:    points.PositionWeights{Weights: []int64{3, 2, 1}, Default: 1},
		Brands:    brands,
		Rankings:  e.rankings,
		Publisher: e.pub,
	}).WithClock(func() time.Time { return e.clock })
	return e
}

func (e *env) balance(t *testing.T, userID int64) int64 {
	t.Helper()
	b, err := e.account.Balance(context.Background(), userID)
	require.NoError(t, err)
	return b.Balance
}

func TestVoteForBrands_Scenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	x := e.store.AddBrand("BrandX")
	y := e.store.AddBrand("BrandY")
	u1 := auth.Principal{UserID: e.store.AddUser("u1", false)}

	res, err := e.svc.VoteForBrands(ctx, u1, []int64{x, y}, voting.CastOptions{})
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, int64(5), res.Points)
	assert.Equal(t, int64(5), res.Balance)
	require.Len(t, res.Votes, 2)
	assert.Equal(t, "BrandX", res.Votes[0].Brand.Name)
	assert.Equal(t, "2026-10-19", res.Votes[0].Date)

	got, err := e.svc.GetUserVotes(ctx, u1.UserID, noon)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, x, got[0].Brand.ID)
	assert.Equal(t, 1, got[0].Position)
	assert.Equal(t, y, got[1].Brand.ID)
	assert.Equal(t, 2, got[1].Position)

	ok, err := e.enforcer.CanVote(ctx, u1.UserID, noon)
	require.NoError(t, err)
	assert.False(t, ok)

	// Второй пакет в тот же день
	_, err = e.svc.VoteForBrands(ctx, u1, []int64{y}, voting.CastOptions{})
	assert.True(t, errors.Is(err, common.ErrQuotaExceeded))
	assert.Len(t, e.store.Votes(), 2)
	assert.Len(t, e.store.Actions(), 1)
	assert.Equal(t, int64(5), e.balance(t, u1.UserID))

	assert.Len(t, e.pub.events, 1)
	assert.Equal(t, []int64{x, y}, e.pub.events[0].BrandIDs)
	assert.Equal(t, int32(1), e.rankings.n.Load())

	// Новый UTC-день снимает квоту
	e.clock = noon.Add(12 * time.Hour)
	res, err = e.svc.VoteForBrands(ctx, u1, []int64{y}, voting.CastOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(8), res.Balance)
}

func TestVoteForBrands_Ordering(t *testing.T) {
	e := newEnv(t)
	a := e.store.AddBrand("A")
	b := e.store.AddBrand("B")
	c := e.store.AddBrand("C")
	p := auth.Principal{UserID: e.store.AddUser("u1", false)}

	res, err := e.svc.VoteForBrands(context.Background(), p, []int64{b, a, c}, voting.CastOptions{})
	require.NoError(t, err)

	positions := map[int64]int{}
	for _, v := range res.Votes {
		positions[v.Brand.ID] = v.Position
	}
	assert.Equal(t, map[int64]int{b: 1, a: 2, c: 3}, positions)
	assert.Equal(t, int64(6), res.Points)
}

func TestVoteForBrands_DuplicateBrandPersistsNothing(t *testing.T) {
	e := newEnv(t)
	a := e.store.AddBrand("A")
	p := auth.Principal{UserID: e.store.AddUser("u1", false)}

	_, err := e.svc.VoteForBrands(context.Background(), p, []int64{a, a}, voting.CastOptions{})
	assert.True(t, errors.Is(err, common.ErrValidation))
	assert.Empty(t, e.store.Batches())
	assert.Empty(t, e.store.Votes())
	assert.Empty(t, e.store.Actions())
	assert.Zero(t, e.balance(t, p.UserID))
}

func TestVoteForBrands_UnknownBrand(t *testing.T) {
	e := newEnv(t)
	a := e.store.AddBrand("A")
	p := auth.Principal{UserID: e.store.AddUser("u1", false)}

	_, err := e.svc.VoteForBrands(context.Background(), p, []int64{a, 12345}, voting.CastOptions{})
	assert.True(t, errors.Is(err, common.ErrInvalidBrandReference))
	assert.Empty(t, e.store.Batches())
}

func TestVoteForBrands_Anonymous(t *testing.T) {
	e := newEnv(t)
	a := e.store.AddBrand("A")

	_, err := e.svc.VoteForBrands(context.Background(), auth.Principal{}, []int64{a}, voting.CastOptions{})
	assert.True(t, errors.Is(err, common.ErrUnauthenticated))
}

func TestVoteForBrands_ConcurrentSameUserOneCommit(t *testing.T) {
	e := newEnv(t)
	a := e.store.AddBrand("A")
	b := e.store.AddBrand("B")
	p := auth.Principal{UserID: e.store.AddUser("u1", false)}

	const workers = 8
	var committed, rejected atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := e.svc.VoteForBrands(context.Background(), p, []int64{a, b}, voting.CastOptions{})
			switch {
			case err == nil:
				committed.Add(1)
			case errors.Is(err, common.ErrQuotaExceeded):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), committed.Load())
	assert.Equal(t, int32(workers-1), rejected.Load())
	assert.Len(t, e.store.Batches(), 1)
	assert.Len(t, e.store.Votes(), 2)
	assert.Len(t, e.store.Actions(), 1)
	assert.Equal(t, int64(5), e.balance(t, p.UserID))
}

func TestVoteForBrands_PointFailureRollsBackVotes(t *testing.T) {
	e := newEnv(t)
	a := e.store.AddBrand("A")
	p := auth.Principal{UserID: e.store.AddUser("u1", false)}

	e.store.FailOn("InsertAction", errors.New("connection reset by peer"))

	_, err := e.svc.VoteForBrands(context.Background(), p, []int64{a}, voting.CastOptions{})
	require.Error(t, err)
	assert.Equal(t, common.KindInternal, common.KindOf(err))
	assert.NotContains(t, err.(*common.Error).Message, "connection reset")

	// Ни голосов без начисления, ни начисления без голосов
	assert.Empty(t, e.store.Batches())
	assert.Empty(t, e.store.Votes())
	assert.Empty(t, e.store.Actions())

	ok, err := e.enforcer.CanVote(context.Background(), p.UserID, noon)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = e.svc.VoteForBrands(context.Background(), p, []int64{a}, voting.CastOptions{})
	assert.NoError(t, err)
}

func TestVoteForBrands_IdempotentReplay(t *testing.T) {
	e := newEnv(t)
	a := e.store.AddBrand("A")
	b := e.store.AddBrand("B")
	p := auth.Principal{UserID: e.store.AddUser("u1", false)}
	key := uuid.New()
	ctx := context.Background()

	first, err := e.svc.VoteForBrands(ctx, p, []int64{a, b}, voting.CastOptions{BatchID: key})
	require.NoError(t, err)

	again, err := e.svc.VoteForBrands(ctx, p, []int64{a, b}, voting.CastOptions{BatchID: key})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.BatchID, again.BatchID)
	assert.Equal(t, first.Balance, again.Balance)
	assert.Equal(t, first.Votes, again.Votes)

	assert.Len(t, e.store.Actions(), 1)
	assert.Len(t, e.pub.events, 1)

	// Чужой ключ
	other := auth.Principal{UserID: e.store.AddUser("u2", false)}
	_, err = e.svc.VoteForBrands(ctx, other, []int64{a}, voting.CastOptions{BatchID: key})
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestVoteForBrands_SameKeyLosesOnBatchID(t *testing.T) {
	e := newEnv(t)
	a := e.store.AddBrand("A")
	b := e.store.AddBrand("B")
	p := auth.Principal{UserID: e.store.AddUser("u1", false)}
	key := uuid.New()
	ctx := context.Background()

	first, err := e.svc.VoteForBrands(ctx, p, []int64{a, b}, voting.CastOptions{BatchID: key})
	require.NoError(t, err)

	// Второй запрос читал до коммита первого и дошёл до вставки заголовка
	e.store.StaleRead("GetBatch", 1)
	e.store.StaleRead("BatchExists", 1)

	again, err := e.svc.VoteForBrands(ctx, p, []int64{a, b}, voting.CastOptions{BatchID: key})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.BatchID, again.BatchID)
	assert.Equal(t, first.Points, again.Points)
	assert.Equal(t, first.Balance, again.Balance)
	assert.Equal(t, first.Votes, again.Votes)

	assert.Len(t, e.store.Batches(), 1)
	assert.Len(t, e.store.Votes(), 2)
	assert.Len(t, e.store.Actions(), 1)
	assert.Len(t, e.pub.events, 1)
	assert.Equal(t, int64(5), e.balance(t, p.UserID))
}

func TestVoteForBrands_SameKeyLosesOnQuota(t *testing.T) {
	e := newEnv(t)
	a := e.store.AddBrand("A")
	p := auth.Principal{UserID: e.store.AddUser("u1", false)}
	key := uuid.New()
	ctx := context.Background()

	first, err := e.svc.VoteForBrands(ctx, p, []int64{a}, voting.CastOptions{BatchID: key})
	require.NoError(t, err)

	// Пакет не виден по ключу, но квота дня уже занята
	e.store.StaleRead("GetBatch", 1)

	again, err := e.svc.VoteForBrands(ctx, p, []int64{a}, voting.CastOptions{BatchID: key})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Balance, again.Balance)
	assert.Len(t, e.store.Actions(), 1)
}

func TestVoteForBrands_OtherKeyStillQuotaExceeded(t *testing.T) {
	e := newEnv(t)
	a := e.store.AddBrand("A")
	p := auth.Principal{UserID: e.store.AddUser("u1", false)}
	ctx := context.Background()

	_, err := e.svc.VoteForBrands(ctx, p, []int64{a}, voting.CastOptions{BatchID: uuid.New()})
	require.NoError(t, err)

	_, err = e.svc.VoteForBrands(ctx, p, []int64{a}, voting.CastOptions{BatchID: uuid.New()})
	assert.True(t, errors.Is(err, common.ErrQuotaExceeded))
	assert.Len(t, e.store.Batches(), 1)
}

func TestVoteForBrands_ReplayKeepsRecordedPoints(t *testing.T) {
	e := newEnv(t)
	a := e.store.AddBrand("A")
	b := e.store.AddBrand("B")
	p := auth.Principal{UserID: e.store.AddUser("u1", false)}
	key := uuid.New()
	ctx := context.Background()

	first, err := e.svc.VoteForBrands(ctx, p, []int64{a, b}, voting.CastOptions{BatchID: key})
	require.NoError(t, err)
	require.Equal(t, int64(5), first.Points)

	// Политику поменяли между попыткой и повтором
	brands, err := catalog.NewService(e.store, 64)
	require.NoError(t, err)
	svc := voting.NewService(voting.Deps{
		Tx:     e.store,
		Quota:  e.enforcer,
		Ledger: ledger.NewLedger(e.store, brands, 3),
		Points: e.account,
		Policy: points.PositionWeights{Weights: []int64{10, 10, 10}, Default: 10},
		Brands: brands,
	}).WithClock(func() time.Time { return noon })

	again, err := svc.VoteForBrands(ctx, p, []int64{a, b}, voting.CastOptions{BatchID: key})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, int64(5), again.Points)
	assert.Equal(t, int64(5), again.Balance)
}

func TestVoteForBrands_ConstraintRejectsStaleQuotaCheck(t *testing.T) {
	e := newEnv(t)
	a := e.store.AddBrand("A")
	b := e.store.AddBrand("B")
	p := auth.Principal{UserID: e.store.AddUser("u1", false)}

	const workers = 6
	// Ни одна проверка квоты не видит чужой пакет: проигравших отсекает вставка заголовка
	e.store.StaleRead("BatchExists", workers)

	var committed, rejected atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := e.svc.VoteForBrands(context.Background(), p, []int64{a, b}, voting.CastOptions{})
			switch {
			case err == nil:
				committed.Add(1)
			case errors.Is(err, common.ErrQuotaExceeded) && errors.Is(err, ledger.ErrUserDayTaken):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), committed.Load())
	assert.Equal(t, int32(workers-1), rejected.Load())
	assert.Len(t, e.store.Batches(), 1)
	assert.Len(t, e.store.Votes(), 2)
	assert.Len(t, e.store.Actions(), 1)
	assert.Equal(t, int64(5), e.balance(t, p.UserID))
}

type stuckPublisher struct {
	err chan error
}

func (p *stuckPublisher) PublishBatch(ctx context.Context, _ events.BatchCommitted) error {
	<-ctx.Done()
	p.err <- ctx.Err()
	return ctx.Err()
}

func (p *stuckPublisher) Close() error { return nil }

func TestVoteForBrands_PublishTimeout(t *testing.T) {
	store := memstore.New()
	brands, err := catalog.NewService(store, 64)
	require.NoError(t, err)
	pub := &stuckPublisher{err: make(chan error, 1)}
	svc := voting.NewService(voting.Deps{
		Tx:             store,
		Quota:          quota.NewEnforcer(store),
		Ledger:         ledger.NewLedger(store, brands, 3),
		Points:         points.NewAccount(store, store),
		Policy:         points.PositionWeights{Default: 1},
		Brands:         brands,
		Publisher:      pub,
		PublishTimeout: 50 * time.Millisecond,
	}).WithClock(func() time.Time { return noon })

	a := store.AddBrand("A")
	p := auth.Principal{UserID: store.AddUser("u1", false)}

	started := time.Now()
	res, err := svc.VoteForBrands(context.Background(), p, []int64{a}, voting.CastOptions{})
	require.NoError(t, err)
	assert.Less(t, time.Since(started), 2*time.Second)
	assert.Equal(t, int64(1), res.Balance)
	assert.ErrorIs(t, <-pub.err, context.DeadlineExceeded)
	assert.Len(t, store.Batches(), 1)
}

func TestVoteForBrands_UpdatesRanking(t *testing.T) {
	e := newEnv(t)
	a := e.store.AddBrand("A")
	b := e.store.AddBrand("B")
	agg := ranking.NewAggregator(e.store, nil)

	for _, name := range []string{"u1", "u2"} {
		p := auth.Principal{UserID: e.store.AddUser(name, false)}
		_, err := e.svc.VoteForBrands(context.Background(), p, []int64{b, a}, voting.CastOptions{})
		require.NoError(t, err)
	}
	p := auth.Principal{UserID: e.store.AddUser("u3", false)}
	_, err := e.svc.VoteForBrands(context.Background(), p, []int64{b}, voting.CastOptions{})
	require.NoError(t, err)

	tally, err := agg.Tally(context.Background(), noon, nil)
	require.NoError(t, err)
	assert.Equal(t, []ranking.BrandCount{{BrandID: b, Votes: 3}, {BrandID: a, Votes: 2}}, tally)
}

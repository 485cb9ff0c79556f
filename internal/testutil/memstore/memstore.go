// Package memstore — хранилище в памяти для тестов сервисов.
//
// Store реализует интерфейсы хранилищ всех фич и postgres.Transactor.
// Транзакции выполняются по одной (как строки под блокировкой в PostgreSQL),
// ошибка внутри WithTx возвращает данные к снимку на момент начала.
// Ограничения повторяют миграции: UNIQUE(user_id, vote_date) у пакетов,
// UNIQUE(batch_id) у начислений, внешние ключи на пользователей и бренды.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/brand-votes/internal/auth"
	"serotonyl.ru/brand-votes/internal/features/admin"
	"serotonyl.ru/brand-votes/internal/features/catalog"
	"serotonyl.ru/brand-votes/internal/features/ledger"
	"serotonyl.ru/brand-votes/internal/features/members"
	"serotonyl.ru/brand-votes/internal/features/points"
	"serotonyl.ru/brand-votes/internal/features/ranking"
)

type userDay struct {
	userID int64
	day    time.Time
}

type attempt struct {
	userID  int64
	success bool
	at      time.Time
}

type data struct {
	users     map[int64]members.User
	brands    map[int64]catalog.Brand
	batches   map[uuid.UUID]ledger.Batch
	userDays  map[userDay]uuid.UUID
	votes     []ledger.VoteRecord
	actions   []points.PointAction
	balances  map[int64]points.Balance
	sessions  map[string]admin.Session
	attempts  []attempt
	snapshots map[time.Time][]ranking.BrandCount
	seq       int64
}

func (d *data) clone() *data {
	c := &data{
		users:     make(map[int64]members.User, len(d.users)),
		brands:    make(map[int64]catalog.Brand, len(d.brands)),
		batches:   make(map[uuid.UUID]ledger.Batch, len(d.batches)),
		userDays:  make(map[userDay]uuid.UUID, len(d.userDays)),
		votes:     append([]ledger.VoteRecord(nil), d.votes...),
		actions:   append([]points.PointAction(nil), d.actions...),
		balances:  make(map[int64]points.Balance, len(d.balances)),
		sessions:  make(map[string]admin.Session, len(d.sessions)),
		attempts:  append([]attempt(nil), d.attempts...),
		snapshots: make(map[time.Time][]ranking.BrandCount, len(d.snapshots)),
		seq:       d.seq,
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.brands {
		c.brands[k] = v
	}
	for k, v := range d.batches {
		c.batches[k] = v
	}
	for k, v := range d.userDays {
		c.userDays[k] = v
	}
	for k, v := range d.balances {
		c.balances[k] = v
	}
	for k, v := range d.sessions {
		c.sessions[k] = v
	}
	for k, v := range d.snapshots {
		c.snapshots[k] = append([]ranking.BrandCount(nil), v...)
	}
	return c
}

// Store — хранилище в памяти.
type Store struct {
	txMu sync.Mutex // Одна транзакция за раз
	mu   sync.Mutex // Защищает d и failures
	d    *data

	failures map[string]error
	stale    map[string]int
	now      func() time.Time
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		d: &data{
			users:     map[int64]members.User{},
			brands:    map[int64]catalog.Brand{},
			batches:   map[uuid.UUID]ledger.Batch{},
			userDays:  map[userDay]uuid.UUID{},
			balances:  map[int64]points.Balance{},
			sessions:  map[string]admin.Session{},
			snapshots: map[time.Time][]ranking.BrandCount{},
		},
		failures: map[string]error{},
		stale:    map[string]int{},
		now:      time.Now,
	}
}

// FailOn заставляет метод method вернуть err при следующем вызове.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

// fail вызывается под s.mu.
func (s *Store) fail(method string) error {
	if err, ok := s.failures[method]; ok {
		delete(s.failures, method)
		return err
	}
	return nil
}

// StaleRead заставляет следующие n вызовов method не видеть строку,
// как чтение в READ COMMITTED до коммита соседней транзакции.
// Поддерживаются GetBatch и BatchExists.
func (s *Store) StaleRead(method string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale[method] += n
}

// staleLocked вызывается под s.mu.
func (s *Store) staleLocked(method string) bool {
	if s.stale[method] > 0 {
		s.stale[method]--
		return true
	}
	return false
}

func (s *Store) nextID() int64 {
	s.d.seq++
	return s.d.seq
}

// --- Транзакции ---

type txKey struct{}

// WithTx выполняет fn атомарно. Вложенный вызов присоединяется к внешней транзакции.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.d.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.d = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// --- Наполнение для тестов ---

// AddUser добавляет пользователя и возвращает его id.
func (s *Store) AddUser(username string, isAdmin bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID()
	now := s.now()
	s.d.users[id] = members.User{ID: id, Username: username, IsAdmin: isAdmin, CreatedAt: now, UpdatedAt: now}
	return id
}

// AddBrand добавляет бренд и возвращает его id.
func (s *Store) AddBrand(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID()
	s.d.brands[id] = catalog.Brand{
		ID:        id,
		Name:      name,
		URL:       "https://" + strings.ToLower(name) + ".example",
		ImageURL:  "https://img.example/" + strings.ToLower(name) + ".png",
		CreatedAt: s.now(),
	}
	return id
}

// RemoveBrand удаляет бренд из каталога.
func (s *Store) RemoveBrand(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.d.brands, id)
}

// AddSession регистрирует сессию с токеном token.
func (s *Store) AddSession(token string, userID int64, elevated bool, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash := auth.HashToken(token)
	s.d.sessions[hash] = admin.Session{
		ID: s.nextID(), UserID: userID, TokenHash: hash, Elevated: elevated,
		CreatedAt: s.now(), ExpiresAt: expiresAt,
	}
}

// CorruptBalance записывает в кеш баланса произвольное значение.
func (s *Store) CorruptBalance(userID, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.d.balances[userID]
	b.UserID = userID
	b.Balance = balance
	s.d.balances[userID] = b
}

// Votes возвращает копию всех голосов.
func (s *Store) Votes() []ledger.VoteRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.VoteRecord(nil), s.d.votes...)
}

// Actions возвращает копию всех начислений.
func (s *Store) Actions() []points.PointAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]points.PointAction(nil), s.d.actions...)
}

// Batches возвращает все заголовки пакетов.
func (s *Store) Batches() []ledger.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.Batch, 0, len(s.d.batches))
	for _, b := range s.d.batches {
		out = append(out, b)
	}
	return out
}

// Snapshot возвращает сохранённый снимок рейтинга дня.
func (s *Store) Snapshot(day time.Time) []ranking.BrandCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.snapshots[day]
}

// --- ledger.Store, quota.Store ---

func (s *Store) BatchExists(_ context.Context, userID int64, day time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("BatchExists"); err != nil {
		return false, err
	}
	if s.staleLocked("BatchExists") {
		return false, nil
	}
	_, ok := s.d.userDays[userDay{userID, day}]
	return ok, nil
}

func (s *Store) InsertBatch(_ context.Context, b *ledger.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("InsertBatch"); err != nil {
		return err
	}
	if _, ok := s.d.batches[b.ID]; ok {
		return ledger.ErrBatchIDTaken
	}
	if _, ok := s.d.userDays[userDay{b.UserID, b.Date}]; ok {
		return ledger.ErrUserDayTaken
	}
	if _, ok := s.d.users[b.UserID]; !ok {
		return ledger.ErrUnknownUser
	}
	b.CreatedAt = s.now()
	s.d.batches[b.ID] = *b
	s.d.userDays[userDay{b.UserID, b.Date}] = b.ID
	return nil
}

func (s *Store) InsertVotes(_ context.Context, records []ledger.VoteRecord) ([]ledger.VoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("InsertVotes"); err != nil {
		return nil, err
	}
	out := make([]ledger.VoteRecord, 0, len(records))
	for _, r := range records {
		if _, ok := s.d.brands[r.BrandID]; !ok {
			return nil, ledger.ErrUnknownBrand
		}
		r.ID = s.nextID()
		r.CreatedAt = s.now()
		out = append(out, r)
	}
	s.d.votes = append(s.d.votes, out...)
	return out, nil
}

func (s *Store) GetBatch(_ context.Context, batchID uuid.UUID) (*ledger.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staleLocked("GetBatch") {
		return nil, nil
	}
	b, ok := s.d.batches[batchID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *Store) ListBatchVotes(_ context.Context, batchID uuid.UUID) ([]ledger.VoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.VoteRecord
	for _, v := range s.d.votes {
		if v.BatchID == batchID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *Store) ListUserVotes(_ context.Context, userID int64, day time.Time) ([]ledger.VoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.VoteRecord
	for _, v := range s.d.votes {
		if v.UserID == userID && v.Date.Equal(day) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// --- points.Store ---

func (s *Store) LockBalance(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("LockBalance"); err != nil {
		return 0, err
	}
	b, ok := s.d.balances[userID]
	if !ok {
		b = points.Balance{UserID: userID, UpdatedAt: s.now()}
		s.d.balances[userID] = b
	}
	return b.Balance, nil
}

func (s *Store) ActionByBatch(_ context.Context, batchID uuid.UUID) (*points.PointAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.d.actions {
		if a.BatchID == batchID {
			a := a
			return &a, nil
		}
	}
	return nil, nil
}

func (s *Store) InsertAction(_ context.Context, a *points.PointAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("InsertAction"); err != nil {
		return err
	}
	for _, existing := range s.d.actions {
		if existing.BatchID == a.BatchID {
			return points.ErrDuplicateBatch
		}
	}
	a.ID = s.nextID()
	a.CreatedAt = s.now()
	s.d.actions = append(s.d.actions, *a)
	return nil
}

func (s *Store) CreditBalance(_ context.Context, userID, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreditBalance"); err != nil {
		return err
	}
	b := s.d.balances[userID]
	b.UserID = userID
	b.Balance += amount
	b.TotalEarned += amount
	b.UpdatedAt = s.now()
	s.d.balances[userID] = b
	return nil
}

func (s *Store) GetBalance(_ context.Context, userID int64) (*points.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.d.balances[userID]
	if !ok {
		b = points.Balance{UserID: userID}
	}
	return &b, nil
}

func (s *Store) SumActions(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sumLocked(userID), nil
}

func (s *Store) sumLocked(userID int64) int64 {
	var sum int64
	for _, a := range s.d.actions {
		if a.UserID == userID {
			sum += a.Amount
		}
	}
	return sum
}

func (s *Store) SetBalance(_ context.Context, userID, balance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.balances[userID] = points.Balance{UserID: userID, Balance: balance, TotalEarned: balance, UpdatedAt: s.now()}
	return nil
}

func (s *Store) ListBalanceDrift(_ context.Context) ([]points.Drift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := map[int64]struct{}{}
	for id := range s.d.balances {
		users[id] = struct{}{}
	}
	for _, a := range s.d.actions {
		users[a.UserID] = struct{}{}
	}
	var out []points.Drift
	for id := range users {
		cached, actual := s.d.balances[id].Balance, s.sumLocked(id)
		if cached != actual {
			out = append(out, points.Drift{UserID: id, Cached: cached, Actual: actual})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *Store) ListActions(_ context.Context, userID int64, limit int) ([]points.PointAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []points.PointAction
	for i := len(s.d.actions) - 1; i >= 0 && len(out) < limit; i-- {
		if s.d.actions[i].UserID == userID {
			out = append(out, s.d.actions[i])
		}
	}
	return out, nil
}

// --- ranking.Store ---

func (s *Store) CountVotes(_ context.Context, from, to time.Time, brandIDs []int64) ([]ranking.BrandCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CountVotes"); err != nil {
		return nil, err
	}
	filter := map[int64]struct{}{}
	for _, id := range brandIDs {
		filter[id] = struct{}{}
	}
	counts := map[int64]int64{}
	for _, v := range s.d.votes {
		if v.Date.Before(from) || v.Date.After(to) {
			continue
		}
		if _, ok := filter[v.BrandID]; len(filter) > 0 && !ok {
			continue
		}
		counts[v.BrandID]++
	}
	out := make([]ranking.BrandCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, ranking.BrandCount{BrandID: id, Votes: n})
	}
	ranking.SortTally(out)
	return out, nil
}

func (s *Store) SaveSnapshot(_ context.Context, day time.Time, counts []ranking.BrandCount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.snapshots[day] = append([]ranking.BrandCount(nil), counts...)
	return nil
}

// --- catalog.Store ---

func (s *Store) GetBrand(_ context.Context, id int64) (*catalog.Brand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.d.brands[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *Store) SearchBrands(_ context.Context, search string, offset, limit int) ([]catalog.Brand, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []catalog.Brand
	needle := strings.ToLower(search)
	for _, b := range s.d.brands {
		if strings.Contains(strings.ToLower(b.Name), needle) {
			matched = append(matched, b)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].ID < matched[j].ID
	})
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (s *Store) ExistingBrandIDs(_ context.Context, ids []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	for _, id := range ids {
		if _, ok := s.d.brands[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Store) GetBrands(_ context.Context, ids []int64) ([]catalog.Brand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []catalog.Brand
	for _, id := range ids {
		if b, ok := s.d.brands[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// --- members.Store ---

func (s *Store) GetUser(_ context.Context, id int64) (*members.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.d.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) UpdateUser(_ context.Context, id int64, mask members.UpdateMask) (*members.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.d.users[id]
	if !ok {
		return nil, nil
	}
	if mask.Username != nil {
		for otherID, other := range s.d.users {
			if otherID != id && other.Username == *mask.Username {
				return nil, members.ErrUsernameTaken
			}
		}
		u.Username = *mask.Username
	}
	if mask.IsAdmin != nil {
		u.IsAdmin = *mask.IsAdmin
	}
	u.UpdatedAt = s.now()
	s.d.users[id] = u
	return &u, nil
}

// DeleteUser удаляет пользователя и каскадом всё, что на него ссылается.
func (s *Store) DeleteUser(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.users[id]; !ok {
		return false, nil
	}
	delete(s.d.users, id)
	delete(s.d.balances, id)
	for bid, b := range s.d.batches {
		if b.UserID == id {
			delete(s.d.batches, bid)
			delete(s.d.userDays, userDay{b.UserID, b.Date})
		}
	}
	votes := s.d.votes[:0]
	for _, v := range s.d.votes {
		if v.UserID != id {
			votes = append(votes, v)
		}
	}
	s.d.votes = votes
	actions := s.d.actions[:0]
	for _, a := range s.d.actions {
		if a.UserID != id {
			actions = append(actions, a)
		}
	}
	s.d.actions = actions
	for h, sess := range s.d.sessions {
		if sess.UserID == id {
			delete(s.d.sessions, h)
		}
	}
	return true, nil
}

// --- admin.Store, auth.SessionStore ---

func (s *Store) CreateSession(_ context.Context, sess *admin.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.ID = s.nextID()
	sess.CreatedAt = s.now()
	s.d.sessions[sess.TokenHash] = *sess
	return nil
}

func (s *Store) SessionByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.d.sessions[tokenHash]
	if !ok {
		return nil, nil
	}
	u, ok := s.d.users[sess.UserID]
	if !ok {
		return nil, nil
	}
	return &auth.Session{UserID: sess.UserID, IsAdmin: u.IsAdmin, Elevated: sess.Elevated, ExpiresAt: sess.ExpiresAt}, nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for h, sess := range s.d.sessions {
		if !sess.ExpiresAt.After(now) {
			delete(s.d.sessions, h)
			n++
		}
	}
	return n, nil
}

func (s *Store) LogAttempt(_ context.Context, userID int64, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.attempts = append(s.d.attempts, attempt{userID: userID, success: success, at: s.now()})
	return nil
}

func (s *Store) CountFailedAttempts(_ context.Context, userID int64, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.d.attempts {
		if a.userID == userID && !a.success && !a.at.Before(since) {
			n++
		}
	}
	return n, nil
}

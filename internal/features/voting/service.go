// Package voting — service.go: сценарий голосования в одной транзакции.
//
// Попытка проходит Pending → Committed (всё записано) или Pending → Rejected
// (ничего не записано). Проверка квоты, запись голосов и начисление очков
// идут в одной транзакции; сериализацию по (user, day) даёт ограничение
// уникальности в хранилище, поэтому внутрипроцессных блокировок нет.
package voting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/brand-votes/internal/auth"
	"serotonyl.ru/brand-votes/internal/common"
	"serotonyl.ru/brand-votes/internal/db/postgres"
	"serotonyl.ru/brand-votes/internal/events"
	"serotonyl.ru/brand-votes/internal/features/catalog"
	"serotonyl.ru/brand-votes/internal/features/ledger"
	"serotonyl.ru/brand-votes/internal/features/points"
	"serotonyl.ru/brand-votes/internal/features/quota"
	"serotonyl.ru/brand-votes/internal/metrics"
)

// Brands — карточки брендов для ответа.
type Brands interface {
	Summaries(ctx context.Context, ids []int64) (map[int64]catalog.BrandSummary, error)
}

// Rankings — сброс кеша рейтинга после нового пакета.
type Rankings interface {
	Invalidate(ctx context.Context, day time.Time)
}

// Deps — зависимости сервиса голосования.
type Deps struct {
	Tx        postgres.Transactor
	Quota     *quota.Enforcer
	Ledger    *ledger.Ledger
	Points    *points.Account
	Policy    points.Policy
	Brands    Brands
	Rankings  Rankings
	Publisher events.Publisher
	// PublishTimeout ограничивает публикацию события после коммита.
	// 0 — DefaultPublishTimeout.
	PublishTimeout time.Duration
}

// DefaultPublishTimeout — сколько ответ на голосование может ждать брокер.
const DefaultPublishTimeout = 3 * time.Second

// Service — оркестратор голосования.
type Service struct {
	tx        postgres.Transactor
	quota     *quota.Enforcer
	ledger    *ledger.Ledger
	points    *points.Account
	policy    points.Policy
	brands    Brands
	rankings  Rankings
	publisher events.Publisher
	pubWait   time.Duration
	now       func() time.Time
}

// NewService создаёт сервис голосования.
func NewService(d Deps) *Service {
	pub := d.Publisher
	if pub == nil {
		pub = events.Noop{}
	}
	wait := d.PublishTimeout
	if wait <= 0 {
		wait = DefaultPublishTimeout
	}
	return &Service{
		tx:        d.Tx,
		quota:     d.Quota,
		ledger:    d.Ledger,
		points:    d.Points,
		policy:    d.Policy,
		brands:    d.Brands,
		rankings:  d.Rankings,
		publisher: pub,
		pubWait:   wait,
		now:       time.Now,
	}
}

// WithClock подменяет источник времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// VoteForBrands отправляет пакет голосов от имени principal.
// brandIDs — бренды в порядке предпочтения: первый получает позицию 1.
//
// Ожидаемые исходы (QuotaExceeded, Validation, InvalidBrandReference)
// возвращаются без изменений; прочие сбои логируются и превращаются в Internal.
// При любой ошибке транзакция откатывается целиком.
//
// Если opts.BatchID уже использован этим пользователем, возвращается
// записанный ранее результат с Replayed=true. Это верно и для повтора,
// пришедшего, пока первая попытка с тем же ключом ещё не зафиксирована:
// он упирается в ограничение уникальности и перечитывает пакет в новой транзакции.
func (s *Service) VoteForBrands(ctx context.Context, p auth.Principal, brandIDs []int64, opts CastOptions) (*CastResult, error) {
	const op = "voting.VoteForBrands"

	if err := auth.Authorize(p, auth.CapVote); err != nil {
		return nil, err
	}

	batchID := opts.BatchID
	if batchID == uuid.Nil {
		batchID = uuid.New()
	}

	a, err := s.cast(ctx, op, p.UserID, brandIDs, batchID)
	if err != nil && opts.BatchID != uuid.Nil && lostKeyRace(err) {
		log.WithFields(log.Fields{
			"user_id":  p.UserID,
			"batch_id": batchID,
		}).Debug("Параллельный повтор с тем же ключом, перечитываем пакет")
		a, err = s.cast(ctx, op, p.UserID, brandIDs, batchID)
	}
	if err != nil {
		return nil, s.reject(op, p.UserID, err)
	}

	views, err := s.views(ctx, a.records)
	if err != nil {
		// Пакет уже зафиксирован, не удалось только прочитать карточки
		log.WithError(err).WithField("batch_id", batchID).Error("Не удалось собрать ответ по пакету")
		return nil, common.Internal(op, err)
	}

	result := &CastResult{
		BatchID:  batchID,
		Day:      a.day,
		Votes:    views,
		Points:   a.awarded,
		Balance:  a.balance,
		Replayed: a.replayed,
	}
	if a.replayed {
		metrics.VoteBatches.WithLabelValues("replayed").Inc()
		return result, nil
	}

	s.afterCommit(ctx, p.UserID, result, a.records)
	return result, nil
}

// attempt — итог одной транзакции голосования.
type attempt struct {
	records  []ledger.VoteRecord
	day      time.Time
	awarded  int64
	balance  int64
	replayed bool
}

// cast выполняет одну попытку: повтор по batchID или квота, голоса и очки.
func (s *Service) cast(ctx context.Context, op string, userID int64, brandIDs []int64, batchID uuid.UUID) (*attempt, error) {
	a := &attempt{day: s.quota.Day(s.now())}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		batch, prior, err := s.ledger.FindBatch(ctx, batchID)
		if err != nil {
			return err
		}
		if batch != nil {
			if batch.UserID != userID {
				return common.Validation(op, "идентификатор пакета уже использован")
			}
			action, err := s.points.Recorded(ctx, batchID)
			if err != nil {
				return err
			}
			if action == nil {
				return fmt.Errorf("у пакета %s нет начисления", batchID)
			}
			a.records, a.day, a.replayed = prior, batch.Date, true
			a.awarded, a.balance = action.Amount, action.BalanceAfter
			return nil
		}

		if err := s.quota.Check(ctx, userID, a.day); err != nil {
			return err
		}
		a.records, err = s.ledger.RecordVotes(ctx, userID, brandIDs, a.day, batchID)
		if err != nil {
			return err
		}
		a.awarded = s.policy.Amount(len(a.records))
		a.balance, err = s.points.AwardPoints(ctx, userID, a.awarded, points.ReasonVoteBatch, batchID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// lostKeyRace сообщает, что попытка проиграла параллельной транзакции,
// которая могла записать пакет с тем же ключом.
func lostKeyRace(err error) bool {
	return errors.Is(err, ledger.ErrBatchIDTaken) || errors.Is(err, common.ErrQuotaExceeded)
}

// GetUserVotes возвращает голоса пользователя за UTC-день с карточками брендов.
// Только чтение.
func (s *Service) GetUserVotes(ctx context.Context, userID int64, day time.Time) ([]VoteView, error) {
	records, err := s.ledger.UserVotes(ctx, userID, day)
	if err != nil {
		return nil, common.Internal("voting.GetUserVotes", err)
	}
	views, err := s.views(ctx, records)
	if err != nil {
		return nil, common.Internal("voting.GetUserVotes", err)
	}
	return views, nil
}

// CanVoteToday сообщает, может ли пользователь голосовать сегодня.
func (s *Service) CanVoteToday(ctx context.Context, userID int64) (bool, error) {
	return s.quota.CanVote(ctx, userID, s.quota.Day(s.now()))
}

// afterCommit — побочные эффекты после коммита. Их сбой не отменяет пакет.
func (s *Service) afterCommit(ctx context.Context, userID int64, r *CastResult, records []ledger.VoteRecord) {
	metrics.VoteBatches.WithLabelValues("committed").Inc()
	metrics.VotesRecorded.Add(float64(len(records)))
	metrics.PointsAwarded.Add(float64(r.Points))

	if s.rankings != nil {
		s.rankings.Invalidate(ctx, r.Day)
	}

	brandIDs := make([]int64, len(records))
	for i, rec := range records {
		brandIDs[i] = rec.BrandID
	}
	event := events.BatchCommitted{
		BatchID:     r.BatchID,
		UserID:      userID,
		Day:         common.FormatDay(r.Day),
		BrandIDs:    brandIDs,
		Points:      r.Points,
		Balance:     r.Balance,
		CommittedAt: s.now().UTC(),
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.pubWait)
	defer cancel()
	if err := s.publisher.PublishBatch(pubCtx, event); err != nil {
		log.WithError(err).WithField("batch_id", r.BatchID).Warn("Не удалось опубликовать событие о пакете")
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"batch_id": r.BatchID,
		"day":      event.Day,
		"brands":   len(records),
		"points":   r.Points,
	}).Info("Пакет голосов зафиксирован")
}

// reject классифицирует ошибку транзакции.
func (s *Service) reject(op string, userID int64, err error) error {
	kind := common.KindOf(err)
	switch {
	case kind == common.KindQuotaExceeded:
		metrics.VoteBatches.WithLabelValues("quota_exceeded").Inc()
		log.WithField("user_id", userID).Debug("Повторное голосование за день отклонено")
		return err
	case common.IsExpected(err):
		metrics.VoteBatches.WithLabelValues("rejected").Inc()
		log.WithField("user_id", userID).WithError(err).Debug("Пакет голосов отклонён")
		return err
	case kind != common.KindInternal:
		// NotFound и прочие доменные ошибки тоже идут наружу как есть
		metrics.VoteBatches.WithLabelValues("rejected").Inc()
		return err
	default:
		metrics.VoteBatches.WithLabelValues("failed").Inc()
		log.WithError(err).WithField("user_id", userID).Error("Сбой при записи пакета голосов")
		return common.Internal(op, err)
	}
}

func (s *Service) views(ctx context.Context, records []ledger.VoteRecord) ([]VoteView, error) {
	views := make([]VoteView, 0, len(records))
	if len(records) == 0 {
		return views, nil
	}
	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = r.BrandID
	}
	summaries, err := s.brands.Summaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		brand, ok := summaries[r.BrandID]
		if !ok {
			brand = catalog.BrandSummary{ID: r.BrandID}
		}
		views = append(views, VoteView{
			ID:       r.ID,
			Date:     common.FormatDay(r.Date),
			Position: r.Position,
			Brand:    brand,
		})
	}
	return views, nil
}

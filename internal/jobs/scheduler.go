// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: сверка балансов с журналом очков,
// снимок рейтинга за прошедший день и очистка истёкших сессий.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/brand-votes/internal/common"
	"serotonyl.ru/brand-votes/internal/metrics"
)

// Reconciler сверяет кеш балансов с журналом.
type Reconciler interface {
	ReconcileAll(ctx context.Context) (int, error)
}

// Snapshotter сохраняет рейтинг дня.
type Snapshotter interface {
	Snapshot(ctx context.Context, day time.Time) (int, error)
}

// SessionCleaner удаляет истёкшие сессии.
type SessionCleaner interface {
	CleanupSessions(ctx context.Context) (int64, error)
}

// Specs — cron-выражения задач.
type Specs struct {
	Reconcile string
	Snapshot  string
	Cleanup   string
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron     *cron.Cron
	specs    Specs
	balances Reconciler
	rankings Snapshotter
	sessions SessionCleaner
	now      func() time.Time
}

// NewScheduler создаёт планировщик. Дни голосования считаются по UTC,
// поэтому и расписание в UTC.
func NewScheduler(specs Specs, balances Reconciler, rankings Snapshotter, sessions SessionCleaner) *Scheduler {
	if specs.Cleanup == "" {
		specs.Cleanup = "@hourly"
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		specs:    specs,
		balances: balances,
		rankings: rankings,
		sessions: sessions,
		now:      time.Now,
	}
}

// Start регистрирует задачи и запускает планировщик.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		spec string
		name string
		fn   func(ctx context.Context) error
	}{
		{s.specs.Reconcile, "reconcile_balances", s.reconcile},
		{s.specs.Snapshot, "ranking_snapshot", s.snapshot},
		{s.specs.Cleanup, "session_cleanup", s.cleanup},
	}

	for _, j := range jobs {
		if _, err := s.cron.AddFunc(j.spec, func() { s.run(ctx, j.name, j.fn) }); err != nil {
			return fmt.Errorf("ошибка расписания %s (%q): %w", j.name, j.spec, err)
		}
	}

	s.cron.Start()
	log.Info("Планировщик задач запущен (UTC)")
	return nil
}

// Stop останавливает планировщик и ждёт текущие задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

func (s *Scheduler) run(ctx context.Context, name string, fn func(ctx context.Context) error) {
	start := time.Now()
	entry := log.WithField("job", name)
	entry.Debug("[CRON] Запуск задачи")

	if err := fn(ctx); err != nil {
		metrics.JobRuns.WithLabelValues(name, "error").Inc()
		entry.WithError(err).Error("[CRON] Ошибка задачи")
		return
	}
	metrics.JobRuns.WithLabelValues(name, "ok").Inc()
	entry.WithField("duration", time.Since(start).String()).Debug("[CRON] Задача завершена")
}

func (s *Scheduler) reconcile(ctx context.Context) error {
	fixed, err := s.balances.ReconcileAll(ctx)
	if err != nil {
		return err
	}
	if fixed > 0 {
		log.WithField("fixed", fixed).Warn("[CRON] Исправлены расхождения балансов")
	}
	return nil
}

// snapshot сохраняет рейтинг вчерашнего UTC-дня: к моменту запуска он уже закрыт.
func (s *Scheduler) snapshot(ctx context.Context) error {
	day := common.VoteDay(s.now()).AddDate(0, 0, -1)
	n, err := s.rankings.Snapshot(ctx, day)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"day":    common.FormatDay(day),
		"brands": n,
	}).Info("[CRON] Снимок рейтинга сохранён")
	return nil
}

func (s *Scheduler) cleanup(ctx context.Context) error {
	n, err := s.sessions.CleanupSessions(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.WithField("deleted", n).Debug("[CRON] Удалены истёкшие сессии")
	}
	return nil
}

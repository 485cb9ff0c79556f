// Package metrics объявляет метрики Prometheus сервиса.
// Коллекторы создаются при загрузке пакета и регистрируются в Register,
// поэтому тесты могут инкрементировать их без реестра.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "brand_votes"

var (
	// VoteBatches — исходы попыток голосования:
	// committed, replayed, quota_exceeded, rejected, failed.
	VoteBatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "vote_batches_total",
		Help:      "Попытки отправить пакет голосов по исходу.",
	}, []string{"outcome"})

	// VotesRecorded — число записанных голосов.
	VotesRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "votes_recorded_total",
		Help:      "Записанные голоса за бренды.",
	})

	// PointsAwarded — сумма начисленных очков.
	PointsAwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "points_awarded_total",
		Help:      "Начисленные очки.",
	})

	// RankingCache — обращения к кешу рейтинга: hit, miss, error.
	RankingCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ranking_cache_requests_total",
		Help:      "Обращения к кешу рейтингов в Redis.",
	}, []string{"result"})

	// EventsPublished — публикация событий в Kafka: ok, error.
	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Публикация событий о пакетах голосов.",
	}, []string{"result"})

	// HTTPRequests — длительность HTTP-запросов.
	HTTPRequests = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Длительность HTTP-запросов.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "code"})

	// JobRuns — запуски фоновых задач: ok, error.
	JobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_runs_total",
		Help:      "Запуски задач по расписанию.",
	}, []string{"job", "result"})
)

// Register регистрирует все метрики сервиса и стандартные коллекторы Go-рантайма.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		VoteBatches,
		VotesRecorded,
		PointsAwarded,
		RankingCache,
		EventsPublished,
		HTTPRequests,
		JobRuns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

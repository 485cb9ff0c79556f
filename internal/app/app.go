// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, Redis и Kafka, репозитории,
// сервисы, обработчики и собирает всё в HTTP-сервер и планировщик.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/brand-votes/internal/auth"
	"serotonyl.ru/brand-votes/internal/config"
	"serotonyl.ru/brand-votes/internal/db/postgres"
	"serotonyl.ru/brand-votes/internal/events"
	"serotonyl.ru/brand-votes/internal/features/admin"
	"serotonyl.ru/brand-votes/internal/features/catalog"
	"serotonyl.ru/brand-votes/internal/features/ledger"
	"serotonyl.ru/brand-votes/internal/features/members"
	"serotonyl.ru/brand-votes/internal/features/points"
	"serotonyl.ru/brand-votes/internal/features/quota"
	"serotonyl.ru/brand-votes/internal/features/ranking"
	"serotonyl.ru/brand-votes/internal/features/voting"
	"serotonyl.ru/brand-votes/internal/jobs"
	"serotonyl.ru/brand-votes/internal/metrics"
	"serotonyl.ru/brand-votes/internal/server"
	"serotonyl.ru/brand-votes/internal/server/middleware"
)

// App содержит все компоненты приложения.
type App struct {
	Server    *server.Server
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Publisher events.Publisher
	Limiter   *middleware.RateLimiter
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	// Ресурсы копятся в a, чтобы при ошибке ниже закрыть всё открытое
	a := &App{DB: pool}

	if err := postgres.RunMigrations(ctx, pool, migrations); err != nil {
		a.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Внешние зависимости (необязательные) ===
	rdb := ranking.Connect(ctx, cfg.RedisURL)
	a.Redis = rdb

	var publisher events.Publisher = events.Noop{}
	if brokers := cfg.KafkaBrokers(); len(brokers) > 0 {
		publisher = events.NewKafkaProducer(brokers, cfg.KafkaTopic)
		log.WithField("topic", cfg.KafkaTopic).Info("События о голосах публикуются в Kafka")
	}
	a.Publisher = publisher

	// === 3. Репозитории ===
	tx := postgres.NewTxRunner(pool)
	memberRepo := members.NewRepository(pool)
	catalogRepo := catalog.NewRepository(pool)
	ledgerRepo := ledger.NewRepository(pool)
	pointsRepo := points.NewRepository(pool)
	rankingRepo := ranking.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)

	// === 4. Сервисы ===
	catalogService, err := catalog.NewService(catalogRepo, cfg.CatalogCacheSize)
	if err != nil {
		a.Close()
		return nil, err
	}
	account := points.NewAccount(pointsRepo, tx)
	aggregator := ranking.NewAggregator(rankingRepo, ranking.NewCache(rdb, cfg.RankingCacheTTL))
	votingService := voting.NewService(voting.Deps{
		Tx:             tx,
		Quota:          quota.NewEnforcer(ledgerRepo),
		Ledger:         ledger.NewLedger(ledgerRepo, catalogService, cfg.VoteMaxBrands),
		Points:         account,
		Policy:         points.PositionWeights{Weights: cfg.VotePointWeights, Default: cfg.VotePointDefault},
		Brands:         catalogService,
		Rankings:       aggregator,
		Publisher:      publisher,
		PublishTimeout: cfg.KafkaPublishTimeout,
	})
	memberService := members.NewService(memberRepo, account)
	adminService := admin.NewService(adminRepo, memberRepo, cfg)

	// === 5. HTTP ===
	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	a.Limiter = limiter
	router := server.NewRouter(server.Handlers{
		Voting:  voting.NewHandler(votingService),
		Ranking: ranking.NewHandler(aggregator),
		Catalog: catalog.NewHandler(catalogService),
		Members: members.NewHandler(memberService),
		Points:  points.NewHandler(account),
		Admin:   admin.NewHandler(adminService),
	}, server.RouterDeps{
		Resolver: auth.NewResolver(adminRepo),
		Limiter:  limiter,
		Gatherer: registry,
		Ready: func(ctx context.Context) error {
			return postgres.Ping(ctx, pool)
		},
	})

	// === 6. Планировщик задач ===
	scheduler := jobs.NewScheduler(jobs.Specs{
		Reconcile: cfg.JobsReconcileSpec,
		Snapshot:  cfg.JobsSnapshotSpec,
	}, account, aggregator, adminService)

	a.Server = server.New(cfg, router)
	a.Scheduler = scheduler
	return a, nil
}

// Close освобождает внешние ресурсы. Вызывается после остановки сервера
// или из New на частично собранном App: незаполненные поля пропускаются.
func (a *App) Close() {
	if a.Limiter != nil {
		a.Limiter.Close()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			log.WithError(err).Warn("Ошибка закрытия Kafka-продюсера")
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.WithError(err).Warn("Ошибка закрытия Redis")
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

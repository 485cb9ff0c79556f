// Package config загружает конфигурацию сервиса из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры,
// а godotenv подхватывает локальный .env (если он есть) до разбора.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"serotonyl.ru/brand-votes/internal/common"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPAddr            string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	HTTPWriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s"`
	HTTPShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"20s"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт "postgres" (имя сервиса в docker-compose), для локалки DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"brandvotes"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"brand_votes"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`
	// Сколько раз пробуем подключиться при старте (БД в compose поднимается дольше нас)
	DBConnectRetries       uint64        `envconfig:"DB_CONNECT_RETRIES" default:"5"`
	DBConnectRetryInterval time.Duration `envconfig:"DB_CONNECT_RETRY_INTERVAL" default:"2s"`

	// --- Redis (кеш рейтингов, пусто = кеш выключен) ---
	RedisURL        string        `envconfig:"REDIS_URL" default:""`
	RankingCacheTTL time.Duration `envconfig:"RANKING_CACHE_TTL" default:"5m"`

	// --- Kafka (события о голосах, пусто = события не публикуются) ---
	KafkaBrokersRaw     []string      `envconfig:"KAFKA_BROKERS" default:""`
	KafkaTopic          string        `envconfig:"KAFKA_TOPIC" default:"vote.batch.committed"`
	KafkaPublishTimeout time.Duration `envconfig:"KAFKA_PUBLISH_TIMEOUT" default:"3s"`

	// --- Application ---
	AppEnv       string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel  string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppLogFormat string `envconfig:"APP_LOG_FORMAT" default:"text"`

	// --- Admin ---
	AdminPasswordHash       string        `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`
	AdminSessionTTL         time.Duration `envconfig:"ADMIN_SESSION_TTL" default:"24h"`
	AdminMaxLoginAttempts   int           `envconfig:"ADMIN_MAX_LOGIN_ATTEMPTS" default:"3"`
	AdminLoginLockoutPeriod time.Duration `envconfig:"ADMIN_LOGIN_LOCKOUT" default:"1h"`

	// --- Voting ---
	// Максимум брендов в одном пакете голосов
	VoteMaxBrands int `envconfig:"VOTE_MAX_BRANDS" default:"3"`
	// Очки за позицию: 1-е место, 2-е, 3-е ...
	VotePointWeightsRaw string  `envconfig:"VOTE_POINT_WEIGHTS" default:"3,2,1"`
	VotePointWeights    []int64 `envconfig:"-"` // заполним вручную
	// Очки за позиции дальше списка весов
	VotePointDefault int64 `envconfig:"VOTE_POINT_DEFAULT" default:"1"`

	// --- Catalog ---
	CatalogCacheSize int `envconfig:"CATALOG_CACHE_SIZE" default:"1024"`

	// --- Jobs (cron, UTC) ---
	JobsReconcileSpec string `envconfig:"JOBS_RECONCILE_SPEC" default:"15 * * * *"`
	JobsSnapshotSpec  string `envconfig:"JOBS_SNAPSHOT_SPEC" default:"5 0 * * *"`

	// --- Rate Limiting (путь голосования) ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// KafkaBrokers возвращает непустые адреса брокеров.
func (c *Config) KafkaBrokers() []string {
	out := make([]string, 0, len(c.KafkaBrokersRaw))
	for _, b := range c.KafkaBrokersRaw {
		if b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.VoteMaxBrands <= 0 {
		return fmt.Errorf("VOTE_MAX_BRANDS должен быть > 0")
	}
	if len(c.VotePointWeights) == 0 {
		return fmt.Errorf("VOTE_POINT_WEIGHTS не задан")
	}
	for _, w := range c.VotePointWeights {
		if w <= 0 {
			return fmt.Errorf("VOTE_POINT_WEIGHTS: веса должны быть > 0")
		}
	}
	if c.VotePointDefault <= 0 {
		return fmt.Errorf("VOTE_POINT_DEFAULT должен быть > 0")
	}
	if c.AdminMaxLoginAttempts <= 0 {
		return fmt.Errorf("ADMIN_MAX_LOGIN_ATTEMPTS должен быть > 0")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("некорректные RATE_LIMIT_REQUESTS/RATE_LIMIT_WINDOW")
	}
	return nil
}

// Load читает .env (если есть) и переменные окружения, заполняет Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("не удалось прочитать .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	weights, err := common.ParseInt64CSV(cfg.VotePointWeightsRaw)
	if err != nil {
		return nil, fmt.Errorf("VOTE_POINT_WEIGHTS parse: %w", err)
	}
	cfg.VotePointWeights = weights

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

package app

import "serotonyl.ru/brand-votes/internal/db/postgres"

// SQL-миграции встроены в код для упрощения деплоя.
// Имена ограничений используются репозиториями для разбора ошибок.
var migrations = []postgres.Migration{
	{Version: 1, Name: "users", SQL: migration001Users},
	{Version: 2, Name: "brands", SQL: migration002Brands},
	{Version: 3, Name: "votes", SQL: migration003Votes},
	{Version: 4, Name: "points", SQL: migration004Points},
	{Version: 5, Name: "leaderboards", SQL: migration005Leaderboards},
	{Version: 6, Name: "sessions", SQL: migration006Sessions},
}

var migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    username VARCHAR(32) NOT NULL,
    is_admin BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT users_username_key UNIQUE (username)
);
`

var migration002Brands = `
CREATE TABLE IF NOT EXISTS brands (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    url TEXT NOT NULL DEFAULT '',
    image_url TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_brands_name ON brands(name);
`

// vote_batches_user_day_key — единственное, что сериализует голосование
// по (пользователь, день): второй пакет падает на вставке.
var migration003Votes = `
CREATE TABLE IF NOT EXISTS vote_batches (
    batch_id UUID NOT NULL,
    user_id BIGINT NOT NULL,
    vote_date DATE NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT vote_batches_pkey PRIMARY KEY (batch_id),
    CONSTRAINT vote_batches_user_day_key UNIQUE (user_id, vote_date),
    CONSTRAINT vote_batches_user_id_fkey FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS votes (
    id BIGSERIAL PRIMARY KEY,
    batch_id UUID NOT NULL REFERENCES vote_batches(batch_id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    brand_id BIGINT NOT NULL,
    vote_date DATE NOT NULL,
    position INTEGER NOT NULL CHECK (position >= 1),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT votes_brand_id_fkey FOREIGN KEY (brand_id) REFERENCES brands(id),
    CONSTRAINT votes_batch_brand_key UNIQUE (batch_id, brand_id),
    CONSTRAINT votes_batch_position_key UNIQUE (batch_id, position)
);
CREATE INDEX IF NOT EXISTS idx_votes_user_date ON votes(user_id, vote_date);
CREATE INDEX IF NOT EXISTS idx_votes_date_brand ON votes(vote_date, brand_id);
`

var migration004Points = `
CREATE TABLE IF NOT EXISTS point_actions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    amount BIGINT NOT NULL CHECK (amount > 0),
    reason VARCHAR(50) NOT NULL,
    batch_id UUID NOT NULL REFERENCES vote_batches(batch_id) ON DELETE CASCADE,
    balance_after BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT point_actions_batch_id_key UNIQUE (batch_id)
);
CREATE INDEX IF NOT EXISTS idx_point_actions_user ON point_actions(user_id, created_at DESC);
CREATE TABLE IF NOT EXISTS point_balances (
    user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    balance BIGINT NOT NULL DEFAULT 0,
    total_earned BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

var migration005Leaderboards = `
CREATE TABLE IF NOT EXISTS daily_leaderboards (
    vote_date DATE NOT NULL,
    brand_id BIGINT NOT NULL REFERENCES brands(id) ON DELETE CASCADE,
    votes BIGINT NOT NULL,
    rank INTEGER NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (vote_date, brand_id)
);
`

var migration006Sessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    token_hash CHAR(64) NOT NULL UNIQUE,
    elevated BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    success BOOLEAN NOT NULL,
    attempt_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_admin_attempts_user_time ON admin_login_attempts(user_id, attempt_time DESC);
`

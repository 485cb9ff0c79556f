// Package auth — session.go: разрешение bearer-токена в Principal.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"serotonyl.ru/brand-votes/internal/common"
)

// Session — сессия, найденная по хешу токена.
type Session struct {
	UserID    int64
	IsAdmin   bool // Флаг пользователя
	Elevated  bool // Сессия выдана через /admin/login
	ExpiresAt time.Time
}

// SessionStore ищет сессию по sha256-хешу токена.
type SessionStore interface {
	// SessionByTokenHash возвращает (nil, nil), если сессии нет.
	SessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
}

// Resolver превращает токен в Principal.
type Resolver struct {
	store SessionStore
	now   func() time.Time
}

// NewResolver создаёт Resolver.
func NewResolver(store SessionStore) *Resolver {
	return &Resolver{store: store, now: time.Now}
}

// HashToken возвращает hex(sha256(token)). В БД хранится только хеш.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Resolve возвращает Principal для токена или Unauthenticated.
func (r *Resolver) Resolve(ctx context.Context, token string) (Principal, error) {
	const op = "auth.Resolve"

	if token == "" {
		return Principal{}, common.Unauthenticated(op)
	}
	s, err := r.store.SessionByTokenHash(ctx, HashToken(token))
	if err != nil {
		return Principal{}, common.Internal(op, err)
	}
	if s == nil || !s.ExpiresAt.After(r.now()) {
		return Principal{}, common.Unauthenticated(op)
	}
	return Principal{UserID: s.UserID, Admin: s.IsAdmin && s.Elevated}, nil
}

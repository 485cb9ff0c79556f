// Package admin реализует вход администратора по паролю (Argon2id).
// Успешный вход выдаёт повышенную сессию: с ней Principal получает права админа.
// models.go описывает сессии и попытки входа.
package admin

import "time"

// Session — сессия в таблице sessions. Хранится только sha256-хеш токена.
type Session struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	Elevated  bool      `db:"elevated"` // Выдана через /admin/login
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

// LoginResult — то, что получает клиент после успешного входа.
// Токен показывается один раз.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

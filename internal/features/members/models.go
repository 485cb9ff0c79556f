// Package members управляет пользователями: профиль, изменение по маске полей, удаление.
// models.go описывает пользователя, профиль и маску изменений.
package members

import (
	"regexp"
	"time"

	"serotonyl.ru/brand-votes/internal/common"
)

// User — запись таблицы users.
type User struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`   // Уникальный, 3..32 символа [a-zA-Z0-9_]
	IsAdmin   bool      `db:"is_admin"`   // Может повысить сессию через /admin/login
	CreatedAt time.Time `db:"created_at"` // Когда запись создана
	UpdatedAt time.Time `db:"updated_at"` // Последнее обновление
}

// Profile — то, что отдаётся клиенту.
type Profile struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	Points    int64     `json:"points"`
	IsAdmin   bool      `json:"isAdmin"`
}

// UpdateMask — изменяемые поля пользователя. nil — поле не трогаем.
type UpdateMask struct {
	Username *string `json:"username,omitempty"`
	IsAdmin  *bool   `json:"isAdmin,omitempty"`
}

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

// Empty сообщает, что маска ничего не меняет.
func (m UpdateMask) Empty() bool {
	return m.Username == nil && m.IsAdmin == nil
}

// Validate проверяет каждое заданное поле по его правилу.
func (m UpdateMask) Validate() error {
	const op = "members.UpdateMask"

	if m.Empty() {
		return common.Validation(op, "нет полей для изменения")
	}
	if m.Username != nil && !usernameRe.MatchString(*m.Username) {
		return common.Validation(op, "username: 3-32 символа, латиница, цифры и _")
	}
	return nil
}

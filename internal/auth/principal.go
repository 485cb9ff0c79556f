// Package auth описывает субъекта запроса и проверку его возможностей.
//
// Конвейер: middleware разрешает сессию в Principal и кладёт его в context,
// обработчик достаёт Principal и явно передаёт в сервис, а сервис или
// middleware RequireCapability проверяет возможность через Authorize.
package auth

import (
	"context"

	"serotonyl.ru/brand-votes/internal/common"
)

// Principal — аутентифицированный субъект запроса.
// Нулевое значение — аноним.
type Principal struct {
	UserID int64
	// Admin — пользователь с is_admin, вошедший через /admin/login
	// (повышенная сессия). Обычная сессия администратора прав не даёт.
	Admin bool
}

// Anonymous сообщает, что сессии нет.
func (p Principal) Anonymous() bool {
	return p.UserID == 0
}

// Capability — возможность, которую проверяют перед операцией.
type Capability string

// Возможности сервиса
const (
	CapVote         Capability = "vote"           // Отправить пакет голосов
	CapReadOwnVotes Capability = "read_own_votes" // Читать свои голоса
	CapReadAnyVotes Capability = "read_any_votes" // Читать голоса любого пользователя
	CapManageUsers  Capability = "manage_users"   // Менять и удалять пользователей
	CapViewRankings Capability = "view_rankings"  // Смотреть рейтинги
	CapAdminLogin   Capability = "admin_login"    // Повысить сессию до админской
)

// Authorize проверяет, что у principal есть возможность capability.
// Возвращает Unauthenticated для анонима и AuthorizationDenied при нехватке прав.
func Authorize(p Principal, capability Capability) error {
	const op = "auth.Authorize"

	switch capability {
	case CapViewRankings:
		return nil
	case CapVote, CapReadOwnVotes, CapAdminLogin:
		if p.Anonymous() {
			return common.Unauthenticated(op)
		}
		return nil
	case CapReadAnyVotes, CapManageUsers:
		if p.Anonymous() {
			return common.Unauthenticated(op)
		}
		if !p.Admin {
			return common.Denied(op, "недостаточно прав")
		}
		return nil
	default:
		return common.Denied(op, "неизвестная возможность "+string(capability))
	}
}

// CanActOn сообщает, может ли principal читать или менять данные пользователя userID:
// свои данные можно всегда, чужие — только админу.
func CanActOn(p Principal, userID int64, capability Capability) error {
	if !p.Anonymous() && p.UserID == userID {
		return nil
	}
	return Authorize(p, capability)
}

type principalKey struct{}

// WithPrincipal кладёт principal в контекст.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext достаёт principal из контекста (аноним, если его нет).
func FromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}

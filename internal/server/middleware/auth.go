package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/brand-votes/internal/auth"
	"serotonyl.ru/brand-votes/internal/common"
	"serotonyl.ru/brand-votes/internal/server/respond"
)

// PrincipalResolver превращает bearer-токен в Principal.
type PrincipalResolver interface {
	Resolve(ctx context.Context, token string) (auth.Principal, error)
}

// Authenticate разрешает заголовок Authorization: Bearer <token> в Principal
// и кладёт его в контекст запроса. Без заголовка запрос идёт дальше анонимно;
// неверный или истёкший токен — 401.
func Authenticate(resolver PrincipalResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			respond.Error(c, "middleware.Authenticate", common.Unauthenticated("middleware.Authenticate"))
			return
		}

		p, err := resolver.Resolve(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			respond.Error(c, "middleware.Authenticate", err)
			return
		}
		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// RequireCapability пропускает запрос, только если у Principal есть capability.
func RequireCapability(capability auth.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.Authorize(auth.FromContext(c.Request.Context()), capability); err != nil {
			respond.Error(c, "middleware.RequireCapability", err)
			return
		}
		c.Next()
	}
}

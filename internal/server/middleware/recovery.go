package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/brand-votes/internal/server/respond"
)

// Recovery перехватывает панику обработчика, пишет её со стеком в лог
// и отвечает 500 в общем конверте.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(log.Fields{
					"component": "panic_recovery",
					"panic":     fmt.Sprintf("%v", r),
					"path":      c.Request.URL.Path,
					"stack":     string(debug.Stack()),
				}).Error("ПАНИКА в обработчике — восстановлено")

				c.AbortWithStatusJSON(http.StatusInternalServerError, respond.ErrorBody{
					StatusCode: http.StatusInternalServerError,
					Context:    c.FullPath(),
					Message:    "внутренняя ошибка",
				})
			}
		}()
		c.Next()
	}
}

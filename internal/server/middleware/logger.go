package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/brand-votes/internal/auth"
	"serotonyl.ru/brand-votes/internal/metrics"
)

// RequestLogger логирует каждый запрос и пишет его длительность в метрики.
// Записывает: метод, маршрут, код ответа, длительность, user_id.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())

		entry := log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   status,
			"duration": elapsed.String(),
			"user_id":  auth.FromContext(c.Request.Context()).UserID,
			"ip":       c.ClientIP(),
		})
		switch {
		case status >= 500:
			entry.Error("HTTP-запрос")
		case status >= 400:
			entry.Info("HTTP-запрос")
		default:
			entry.Debug("HTTP-запрос")
		}
	}
}

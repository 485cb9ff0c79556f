// Package server собирает HTTP-сервер: маршруты, цепочку middleware,
// health-проверки, /metrics и graceful shutdown.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"serotonyl.ru/brand-votes/internal/auth"
	"serotonyl.ru/brand-votes/internal/features/admin"
	"serotonyl.ru/brand-votes/internal/features/catalog"
	"serotonyl.ru/brand-votes/internal/features/members"
	"serotonyl.ru/brand-votes/internal/features/points"
	"serotonyl.ru/brand-votes/internal/features/ranking"
	"serotonyl.ru/brand-votes/internal/features/voting"
	"serotonyl.ru/brand-votes/internal/server/middleware"
)

// Handlers — обработчики фич, которые подключаются к роутеру.
type Handlers struct {
	Voting  *voting.Handler
	Ranking *ranking.Handler
	Catalog *catalog.Handler
	Members *members.Handler
	Points  *points.Handler
	Admin   *admin.Handler
}

// RouterDeps — всё, что нужно роутеру кроме обработчиков.
type RouterDeps struct {
	Resolver middleware.PrincipalResolver
	Limiter  *middleware.RateLimiter
	Gatherer prometheus.Gatherer
	// Ready проверяет готовность (пинг БД). nil — всегда готов.
	Ready func(ctx context.Context) error
}

// NewRouter собирает gin.Engine со всеми маршрутами.
func NewRouter(h Handlers, d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.RequestLogger())

	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		if d.Ready != nil {
			if err := d.Ready(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/", middleware.Authenticate(d.Resolver))

	limit := func(c *gin.Context) { c.Next() }
	if d.Limiter != nil {
		limit = d.Limiter.Limit()
	}
	privileged := middleware.RequireCapability(auth.CapManageUsers)

	if h.Voting != nil {
		h.Voting.Register(api, limit)
	}
	if h.Ranking != nil {
		h.Ranking.Register(api)
	}
	if h.Catalog != nil {
		h.Catalog.Register(api)
	}
	if h.Members != nil {
		h.Members.Register(api, privileged)
	}
	if h.Points != nil {
		h.Points.Register(api)
	}
	if h.Admin != nil {
		h.Admin.Register(api, limit)
	}
	return r
}

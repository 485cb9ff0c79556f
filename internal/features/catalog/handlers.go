// Package catalog — handlers.go: HTTP-обработчики каталога брендов.
package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/brand-votes/internal/server/respond"
)

// Handler обрабатывает запросы каталога.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик каталога.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register подключает маршруты.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/brands", h.List)
	r.GET("/brands/:id", h.Get)
}

// Get — GET /brands/:id
func (h *Handler) Get(c *gin.Context) {
	const op = "catalog.Get"

	id, err := respond.Int64Param(c, "id")
	if err != nil {
		respond.Error(c, op, err)
		return
	}
	brand, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respond.Error(c, op, err)
		return
	}
	respond.OK(c, http.StatusOK, brand)
}

// List — GET /brands?search=&page=&limit=
func (h *Handler) List(c *gin.Context) {
	const op = "catalog.List"

	page, err := respond.IntQuery(c, "page", 1)
	if err != nil {
		respond.Error(c, op, err)
		return
	}
	limit, err := respond.IntQuery(c, "limit", DefaultLimit)
	if err != nil {
		respond.Error(c, op, err)
		return
	}
	result, err := h.service.List(c.Request.Context(), c.Query("search"), page, limit)
	if err != nil {
		respond.Error(c, op, err)
		return
	}
	respond.OK(c, http.StatusOK, result)
}

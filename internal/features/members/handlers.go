// Package members — handlers.go: HTTP-обработчики профиля пользователя.
package members

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/brand-votes/internal/auth"
	"serotonyl.ru/brand-votes/internal/common"
	"serotonyl.ru/brand-votes/internal/server/respond"
)

// Handler обрабатывает запросы пользователей.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик пользователей.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register подключает маршруты. privileged — проверка прав администратора,
// она стоит перед PATCH и DELETE.
func (h *Handler) Register(r gin.IRouter, privileged gin.HandlerFunc) {
	r.GET("/users/:id", h.Get)
	r.PATCH("/users/:id", privileged, h.Update)
	r.DELETE("/users/:id", privileged, h.Delete)
}

// Get — GET /users/:id
func (h *Handler) Get(c *gin.Context) {
	const op = "members.Get"

	id, err := respond.Int64Param(c, "id")
	if err != nil {
		respond.Error(c, op, err)
		return
	}
	profile, err := h.service.GetProfile(c.Request.Context(), id)
	if err != nil {
		respond.Error(c, op, err)
		return
	}
	respond.OK(c, http.StatusOK, profile)
}

// Update — PATCH /users/:id {username?, isAdmin?}
func (h *Handler) Update(c *gin.Context) {
	const op = "members.Update"

	id, err := respond.Int64Param(c, "id")
	if err != nil {
		respond.Error(c, op, err)
		return
	}
	var mask UpdateMask
	if err := c.ShouldBindJSON(&mask); err != nil {
		respond.Error(c, op, common.Validation(op, "некорректное тело запроса"))
		return
	}

	profile, err := h.service.Update(c.Request.Context(), auth.FromContext(c.Request.Context()), id, mask)
	if err != nil {
		respond.Error(c, op, err)
		return
	}
	respond.OK(c, http.StatusOK, profile)
}

// Delete — DELETE /users/:id
func (h *Handler) Delete(c *gin.Context) {
	const op = "members.Delete"

	id, err := respond.Int64Param(c, "id")
	if err != nil {
		respond.Error(c, op, err)
		return
	}
	deleted, err := h.service.Delete(c.Request.Context(), auth.FromContext(c.Request.Context()), id)
	if err != nil {
		respond.Error(c, op, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"deleted": deleted})
}

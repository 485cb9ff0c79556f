// Package admin — handlers.go: HTTP-обработчик входа администратора.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/brand-votes/internal/auth"
	"serotonyl.ru/brand-votes/internal/common"
	"serotonyl.ru/brand-votes/internal/server/respond"
)

// Handler обрабатывает вход администратора.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type loginRequest struct {
	Password string `json:"password"`
}

// Register подключает маршруты. limit — тот же лимитер, что и у голосования.
func (h *Handler) Register(r gin.IRouter, limit gin.HandlerFunc) {
	r.POST("/admin/login", limit, h.Login)
}

// Login — POST /admin/login {password}. Возвращает новый повышенный токен.
func (h *Handler) Login(c *gin.Context) {
	const op = "admin.Login"

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Password == "" {
		respond.Error(c, op, common.Validation(op, "пароль обязателен"))
		return
	}

	result, err := h.service.Login(c.Request.Context(), auth.FromContext(c.Request.Context()), req.Password)
	if err != nil {
		respond.Error(c, op, err)
		return
	}
	respond.OK(c, http.StatusOK, result)
}

// Package points — handlers.go: HTTP-обработчик баланса и истории начислений.
package points

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/brand-votes/internal/auth"
	"serotonyl.ru/brand-votes/internal/common"
	"serotonyl.ru/brand-votes/internal/server/respond"
)

// Handler обрабатывает запросы очков.
type Handler struct {
	account *Account
}

// NewHandler создаёт обработчик очков.
func NewHandler(account *Account) *Handler {
	return &Handler{account: account}
}

type pointsResponse struct {
	Balance *Balance      `json:"balance"`
	History []PointAction `json:"history"`
}

// Register подключает маршруты.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/users/:id/points", h.Get)
}

// Get — GET /users/:id/points?limit=N. Свой баланс — любому, чужой — админу.
func (h *Handler) Get(c *gin.Context) {
	const op = "points.Get"

	userID, err := respond.Int64Param(c, "id")
	if err != nil {
		respond.Error(c, op, err)
		return
	}
	if err := auth.CanActOn(auth.FromContext(c.Request.Context()), userID, auth.CapReadAnyVotes); err != nil {
		respond.Error(c, op, err)
		return
	}
	limit, err := respond.IntQuery(c, "limit", 20)
	if err != nil {
		respond.Error(c, op, err)
		return
	}

	ctx := c.Request.Context()
	bal, err := h.account.Balance(ctx, userID)
	if err != nil {
		respond.Error(c, op, common.Internal(op, err))
		return
	}
	history, err := h.account.History(ctx, userID, limit)
	if err != nil {
		respond.Error(c, op, common.Internal(op, err))
		return
	}
	if history == nil {
		history = []PointAction{}
	}
	respond.OK(c, http.StatusOK, pointsResponse{Balance: bal, History: history})
}

// Package voting — handlers.go: HTTP-обработчики голосования.
package voting

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"serotonyl.ru/brand-votes/internal/auth"
	"serotonyl.ru/brand-votes/internal/common"
	"serotonyl.ru/brand-votes/internal/server/respond"
)

// IdempotencyHeader — заголовок с ключом идемпотентности пакета.
const IdempotencyHeader = "Idempotency-Key"

// Handler обрабатывает запросы голосования.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик голосования.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type castRequest struct {
	BrandIDs []int64 `json:"brandIds"`
}

type votesResponse struct {
	Date  string     `json:"date"`
	Votes []VoteView `json:"votes"`
}

// Register подключает маршруты. limit — rate-limiter пути отправки голосов.
func (h *Handler) Register(r gin.IRouter, limit gin.HandlerFunc) {
	r.POST("/votes", limit, h.Cast)
	r.GET("/votes/me", h.Mine)
	r.GET("/users/:id/votes", h.UserVotes)
}

// Cast — POST /votes {brandIds: [...]}.
// 201 на новый пакет, 200 на повтор с тем же Idempotency-Key.
func (h *Handler) Cast(c *gin.Context) {
	const op = "voting.Cast"

	var req castRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, op, common.Validation(op, "тело запроса: ожидается {\"brandIds\": [...]}"))
		return
	}

	var opts CastOptions
	if key := strings.TrimSpace(c.GetHeader(IdempotencyHeader)); key != "" {
		id, err := uuid.Parse(key)
		if err != nil {
			respond.Error(c, op, common.Validation(op, IdempotencyHeader+" должен быть UUID"))
			return
		}
		opts.BatchID = id
	}

	p := auth.FromContext(c.Request.Context())
	result, err := h.service.VoteForBrands(c.Request.Context(), p, req.BrandIDs, opts)
	if err != nil {
		respond.Error(c, op, err)
		return
	}

	c.Header("X-Batch-Id", result.BatchID.String())
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	respond.OK(c, status, result)
}

// Mine — GET /votes/me?date=YYYY-MM-DD (по умолчанию сегодня по UTC).
func (h *Handler) Mine(c *gin.Context) {
	const op = "voting.Mine"

	p := auth.FromContext(c.Request.Context())
	if err := auth.Authorize(p, auth.CapReadOwnVotes); err != nil {
		respond.Error(c, op, err)
		return
	}
	h.respondVotes(c, op, p.UserID)
}

// UserVotes — GET /users/:id/votes?date=. Чужие голоса видит только админ.
func (h *Handler) UserVotes(c *gin.Context) {
	const op = "voting.UserVotes"

	userID, err := respond.Int64Param(c, "id")
	if err != nil {
		respond.Error(c, op, err)
		return
	}
	if err := auth.CanActOn(auth.FromContext(c.Request.Context()), userID, auth.CapReadAnyVotes); err != nil {
		respond.Error(c, op, err)
		return
	}
	h.respondVotes(c, op, userID)
}

func (h *Handler) respondVotes(c *gin.Context, op string, userID int64) {
	day, err := dayQuery(c, "date", h.service.now())
	if err != nil {
		respond.Error(c, op, err)
		return
	}
	views, err := h.service.GetUserVotes(c.Request.Context(), userID, day)
	if err != nil {
		respond.Error(c, op, err)
		return
	}
	respond.OK(c, http.StatusOK, votesResponse{Date: common.FormatDay(day), Votes: views})
}

func dayQuery(c *gin.Context, name string, now time.Time) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return common.VoteDay(now), nil
	}
	day, err := common.ParseDay(raw)
	if err != nil {
		return time.Time{}, common.Validation("voting.dayQuery", err.Error())
	}
	return day, nil
}

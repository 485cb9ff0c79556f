// Package ranking — handlers.go: HTTP-обработчики рейтингов.
package ranking

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/brand-votes/internal/common"
	"serotonyl.ru/brand-votes/internal/server/respond"
)

// Handler обрабатывает запросы рейтингов.
type Handler struct {
	aggregator *Aggregator
	now        func() time.Time
}

// NewHandler создаёт обработчик рейтингов.
func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{aggregator: aggregator, now: time.Now}
}

type dailyResponse struct {
	Date   string       `json:"date"`
	Brands []BrandCount `json:"brands"`
}

type windowResponse struct {
	From   string       `json:"from"`
	To     string       `json:"to"`
	Brands []BrandCount `json:"brands"`
}

// Register подключает маршруты.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/rankings/daily", h.Daily)
	r.GET("/rankings/window", h.Window)
}

// Daily — GET /rankings/daily?date=YYYY-MM-DD&brandIds=1,2
func (h *Handler) Daily(c *gin.Context) {
	const op = "ranking.Daily"

	day, err := parseDay(c.Query("date"), h.now())
	if err != nil {
		respond.Error(c, op, err)
		return
	}
	brandIDs, err := parseBrandIDs(c.Query("brandIds"))
	if err != nil {
		respond.Error(c, op, err)
		return
	}

	counts, err := h.aggregator.Tally(c.Request.Context(), day, brandIDs)
	if err != nil {
		respond.Error(c, op, common.Internal(op, err))
		return
	}
	respond.OK(c, http.StatusOK, dailyResponse{Date: common.FormatDay(day), Brands: counts})
}

// Window — GET /rankings/window?from=...&to=...&brandIds=...
// Без to окно заканчивается сегодня.
func (h *Handler) Window(c *gin.Context) {
	const op = "ranking.Window"

	if c.Query("from") == "" {
		respond.Error(c, op, common.Validation(op, "параметр from обязателен"))
		return
	}
	from, err := parseDay(c.Query("from"), h.now())
	if err != nil {
		respond.Error(c, op, err)
		return
	}
	to, err := parseDay(c.Query("to"), h.now())
	if err != nil {
		respond.Error(c, op, err)
		return
	}
	brandIDs, err := parseBrandIDs(c.Query("brandIds"))
	if err != nil {
		respond.Error(c, op, err)
		return
	}

	counts, err := h.aggregator.TallyWindow(c.Request.Context(), from, to, brandIDs)
	if err != nil {
		if common.KindOf(err) == common.KindInternal {
			err = common.Internal(op, err)
		}
		respond.Error(c, op, err)
		return
	}
	respond.OK(c, http.StatusOK, windowResponse{
		From:   common.FormatDay(from),
		To:     common.FormatDay(to),
		Brands: counts,
	})
}

func parseDay(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return common.VoteDay(now), nil
	}
	day, err := common.ParseDay(raw)
	if err != nil {
		return time.Time{}, common.Validation("ranking.parseDay", err.Error())
	}
	return day, nil
}

func parseBrandIDs(raw string) ([]int64, error) {
	ids, err := common.ParseInt64CSV(raw)
	if err != nil {
		return nil, common.Validation("ranking.parseBrandIDs", "brandIds: список целых через запятую")
	}
	for _, id := range ids {
		if id <= 0 {
			return nil, common.Validation("ranking.parseBrandIDs", "brandIds: идентификаторы должны быть > 0")
		}
	}
	return ids, nil
}

// Package respond формирует HTTP-ответы сервиса.
// Успех — полезная нагрузка как есть; ошибка — конверт
// {statusCode, context, message}, где context — имя операции.
package respond

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/brand-votes/internal/common"
)

// ErrorBody — конверт ошибки.
type ErrorBody struct {
	StatusCode int    `json:"statusCode"`
	Context    string `json:"context"`
	Message    string `json:"message"`
}

// StatusFor возвращает HTTP-код для вида ошибки.
func StatusFor(kind common.Kind) int {
	switch kind {
	case common.KindValidation:
		return http.StatusBadRequest
	case common.KindInvalidBrandReference:
		return http.StatusUnprocessableEntity
	case common.KindQuotaExceeded:
		return http.StatusConflict
	case common.KindNotFound:
		return http.StatusNotFound
	case common.KindAuthorizationDenied:
		return http.StatusForbidden
	case common.KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// OK отдаёт полезную нагрузку без обёртки.
func OK(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

// Error отдаёт конверт ошибки и прерывает цепочку обработчиков.
// Внутренние сбои пишутся в лог целиком, клиент видит только общее сообщение.
func Error(c *gin.Context, op string, err error) {
	kind := common.KindOf(err)
	body := ErrorBody{
		StatusCode: StatusFor(kind),
		Context:    op,
		Message:    "внутренняя ошибка",
	}

	var de *common.Error
	if errors.As(err, &de) {
		if de.Op != "" {
			body.Context = de.Op
		}
		if kind != common.KindInternal && de.Message != "" {
			body.Message = de.Message
		}
	}

	entry := log.WithFields(log.Fields{
		"op":     body.Context,
		"kind":   kind.String(),
		"path":   c.FullPath(),
		"status": body.StatusCode,
	})
	if kind == common.KindInternal {
		entry.WithError(err).Error("Ошибка обработки запроса")
	} else {
		entry.Debug(body.Message)
	}

	c.AbortWithStatusJSON(body.StatusCode, body)
}

// Int64Param разбирает положительный int64 из параметра пути.
func Int64Param(c *gin.Context, name string) (int64, error) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		return 0, common.Validation("respond.Int64Param", "некорректный параметр "+name)
	}
	return v, nil
}

// IntQuery разбирает целый query-параметр; пустой — def.
func IntQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, common.Validation("respond.IntQuery", "некорректный параметр "+name)
	}
	return v, nil
}


// Package common — errors.go определяет доменные ошибки сервиса голосования.
// Каждая ошибка несёт вид (Kind), имя операции и сообщение для клиента.
// HTTP-слой по виду ошибки выбирает код ответа, а сервисы сравнивают
// ошибки через errors.Is с сентинелами ниже.
package common

import (
	"errors"
	"fmt"
	"strings"
)

// Kind — вид доменной ошибки.
type Kind int

const (
	KindInternal              Kind = iota // Неожиданный сбой хранилища или транзакции
	KindValidation                        // Некорректный пакет: пустой, дубликаты, лишние бренды
	KindInvalidBrandReference             // В пакете есть несуществующий бренд
	KindQuotaExceeded                     // Пользователь уже голосовал в этот UTC-день
	KindNotFound                          // Пользователь или бренд не найден
	KindAuthorizationDenied               // Нет прав на операцию
	KindUnauthenticated                   // Сессия не предъявлена или истекла
)

// String возвращает имя вида ошибки для логов.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvalidBrandReference:
		return "invalid_brand_reference"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindNotFound:
		return "not_found"
	case KindAuthorizationDenied:
		return "authorization_denied"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "internal"
	}
}

// Error — доменная ошибка.
//
// Op — имя операции ("voting.VoteForBrands"), Message — текст для клиента,
// Err — исходная причина (никогда не уходит клиенту).
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	if e.Message != "" {
		sb.WriteString(e.Message)
	} else {
		sb.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is сравнивает только вид ошибки, поэтому
// errors.Is(err, common.ErrQuotaExceeded) работает для любой операции.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Сентинелы для errors.Is
var (
	ErrValidation            = &Error{Kind: KindValidation}
	ErrInvalidBrandReference = &Error{Kind: KindInvalidBrandReference}
	ErrQuotaExceeded         = &Error{Kind: KindQuotaExceeded}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrAuthorizationDenied   = &Error{Kind: KindAuthorizationDenied}
	ErrUnauthenticated       = &Error{Kind: KindUnauthenticated}
	ErrInternal              = &Error{Kind: KindInternal}
)

// Ошибки начисления очков
var (
	// ErrInvalidAmount — сумма начисления должна быть положительной
	ErrInvalidAmount = errors.New("сумма начисления должна быть положительной")
	// ErrBatchOwnerMismatch — batch id уже принадлежит другому пользователю
	ErrBatchOwnerMismatch = errors.New("идентификатор пакета принадлежит другому пользователю")
)

// Validation создаёт ошибку валидации.
func Validation(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

// QuotaExceeded — пользователь уже проголосовал сегодня (нормальный исход, не сбой).
func QuotaExceeded(op string) *Error {
	return &Error{Kind: KindQuotaExceeded, Op: op, Message: "вы уже голосовали сегодня"}
}

// InvalidBrandReference перечисляет нерезолвящиеся бренды.
func InvalidBrandReference(op string, brandIDs []int64) *Error {
	ids := make([]string, 0, len(brandIDs))
	for _, id := range brandIDs {
		ids = append(ids, fmt.Sprintf("%d", id))
	}
	return &Error{
		Kind:    KindInvalidBrandReference,
		Op:      op,
		Message: "неизвестные бренды: " + strings.Join(ids, ", "),
	}
}

// NotFound — сущность не найдена.
func NotFound(op, what string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: what + " не найден"}
}

// Denied — у субъекта нет нужной возможности.
func Denied(op, message string) *Error {
	return &Error{Kind: KindAuthorizationDenied, Op: op, Message: message}
}

// Unauthenticated — запрос без действующей сессии.
func Unauthenticated(op string) *Error {
	return &Error{Kind: KindUnauthenticated, Op: op, Message: "требуется авторизация"}
}

// Internal оборачивает неожиданный сбой. Клиент видит только общее сообщение.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Message: "внутренняя ошибка", Err: err}
}

// KindOf возвращает вид ошибки. Всё, что не *Error, считается внутренним сбоем.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsExpected сообщает, является ли ошибка ожидаемым исходом
// (квота, валидация, неизвестный бренд), а не сбоем.
func IsExpected(err error) bool {
	switch KindOf(err) {
	case KindQuotaExceeded, KindValidation, KindInvalidBrandReference:
		return true
	}
	return false
}

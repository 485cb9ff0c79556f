// Package quota решает, может ли пользователь отправить пакет голосов за день.
//
// Квота: один пакет на пользователя за UTC-день. Enforcer только читает
// состояние; окончательную гарантию даёт ограничение уникальности
// (user_id, vote_date) в хранилище, которое проверяет ledger при вставке.
package quota

import (
	"context"
	"fmt"
	"time"

	"serotonyl.ru/brand-votes/internal/common"
)

// Store — что Enforcer'у нужно от хранилища пакетов.
type Store interface {
	// BatchExists сообщает, есть ли зафиксированный пакет пользователя за день.
	BatchExists(ctx context.Context, userID int64, day time.Time) (bool, error)
}

// Enforcer проверяет дневную квоту голосования.
type Enforcer struct {
	store Store
	now   func() time.Time
}

// NewEnforcer создаёт Enforcer поверх хранилища пакетов.
func NewEnforcer(store Store) *Enforcer {
	return &Enforcer{store: store, now: time.Now}
}

// WithClock подменяет источник времени (для тестов и задач по расписанию).
func (e *Enforcer) WithClock(now func() time.Time) *Enforcer {
	e.now = now
	return e
}

// Day возвращает UTC-день момента t.
func (e *Enforcer) Day(t time.Time) time.Time {
	return common.VoteDay(t)
}

// Today возвращает текущий UTC-день.
func (e *Enforcer) Today() time.Time {
	return common.VoteDay(e.now())
}

// CanVote возвращает true, если у пользователя нет пакета за день.
func (e *Enforcer) CanVote(ctx context.Context, userID int64, day time.Time) (bool, error) {
	exists, err := e.store.BatchExists(ctx, userID, common.VoteDay(day))
	if err != nil {
		return false, fmt.Errorf("ошибка проверки квоты: %w", err)
	}
	return !exists, nil
}

// Check — то же, что CanVote, но возвращает QuotaExceeded вместо false.
// Это обычный исход «уже голосовал», а не сбой.
func (e *Enforcer) Check(ctx context.Context, userID int64, day time.Time) error {
	ok, err := e.CanVote(ctx, userID, day)
	if err != nil {
		return err
	}
	if !ok {
		return common.QuotaExceeded("quota.Check")
	}
	return nil
}

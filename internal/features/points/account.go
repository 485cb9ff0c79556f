// Package points — account.go: начисление очков и сверка баланса с журналом.
package points

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/brand-votes/internal/common"
	"serotonyl.ru/brand-votes/internal/db/postgres"
)

// ErrDuplicateBatch — начисление с таким batch id уже записано.
var ErrDuplicateBatch = errors.New("начисление за пакет уже существует")

// Store — хранилище журнала начислений и кеша балансов.
type Store interface {
	LockBalance(ctx context.Context, userID int64) (int64, error)
	ActionByBatch(ctx context.Context, batchID uuid.UUID) (*PointAction, error)
	InsertAction(ctx context.Context, a *PointAction) error
	CreditBalance(ctx context.Context, userID, amount int64) error
	GetBalance(ctx context.Context, userID int64) (*Balance, error)
	SumActions(ctx context.Context, userID int64) (int64, error)
	SetBalance(ctx context.Context, userID, balance int64) error
	ListBalanceDrift(ctx context.Context) ([]Drift, error)
	ListActions(ctx context.Context, userID int64, limit int) ([]PointAction, error)
}

// Account управляет очками пользователей.
type Account struct {
	store Store
	tx    postgres.Transactor
}

// NewAccount создаёт Account.
func NewAccount(store Store, tx postgres.Transactor) *Account {
	return &Account{store: store, tx: tx}
}

// AwardPoints начисляет amount очков за пакет batchID и возвращает новый баланс.
//
// Идемпотентна по batchID: повторный вызов не создаёт второго начисления
// и возвращает баланс, записанный при первом. Строка баланса блокируется
// на время транзакции, так что параллельные повторы выстраиваются в очередь.
//
// Если ctx уже несёт транзакцию (VoteSession), начисление выполняется в ней.
func (a *Account) AwardPoints(ctx context.Context, userID, amount int64, reason string, batchID uuid.UUID) (int64, error) {
	const op = "points.AwardPoints"

	if amount <= 0 {
		return 0, &common.Error{Kind: common.KindValidation, Op: op, Message: common.ErrInvalidAmount.Error(), Err: common.ErrInvalidAmount}
	}
	if batchID == uuid.Nil {
		return 0, common.Validation(op, "пустой идентификатор пакета")
	}

	var balance int64
	err := a.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := a.store.LockBalance(ctx, userID)
		if err != nil {
			return err
		}

		existing, err := a.store.ActionByBatch(ctx, batchID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.UserID != userID {
				return &common.Error{Kind: common.KindValidation, Op: op, Message: common.ErrBatchOwnerMismatch.Error(), Err: common.ErrBatchOwnerMismatch}
			}
			balance = existing.BalanceAfter
			log.WithFields(log.Fields{
				"user_id":  userID,
				"batch_id": batchID,
			}).Debug("Повторное начисление за пакет, возвращаем прежний результат")
			return nil
		}

		action := &PointAction{
			UserID:       userID,
			Amount:       amount,
			Reason:       reason,
			BatchID:      batchID,
			BalanceAfter: current + amount,
		}
		if err := a.store.InsertAction(ctx, action); err != nil {
			if errors.Is(err, ErrDuplicateBatch) {
				return common.Validation(op, "идентификатор пакета уже использован")
			}
			return err
		}
		if err := a.store.CreditBalance(ctx, userID, amount); err != nil {
			return err
		}
		balance = action.BalanceAfter
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Recorded возвращает начисление за пакет batchID или nil, если его нет.
// Повтор пакета отдаёт клиенту именно его, а не пересчёт по текущей политике.
func (a *Account) Recorded(ctx context.Context, batchID uuid.UUID) (*PointAction, error) {
	return a.store.ActionByBatch(ctx, batchID)
}

// Balance возвращает кешированный баланс пользователя.
func (a *Account) Balance(ctx context.Context, userID int64) (*Balance, error) {
	return a.store.GetBalance(ctx, userID)
}

// History возвращает последние начисления пользователя.
func (a *Account) History(ctx context.Context, userID int64, limit int) ([]PointAction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return a.store.ListActions(ctx, userID, limit)
}

// Recompute пересчитывает баланс пользователя по журналу и обновляет кеш.
func (a *Account) Recompute(ctx context.Context, userID int64) (int64, error) {
	var sum int64
	err := a.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := a.store.LockBalance(ctx, userID); err != nil {
			return err
		}
		var err error
		sum, err = a.store.SumActions(ctx, userID)
		if err != nil {
			return err
		}
		return a.store.SetBalance(ctx, userID, sum)
	})
	if err != nil {
		return 0, fmt.Errorf("ошибка пересчёта баланса %d: %w", userID, err)
	}
	return sum, nil
}

// ReconcileAll находит все разошедшиеся кеши балансов и пересчитывает их.
// Возвращает число исправленных пользователей.
func (a *Account) ReconcileAll(ctx context.Context) (int, error) {
	drifts, err := a.store.ListBalanceDrift(ctx)
	if err != nil {
		return 0, err
	}

	fixed := 0
	for _, d := range drifts {
		actual, err := a.Recompute(ctx, d.UserID)
		if err != nil {
			log.WithError(err).WithField("user_id", d.UserID).Error("Не удалось пересчитать баланс")
			continue
		}
		log.WithFields(log.Fields{
			"user_id": d.UserID,
			"cached":  d.Cached,
			"actual":  actual,
		}).Warn("Кеш баланса расходился с журналом, исправлен")
		fixed++
	}
	return fixed, nil
}

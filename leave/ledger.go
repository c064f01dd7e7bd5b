/*
ledger.go - Per-(user, leave type) balance ledger

PURPOSE:
  Tracks remaining leave days. There is at most one stored record per
  (user, leave type). Reads that find no record fall back to the leave
  type's default allocation without writing anything; the record is
  materialized by the first write (reserve, release or set).

OPERATIONS:
  GetBalance   - current balance, default allocation if never written
  ListBalances - one entry per known leave type
  Reserve      - deduct days or fail with InsufficientBalance (no partial write)
  Release      - add days back (admin correction)
  SetBalance   - admin overwrite

BYPASS TYPES:
  Leave types with RequiresBalance=false never touch the ledger. Reserve and
  Release on them succeed without reading or writing a record.

ATOMICITY:
  Reserve's check-and-deduct happens inside one WithTx call. The engine
  calls reserveIn directly so that approval and deduction share a
  transaction.

SEE ALSO:
  - engine.go: Approval path calls reserveIn
  - store.go:  BalanceStore
*/
package leave

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Ledger struct {
	store  TxStore
	clock  Clock
	logger *zap.Logger
}

func NewLedger(store TxStore, clock Clock, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.L()
	}
	return &Ledger{store: store, clock: clock, logger: logger.Named("leave.ledger")}
}

// =============================================================================
// READS
// =============================================================================

// GetBalance returns the current balance for (userID, leaveTypeID).
func (l *Ledger) GetBalance(ctx context.Context, userID UserID, leaveTypeID LeaveTypeID) (Balance, error) {
	lt, err := loadLeaveType(ctx, l.store, leaveTypeID)
	if err != nil {
		return Balance{}, err
	}
	return balanceIn(ctx, l.store, userID, lt)
}

// ListBalances returns one balance per leave type, ordered by leave type name.
// Employees may only list their own balances.
func (l *Ledger) ListBalances(ctx context.Context, actor Actor, userID UserID) ([]Balance, error) {
	if !actor.IsAdmin() && actor.UserID != userID {
		return nil, unauthorized("reading another user's balances")
	}
	if _, err := loadUser(ctx, l.store, userID); err != nil {
		return nil, err
	}

	types, err := l.store.ListLeaveTypes(ctx)
	if err != nil {
		return nil, storageErr("list leave types", err)
	}
	stored, err := l.store.ListBalances(ctx, userID)
	if err != nil {
		return nil, storageErr("list balances", err)
	}
	byType := make(map[LeaveTypeID]Balance, len(stored))
	for _, b := range stored {
		byType[b.LeaveTypeID] = b
	}

	out := make([]Balance, 0, len(types))
	for i := range types {
		lt := &types[i]
		if b, ok := byType[lt.ID]; ok {
			out = append(out, decorate(b, lt))
			continue
		}
		out = append(out, defaultBalance(userID, lt))
	}
	return out, nil
}

// =============================================================================
// WRITES
// =============================================================================

// Reserve deducts days from the balance. Either the whole amount is deducted
// or nothing is.
func (l *Ledger) Reserve(ctx context.Context, userID UserID, leaveTypeID LeaveTypeID, days decimal.Decimal) (Balance, error) {
	if !days.IsPositive() {
		return Balance{}, invalidArgument("days must be positive, got %s", days)
	}

	var out Balance
	err := l.store.WithTx(ctx, func(tx Store) error {
		lt, err := loadLeaveType(ctx, tx, leaveTypeID)
		if err != nil {
			return err
		}
		out, err = l.reserveIn(ctx, tx, userID, lt, days)
		return err
	})
	if err != nil {
		err = storageErr("reserve balance", err)
		return Balance{}, err
	}
	return out, nil
}

// reserveIn is Reserve against an open transaction.
func (l *Ledger) reserveIn(ctx context.Context, s Store, userID UserID, lt *LeaveType, days decimal.Decimal) (Balance, error) {
	current, err := balanceIn(ctx, s, userID, lt)
	if err != nil {
		return Balance{}, err
	}
	if !lt.RequiresBalance {
		return current, nil
	}

	if current.Days.LessThan(days) {
		l.logger.Warn("reserve rejected",
			zap.String("user_id", string(userID)),
			zap.String("leave_type_id", string(lt.ID)),
			zap.String("available", current.Days.String()),
			zap.String("requested", days.String()),
		)
		return Balance{}, &InsufficientBalanceError{
			UserID:      userID,
			LeaveTypeID: lt.ID,
			Available:   current.Days,
			Requested:   days,
		}
	}

	next := current
	next.Days = current.Days.Sub(days)
	next.UpdatedAt = l.clock.Now()
	next.Persisted = true
	if err := s.PutBalance(ctx, next); err != nil {
		l.logger.Error("reserve persist failed", zap.Error(err))
		return Balance{}, storageErr("put balance", err)
	}
	return next, nil
}

// Release credits days back to the balance. Admin only.
func (l *Ledger) Release(ctx context.Context, actor Actor, userID UserID, leaveTypeID LeaveTypeID, days decimal.Decimal) (Balance, error) {
	if !actor.IsAdmin() {
		return Balance{}, unauthorized("releasing balance")
	}
	if !days.IsPositive() {
		return Balance{}, invalidArgument("days must be positive, got %s", days)
	}

	var out Balance
	err := l.store.WithTx(ctx, func(tx Store) error {
		if _, err := loadUser(ctx, tx, userID); err != nil {
			return err
		}
		lt, err := loadLeaveType(ctx, tx, leaveTypeID)
		if err != nil {
			return err
		}
		current, err := balanceIn(ctx, tx, userID, lt)
		if err != nil {
			return err
		}
		if !lt.RequiresBalance {
			out = current
			return nil
		}

		out = current
		out.Days = current.Days.Add(days)
		out.UpdatedAt = l.clock.Now()
		out.Persisted = true
		if err := tx.PutBalance(ctx, out); err != nil {
			return storageErr("put balance", err)
		}
		return nil
	})
	if err != nil {
		err = storageErr("release balance", err)
		return Balance{}, err
	}

	l.logger.Info("balance released",
		zap.String("actor_id", string(actor.UserID)),
		zap.String("user_id", string(userID)),
		zap.String("leave_type_id", string(leaveTypeID)),
		zap.String("days", days.String()),
	)
	return out, nil
}

// SetBalance overwrites the balance for (userID, leaveTypeID). Admin only.
func (l *Ledger) SetBalance(ctx context.Context, actor Actor, userID UserID, leaveTypeID LeaveTypeID, days decimal.Decimal) (Balance, error) {
	if !actor.IsAdmin() {
		return Balance{}, unauthorized("setting balance")
	}
	if days.IsNegative() {
		l.logger.Warn("set balance validation failed", zap.String("days", days.String()))
		return Balance{}, invalidArgument("days must not be negative, got %s", days)
	}

	var out Balance
	err := l.store.WithTx(ctx, func(tx Store) error {
		if _, err := loadUser(ctx, tx, userID); err != nil {
			return err
		}
		lt, err := loadLeaveType(ctx, tx, leaveTypeID)
		if err != nil {
			return err
		}
		out = Balance{
			UserID:          userID,
			LeaveTypeID:     lt.ID,
			LeaveTypeName:   lt.Name,
			RequiresBalance: lt.RequiresBalance,
			Days:            days,
			UpdatedAt:       l.clock.Now(),
			Persisted:       true,
		}
		if err := tx.PutBalance(ctx, out); err != nil {
			l.logger.Error("set balance persist failed", zap.Error(err))
			return storageErr("put balance", err)
		}
		return nil
	})
	if err != nil {
		err = storageErr("set balance", err)
		return Balance{}, err
	}

	l.logger.Info("balance set",
		zap.String("actor_id", string(actor.UserID)),
		zap.String("user_id", string(userID)),
		zap.String("leave_type_id", string(leaveTypeID)),
		zap.String("days", days.String()),
	)
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func balanceIn(ctx context.Context, s Store, userID UserID, lt *LeaveType) (Balance, error) {
	b, err := s.GetBalance(ctx, userID, lt.ID)
	if err != nil {
		return Balance{}, storageErr("get balance", err)
	}
	if b == nil {
		return defaultBalance(userID, lt), nil
	}
	return decorate(*b, lt), nil
}

func defaultBalance(userID UserID, lt *LeaveType) Balance {
	return Balance{
		UserID:          userID,
		LeaveTypeID:     lt.ID,
		LeaveTypeName:   lt.Name,
		RequiresBalance: lt.RequiresBalance,
		Days:            lt.DefaultAllocation,
	}
}

func decorate(b Balance, lt *LeaveType) Balance {
	b.LeaveTypeName = lt.Name
	b.RequiresBalance = lt.RequiresBalance
	b.Persisted = true
	return b
}

func loadLeaveType(ctx context.Context, s Store, id LeaveTypeID) (*LeaveType, error) {
	lt, err := s.GetLeaveType(ctx, id)
	if err != nil {
		return nil, storageErr("get leave type", err)
	}
	if lt == nil {
		return nil, &NotFoundError{Kind: "leave type", ID: string(id)}
	}
	return lt, nil
}

func loadUser(ctx context.Context, s Store, id UserID) (*User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, storageErr("get user", err)
	}
	if u == nil {
		return nil, &NotFoundError{Kind: "user", ID: string(id)}
	}
	return u, nil
}

/*
store.go - Persistence interfaces for the leave engine

PURPOSE:
  Defines the boundary between the lifecycle logic and the database.
  Three logical collections back the core (leave_requests, leave_balances,
  leave_types), plus the user directory and the notification inbox.

KEY INTERFACES:
  DirectoryStore:    Users and leave types
  BalanceStore:      One record per (user, leave type), upserted
  RequestStore:      Requests with compare-and-set status transitions
  NotificationStore: Per-user inbox
  TxStore:           Store + WithTx for atomic multi-step operations

LOOKUP CONVENTION:
  Get* methods return (nil, nil) when the record does not exist. The engine
  turns that into a NotFoundError; stores never invent domain errors except
  for uniqueness violations they detect themselves.

ATOMICITY:
  WithTx runs fn against a transactional view. If fn returns an error,
  nothing fn wrote is visible afterwards. Implementations serialize WithTx
  calls, which is what makes reserve and decide race-free.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite (database/sql + go-sqlite3)
  - leave/store/memory.go:  In-memory for tests and demos

SEE ALSO:
  - ledger.go: Uses BalanceStore
  - engine.go: Uses RequestStore inside WithTx
*/
package leave

import (
	"context"
	"time"
)

// =============================================================================
// DIRECTORY - Users and leave types
// =============================================================================

type DirectoryStore interface {
	GetUser(ctx context.Context, id UserID) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	// SaveUser inserts or replaces a user.
	SaveUser(ctx context.Context, u User) error

	GetLeaveType(ctx context.Context, id LeaveTypeID) (*LeaveType, error)
	GetLeaveTypeByName(ctx context.Context, name string) (*LeaveType, error)
	ListLeaveTypes(ctx context.Context) ([]LeaveType, error)
	// SaveLeaveType inserts a leave type. Names are unique.
	SaveLeaveType(ctx context.Context, lt LeaveType) error
}

// =============================================================================
// BALANCES - Unique on (user, leave type)
// =============================================================================

type BalanceStore interface {
	GetBalance(ctx context.Context, userID UserID, leaveTypeID LeaveTypeID) (*Balance, error)
	// ListBalances returns stored records only.
	ListBalances(ctx context.Context, userID UserID) ([]Balance, error)
	// PutBalance upserts the record for (b.UserID, b.LeaveTypeID).
	PutBalance(ctx context.Context, b Balance) error
}

// =============================================================================
// REQUESTS
// =============================================================================

// RequestFilter narrows ListRequests. Nil fields match everything.
type RequestFilter struct {
	UserID *UserID
	Status *Status
}

type RequestStore interface {
	GetRequest(ctx context.Context, id RequestID) (*Request, error)
	InsertRequest(ctx context.Context, r Request) error

	// TransitionRequest moves a request from `from` to `to` only if its current
	// status is still `from`. Returns false when the status did not match.
	TransitionRequest(ctx context.Context, id RequestID, from, to Status, decidedBy UserID, at time.Time) (bool, error)

	// ListRequests returns requests ordered by (created_at, id).
	ListRequests(ctx context.Context, filter RequestFilter) ([]Request, error)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

type NotificationStore interface {
	InsertNotification(ctx context.Context, n Notification) error
	// ListNotifications returns newest first.
	ListNotifications(ctx context.Context, userID UserID) ([]Notification, error)
	// MarkNotificationRead returns false if no notification with that id belongs to userID.
	MarkNotificationRead(ctx context.Context, userID UserID, id NotificationID) (bool, error)
}

// =============================================================================
// COMPOSITE STORES
// =============================================================================

type Store interface {
	DirectoryStore
	BalanceStore
	RequestStore
	NotificationStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

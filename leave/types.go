/*
Package leave provides the leave-request lifecycle and balance ledger.

PURPOSE:
  This package owns the only part of the leave system with real invariants:
  the state machine that takes a request from pending to a final decision,
  and the per-(user, leave type) balance ledger that approvals settle against.
  Everything else (HTTP, persistence engines, notification delivery) plugs in
  through the interfaces in store.go and events.go.

KEY CONCEPTS IN THIS FILE (types.go):
  - User / Role: identity as supplied by the directory, never mutated here
  - LeaveType: category with a default allocation and a RequiresBalance flag
  - Balance: remaining days for one (user, leave type) pair
  - Request: a leave request and its status
  - Actor: the authenticated caller of every operation

INVARIANTS:
  - At most one balance record per (user, leave type)
  - A balance is never negative
  - pending -> approved | rejected, exactly once; both are terminal
  - Balance is deducted exactly once, at approval
  - StartDate <= EndDate for every stored request

USAGE:
  engine := leave.NewEngine(store, leave.SystemClock{}, emitter, logger)
  req, err := engine.CreateRequest(ctx, actor, leave.CreateRequestInput{...})
  req, err = engine.Decide(ctx, admin, req.ID, leave.DecisionApprove)

SEE ALSO:
  - ledger.go: Balance ledger operations
  - engine.go: Request lifecycle engine
  - errors.go: Error taxonomy
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type LeaveTypeID string
type RequestID string
type NotificationID string

// =============================================================================
// DAYS - Decimal day counts
// =============================================================================

// NewDays returns a day count from a float. Admin inputs arrive as JSON numbers.
func NewDays(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// DaysFromInt returns a whole day count.
func DaysFromInt(v int) decimal.Decimal { return decimal.NewFromInt(int64(v)) }

// =============================================================================
// USERS & ROLES
// =============================================================================

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleEmployee }

// User is owned by the registration collaborator. The engine only reads it.
type User struct {
	ID        UserID
	Username  string
	Email     string
	Role      Role
	Approved  bool
	CreatedAt time.Time
}

// Actor is the authenticated caller, as supplied by the identity collaborator.
type Actor struct {
	UserID UserID
	Role   Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// =============================================================================
// LEAVE TYPES
// =============================================================================

// LeaveType is a named category of leave.
// RequiresBalance=false types (e.g. unpaid leave) bypass the ledger entirely.
type LeaveType struct {
	ID                LeaveTypeID
	Name              string
	Description       string
	DefaultAllocation decimal.Decimal
	RequiresBalance   bool
	CreatedAt         time.Time
}

// =============================================================================
// BALANCES
// =============================================================================

// Balance is the remaining day count for one (user, leave type) pair.
// Persisted is false when no record exists and Days is the type's default allocation.
type Balance struct {
	UserID          UserID
	LeaveTypeID     LeaveTypeID
	LeaveTypeName   string
	RequiresBalance bool
	Days            decimal.Decimal
	UpdatedAt       time.Time
	Persisted       bool
}

// =============================================================================
// REQUESTS
// =============================================================================

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// IsTerminal reports whether no transition leaves this status.
func (s Status) IsTerminal() bool { return s == StatusApproved || s == StatusRejected }

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Target returns the status a decision moves a pending request to.
func (d Decision) Target() (Status, bool) {
	switch d {
	case DecisionApprove:
		return StatusApproved, true
	case DecisionReject:
		return StatusRejected, true
	default:
		return "", false
	}
}

// Request is a leave request. Only the engine creates or transitions it.
type Request struct {
	ID            RequestID
	UserID        UserID
	LeaveTypeID   LeaveTypeID
	LeaveTypeName string
	StartDate     Date
	EndDate       Date
	Status        Status
	Reason        string
	CreatedAt     time.Time
	DecidedBy     UserID
	DecidedAt     *time.Time
}

// Days returns the inclusive length of the request.
func (r Request) Days() decimal.Decimal {
	return DaysFromInt(DaysInclusive(r.StartDate, r.EndDate))
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// Notification is an inbox entry produced from lifecycle events.
type Notification struct {
	ID        NotificationID
	UserID    UserID
	Message   string
	Read      bool
	CreatedAt time.Time
}

package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LIFECYCLE EVENTS - Handed to the notification collaborator
// =============================================================================

type EventType string

const (
	EventRequestCreated  EventType = "request.created"
	EventRequestApproved EventType = "request.approved"
	EventRequestRejected EventType = "request.rejected"
)

// Event describes a committed state change. It is emitted after the write
// succeeds, never before.
type Event struct {
	Type          EventType       `json:"type"`
	RequestID     RequestID       `json:"request_id,omitempty"`
	UserID        UserID          `json:"user_id"`
	ActorID       UserID          `json:"actor_id"`
	LeaveTypeID   LeaveTypeID     `json:"leave_type_id"`
	LeaveTypeName string          `json:"leave_type_name"`
	StartDate     string          `json:"start_date,omitempty"`
	EndDate       string          `json:"end_date,omitempty"`
	Days          decimal.Decimal `json:"days"`
	At            time.Time       `json:"at"`
}

// Emitter receives lifecycle events. Emit must not block and must not fail
// the caller; delivery is best effort.
type Emitter interface {
	Emit(e Event)
}

// NopEmitter drops every event.
type NopEmitter struct{}

func (NopEmitter) Emit(Event) {}

func requestEvent(t EventType, r Request, actor UserID, at time.Time) Event {
	return Event{
		Type:          t,
		RequestID:     r.ID,
		UserID:        r.UserID,
		ActorID:       actor,
		LeaveTypeID:   r.LeaveTypeID,
		LeaveTypeName: r.LeaveTypeName,
		StartDate:     r.StartDate.String(),
		EndDate:       r.EndDate.String(),
		Days:          r.Days(),
		At:            at,
	}
}

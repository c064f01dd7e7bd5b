/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the leave package's domain model from the external API contract. Field
  names follow the existing web client (snake_case, `balance` for day
  counts, `is_approved` / `is_read` flags).

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry `validate` tags checked by go-playground/validator
  before the engine is called. Shape errors (missing fields, bad enums)
  stop here; business rules (date order, past dates, balance) are the
  engine's job.

SEE ALSO:
  - handlers.go: Uses these types
  - errors.go:   ErrorResponse codes
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// USERS
// =============================================================================

type UserDTO struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	IsApproved bool   `json:"is_approved"`
	CreatedAt  string `json:"created_at"`
}

func toUserDTO(u leave.User) UserDTO {
	return UserDTO{
		ID:         string(u.ID),
		Username:   u.Username,
		Email:      u.Email,
		Role:       string(u.Role),
		IsApproved: u.Approved,
		CreatedAt:  u.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

type LeaveTypeDTO struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	DefaultAllocation float64 `json:"default_allocation"`
	RequiresBalance   bool    `json:"requires_balance"`
	CreatedAt         string  `json:"created_at"`
}

type CreateLeaveTypeRequest struct {
	Name              string   `json:"name" validate:"required,max=100"`
	Description       string   `json:"description" validate:"max=500"`
	DefaultAllocation *float64 `json:"default_allocation" validate:"required,gte=0"`
	// Pointer so an omitted field defaults to true.
	RequiresBalance *bool `json:"requires_balance"`
}

func toLeaveTypeDTO(lt leave.LeaveType) LeaveTypeDTO {
	return LeaveTypeDTO{
		ID:                string(lt.ID),
		Name:              lt.Name,
		Description:       lt.Description,
		DefaultAllocation: lt.DefaultAllocation.InexactFloat64(),
		RequiresBalance:   lt.RequiresBalance,
		CreatedAt:         lt.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// BALANCES
// =============================================================================

type BalanceDTO struct {
	UserID          string  `json:"user_id"`
	LeaveTypeID     string  `json:"leave_type_id"`
	LeaveTypeName   string  `json:"leave_type_name"`
	RequiresBalance bool    `json:"requires_balance"`
	Balance         float64 `json:"balance"`
	UpdatedAt       string  `json:"updated_at,omitempty"`
	// IsDefault is true when no record exists yet and Balance is the type's default allocation.
	IsDefault bool `json:"is_default"`
}

type SetBalanceRequest struct {
	UserID      string   `json:"user_id" validate:"required"`
	LeaveTypeID string   `json:"leave_type_id" validate:"required"`
	Balance     *float64 `json:"balance" validate:"required"`
}

type ReleaseBalanceRequest struct {
	UserID      string  `json:"user_id" validate:"required"`
	LeaveTypeID string  `json:"leave_type_id" validate:"required"`
	Days        float64 `json:"days" validate:"gt=0"`
}

func toBalanceDTO(b leave.Balance) BalanceDTO {
	dto := BalanceDTO{
		UserID:          string(b.UserID),
		LeaveTypeID:     string(b.LeaveTypeID),
		LeaveTypeName:   b.LeaveTypeName,
		RequiresBalance: b.RequiresBalance,
		Balance:         b.Days.InexactFloat64(),
		IsDefault:       !b.Persisted,
	}
	if !b.UpdatedAt.IsZero() {
		dto.UpdatedAt = b.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

type LeaveRequestDTO struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	LeaveTypeID   string `json:"leave_type_id"`
	LeaveTypeName string `json:"leave_type_name"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Days          int    `json:"days"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
	CreatedAt     string `json:"created_at"`
	DecidedBy     string `json:"decided_by,omitempty"`
	DecidedAt     string `json:"decided_at,omitempty"`
}

type CreateLeaveRequestRequest struct {
	LeaveTypeID string `json:"leave_type_id" validate:"required"`
	StartDate   string `json:"start_date" validate:"required"`
	EndDate     string `json:"end_date" validate:"required"`
	Reason      string `json:"reason"`
}

// DecisionRequest is the body of POST /api/leave-requests/{id}/decision.
type DecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
}

// StatusUpdateRequest is the body of PUT /api/admin/leave-requests/{id}.
type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

func toLeaveRequestDTO(r leave.Request) LeaveRequestDTO {
	dto := LeaveRequestDTO{
		ID:            string(r.ID),
		UserID:        string(r.UserID),
		LeaveTypeID:   string(r.LeaveTypeID),
		LeaveTypeName: r.LeaveTypeName,
		StartDate:     r.StartDate.String(),
		EndDate:       r.EndDate.String(),
		Days:          leave.DaysInclusive(r.StartDate, r.EndDate),
		Status:        string(r.Status),
		Reason:        r.Reason,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		DecidedBy:     string(r.DecidedBy),
	}
	if r.DecidedAt != nil {
		dto.DecidedAt = r.DecidedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

type NotificationDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

func toNotificationDTO(n leave.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        string(n.ID),
		UserID:    string(n.UserID),
		Message:   n.Message,
		IsRead:    n.Read,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// LoadScenarioResponse returns dev tokens for the seeded users.
type LoadScenarioResponse struct {
	Status   string            `json:"status"`
	Scenario string            `json:"scenario"`
	Tokens   map[string]string `json:"tokens"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave lifecycle over REST. Handles HTTP request/response,
  JSON serialization and shape validation, and delegates every rule to the
  leave package. Handlers never touch a store directly.

ENDPOINTS:
  Leave requests:
    POST   /api/leave-requests                 Create (pending)
    GET    /api/leave-requests?scope=mine|all  List
    GET    /api/leave-requests/{id}            Get one
    POST   /api/leave-requests/{id}/decision   {"decision": "approve"|"reject"}
    PUT    /api/admin/leave-requests/{id}      {"status": "approved"|"rejected"}

  Balances:
    GET    /api/me/balances                    Caller's balances
    GET    /api/users/{id}/balances            A user's balances (self or admin)
    POST   /api/admin/balances                 Set (overwrite)
    POST   /api/admin/balances/release         Credit days back (correction)

  Directory:
    GET    /api/leave-types                    List
    POST   /api/admin/leave-types              Create
    GET    /api/admin/users                    List
    GET    /api/admin/users/pending            Awaiting approval
    POST   /api/admin/users/{id}/approve       Approve

  Notifications:
    GET    /api/me/notifications
    POST   /api/me/notifications/{id}/read

ARCHITECTURE:
  Handler struct holds the engine, ledger and directory. The caller comes
  from the identity middleware (auth.go) as a leave.Actor; authorization
  decisions are made by the engine, not here.

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate shape (validator tags in dto.go)
  3. Call the engine
  4. Serialize response
  5. Map errors (errors.go)

ERROR HANDLING:
  Engine errors are surfaced verbatim as {"error", "code"}:
  - 400: invalid_argument, invalid_date_range, past_date_not_allowed
  - 401: missing/invalid token (middleware)
  - 403: unauthorized (role check)
  - 404: not_found
  - 409: already_decided
  - 422: insufficient_balance
  - 500: storage_failure

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine    *leave.Engine
	Ledger    *leave.Ledger
	Directory *leave.Directory
	Health    Pinger
	Logger    *zap.Logger

	validate *validator.Validate

	// Demo scenarios, nil unless EnableScenarios was called.
	scenarioStore   ScenarioStore
	scenarioClock   leave.Clock
	auth            *Authenticator
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler around an engine and directory.
func NewHandler(engine *leave.Engine, directory *leave.Directory, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.L()
	}
	return &Handler{
		Engine:    engine,
		Ledger:    engine.Ledger(),
		Directory: directory,
		Logger:    logger.Named("api"),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// =============================================================================
// LEAVE REQUEST HANDLERS
// =============================================================================

// CreateLeaveRequest files a new pending request for the caller.
func (h *Handler) CreateLeaveRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req CreateLeaveRequestRequest
	if !h.decode(w, r, &req) {
		return
	}

	start, err := leave.ParseDate(req.StartDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	end, err := leave.ParseDate(req.EndDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	created, err := h.Engine.CreateRequest(r.Context(), actor, leave.CreateRequestInput{
		LeaveTypeID: leave.LeaveTypeID(req.LeaveTypeID),
		StartDate:   start,
		EndDate:     end,
		Reason:      strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveRequestDTO(*created))
}

// ListLeaveRequests lists the caller's requests, or all requests for admins with scope=all.
func (h *Handler) ListLeaveRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	reqs, err := h.Engine.ListRequests(r.Context(), actor, r.URL.Query().Get("scope"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(reqs))
}

// ListAllLeaveRequests is the admin listing used by the dashboard.
func (h *Handler) ListAllLeaveRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	reqs, err := h.Engine.ListAll(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(reqs))
}

func (h *Handler) GetLeaveRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	req, err := h.Engine.GetRequest(r.Context(), actor, leave.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*req))
}

// DecideLeaveRequest approves or rejects a pending request.
func (h *Handler) DecideLeaveRequest(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.decide(w, r, leave.Decision(req.Decision))
}

// UpdateLeaveRequestStatus accepts the status-shaped body used by the web client.
func (h *Handler) UpdateLeaveRequestStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	decision := leave.DecisionReject
	if leave.Status(req.Status) == leave.StatusApproved {
		decision = leave.DecisionApprove
	}
	h.decide(w, r, decision)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, decision leave.Decision) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	updated, err := h.Engine.Decide(r.Context(), actor, leave.RequestID(chi.URLParam(r, "id")), decision)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*updated))
}

func toLeaveRequestDTOs(reqs []leave.Request) []LeaveRequestDTO {
	dtos := make([]LeaveRequestDTO, len(reqs))
	for i, req := range reqs {
		dtos[i] = toLeaveRequestDTO(req)
	}
	return dtos
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetMyBalances returns the caller's balance for every leave type.
func (h *Handler) GetMyBalances(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	h.writeBalances(w, r, actor, actor.UserID)
}

// GetUserBalances returns a user's balances. Employees may only read their own.
func (h *Handler) GetUserBalances(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	h.writeBalances(w, r, actor, leave.UserID(chi.URLParam(r, "id")))
}

func (h *Handler) writeBalances(w http.ResponseWriter, r *http.Request, actor leave.Actor, userID leave.UserID) {
	balances, err := h.Ledger.ListBalances(r.Context(), actor, userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SetBalance overwrites a user's balance for one leave type.
func (h *Handler) SetBalance(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req SetBalanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	b, err := h.Ledger.SetBalance(r.Context(), actor,
		leave.UserID(req.UserID), leave.LeaveTypeID(req.LeaveTypeID), leave.NewDays(*req.Balance))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

// ReleaseBalance credits days back to a balance.
func (h *Handler) ReleaseBalance(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req ReleaseBalanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	b, err := h.Ledger.Release(r.Context(), actor,
		leave.UserID(req.UserID), leave.LeaveTypeID(req.LeaveTypeID), leave.NewDays(req.Days))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

// =============================================================================
// DIRECTORY HANDLERS
// =============================================================================

func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Directory.ListLeaveTypes(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]LeaveTypeDTO, len(types))
	for i, lt := range types {
		dtos[i] = toLeaveTypeDTO(lt)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateLeaveType(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req CreateLeaveTypeRequest
	if !h.decode(w, r, &req) {
		return
	}
	requiresBalance := true
	if req.RequiresBalance != nil {
		requiresBalance = *req.RequiresBalance
	}
	lt, err := h.Directory.CreateLeaveType(r.Context(), actor, leave.CreateLeaveTypeInput{
		Name:              req.Name,
		Description:       req.Description,
		DefaultAllocation: leave.NewDays(*req.DefaultAllocation),
		RequiresBalance:   requiresBalance,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveTypeDTO(*lt))
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	users, err := h.Directory.ListUsers(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTOs(users))
}

func (h *Handler) ListPendingUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	users, err := h.Directory.ListPendingUsers(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTOs(users))
}

func (h *Handler) ApproveUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	u, err := h.Directory.ApproveUser(r.Context(), actor, leave.UserID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*u))
}

func toUserDTOs(users []leave.User) []UserDTO {
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	return dtos
}

// =============================================================================
// NOTIFICATION HANDLERS
// =============================================================================

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	notes, err := h.Directory.ListNotifications(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]NotificationDTO, len(notes))
	for i, n := range notes {
		dtos[i] = toNotificationDTO(n)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id := leave.NotificationID(chi.URLParam(r, "id"))
	if err := h.Directory.MarkNotificationRead(r.Context(), actor, id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			h.Logger.Error("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func requireActor(w http.ResponseWriter, r *http.Request) (leave.Actor, bool) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeErrorCode(w, http.StatusUnauthorized, "Authentication required", "unauthorized")
	}
	return actor, ok
}

// decode reads a JSON body into dst and runs its validate tags. On failure it
// writes a 400 and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "invalid_argument",
			Details: err.Error(),
		})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Validation failed",
			Code:    "invalid_argument",
			Details: validationDetails(err),
		})
		return false
	}
	return true
}

func validationDetails(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			out = append(out, fmt.Sprintf("%s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		out = append(out, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
	}
	return out
}

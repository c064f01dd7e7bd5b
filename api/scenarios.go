/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos and manual testing. Each scenario creates users, leave
	types, balances and pending requests that exercise one part of the
	lifecycle. Loading a scenario returns signed dev tokens for every
	seeded user so the API can be driven without a login service.

AVAILABLE SCENARIOS:

	basic:          One admin, two employees, one user awaiting approval
	approval-race:  Two pending requests that cannot both be approved
	low-balance:    A pending request larger than the remaining balance

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create users directly in the store
 3. Create leave types and set balances as the admin
 4. File pending requests through the engine, dated relative to today

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "approval-race"}

NOTE:

	Scenarios reset the database. Routes are mounted only when
	ENABLE_SCENARIOS is set.

SEE ALSO:
  - handlers.go: Handler
  - server.go:   Route gating
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/leave-engine/leave"
)

// ScenarioStore is a store that can be wiped.
type ScenarioStore interface {
	leave.Store
	Reset(ctx context.Context) error
}

const scenarioTokenTTL = 24 * time.Hour

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "basic",
		Name:        "Basic Organization",
		Description: "Admin, two employees, one pending registration, three leave types",
	},
	{
		ID:          "approval-race",
		Name:        "Approval Race",
		Description: "Balance of 5 with pending 3-day and 4-day requests: first approved wins",
	},
	{
		ID:          "low-balance",
		Name:        "Low Balance",
		Description: "Balance of 2 with a pending 5-day request that cannot be approved",
	},
}

// EnableScenarios mounts the demo routes on the next NewRouter call.
func (h *Handler) EnableScenarios(store ScenarioStore, auth *Authenticator, clock leave.Clock) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scenarioStore = store
	h.auth = auth
	h.scenarioClock = clock
}

func (h *Handler) scenariosEnabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scenarioStore != nil
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	var loader func(ctx context.Context, s *seed) error
	switch req.ScenarioID {
	case "basic":
		loader = loadBasicScenario
	case "approval-race":
		loader = loadApprovalRaceScenario
	case "low-balance":
		loader = loadLowBalanceScenario
	default:
		writeErrorCode(w, http.StatusBadRequest, "Unknown scenario", "invalid_argument")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.scenarioStore.Reset(ctx); err != nil {
		writeErrorCode(w, http.StatusInternalServerError, "Failed to reset database", "storage_failure")
		return
	}
	h.currentScenario = ""

	s := &seed{h: h, today: h.scenarioClock.Today(), now: h.scenarioClock.Now()}
	if err := loadBasicScenario(ctx, s); err != nil {
		writeErrorCode(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), "storage_failure")
		return
	}
	if req.ScenarioID != "basic" {
		if err := loader(ctx, s); err != nil {
			writeErrorCode(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), "storage_failure")
			return
		}
	}

	tokens := make(map[string]string, len(s.users))
	for _, u := range s.users {
		tok, err := h.auth.IssueToken(u.ID, scenarioTokenTTL)
		if err != nil {
			writeErrorCode(w, http.StatusInternalServerError, "Failed to issue tokens", "internal")
			return
		}
		tokens[u.Username] = tok
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, LoadScenarioResponse{Status: "loaded", Scenario: req.ScenarioID, Tokens: tokens})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// Fixed ids so demo scripts can address seeded records.
const (
	seedAdminID leave.UserID = "u-admin"
	seedAliceID leave.UserID = "u-alice"
	seedBobID   leave.UserID = "u-bob"
	seedCarolID leave.UserID = "u-carol"
)

const (
	seedAnnualKey = "Annual Leave"
	seedSickKey   = "Sick Leave"
	seedUnpaidKey = "Unpaid Leave"
)

type seed struct {
	h     *Handler
	today leave.Date
	now   time.Time
	users []leave.User
	types map[string]leave.LeaveTypeID
}

func (s *seed) admin() leave.Actor { return leave.Actor{UserID: seedAdminID, Role: leave.RoleAdmin} }

func (s *seed) request(ctx context.Context, user leave.UserID, typeName string, startIn, days int, reason string) error {
	start := s.today.AddDays(startIn)
	_, err := s.h.Engine.CreateRequest(ctx, leave.Actor{UserID: user, Role: leave.RoleEmployee}, leave.CreateRequestInput{
		LeaveTypeID: s.types[typeName],
		StartDate:   start,
		EndDate:     start.AddDays(days - 1),
		Reason:      reason,
	})
	return err
}

func loadBasicScenario(ctx context.Context, s *seed) error {
	s.users = []leave.User{
		{ID: seedAdminID, Username: "admin", Email: "admin@example.com", Role: leave.RoleAdmin, Approved: true, CreatedAt: s.now},
		{ID: seedAliceID, Username: "alice", Email: "alice@example.com", Role: leave.RoleEmployee, Approved: true, CreatedAt: s.now},
		{ID: seedBobID, Username: "bob", Email: "bob@example.com", Role: leave.RoleEmployee, Approved: true, CreatedAt: s.now},
		{ID: seedCarolID, Username: "carol", Email: "carol@example.com", Role: leave.RoleEmployee, Approved: false, CreatedAt: s.now},
	}
	for _, u := range s.users {
		if err := s.h.scenarioStore.SaveUser(ctx, u); err != nil {
			return err
		}
	}

	s.types = make(map[string]leave.LeaveTypeID)
	for _, in := range []leave.CreateLeaveTypeInput{
		{Name: seedAnnualKey, Description: "Paid annual vacation", DefaultAllocation: leave.DaysFromInt(20), RequiresBalance: true},
		{Name: seedSickKey, Description: "Paid sick leave", DefaultAllocation: leave.DaysFromInt(5), RequiresBalance: true},
		{Name: seedUnpaidKey, Description: "Unpaid time off", DefaultAllocation: leave.DaysFromInt(0), RequiresBalance: false},
	} {
		lt, err := s.h.Directory.CreateLeaveType(ctx, s.admin(), in)
		if err != nil {
			return err
		}
		s.types[in.Name] = lt.ID
	}

	if _, err := s.h.Ledger.SetBalance(ctx, s.admin(), seedAliceID, s.types[seedAnnualKey], leave.DaysFromInt(10)); err != nil {
		return err
	}
	return s.request(ctx, seedAliceID, seedAnnualKey, 7, 3, "Family trip")
}

func loadApprovalRaceScenario(ctx context.Context, s *seed) error {
	if _, err := s.h.Ledger.SetBalance(ctx, s.admin(), seedBobID, s.types[seedAnnualKey], leave.DaysFromInt(5)); err != nil {
		return err
	}
	if err := s.request(ctx, seedBobID, seedAnnualKey, 14, 3, "Conference"); err != nil {
		return err
	}
	return s.request(ctx, seedBobID, seedAnnualKey, 30, 4, "Holiday")
}

func loadLowBalanceScenario(ctx context.Context, s *seed) error {
	if _, err := s.h.Ledger.SetBalance(ctx, s.admin(), seedBobID, s.types[seedAnnualKey], leave.DaysFromInt(2)); err != nil {
		return err
	}
	return s.request(ctx, seedBobID, seedAnnualKey, 10, 5, "Long weekend plus")
}

/*
handlers_test.go - HTTP tests for the leave API

Tests for:
- Request lifecycle over HTTP (create, decide, list, get)
- Error code mapping (400/403/404/409/422)
- Balances, leave types, users and notifications endpoints
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testSecret = "test-secret"

var testNow = time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC)

type testServer struct {
	store  *store.TxMemory
	h      *Handler
	auth   *Authenticator
	router http.Handler
	clock  leave.Clock
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWith(t, RouterOptions{}, false)
}

func newTestServerWith(t *testing.T, opts RouterOptions, scenarios bool) *testServer {
	t.Helper()

	s := store.NewTxMemory()
	clock := leave.FixedClock{At: testNow}
	logger := zap.NewNop()

	engine := leave.NewEngine(s, clock, nil, logger)
	directory := leave.NewDirectory(s, clock, logger)
	auth := NewAuthenticator(testSecret, "leave-engine", directory, logger)
	h := NewHandler(engine, directory, logger)
	if scenarios {
		h.EnableScenarios(s, auth, clock)
	}

	ts := &testServer{store: s, h: h, auth: auth, router: NewRouter(h, auth, opts), clock: clock}
	ts.seed(t)
	return ts
}

func (ts *testServer) seed(t *testing.T) {
	ctx := context.Background()
	for _, u := range []leave.User{
		{ID: "admin", Username: "admin", Role: leave.RoleAdmin, Approved: true, CreatedAt: testNow},
		{ID: "alice", Username: "alice", Role: leave.RoleEmployee, Approved: true, CreatedAt: testNow},
		{ID: "bob", Username: "bob", Role: leave.RoleEmployee, Approved: true, CreatedAt: testNow},
		{ID: "carol", Username: "carol", Role: leave.RoleEmployee, Approved: false, CreatedAt: testNow},
	} {
		require.NoError(t, ts.store.SaveUser(ctx, u))
	}
	require.NoError(t, ts.store.SaveLeaveType(ctx, leave.LeaveType{
		ID: "annual", Name: "Annual Leave", DefaultAllocation: leave.DaysFromInt(20), RequiresBalance: true, CreatedAt: testNow,
	}))
	require.NoError(t, ts.store.SaveLeaveType(ctx, leave.LeaveType{
		ID: "unpaid", Name: "Unpaid Leave", DefaultAllocation: leave.DaysFromInt(0), RequiresBalance: false, CreatedAt: testNow,
	}))
}

func (ts *testServer) token(t *testing.T, userID leave.UserID) string {
	t.Helper()
	tok, err := ts.auth.IssueToken(userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(t *testing.T, method, path string, userID leave.UserID, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token(t, userID))
	}
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (ts *testServer) createRequest(t *testing.T, userID leave.UserID, start, end string) LeaveRequestDTO {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/api/leave-requests", userID, CreateLeaveRequestRequest{
		LeaveTypeID: "annual", StartDate: start, EndDate: end, Reason: "trip",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeBody[LeaveRequestDTO](t, rr)
}

func (ts *testServer) setBalance(t *testing.T, userID string, days float64) {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/api/admin/balances", "admin", SetBalanceRequest{
		UserID: userID, LeaveTypeID: "annual", Balance: &days,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func TestCreateLeaveRequest(t *testing.T) {
	ts := newTestServer(t)
	ts.setBalance(t, "alice", 10)

	req := ts.createRequest(t, "alice", "2024-01-05", "2024-01-07")

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, "pending", req.Status)
	assert.Equal(t, 3, req.Days)
	assert.Equal(t, "Annual Leave", req.LeaveTypeName)
	assert.Equal(t, "alice", req.UserID)
	assert.Empty(t, req.DecidedAt)

	// Creation does not touch the balance
	rr := ts.do(t, http.MethodGet, "/api/me/balances", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	balances := decodeBody[[]BalanceDTO](t, rr)
	require.Len(t, balances, 2)
	assert.Equal(t, 10.0, balances[0].Balance)
}

func TestCreateLeaveRequest_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		wantCode int
		wantErr  string
	}{
		{"end before start", CreateLeaveRequestRequest{LeaveTypeID: "annual", StartDate: "2024-03-10", EndDate: "2024-03-09"}, http.StatusBadRequest, "invalid_date_range"},
		{"past start", CreateLeaveRequestRequest{LeaveTypeID: "annual", StartDate: "2023-12-30", EndDate: "2024-01-03"}, http.StatusBadRequest, "past_date_not_allowed"},
		{"bad date format", CreateLeaveRequestRequest{LeaveTypeID: "annual", StartDate: "03/10/2024", EndDate: "2024-03-12"}, http.StatusBadRequest, "invalid_argument"},
		{"missing leave type", CreateLeaveRequestRequest{StartDate: "2024-03-10", EndDate: "2024-03-12"}, http.StatusBadRequest, "invalid_argument"},
		{"unknown leave type", CreateLeaveRequestRequest{LeaveTypeID: "nope", StartDate: "2024-03-10", EndDate: "2024-03-12"}, http.StatusNotFound, "not_found"},
		{"malformed json", "not an object", http.StatusBadRequest, "invalid_argument"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rr := ts.do(t, http.MethodPost, "/api/leave-requests", "alice", tt.body)
			assert.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			assert.Equal(t, tt.wantErr, decodeBody[ErrorResponse](t, rr).Code)
		})
	}
}

func TestDecideLeaveRequest_Lifecycle(t *testing.T) {
	// GIVEN: Alice has 10 days and a pending 3-day request
	// WHEN: Admin approves, then tries to reject
	// THEN: 200 approved with balance 7, then 409 with balance still 7

	ts := newTestServer(t)
	ts.setBalance(t, "alice", 10)
	req := ts.createRequest(t, "alice", "2024-01-05", "2024-01-07")

	rr := ts.do(t, http.MethodPost, "/api/leave-requests/"+req.ID+"/decision", "admin", DecisionRequest{Decision: "approve"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	approved := decodeBody[LeaveRequestDTO](t, rr)
	assert.Equal(t, "approved", approved.Status)
	assert.Equal(t, "admin", approved.DecidedBy)
	assert.NotEmpty(t, approved.DecidedAt)

	rr = ts.do(t, http.MethodPost, "/api/leave-requests/"+req.ID+"/decision", "admin", DecisionRequest{Decision: "reject"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "already_decided", decodeBody[ErrorResponse](t, rr).Code)

	rr = ts.do(t, http.MethodGet, "/api/users/alice/balances", "admin", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	balances := decodeBody[[]BalanceDTO](t, rr)
	assert.Equal(t, 7.0, balances[0].Balance)
	assert.False(t, balances[0].IsDefault)
}

func TestDecideLeaveRequest_InsufficientBalance(t *testing.T) {
	ts := newTestServer(t)
	ts.setBalance(t, "alice", 2)
	req := ts.createRequest(t, "alice", "2024-01-05", "2024-01-09")

	rr := ts.do(t, http.MethodPost, "/api/leave-requests/"+req.ID+"/decision", "admin", DecisionRequest{Decision: "approve"})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	resp := decodeBody[ErrorResponse](t, rr)
	assert.Equal(t, "insufficient_balance", resp.Code)
	assert.Contains(t, resp.Error, "available 2, requested 5")
	assert.Equal(t, map[string]any{"available": "2", "requested": "5"}, resp.Details)

	rr = ts.do(t, http.MethodGet, "/api/leave-requests/"+req.ID, "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "pending", decodeBody[LeaveRequestDTO](t, rr).Status)
}

func TestDecideLeaveRequest_Errors(t *testing.T) {
	ts := newTestServer(t)
	req := ts.createRequest(t, "alice", "2024-01-05", "2024-01-05")

	rr := ts.do(t, http.MethodPost, "/api/leave-requests/"+req.ID+"/decision", "alice", DecisionRequest{Decision: "approve"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "unauthorized", decodeBody[ErrorResponse](t, rr).Code)

	rr = ts.do(t, http.MethodPost, "/api/leave-requests/"+req.ID+"/decision", "admin", DecisionRequest{Decision: "maybe"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/leave-requests/missing/decision", "admin", DecisionRequest{Decision: "approve"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpdateLeaveRequestStatus(t *testing.T) {
	ts := newTestServer(t)
	req := ts.createRequest(t, "alice", "2024-01-05", "2024-01-06")

	rr := ts.do(t, http.MethodPut, "/api/admin/leave-requests/"+req.ID, "admin", StatusUpdateRequest{Status: "rejected"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "rejected", decodeBody[LeaveRequestDTO](t, rr).Status)

	rr = ts.do(t, http.MethodPut, "/api/admin/leave-requests/"+req.ID, "admin", StatusUpdateRequest{Status: "pending"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListLeaveRequests_Scopes(t *testing.T) {
	ts := newTestServer(t)
	ts.createRequest(t, "alice", "2024-01-05", "2024-01-05")
	ts.createRequest(t, "bob", "2024-01-08", "2024-01-09")

	rr := ts.do(t, http.MethodGet, "/api/leave-requests", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	mine := decodeBody[[]LeaveRequestDTO](t, rr)
	require.Len(t, mine, 1)
	assert.Equal(t, "alice", mine[0].UserID)

	rr = ts.do(t, http.MethodGet, "/api/leave-requests?scope=all", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/leave-requests?scope=all", "admin", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]LeaveRequestDTO](t, rr), 2)

	rr = ts.do(t, http.MethodGet, "/api/admin/leave-requests", "admin", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]LeaveRequestDTO](t, rr), 2)

	rr = ts.do(t, http.MethodGet, "/api/leave-requests?scope=team", "admin", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Empty list is [] not null
	rr = ts.do(t, http.MethodGet, "/api/leave-requests", "admin", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestGetLeaveRequest_OtherUsersHidden(t *testing.T) {
	ts := newTestServer(t)
	req := ts.createRequest(t, "alice", "2024-01-05", "2024-01-05")

	rr := ts.do(t, http.MethodGet, "/api/leave-requests/"+req.ID, "bob", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/leave-requests/"+req.ID, "admin", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

// =============================================================================
// BALANCES
// =============================================================================

func TestBalances(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/api/me/balances", "bob", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	balances := decodeBody[[]BalanceDTO](t, rr)
	require.Len(t, balances, 2)
	assert.Equal(t, "Annual Leave", balances[0].LeaveTypeName)
	assert.Equal(t, 20.0, balances[0].Balance)
	assert.True(t, balances[0].IsDefault)
	assert.False(t, balances[1].RequiresBalance)

	rr = ts.do(t, http.MethodGet, "/api/users/bob/balances", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/users/ghost/balances", "admin", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSetBalance_Errors(t *testing.T) {
	ts := newTestServer(t)
	neg := -1.0
	five := 5.0

	rr := ts.do(t, http.MethodPost, "/api/admin/balances", "admin", SetBalanceRequest{UserID: "bob", LeaveTypeID: "annual", Balance: &neg})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/admin/balances", "admin", SetBalanceRequest{UserID: "bob", LeaveTypeID: "annual"})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "balance is required")

	rr = ts.do(t, http.MethodPost, "/api/admin/balances", "alice", SetBalanceRequest{UserID: "alice", LeaveTypeID: "annual", Balance: &five})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/admin/balances", "admin", SetBalanceRequest{UserID: "bob", LeaveTypeID: "nope", Balance: &five})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestReleaseBalance(t *testing.T) {
	ts := newTestServer(t)
	ts.setBalance(t, "bob", 1)

	rr := ts.do(t, http.MethodPost, "/api/admin/balances/release", "admin", ReleaseBalanceRequest{UserID: "bob", LeaveTypeID: "annual", Days: 2})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 3.0, decodeBody[BalanceDTO](t, rr).Balance)

	rr = ts.do(t, http.MethodPost, "/api/admin/balances/release", "admin", ReleaseBalanceRequest{UserID: "bob", LeaveTypeID: "annual", Days: 0})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// =============================================================================
// DIRECTORY
// =============================================================================

func TestLeaveTypes(t *testing.T) {
	ts := newTestServer(t)
	alloc := 12.0

	rr := ts.do(t, http.MethodPost, "/api/admin/leave-types", "admin", CreateLeaveTypeRequest{Name: "Study", DefaultAllocation: &alloc})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	lt := decodeBody[LeaveTypeDTO](t, rr)
	assert.Equal(t, "Study", lt.Name)
	assert.Equal(t, 12.0, lt.DefaultAllocation)
	assert.True(t, lt.RequiresBalance, "defaults to true when omitted")

	rr = ts.do(t, http.MethodPost, "/api/admin/leave-types", "admin", CreateLeaveTypeRequest{Name: "Study", DefaultAllocation: &alloc})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/admin/leave-types", "alice", CreateLeaveTypeRequest{Name: "Other", DefaultAllocation: &alloc})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/leave-types", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]LeaveTypeDTO](t, rr), 3)
}

func TestUserApproval(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/api/admin/users/pending", "admin", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	pending := decodeBody[[]UserDTO](t, rr)
	require.Len(t, pending, 1)
	assert.Equal(t, "carol", pending[0].Username)

	// Carol cannot use the API yet
	rr = ts.do(t, http.MethodGet, "/api/me/balances", "carol", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/admin/users/carol/approve", "admin", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decodeBody[UserDTO](t, rr).IsApproved)

	rr = ts.do(t, http.MethodGet, "/api/me/balances", "carol", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/admin/users", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestNotifications(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, ts.store.InsertNotification(ctx, leave.Notification{ID: "n1", UserID: "alice", Message: "approved", CreatedAt: testNow}))

	rr := ts.do(t, http.MethodGet, "/api/me/notifications", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	notes := decodeBody[[]NotificationDTO](t, rr)
	require.Len(t, notes, 1)
	assert.False(t, notes[0].IsRead)

	rr = ts.do(t, http.MethodPost, "/api/me/notifications/n1/read", "bob", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/me/notifications/n1/read", "alice", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/me/notifications", "alice", nil)
	assert.True(t, decodeBody[[]NotificationDTO](t, rr)[0].IsRead)
}

// =============================================================================
// HEALTH
// =============================================================================

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	ts.h.Health = pingerFunc(func(context.Context) error { return errors.New("db gone") })
	rr = ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
		code string
	}{
		{leave.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
		{leave.ErrInvalidDateRange, http.StatusBadRequest, "invalid_date_range"},
		{leave.ErrPastDateNotAllowed, http.StatusBadRequest, "past_date_not_allowed"},
		{&leave.NotFoundError{Kind: "request", ID: "x"}, http.StatusNotFound, "not_found"},
		{&leave.AlreadyDecidedError{RequestID: "x", Status: leave.StatusApproved}, http.StatusConflict, "already_decided"},
		{&leave.InsufficientBalanceError{}, http.StatusUnprocessableEntity, "insufficient_balance"},
		{leave.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
		{&leave.StorageError{Op: "get", Err: errors.New("io")}, http.StatusInternalServerError, "storage_failure"},
		{errors.New("mystery"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		status, code := statusFor(tt.err)
		assert.Equal(t, tt.want, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

package leave_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	adminID    leave.UserID = "admin-1"
	employeeID leave.UserID = "emp-42"
	otherID    leave.UserID = "emp-7"

	annualID leave.LeaveTypeID = "lt-annual"
	sickID   leave.LeaveTypeID = "lt-sick"
	unpaidID leave.LeaveTypeID = "lt-unpaid"
)

var (
	admin    = leave.Actor{UserID: adminID, Role: leave.RoleAdmin}
	employee = leave.Actor{UserID: employeeID, Role: leave.RoleEmployee}
	other    = leave.Actor{UserID: otherID, Role: leave.RoleEmployee}
)

// Jan 2, 2024 so that Jan 5-7 is in the future.
var today = time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store     *store.TxMemory
	engine    *leave.Engine
	ledger    *leave.Ledger
	directory *leave.Directory
	events    *recordingEmitter
	clock     *stepClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := store.NewTxMemory()
	clock := &stepClock{now: today}
	events := &recordingEmitter{}
	engine := leave.NewEngine(s, clock, events, zap.NewNop())

	f := &fixture{
		store:     s,
		engine:    engine,
		ledger:    engine.Ledger(),
		directory: leave.NewDirectory(s, clock, zap.NewNop()),
		events:    events,
		clock:     clock,
	}
	f.seed(t)
	return f
}

func (f *fixture) seed(t *testing.T) {
	ctx := context.Background()
	for _, u := range []leave.User{
		{ID: adminID, Username: "admin", Role: leave.RoleAdmin, Approved: true, CreatedAt: today},
		{ID: employeeID, Username: "employee", Role: leave.RoleEmployee, Approved: true, CreatedAt: today},
		{ID: otherID, Username: "other", Role: leave.RoleEmployee, Approved: true, CreatedAt: today},
	} {
		require.NoError(t, f.store.SaveUser(ctx, u))
	}
	for _, lt := range []leave.LeaveType{
		{ID: annualID, Name: "Annual Leave", DefaultAllocation: leave.DaysFromInt(20), RequiresBalance: true},
		{ID: sickID, Name: "Sick Leave", DefaultAllocation: leave.DaysFromInt(5), RequiresBalance: true},
		{ID: unpaidID, Name: "Unpaid Leave", DefaultAllocation: leave.DaysFromInt(0), RequiresBalance: false},
	} {
		require.NoError(t, f.store.SaveLeaveType(ctx, lt))
	}
}

func (f *fixture) setBalance(t *testing.T, userID leave.UserID, lt leave.LeaveTypeID, days int) {
	t.Helper()
	_, err := f.ledger.SetBalance(context.Background(), admin, userID, lt, leave.DaysFromInt(days))
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userID leave.UserID, lt leave.LeaveTypeID) leave.Balance {
	t.Helper()
	b, err := f.ledger.GetBalance(context.Background(), userID, lt)
	require.NoError(t, err)
	return b
}

// file creates a request for actor starting startIn days after today.
func (f *fixture) file(t *testing.T, actor leave.Actor, lt leave.LeaveTypeID, startIn, days int) *leave.Request {
	t.Helper()
	start := leave.DateOf(today).AddDays(startIn)
	req, err := f.engine.CreateRequest(context.Background(), actor, leave.CreateRequestInput{
		LeaveTypeID: lt,
		StartDate:   start,
		EndDate:     start.AddDays(days - 1),
	})
	require.NoError(t, err)
	return req
}

func assertDays(t *testing.T, want int, got decimal.Decimal) {
	t.Helper()
	assert.True(t, leave.DaysFromInt(want).Equal(got), "expected %d days, got %s", want, got)
}

// stepClock advances one second per Now call so creation order is observable.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *stepClock) Today() leave.Date {
	c.mu.Lock()
	defer c.mu.Unlock()
	return leave.DateOf(c.now)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []leave.Event
}

func (r *recordingEmitter) Emit(e leave.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) types() []leave.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]leave.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

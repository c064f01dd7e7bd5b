package leave_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// READS
// =============================================================================

func TestGetBalance_DefaultsWithoutPersisting(t *testing.T) {
	// GIVEN: No balance record for Annual Leave (default 20)
	// WHEN: Reading the balance
	// THEN: 20 is returned and still no record exists

	f := newFixture(t)
	ctx := context.Background()

	b := f.balance(t, employeeID, annualID)
	assertDays(t, 20, b.Days)
	assert.False(t, b.Persisted)
	assert.Equal(t, "Annual Leave", b.LeaveTypeName)

	stored, err := f.store.GetBalance(ctx, employeeID, annualID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestGetBalance_UnknownLeaveType(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.GetBalance(context.Background(), employeeID, "lt-missing")
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

func TestListBalances_OnePerLeaveType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setBalance(t, employeeID, sickID, 8)

	balances, err := f.ledger.ListBalances(ctx, employee, employeeID)
	require.NoError(t, err)
	require.Len(t, balances, 3)

	byName := make(map[string]leave.Balance)
	for _, b := range balances {
		byName[b.LeaveTypeName] = b
	}
	assertDays(t, 20, byName["Annual Leave"].Days)
	assert.False(t, byName["Annual Leave"].Persisted)
	assertDays(t, 8, byName["Sick Leave"].Days)
	assert.True(t, byName["Sick Leave"].Persisted)
	assert.False(t, byName["Unpaid Leave"].RequiresBalance)
}

func TestListBalances_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.ListBalances(ctx, employee, otherID)
	assert.ErrorIs(t, err, leave.ErrUnauthorized)

	_, err = f.ledger.ListBalances(ctx, admin, otherID)
	assert.NoError(t, err)

	_, err = f.ledger.ListBalances(ctx, admin, "ghost")
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

// =============================================================================
// SET
// =============================================================================

func TestSetBalance_OverridesDefault(t *testing.T) {
	// GIVEN: Sick Leave defaults to 5
	// WHEN: Admin sets employee's Sick Leave to 8
	// THEN: GetBalance returns 8

	f := newFixture(t)

	set, err := f.ledger.SetBalance(context.Background(), admin, employeeID, sickID, leave.DaysFromInt(8))
	require.NoError(t, err)
	assertDays(t, 8, set.Days)
	assert.True(t, set.Persisted)

	assertDays(t, 8, f.balance(t, employeeID, sickID).Days)
}

func TestSetBalance_Overwrites(t *testing.T) {
	f := newFixture(t)
	f.setBalance(t, employeeID, annualID, 10)
	f.setBalance(t, employeeID, annualID, 3)

	assertDays(t, 3, f.balance(t, employeeID, annualID).Days)

	stored, err := f.store.ListBalances(context.Background(), employeeID)
	require.NoError(t, err)
	assert.Len(t, stored, 1, "one record per (user, leave type)")
}

func TestSetBalance_Fractional(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.SetBalance(context.Background(), admin, employeeID, annualID, leave.NewDays(2.5))
	require.NoError(t, err)

	assert.Equal(t, "2.5", f.balance(t, employeeID, annualID).Days.String())
}

func TestSetBalance_Errors(t *testing.T) {
	tests := []struct {
		name    string
		actor   leave.Actor
		userID  leave.UserID
		typeID  leave.LeaveTypeID
		days    int
		wantErr error
	}{
		{"negative days", admin, employeeID, annualID, -1, leave.ErrInvalidArgument},
		{"employee caller", employee, employeeID, annualID, 5, leave.ErrUnauthorized},
		{"unknown user", admin, "ghost", annualID, 5, leave.ErrNotFound},
		{"unknown leave type", admin, employeeID, "lt-missing", 5, leave.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.ledger.SetBalance(context.Background(), tt.actor, tt.userID, tt.typeID, leave.DaysFromInt(tt.days))
			assert.ErrorIs(t, err, tt.wantErr)

			stored, err := f.store.GetBalance(context.Background(), employeeID, annualID)
			require.NoError(t, err)
			assert.Nil(t, stored)
		})
	}
}

func TestSetBalance_ZeroIsAllowed(t *testing.T) {
	f := newFixture(t)
	f.setBalance(t, employeeID, annualID, 0)

	b := f.balance(t, employeeID, annualID)
	assertDays(t, 0, b.Days)
	assert.True(t, b.Persisted)
}

// =============================================================================
// RESERVE
// =============================================================================

func TestReserve_Deducts(t *testing.T) {
	f := newFixture(t)
	f.setBalance(t, employeeID, annualID, 5)

	b, err := f.ledger.Reserve(context.Background(), employeeID, annualID, leave.DaysFromInt(5))
	require.NoError(t, err)
	assertDays(t, 0, b.Days)
}

func TestReserve_InsufficientWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.setBalance(t, employeeID, annualID, 2)

	_, err := f.ledger.Reserve(context.Background(), employeeID, annualID, leave.DaysFromInt(3))

	var ib *leave.InsufficientBalanceError
	require.ErrorAs(t, err, &ib)
	assert.Equal(t, employeeID, ib.UserID)
	assert.Equal(t, annualID, ib.LeaveTypeID)
	assertDays(t, 2, f.balance(t, employeeID, annualID).Days)
}

func TestReserve_NonPositiveDays(t *testing.T) {
	f := newFixture(t)

	for _, days := range []int{0, -2} {
		_, err := f.ledger.Reserve(context.Background(), employeeID, annualID, leave.DaysFromInt(days))
		assert.ErrorIs(t, err, leave.ErrInvalidArgument)
	}
}

func TestReserve_BypassTypeIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Reserve(ctx, employeeID, unpaidID, leave.DaysFromInt(30))
	require.NoError(t, err)

	stored, err := f.store.GetBalance(ctx, employeeID, unpaidID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestReserve_ConcurrentRace(t *testing.T) {
	// GIVEN: Balance 5
	// WHEN: Two reserve(3) calls race
	// THEN: Exactly one succeeds, the other fails with InsufficientBalance, final balance is 2

	for run := 0; run < 20; run++ {
		f := newFixture(t)
		f.setBalance(t, employeeID, annualID, 5)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = f.ledger.Reserve(context.Background(), employeeID, annualID, leave.DaysFromInt(3))
			}(i)
		}
		wg.Wait()

		failures := 0
		for _, err := range errs {
			if err != nil {
				failures++
				assert.ErrorIs(t, err, leave.ErrInsufficientBalance)
			}
		}
		assert.Equal(t, 1, failures)
		assertDays(t, 2, f.balance(t, employeeID, annualID).Days)
	}
}

func TestReserve_ManyConcurrentSingleDays(t *testing.T) {
	f := newFixture(t)
	f.setBalance(t, employeeID, annualID, 10)

	const n = 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.ledger.Reserve(context.Background(), employeeID, annualID, leave.DaysFromInt(1)); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assertDays(t, 0, f.balance(t, employeeID, annualID).Days)
}

func TestLedger_NeverNegative(t *testing.T) {
	// Random interleavings of set and reserve never leave a negative balance.
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		if rng.Intn(4) == 0 {
			_, _ = f.ledger.SetBalance(ctx, admin, employeeID, annualID, leave.DaysFromInt(rng.Intn(12)-2))
		} else {
			_, _ = f.ledger.Reserve(ctx, employeeID, annualID, leave.DaysFromInt(rng.Intn(6)+1))
		}

		b := f.balance(t, employeeID, annualID)
		require.False(t, b.Days.IsNegative(), "step %d: balance %s", i, b.Days)
	}
}

// =============================================================================
// RELEASE
// =============================================================================

func TestRelease_CreditsDays(t *testing.T) {
	f := newFixture(t)
	f.setBalance(t, employeeID, annualID, 4)

	b, err := f.ledger.Release(context.Background(), admin, employeeID, annualID, leave.DaysFromInt(3))
	require.NoError(t, err)
	assertDays(t, 7, b.Days)
	assertDays(t, 7, f.balance(t, employeeID, annualID).Days)
}

func TestRelease_FromDefault(t *testing.T) {
	f := newFixture(t)

	b, err := f.ledger.Release(context.Background(), admin, employeeID, sickID, leave.DaysFromInt(1))
	require.NoError(t, err)
	assertDays(t, 6, b.Days)
	assert.True(t, b.Persisted)
}

func TestRelease_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Release(ctx, employee, employeeID, annualID, leave.DaysFromInt(1))
	assert.ErrorIs(t, err, leave.ErrUnauthorized)

	_, err = f.ledger.Release(ctx, admin, employeeID, annualID, leave.DaysFromInt(0))
	assert.ErrorIs(t, err, leave.ErrInvalidArgument)

	_, err = f.ledger.Release(ctx, admin, "ghost", annualID, leave.DaysFromInt(1))
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

func TestRelease_BypassTypeIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Release(ctx, admin, employeeID, unpaidID, leave.DaysFromInt(2))
	require.NoError(t, err)

	stored, err := f.store.GetBalance(ctx, employeeID, unpaidID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

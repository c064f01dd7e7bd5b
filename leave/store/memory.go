// Package store provides an in-memory leave.TxStore for tests and demos.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type balanceKey struct {
	UserID      leave.UserID
	LeaveTypeID leave.LeaveTypeID
}

// state holds the collections. Its methods assume the caller holds the lock.
type state struct {
	users         map[leave.UserID]leave.User
	leaveTypes    map[leave.LeaveTypeID]leave.LeaveType
	balances      map[balanceKey]leave.Balance
	requests      map[leave.RequestID]leave.Request
	notifications map[leave.NotificationID]leave.Notification
}

func newState() *state {
	return &state{
		users:         make(map[leave.UserID]leave.User),
		leaveTypes:    make(map[leave.LeaveTypeID]leave.LeaveType),
		balances:      make(map[balanceKey]leave.Balance),
		requests:      make(map[leave.RequestID]leave.Request),
		notifications: make(map[leave.NotificationID]leave.Notification),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.leaveTypes {
		c.leaveTypes[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.notifications {
		c.notifications[k] = v
	}
	return c
}

// ---- users & leave types ----

func (s *state) getUser(id leave.UserID) *leave.User {
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	return &u
}

func (s *state) listUsers() []leave.User {
	out := make([]leave.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func (s *state) getLeaveType(id leave.LeaveTypeID) *leave.LeaveType {
	lt, ok := s.leaveTypes[id]
	if !ok {
		return nil
	}
	return &lt
}

func (s *state) getLeaveTypeByName(name string) *leave.LeaveType {
	for _, lt := range s.leaveTypes {
		if lt.Name == name {
			return &lt
		}
	}
	return nil
}

func (s *state) listLeaveTypes() []leave.LeaveType {
	out := make([]leave.LeaveType, 0, len(s.leaveTypes))
	for _, lt := range s.leaveTypes {
		out = append(out, lt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *state) saveLeaveType(lt leave.LeaveType) error {
	if existing := s.getLeaveTypeByName(lt.Name); existing != nil && existing.ID != lt.ID {
		return fmt.Errorf("%w: leave type %q already exists", leave.ErrInvalidArgument, lt.Name)
	}
	s.leaveTypes[lt.ID] = lt
	return nil
}

// ---- balances ----

func (s *state) getBalance(userID leave.UserID, leaveTypeID leave.LeaveTypeID) *leave.Balance {
	b, ok := s.balances[balanceKey{userID, leaveTypeID}]
	if !ok {
		return nil
	}
	return &b
}

func (s *state) listBalances(userID leave.UserID) []leave.Balance {
	var out []leave.Balance
	for k, b := range s.balances {
		if k.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeaveTypeID < out[j].LeaveTypeID })
	return out
}

func (s *state) putBalance(b leave.Balance) error {
	if b.Days.IsNegative() {
		return fmt.Errorf("balance for %s/%s would be negative: %s", b.UserID, b.LeaveTypeID, b.Days)
	}
	s.balances[balanceKey{b.UserID, b.LeaveTypeID}] = b
	return nil
}

// ---- requests ----

func (s *state) withTypeName(r leave.Request) leave.Request {
	if lt, ok := s.leaveTypes[r.LeaveTypeID]; ok {
		r.LeaveTypeName = lt.Name
	}
	return r
}

func (s *state) getRequest(id leave.RequestID) *leave.Request {
	r, ok := s.requests[id]
	if !ok {
		return nil
	}
	r = s.withTypeName(r)
	return &r
}

func (s *state) insertRequest(r leave.Request) error {
	if _, ok := s.requests[r.ID]; ok {
		return fmt.Errorf("request %s already exists", r.ID)
	}
	s.requests[r.ID] = r
	return nil
}

func (s *state) transitionRequest(id leave.RequestID, from, to leave.Status, by leave.UserID, at time.Time) bool {
	r, ok := s.requests[id]
	if !ok || r.Status != from {
		return false
	}
	r.Status = to
	r.DecidedBy = by
	r.DecidedAt = &at
	s.requests[id] = r
	return true
}

func (s *state) listRequests(f leave.RequestFilter) []leave.Request {
	out := make([]leave.Request, 0)
	for _, r := range s.requests {
		if f.UserID != nil && r.UserID != *f.UserID {
			continue
		}
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		out = append(out, s.withTypeName(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ---- notifications ----

func (s *state) listNotifications(userID leave.UserID) []leave.Notification {
	out := make([]leave.Notification, 0)
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *state) markNotificationRead(userID leave.UserID, id leave.NotificationID) bool {
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return false
	}
	n.Read = true
	s.notifications[id] = n
	return true
}

// =============================================================================
// MEMORY - Locking wrapper
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	s  *state
}

func NewMemory() *Memory {
	return &Memory{s: newState()}
}

func (m *Memory) GetUser(_ context.Context, id leave.UserID) (*leave.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.getUser(id), nil
}

func (m *Memory) ListUsers(_ context.Context) ([]leave.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.listUsers(), nil
}

func (m *Memory) SaveUser(_ context.Context, u leave.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.users[u.ID] = u
	return nil
}

func (m *Memory) GetLeaveType(_ context.Context, id leave.LeaveTypeID) (*leave.LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.getLeaveType(id), nil
}

func (m *Memory) GetLeaveTypeByName(_ context.Context, name string) (*leave.LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.getLeaveTypeByName(name), nil
}

func (m *Memory) ListLeaveTypes(_ context.Context) ([]leave.LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.listLeaveTypes(), nil
}

func (m *Memory) SaveLeaveType(_ context.Context, lt leave.LeaveType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.saveLeaveType(lt)
}

func (m *Memory) GetBalance(_ context.Context, userID leave.UserID, leaveTypeID leave.LeaveTypeID) (*leave.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.getBalance(userID, leaveTypeID), nil
}

func (m *Memory) ListBalances(_ context.Context, userID leave.UserID) ([]leave.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.listBalances(userID), nil
}

func (m *Memory) PutBalance(_ context.Context, b leave.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.putBalance(b)
}

func (m *Memory) GetRequest(_ context.Context, id leave.RequestID) (*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.getRequest(id), nil
}

func (m *Memory) InsertRequest(_ context.Context, r leave.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.insertRequest(r)
}

func (m *Memory) TransitionRequest(_ context.Context, id leave.RequestID, from, to leave.Status, by leave.UserID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.transitionRequest(id, from, to, by, at), nil
}

func (m *Memory) ListRequests(_ context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.listRequests(f), nil
}

func (m *Memory) InsertNotification(_ context.Context, n leave.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.notifications[n.ID] = n
	return nil
}

func (m *Memory) ListNotifications(_ context.Context, userID leave.UserID) ([]leave.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.listNotifications(userID), nil
}

func (m *Memory) MarkNotificationRead(_ context.Context, userID leave.UserID, id leave.NotificationID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.markNotificationRead(userID, id), nil
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = newState()
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

var _ leave.TxStore = (*TxMemory)(nil)

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(leave.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.s.clone()
	if err := fn(&txView{s: tm.s}); err != nil {
		tm.s = snapshot
		return err
	}
	return nil
}

// txView operates on the state directly; WithTx already holds the lock.
type txView struct {
	s *state
}

func (v *txView) GetUser(_ context.Context, id leave.UserID) (*leave.User, error) {
	return v.s.getUser(id), nil
}

func (v *txView) ListUsers(_ context.Context) ([]leave.User, error) {
	return v.s.listUsers(), nil
}

func (v *txView) SaveUser(_ context.Context, u leave.User) error {
	v.s.users[u.ID] = u
	return nil
}

func (v *txView) GetLeaveType(_ context.Context, id leave.LeaveTypeID) (*leave.LeaveType, error) {
	return v.s.getLeaveType(id), nil
}

func (v *txView) GetLeaveTypeByName(_ context.Context, name string) (*leave.LeaveType, error) {
	return v.s.getLeaveTypeByName(name), nil
}

func (v *txView) ListLeaveTypes(_ context.Context) ([]leave.LeaveType, error) {
	return v.s.listLeaveTypes(), nil
}

func (v *txView) SaveLeaveType(_ context.Context, lt leave.LeaveType) error {
	return v.s.saveLeaveType(lt)
}

func (v *txView) GetBalance(_ context.Context, userID leave.UserID, leaveTypeID leave.LeaveTypeID) (*leave.Balance, error) {
	return v.s.getBalance(userID, leaveTypeID), nil
}

func (v *txView) ListBalances(_ context.Context, userID leave.UserID) ([]leave.Balance, error) {
	return v.s.listBalances(userID), nil
}

func (v *txView) PutBalance(_ context.Context, b leave.Balance) error {
	return v.s.putBalance(b)
}

func (v *txView) GetRequest(_ context.Context, id leave.RequestID) (*leave.Request, error) {
	return v.s.getRequest(id), nil
}

func (v *txView) InsertRequest(_ context.Context, r leave.Request) error {
	return v.s.insertRequest(r)
}

func (v *txView) TransitionRequest(_ context.Context, id leave.RequestID, from, to leave.Status, by leave.UserID, at time.Time) (bool, error) {
	return v.s.transitionRequest(id, from, to, by, at), nil
}

func (v *txView) ListRequests(_ context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	return v.s.listRequests(f), nil
}

func (v *txView) InsertNotification(_ context.Context, n leave.Notification) error {
	v.s.notifications[n.ID] = n
	return nil
}

func (v *txView) ListNotifications(_ context.Context, userID leave.UserID) ([]leave.Notification, error) {
	return v.s.listNotifications(userID), nil
}

func (v *txView) MarkNotificationRead(_ context.Context, userID leave.UserID, id leave.NotificationID) (bool, error) {
	return v.s.markNotificationRead(userID, id), nil
}

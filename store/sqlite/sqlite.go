/*
Package sqlite provides a SQLite-backed implementation of leave.TxStore.

PURPOSE:
  Persists users, leave types, balances, requests and notifications using
  database/sql and go-sqlite3. The same schema ports to PostgreSQL with
  minor dialect changes (ON CONFLICT is shared).

KEY TABLES:
  users:          Directory records (role, approval flag)
  leave_types:    Categories, unique by name
  leave_balances: PRIMARY KEY(user_id, leave_type_id), at most one row per pair
  leave_requests: Requests and their status
  notifications:  Per-user inbox

BALANCE ROWS:
  Rows are created by the first write for a pair (upsert). A user/type pair
  with no row is read as the type's default allocation by the ledger, so the
  table joins to users/leave_types but nothing requires pre-creation.

STATUS TRANSITIONS:
  TransitionRequest is a compare-and-set:
    UPDATE leave_requests SET status = ? ... WHERE id = ? AND status = ?
  Zero rows affected means another decision already won.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole transaction, so check-then-write sequences inside it are serialized.
  The pool is capped at one connection; SQLite has a single writer anyway
  and ":memory:" databases are per-connection.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := leave.NewEngine(store, leave.SystemClock{}, emitter, logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - leave/store.go: Interface definitions
  - leave/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/leave"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements leave.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ leave.TxStore = (*Store)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL CHECK (role IN ('admin', 'employee')),
		is_approved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS leave_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		default_allocation TEXT NOT NULL,
		requires_balance BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	-- One row per (user, leave type). Never negative.
	CREATE TABLE IF NOT EXISTS leave_balances (
		user_id TEXT NOT NULL REFERENCES users(id),
		leave_type_id TEXT NOT NULL REFERENCES leave_types(id),
		days TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, leave_type_id),
		CHECK (CAST(days AS REAL) >= 0)
	);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		leave_type_id TEXT NOT NULL REFERENCES leave_types(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
		reason TEXT NOT NULL DEFAULT '',
		decided_by TEXT,
		decided_at TEXT,
		created_at TEXT NOT NULL,
		CHECK (start_date <= end_date)
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_user
		ON leave_requests(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_status
		ON leave_requests(status);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		message TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_user
		ON notifications(user_id, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) GetUser(ctx context.Context, id leave.UserID) (*leave.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getUser(ctx, s.db, id)
}

func (s *Store) ListUsers(ctx context.Context) ([]leave.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listUsers(ctx, s.db)
}

func (s *Store) SaveUser(ctx context.Context, u leave.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveUser(ctx, s.db, u)
}

const userColumns = `id, username, email, role, is_approved, created_at`

func getUser(ctx context.Context, q querier, id leave.UserID) (*leave.User, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func listUsers(ctx context.Context, q querier) ([]leave.User, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]leave.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func saveUser(ctx context.Context, q querier, u leave.User) error {
	query := `
		INSERT INTO users (id, username, email, role, is_approved, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			email = excluded.email,
			role = excluded.role,
			is_approved = excluded.is_approved
	`
	_, err := q.ExecContext(ctx, query,
		u.ID, u.Username, u.Email, u.Role, u.Approved, formatTime(u.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: username %q already exists", leave.ErrInvalidArgument, u.Username)
		}
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(r scanner) (leave.User, error) {
	var u leave.User
	var createdAt string
	if err := r.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.Approved, &createdAt); err != nil {
		return leave.User{}, err
	}
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

func (s *Store) GetLeaveType(ctx context.Context, id leave.LeaveTypeID) (*leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getLeaveType(ctx, s.db, `WHERE id = ?`, id)
}

func (s *Store) GetLeaveTypeByName(ctx context.Context, name string) (*leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getLeaveType(ctx, s.db, `WHERE name = ?`, name)
}

func (s *Store) ListLeaveTypes(ctx context.Context) ([]leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listLeaveTypes(ctx, s.db)
}

func (s *Store) SaveLeaveType(ctx context.Context, lt leave.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveLeaveType(ctx, s.db, lt)
}

const leaveTypeColumns = `id, name, description, default_allocation, requires_balance, created_at`

func getLeaveType(ctx context.Context, q querier, where string, arg any) (*leave.LeaveType, error) {
	row := q.QueryRowContext(ctx, `SELECT `+leaveTypeColumns+` FROM leave_types `+where, arg)
	lt, err := scanLeaveType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get leave type: %w", err)
	}
	return &lt, nil
}

func listLeaveTypes(ctx context.Context, q querier) ([]leave.LeaveType, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+leaveTypeColumns+` FROM leave_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list leave types: %w", err)
	}
	defer rows.Close()

	types := make([]leave.LeaveType, 0)
	for rows.Next() {
		lt, err := scanLeaveType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, lt)
	}
	return types, rows.Err()
}

func saveLeaveType(ctx context.Context, q querier, lt leave.LeaveType) error {
	query := `
		INSERT INTO leave_types (id, name, description, default_allocation, requires_balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		lt.ID, lt.Name, lt.Description, lt.DefaultAllocation.String(), lt.RequiresBalance, formatTime(lt.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: leave type %q already exists", leave.ErrInvalidArgument, lt.Name)
		}
		return fmt.Errorf("failed to save leave type: %w", err)
	}
	return nil
}

func scanLeaveType(r scanner) (leave.LeaveType, error) {
	var lt leave.LeaveType
	var alloc, createdAt string
	if err := r.Scan(&lt.ID, &lt.Name, &lt.Description, &alloc, &lt.RequiresBalance, &createdAt); err != nil {
		return leave.LeaveType{}, err
	}
	d, err := decimal.NewFromString(alloc)
	if err != nil {
		return leave.LeaveType{}, fmt.Errorf("invalid default allocation %q: %w", alloc, err)
	}
	lt.DefaultAllocation = d
	lt.CreatedAt = parseTime(createdAt)
	return lt, nil
}

// =============================================================================
// BALANCES
// =============================================================================

func (s *Store) GetBalance(ctx context.Context, userID leave.UserID, leaveTypeID leave.LeaveTypeID) (*leave.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBalance(ctx, s.db, userID, leaveTypeID)
}

func (s *Store) ListBalances(ctx context.Context, userID leave.UserID) ([]leave.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listBalances(ctx, s.db, userID)
}

func (s *Store) PutBalance(ctx context.Context, b leave.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putBalance(ctx, s.db, b)
}

const balanceSelect = `
	SELECT b.user_id, b.leave_type_id, t.name, t.requires_balance, b.days, b.updated_at
	FROM leave_balances b
	JOIN leave_types t ON t.id = b.leave_type_id
`

func getBalance(ctx context.Context, q querier, userID leave.UserID, leaveTypeID leave.LeaveTypeID) (*leave.Balance, error) {
	row := q.QueryRowContext(ctx, balanceSelect+` WHERE b.user_id = ? AND b.leave_type_id = ?`, userID, leaveTypeID)
	b, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return &b, nil
}

func listBalances(ctx context.Context, q querier, userID leave.UserID) ([]leave.Balance, error) {
	rows, err := q.QueryContext(ctx, balanceSelect+` WHERE b.user_id = ? ORDER BY t.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	balances := make([]leave.Balance, 0)
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func putBalance(ctx context.Context, q querier, b leave.Balance) error {
	if b.Days.IsNegative() {
		return fmt.Errorf("balance for %s/%s would be negative: %s", b.UserID, b.LeaveTypeID, b.Days)
	}
	query := `
		INSERT INTO leave_balances (user_id, leave_type_id, days, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, leave_type_id) DO UPDATE SET
			days = excluded.days,
			updated_at = excluded.updated_at
	`
	_, err := q.ExecContext(ctx, query, b.UserID, b.LeaveTypeID, b.Days.String(), formatTime(b.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to put balance: %w", err)
	}
	return nil
}

func scanBalance(r scanner) (leave.Balance, error) {
	var b leave.Balance
	var days, updatedAt string
	if err := r.Scan(&b.UserID, &b.LeaveTypeID, &b.LeaveTypeName, &b.RequiresBalance, &days, &updatedAt); err != nil {
		return leave.Balance{}, err
	}
	d, err := decimal.NewFromString(days)
	if err != nil {
		return leave.Balance{}, fmt.Errorf("invalid balance %q: %w", days, err)
	}
	b.Days = d
	b.UpdatedAt = parseTime(updatedAt)
	b.Persisted = true
	return b, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

func (s *Store) GetRequest(ctx context.Context, id leave.RequestID) (*leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRequest(ctx, s.db, id)
}

func (s *Store) InsertRequest(ctx context.Context, r leave.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertRequest(ctx, s.db, r)
}

func (s *Store) TransitionRequest(ctx context.Context, id leave.RequestID, from, to leave.Status, decidedBy leave.UserID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return transitionRequest(ctx, s.db, id, from, to, decidedBy, at)
}

func (s *Store) ListRequests(ctx context.Context, filter leave.RequestFilter) ([]leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRequests(ctx, s.db, filter)
}

const requestSelect = `
	SELECT r.id, r.user_id, r.leave_type_id, t.name, r.start_date, r.end_date,
	       r.status, r.reason, r.decided_by, r.decided_at, r.created_at
	FROM leave_requests r
	JOIN leave_types t ON t.id = r.leave_type_id
`

func getRequest(ctx context.Context, q querier, id leave.RequestID) (*leave.Request, error) {
	row := q.QueryRowContext(ctx, requestSelect+` WHERE r.id = ?`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return &r, nil
}

func insertRequest(ctx context.Context, q querier, r leave.Request) error {
	query := `
		INSERT INTO leave_requests (id, user_id, leave_type_id, start_date, end_date, status, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		r.ID, r.UserID, r.LeaveTypeID, r.StartDate.String(), r.EndDate.String(),
		r.Status, r.Reason, formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

func transitionRequest(ctx context.Context, q querier, id leave.RequestID, from, to leave.Status, decidedBy leave.UserID, at time.Time) (bool, error) {
	query := `
		UPDATE leave_requests
		SET status = ?, decided_by = ?, decided_at = ?
		WHERE id = ? AND status = ?
	`
	res, err := q.ExecContext(ctx, query, to, decidedBy, formatTime(at), id, from)
	if err != nil {
		return false, fmt.Errorf("failed to transition request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to transition request: %w", err)
	}
	return n == 1, nil
}

func listRequests(ctx context.Context, q querier, f leave.RequestFilter) ([]leave.Request, error) {
	var where []string
	var args []any
	if f.UserID != nil {
		where = append(where, "r.user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.Status != nil {
		where = append(where, "r.status = ?")
		args = append(args, *f.Status)
	}

	query := requestSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.created_at ASC, r.id ASC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	requests := make([]leave.Request, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

func scanRequest(sc scanner) (leave.Request, error) {
	var r leave.Request
	var start, end, createdAt string
	var decidedBy, decidedAt sql.NullString
	if err := sc.Scan(
		&r.ID, &r.UserID, &r.LeaveTypeID, &r.LeaveTypeName, &start, &end,
		&r.Status, &r.Reason, &decidedBy, &decidedAt, &createdAt,
	); err != nil {
		return leave.Request{}, err
	}

	var err error
	if r.StartDate, err = leave.ParseDate(start); err != nil {
		return leave.Request{}, fmt.Errorf("invalid start date in request %s: %w", r.ID, err)
	}
	if r.EndDate, err = leave.ParseDate(end); err != nil {
		return leave.Request{}, fmt.Errorf("invalid end date in request %s: %w", r.ID, err)
	}
	r.CreatedAt = parseTime(createdAt)
	r.DecidedBy = leave.UserID(decidedBy.String)
	if decidedAt.Valid {
		t := parseTime(decidedAt.String)
		r.DecidedAt = &t
	}
	return r, nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func (s *Store) InsertNotification(ctx context.Context, n leave.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertNotification(ctx, s.db, n)
}

func (s *Store) ListNotifications(ctx context.Context, userID leave.UserID) ([]leave.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listNotifications(ctx, s.db, userID)
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID leave.UserID, id leave.NotificationID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markNotificationRead(ctx, s.db, userID, id)
}

func insertNotification(ctx context.Context, q querier, n leave.Notification) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, message, is_read, created_at) VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Message, n.Read, formatTime(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func listNotifications(ctx context.Context, q querier, userID leave.UserID) ([]leave.Notification, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, message, is_read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]leave.Notification, 0)
	for rows.Next() {
		var n leave.Notification
		var createdAt string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Read, &createdAt); err != nil {
			return nil, err
		}
		n.CreatedAt = parseTime(createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

func markNotificationRead(ctx context.Context, q querier, userID leave.UserID, id leave.NotificationID) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// =============================================================================
// TRANSACTIONAL STORE (leave.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txStore runs every statement on the open transaction. The parent's lock is
// already held by WithTx, so nothing here locks.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetUser(ctx context.Context, id leave.UserID) (*leave.User, error) {
	return getUser(ctx, ts.tx, id)
}

func (ts *txStore) ListUsers(ctx context.Context) ([]leave.User, error) {
	return listUsers(ctx, ts.tx)
}

func (ts *txStore) SaveUser(ctx context.Context, u leave.User) error {
	return saveUser(ctx, ts.tx, u)
}

func (ts *txStore) GetLeaveType(ctx context.Context, id leave.LeaveTypeID) (*leave.LeaveType, error) {
	return getLeaveType(ctx, ts.tx, `WHERE id = ?`, id)
}

func (ts *txStore) GetLeaveTypeByName(ctx context.Context, name string) (*leave.LeaveType, error) {
	return getLeaveType(ctx, ts.tx, `WHERE name = ?`, name)
}

func (ts *txStore) ListLeaveTypes(ctx context.Context) ([]leave.LeaveType, error) {
	return listLeaveTypes(ctx, ts.tx)
}

func (ts *txStore) SaveLeaveType(ctx context.Context, lt leave.LeaveType) error {
	return saveLeaveType(ctx, ts.tx, lt)
}

func (ts *txStore) GetBalance(ctx context.Context, userID leave.UserID, leaveTypeID leave.LeaveTypeID) (*leave.Balance, error) {
	return getBalance(ctx, ts.tx, userID, leaveTypeID)
}

func (ts *txStore) ListBalances(ctx context.Context, userID leave.UserID) ([]leave.Balance, error) {
	return listBalances(ctx, ts.tx, userID)
}

func (ts *txStore) PutBalance(ctx context.Context, b leave.Balance) error {
	return putBalance(ctx, ts.tx, b)
}

func (ts *txStore) GetRequest(ctx context.Context, id leave.RequestID) (*leave.Request, error) {
	return getRequest(ctx, ts.tx, id)
}

func (ts *txStore) InsertRequest(ctx context.Context, r leave.Request) error {
	return insertRequest(ctx, ts.tx, r)
}

func (ts *txStore) TransitionRequest(ctx context.Context, id leave.RequestID, from, to leave.Status, decidedBy leave.UserID, at time.Time) (bool, error) {
	return transitionRequest(ctx, ts.tx, id, from, to, decidedBy, at)
}

func (ts *txStore) ListRequests(ctx context.Context, filter leave.RequestFilter) ([]leave.Request, error) {
	return listRequests(ctx, ts.tx, filter)
}

func (ts *txStore) InsertNotification(ctx context.Context, n leave.Notification) error {
	return insertNotification(ctx, ts.tx, n)
}

func (ts *txStore) ListNotifications(ctx context.Context, userID leave.UserID) ([]leave.Notification, error) {
	return listNotifications(ctx, ts.tx, userID)
}

func (ts *txStore) MarkNotificationRead(ctx context.Context, userID leave.UserID, id leave.NotificationID) (bool, error) {
	return markNotificationRead(ctx, ts.tx, userID, id)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Children first; foreign keys are on.
	tables := []string{"notifications", "leave_requests", "leave_balances", "leave_types", "users"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

package leave

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// DIRECTORY - Users, leave types and the notification inbox
// =============================================================================

// Directory serves the administrative reads and writes around the lifecycle
// core. None of these operations touch requests or balances.
type Directory struct {
	store  TxStore
	clock  Clock
	logger *zap.Logger
}

func NewDirectory(store TxStore, clock Clock, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.L()
	}
	return &Directory{store: store, clock: clock, logger: logger.Named("leave.directory")}
}

// GetUser is used by the identity middleware to resolve a token subject.
func (d *Directory) GetUser(ctx context.Context, id UserID) (*User, error) {
	return loadUser(ctx, d.store, id)
}

func (d *Directory) ListUsers(ctx context.Context, actor Actor) ([]User, error) {
	if !actor.IsAdmin() {
		return nil, unauthorized("listing users")
	}
	users, err := d.store.ListUsers(ctx)
	if err != nil {
		return nil, storageErr("list users", err)
	}
	return users, nil
}

// ListPendingUsers returns users still waiting for approval.
func (d *Directory) ListPendingUsers(ctx context.Context, actor Actor) ([]User, error) {
	users, err := d.ListUsers(ctx, actor)
	if err != nil {
		return nil, err
	}
	pending := make([]User, 0)
	for _, u := range users {
		if !u.Approved {
			pending = append(pending, u)
		}
	}
	return pending, nil
}

// ApproveUser lets a registered user authenticate. Approving twice is a no-op.
func (d *Directory) ApproveUser(ctx context.Context, actor Actor, id UserID) (*User, error) {
	if !actor.IsAdmin() {
		return nil, unauthorized("approving users")
	}
	var out User
	err := d.store.WithTx(ctx, func(tx Store) error {
		u, err := loadUser(ctx, tx, id)
		if err != nil {
			return err
		}
		out = *u
		if u.Approved {
			return nil
		}
		out.Approved = true
		return storageErr("save user", tx.SaveUser(ctx, out))
	})
	if err != nil {
		err = storageErr("approve user", err)
		return nil, err
	}
	d.logger.Info("user approved", zap.String("user_id", string(id)), zap.String("actor_id", string(actor.UserID)))
	return &out, nil
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

type CreateLeaveTypeInput struct {
	Name              string
	Description       string
	DefaultAllocation decimal.Decimal
	RequiresBalance   bool
}

func (d *Directory) CreateLeaveType(ctx context.Context, actor Actor, in CreateLeaveTypeInput) (*LeaveType, error) {
	if !actor.IsAdmin() {
		return nil, unauthorized("creating leave types")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalidArgument("leave type name is required")
	}
	if in.DefaultAllocation.IsNegative() {
		return nil, invalidArgument("default allocation must not be negative, got %s", in.DefaultAllocation)
	}

	lt := LeaveType{
		ID:                LeaveTypeID(uuid.NewString()),
		Name:              name,
		Description:       in.Description,
		DefaultAllocation: in.DefaultAllocation,
		RequiresBalance:   in.RequiresBalance,
		CreatedAt:         d.clock.Now(),
	}
	err := d.store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetLeaveTypeByName(ctx, name)
		if err != nil {
			return storageErr("get leave type", err)
		}
		if existing != nil {
			return invalidArgument("leave type %q already exists", name)
		}
		return storageErr("save leave type", tx.SaveLeaveType(ctx, lt))
	})
	if err != nil {
		err = storageErr("create leave type", err)
		return nil, err
	}
	d.logger.Info("leave type created", zap.String("leave_type_id", string(lt.ID)), zap.String("name", name))
	return &lt, nil
}

// ListLeaveTypes is open to every authenticated caller.
func (d *Directory) ListLeaveTypes(ctx context.Context) ([]LeaveType, error) {
	types, err := d.store.ListLeaveTypes(ctx)
	if err != nil {
		return nil, storageErr("list leave types", err)
	}
	return types, nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func (d *Directory) ListNotifications(ctx context.Context, actor Actor) ([]Notification, error) {
	ns, err := d.store.ListNotifications(ctx, actor.UserID)
	if err != nil {
		return nil, storageErr("list notifications", err)
	}
	return ns, nil
}

// MarkNotificationRead only touches the actor's own inbox.
func (d *Directory) MarkNotificationRead(ctx context.Context, actor Actor, id NotificationID) error {
	ok, err := d.store.MarkNotificationRead(ctx, actor.UserID, id)
	if err != nil {
		return storageErr("mark notification read", err)
	}
	if !ok {
		return &NotFoundError{Kind: "notification", ID: string(id)}
	}
	return nil
}

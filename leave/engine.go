/*
engine.go - Request lifecycle engine

PURPOSE:
  The only writer of leave requests. Validates new requests, executes the
  pending -> approved | rejected transition, and settles approvals against
  the ledger in the same transaction as the status change.

STATE MACHINE:
  pending --approve--> approved   (terminal, balance deducted once)
  pending --reject---> rejected   (terminal, ledger untouched)

CREATION RULES:
  1. Leave type must exist
  2. StartDate <= EndDate                  -> ErrInvalidDateRange
  3. StartDate >= today (injected clock)   -> ErrPastDateNotAllowed
  4. No balance check at creation. Two pending requests may both look
     affordable; the first one approved wins and the second fails at
     approval with ErrInsufficientBalance.

DECISION ATOMICITY:
  Load, pending check, reserve and status compare-and-set run inside one
  WithTx. If reserve fails the transaction rolls back and the request stays
  pending. If the compare-and-set loses (another decision got there first)
  the reserve is rolled back too.

EVENTS:
  Emitted after commit through the Emitter. Emission never fails an
  operation.

SEE ALSO:
  - ledger.go: Balance arithmetic
  - store.go:  RequestStore.TransitionRequest
*/
package leave

import (
	"context"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxReasonLength bounds the free-text reason, in characters.
const MaxReasonLength = 500

type Engine struct {
	store   TxStore
	ledger  *Ledger
	clock   Clock
	emitter Emitter
	logger  *zap.Logger
}

func NewEngine(store TxStore, clock Clock, emitter Emitter, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.L()
	}
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &Engine{
		store:   store,
		ledger:  NewLedger(store, clock, logger),
		clock:   clock,
		emitter: emitter,
		logger:  logger.Named("leave.engine"),
	}
}

// Ledger returns the balance ledger sharing this engine's store.
func (e *Engine) Ledger() *Ledger { return e.ledger }

// =============================================================================
// CREATE
// =============================================================================

type CreateRequestInput struct {
	LeaveTypeID LeaveTypeID
	StartDate   Date
	EndDate     Date
	Reason      string
}

// CreateRequest files a pending request on behalf of the actor.
func (e *Engine) CreateRequest(ctx context.Context, actor Actor, in CreateRequestInput) (*Request, error) {
	e.logger.Debug("create request",
		zap.String("actor_id", string(actor.UserID)),
		zap.String("leave_type_id", string(in.LeaveTypeID)),
		zap.String("start_date", in.StartDate.String()),
		zap.String("end_date", in.EndDate.String()),
	)

	if err := e.validateCreate(in); err != nil {
		e.logger.Warn("create request validation failed", zap.Error(err))
		return nil, err
	}

	now := e.clock.Now()
	var req Request
	err := e.store.WithTx(ctx, func(tx Store) error {
		if _, err := loadUser(ctx, tx, actor.UserID); err != nil {
			return err
		}
		lt, err := loadLeaveType(ctx, tx, in.LeaveTypeID)
		if err != nil {
			return err
		}
		req = Request{
			ID:            RequestID(uuid.NewString()),
			UserID:        actor.UserID,
			LeaveTypeID:   lt.ID,
			LeaveTypeName: lt.Name,
			StartDate:     in.StartDate,
			EndDate:       in.EndDate,
			Status:        StatusPending,
			Reason:        in.Reason,
			CreatedAt:     now,
		}
		if err := tx.InsertRequest(ctx, req); err != nil {
			e.logger.Error("create request persist failed", zap.Error(err))
			return storageErr("insert request", err)
		}
		return nil
	})
	if err != nil {
		err = storageErr("create request", err)
		return nil, err
	}

	e.logger.Info("create request success",
		zap.String("request_id", string(req.ID)),
		zap.String("user_id", string(req.UserID)),
		zap.String("days", req.Days().String()),
	)
	e.emitter.Emit(requestEvent(EventRequestCreated, req, actor.UserID, now))
	return &req, nil
}

func (e *Engine) validateCreate(in CreateRequestInput) error {
	if in.LeaveTypeID == "" {
		return invalidArgument("leave type is required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return invalidArgument("start and end dates are required")
	}
	if utf8.RuneCountInString(in.Reason) > MaxReasonLength {
		return invalidArgument("reason exceeds %d characters", MaxReasonLength)
	}
	if in.StartDate.After(in.EndDate) {
		return ErrInvalidDateRange
	}
	if in.StartDate.Before(e.clock.Today()) {
		return ErrPastDateNotAllowed
	}
	return nil
}

// =============================================================================
// DECIDE
// =============================================================================

// Decide approves or rejects a pending request. Admin only.
func (e *Engine) Decide(ctx context.Context, actor Actor, id RequestID, decision Decision) (*Request, error) {
	e.logger.Debug("decide request",
		zap.String("actor_id", string(actor.UserID)),
		zap.String("request_id", string(id)),
		zap.String("decision", string(decision)),
	)

	if !actor.IsAdmin() {
		return nil, unauthorized("deciding a request")
	}
	target, ok := decision.Target()
	if !ok {
		return nil, invalidArgument("decision must be %q or %q, got %q", DecisionApprove, DecisionReject, decision)
	}

	now := e.clock.Now()
	var out Request
	err := e.store.WithTx(ctx, func(tx Store) error {
		req, err := loadRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return &AlreadyDecidedError{RequestID: id, Status: req.Status}
		}

		if target == StatusApproved {
			lt, err := loadLeaveType(ctx, tx, req.LeaveTypeID)
			if err != nil {
				return err
			}
			if _, err := e.ledger.reserveIn(ctx, tx, req.UserID, lt, req.Days()); err != nil {
				return err
			}
		}

		swapped, err := tx.TransitionRequest(ctx, id, StatusPending, target, actor.UserID, now)
		if err != nil {
			e.logger.Error("decide request persist failed", zap.Error(err))
			return storageErr("transition request", err)
		}
		if !swapped {
			return &AlreadyDecidedError{RequestID: id, Status: req.Status}
		}

		out = *req
		out.Status = target
		out.DecidedBy = actor.UserID
		out.DecidedAt = &now
		return nil
	})
	if err != nil {
		err = storageErr("decide request", err)
		if IsClientError(err) {
			e.logger.Warn("decide request rejected", zap.String("request_id", string(id)), zap.Error(err))
		}
		return nil, err
	}

	e.logger.Info("decide request success",
		zap.String("request_id", string(id)),
		zap.String("status", string(out.Status)),
		zap.String("actor_id", string(actor.UserID)),
	)
	evt := EventRequestRejected
	if out.Status == StatusApproved {
		evt = EventRequestApproved
	}
	e.emitter.Emit(requestEvent(evt, out, actor.UserID, now))
	return &out, nil
}

// =============================================================================
// READS
// =============================================================================

// Listing scopes accepted by ListRequests.
const (
	ScopeMine = "mine"
	ScopeAll  = "all"
)

// ListRequests maps the "mine" | "all" scope onto ListForUser / ListAll.
// An empty scope means "mine".
func (e *Engine) ListRequests(ctx context.Context, actor Actor, scope string) ([]Request, error) {
	switch scope {
	case "", ScopeMine:
		return e.ListForUser(ctx, actor, actor.UserID)
	case ScopeAll:
		return e.ListAll(ctx, actor)
	default:
		return nil, invalidArgument("scope must be %q or %q, got %q", ScopeMine, ScopeAll, scope)
	}
}

// ListForUser returns userID's requests in creation order.
func (e *Engine) ListForUser(ctx context.Context, actor Actor, userID UserID) ([]Request, error) {
	if !actor.IsAdmin() && actor.UserID != userID {
		return nil, unauthorized("listing another user's requests")
	}
	reqs, err := e.store.ListRequests(ctx, RequestFilter{UserID: &userID})
	if err != nil {
		return nil, storageErr("list requests", err)
	}
	return reqs, nil
}

// ListAll returns every request in creation order. Admin only.
func (e *Engine) ListAll(ctx context.Context, actor Actor) ([]Request, error) {
	if !actor.IsAdmin() {
		return nil, unauthorized("listing all requests")
	}
	reqs, err := e.store.ListRequests(ctx, RequestFilter{})
	if err != nil {
		return nil, storageErr("list requests", err)
	}
	return reqs, nil
}

// GetRequest returns one request to its owner or an admin. Other callers get
// NotFound so request ids do not leak.
func (e *Engine) GetRequest(ctx context.Context, actor Actor, id RequestID) (*Request, error) {
	req, err := loadRequest(ctx, e.store, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && req.UserID != actor.UserID {
		return nil, &NotFoundError{Kind: "request", ID: string(id)}
	}
	return req, nil
}

func loadRequest(ctx context.Context, s Store, id RequestID) (*Request, error) {
	req, err := s.GetRequest(ctx, id)
	if err != nil {
		return nil, storageErr("get request", err)
	}
	if req == nil {
		return nil, &NotFoundError{Kind: "request", ID: string(id)}
	}
	return req, nil
}

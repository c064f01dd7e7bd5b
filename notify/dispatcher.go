/*
dispatcher.go - Asynchronous lifecycle event delivery

PURPOSE:
  Implements leave.Emitter. The engine hands events over after commit and
  returns immediately; a background worker turns each event into inbox
  notifications and, when configured, publishes it to Redis.

DESIGN:
  - Bounded channel. Emit never blocks: when the buffer is full the event
    is dropped and logged.
  - Delivery failures are logged, never reported back to the engine.
  - Stop drains whatever is already buffered before returning.

RECIPIENTS:
  request.created  -> every approved admin
  request.approved -> request owner
  request.rejected -> request owner

USAGE:
  d := notify.NewDispatcher(store, publisher, 256, leave.SystemClock{}, logger)
  d.Start()
  defer d.Stop()
  engine := leave.NewEngine(store, clock, d, logger)

SEE ALSO:
  - redis.go: RedisPublisher
  - leave/events.go: Event, Emitter
*/
package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
)

// Publisher forwards events to an external bus.
type Publisher interface {
	Publish(ctx context.Context, e leave.Event) error
}

// DefaultBuffer is the channel capacity used when a non-positive size is given.
const DefaultBuffer = 256

// deliveryTimeout bounds the work done for a single event.
const deliveryTimeout = 5 * time.Second

// Dispatcher handles lifecycle events off the request path.
type Dispatcher struct {
	store     leave.Store
	publisher Publisher
	clock     leave.Clock
	logger    *zap.Logger

	events  chan leave.Event
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped bool

	dropped   atomic.Int64
	delivered atomic.Int64
}

var _ leave.Emitter = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher. publisher may be nil.
func NewDispatcher(store leave.Store, publisher Publisher, buffer int, clock leave.Clock, logger *zap.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Dispatcher{
		store:     store,
		publisher: publisher,
		clock:     clock,
		logger:    logger.Named("notify.dispatcher"),
		events:    make(chan leave.Event, buffer),
		stop:      make(chan struct{}),
	}
}

// Emit queues an event without blocking.
func (d *Dispatcher) Emit(e leave.Event) {
	select {
	case d.events <- e:
	default:
		d.dropped.Add(1)
		d.logger.Warn("event dropped, buffer full",
			zap.String("type", string(e.Type)),
			zap.String("request_id", string(e.RequestID)),
		)
	}
}

// Start begins the worker.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return
	}
	d.started = true
	d.wg.Add(1)
	go d.run()

	d.logger.Info("dispatcher started", zap.Int("buffer", cap(d.events)))
}

// Stop drains buffered events and waits for the worker to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started || d.stopped {
		return
	}
	d.stopped = true
	close(d.stop)
	d.wg.Wait()

	d.logger.Info("dispatcher stopped",
		zap.Int64("delivered", d.delivered.Load()),
		zap.Int64("dropped", d.dropped.Load()),
	)
}

// Stats returns the number of delivered and dropped events.
func (d *Dispatcher) Stats() (delivered, dropped int64) {
	return d.delivered.Load(), d.dropped.Load()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case e := <-d.events:
			d.deliver(e)
		case <-d.stop:
			for {
				select {
				case e := <-d.events:
					d.deliver(e)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(e leave.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, e); err != nil {
			d.logger.Warn("publish failed", zap.String("type", string(e.Type)), zap.Error(err))
		}
	}

	notes, err := d.notificationsFor(ctx, e)
	if err != nil {
		d.logger.Error("resolve recipients failed", zap.String("type", string(e.Type)), zap.Error(err))
		return
	}
	for _, n := range notes {
		if err := d.store.InsertNotification(ctx, n); err != nil {
			d.logger.Error("persist notification failed",
				zap.String("user_id", string(n.UserID)),
				zap.Error(err),
			)
		}
	}
	d.delivered.Add(1)
}

func (d *Dispatcher) notificationsFor(ctx context.Context, e leave.Event) ([]leave.Notification, error) {
	var recipients []leave.UserID
	var msg string

	switch e.Type {
	case leave.EventRequestCreated:
		name := string(e.UserID)
		if u, err := d.store.GetUser(ctx, e.UserID); err == nil && u != nil {
			name = u.Username
		}
		msg = fmt.Sprintf("%s requested %s from %s to %s (%s days)",
			name, e.LeaveTypeName, e.StartDate, e.EndDate, e.Days)

		users, err := d.store.ListUsers(ctx)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			if u.Role == leave.RoleAdmin && u.Approved && u.ID != e.UserID {
				recipients = append(recipients, u.ID)
			}
		}
	case leave.EventRequestApproved, leave.EventRequestRejected:
		verb := "approved"
		if e.Type == leave.EventRequestRejected {
			verb = "rejected"
		}
		msg = fmt.Sprintf("Your %s request from %s to %s was %s",
			e.LeaveTypeName, e.StartDate, e.EndDate, verb)
		recipients = []leave.UserID{e.UserID}
	default:
		return nil, nil
	}

	now := d.clock.Now()
	out := make([]leave.Notification, 0, len(recipients))
	for _, id := range recipients {
		out = append(out, leave.Notification{
			ID:        leave.NotificationID(uuid.NewString()),
			UserID:    id,
			Message:   msg,
			CreatedAt: now,
		})
	}
	return out, nil
}

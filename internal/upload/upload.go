// Package upload delivers a match payload to a sink at most once.
//
// Each delivery is a check-then-insert critical section guarded by a lock on
// the match id. The pre-check only saves a round trip; the sink's own
// uniqueness constraint decides, and its conflict signal maps to
// AlreadyExists.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pable/go-cs-matchstats/internal/model"
)

var (
	// ErrConflict is returned by a Sink when the match id is already stored.
	ErrConflict       = errors.New("match already exists")
	ErrInvalidPayload = errors.New("invalid payload")
)

// DefaultTimeout bounds the sink interaction of one delivery.
const DefaultTimeout = 30 * time.Second

// Sink stores match payloads. Insert must apply the whole payload or nothing
// and return an error wrapping ErrConflict when the match id already exists.
type Sink interface {
	Name() string
	Exists(ctx context.Context, matchID string) (bool, error)
	Insert(ctx context.Context, p Payload) error
}

// Locker provides mutual exclusion per key. The returned function releases
// the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Result is the terminal state of one delivery: Delivered, AlreadyExists or
// Rejected.
type Result struct {
	Status model.Status
	Reason string
	Err    error
}

func (r Result) String() string {
	if r.Reason == "" {
		return string(r.Status)
	}
	return fmt.Sprintf("%s: %s", r.Status, r.Reason)
}

func delivered() Result { return Result{Status: model.StatusDelivered} }

func alreadyExists() Result { return Result{Status: model.StatusAlreadyExists} }

func rejected(err error) Result {
	return Result{Status: model.StatusRejected, Reason: err.Error(), Err: err}
}

// Coordinator runs deliveries against one sink.
type Coordinator struct {
	sink    Sink
	locker  Locker
	timeout time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLocker replaces the default in-process keyed lock.
func WithLocker(l Locker) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.locker = l
		}
	}
}

// WithTimeout bounds the lock, existence check and insert of one delivery.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewCoordinator returns a Coordinator delivering to sink.
func NewCoordinator(sink Sink, opts ...Option) *Coordinator {
	c := &Coordinator{
		sink:    sink,
		locker:  NewKeyedLocker(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sink returns the sink deliveries go to.
func (c *Coordinator) Sink() Sink { return c.sink }

// Deliver stores p unless a record for p.MatchID already exists.
func (c *Coordinator) Deliver(ctx context.Context, p Payload) Result {
	if err := validate(p); err != nil {
		return rejected(err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	unlock, err := c.locker.Lock(ctx, p.MatchID)
	if err != nil {
		return rejected(fmt.Errorf("lock match %s: %w", p.MatchID, err))
	}
	defer unlock()

	exists, err := c.sink.Exists(ctx, p.MatchID)
	switch {
	case err != nil:
		slog.Warn("Pre-existence check failed, relying on sink conflict",
			slog.String("match_id", p.MatchID), slog.String("sink", c.sink.Name()), slog.String("error", err.Error()))
	case exists:
		return alreadyExists()
	}

	if err := c.sink.Insert(ctx, p); err != nil {
		if errors.Is(err, ErrConflict) {
			return alreadyExists()
		}
		return rejected(fmt.Errorf("%s insert: %w", c.sink.Name(), err))
	}
	return delivered()
}

func validate(p Payload) error {
	switch {
	case p.MatchID == "":
		return errors.Join(ErrInvalidPayload, errors.New("empty match id"))
	case len(p.PlayerStats) == 0:
		return errors.Join(ErrInvalidPayload, errors.New("no player stats"))
	case p.MapStats.DateTime == "":
		return errors.Join(ErrInvalidPayload, errors.New("empty date_time"))
	}
	return nil
}

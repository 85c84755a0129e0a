// Package action tracks the lifecycle of user-triggered mutations
// (submit, publish, delete, ...) with one state shape for all of them.
package action

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"buskalo-bff/internal/cache"
	"buskalo-bff/internal/services"
)

var ErrInFlight = errors.New("action already in progress")

type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Result is idle, pending, success(Data) or failure(Error).
type Result[T any] struct {
	Status    Status    `json:"status"`
	Data      T         `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Op[T any] struct {
	mu  sync.Mutex
	res Result[T]
}

func NewOp[T any]() *Op[T] {
	return &Op[T]{res: Result[T]{Status: StatusIdle}}
}

// Run executes fn unless a previous run is still pending.
func (o *Op[T]) Run(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	o.mu.Lock()
	if o.res.Status == StatusPending {
		o.mu.Unlock()
		return zero, ErrInFlight
	}
	o.res = Result[T]{Status: StatusPending, UpdatedAt: time.Now()}
	o.mu.Unlock()

	data, err := fn(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.res = Result[T]{Status: StatusFailure, Error: services.Message(err), UpdatedAt: time.Now()}
		return zero, err
	}
	o.res = Result[T]{Status: StatusSuccess, Data: data, UpdatedAt: time.Now()}
	return data, nil
}

func (o *Op[T]) Result() Result[T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.res
}

// Tracker holds one Op per key. Keys are "<session>/<action>". Ops expire
// ttl after their last use, so ttl must outlast the slowest action.
type Tracker struct {
	ops *cache.TTLCache[*Op[any]]
}

func NewTracker(ttl time.Duration) *Tracker {
	return &Tracker{ops: cache.NewTTLCache[*Op[any]](ttl, time.Minute)}
}

func Key(sessionID, name string) string {
	return sessionID + "/" + name
}

func (t *Tracker) Do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	o, _ := t.ops.GetOrSet(key, NewOp[any])
	data, err := o.Run(ctx, fn)
	if !errors.Is(err, ErrInFlight) {
		t.ops.Set(key, o)
	}
	return data, err
}

// Snapshot returns the results under prefix, keyed by the part after it.
func (t *Tracker) Snapshot(prefix string) map[string]Result[any] {
	ops := t.ops.Entries(prefix)
	out := make(map[string]Result[any], len(ops))
	for k, o := range ops {
		out[strings.TrimPrefix(k, prefix)] = o.Result()
	}
	return out
}

// Forget drops every settled op under prefix, e.g. on logout.
func (t *Tracker) Forget(prefix string) {
	for k, o := range t.ops.Entries(prefix) {
		if o.Result().Status != StatusPending {
			t.ops.Delete(k)
		}
	}
}

func (t *Tracker) Close() {
	t.ops.Stop()
}

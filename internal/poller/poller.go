// Package poller keeps client views fresh by fetching on a fixed interval.
// Every poll loop is owned by a context and stops its timer on exit.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"flulance/internal/logger"
)

const minInterval = 10 * time.Millisecond

// FetchFunc loads the current value. It must honour ctx.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Poller runs fetch immediately and then once per interval, handing every
// successful result to onValue. Failed fetches are logged and skipped, so the
// consumer keeps the last good value.
type Poller[T any] struct {
	name     string
	interval time.Duration
	fetch    FetchFunc[T]
	onValue  func(T)
}

func New[T any](name string, interval time.Duration, fetch FetchFunc[T], onValue func(T)) *Poller[T] {
	if interval < minInterval {
		interval = minInterval
	}
	if onValue == nil {
		onValue = func(T) {}
	}
	return &Poller[T]{name: name, interval: interval, fetch: fetch, onValue: onValue}
}

// Run blocks until ctx is cancelled.
func (p *Poller[T]) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		p.poll(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller[T]) poll(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("poller recovered from panic", "poller", p.name, "panic", fmt.Sprint(r))
		}
	}()

	value, err := p.fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("poll failed, keeping last value", "poller", p.name, "error", err)
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	p.onValue(value)
}

// ====================
// Subscription
// ====================

// Subscription is a live view over a polled value. Updates holds at most one
// pending value. Without a Merge option a slow reader skips intermediate
// values and still gets the latest one; with Merge the pending value absorbs
// the newer one instead.
type Subscription[T any] struct {
	updates chan T
	cancel  context.CancelFunc
	done    chan struct{}
	changed func(prev, next T) bool
	merge   func(pending, next T) T

	mu     sync.RWMutex
	latest T
	has    bool

	closeOnce sync.Once
}

// Options tune SubscribeWith.
type Options[T any] struct {
	Name     string
	Interval time.Duration
	// Changed reports whether next differs from the last published value.
	// The first value is always published. Nil publishes every value.
	Changed func(prev, next T) bool
	// Merge combines a value the reader has not taken yet with the next one.
	// Use it when values are deltas rather than snapshots.
	Merge func(pending, next T) T
}

// Subscribe polls fetch every interval until ctx is cancelled or Close is
// called.
func Subscribe[T any](ctx context.Context, interval time.Duration, fetch FetchFunc[T]) *Subscription[T] {
	return SubscribeWith(ctx, Options[T]{Interval: interval}, fetch)
}

func SubscribeWith[T any](ctx context.Context, opts Options[T], fetch FetchFunc[T]) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		updates: make(chan T, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
		changed: opts.Changed,
		merge:   opts.Merge,
	}

	name := opts.Name
	if name == "" {
		name = "subscription"
	}
	p := New(name, opts.Interval, fetch, s.publish)

	go func() {
		defer close(s.done)
		defer close(s.updates)
		p.Run(ctx)
	}()
	return s
}

func (s *Subscription[T]) Updates() <-chan T {
	return s.updates
}

// Latest returns the last published value, if any.
func (s *Subscription[T]) Latest() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.has
}

// Close stops polling and waits for the poll goroutine to exit. Safe to call
// more than once.
func (s *Subscription[T]) Close() {
	s.closeOnce.Do(s.cancel)
	<-s.done
}

// Done is closed once the poll goroutine has exited.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// publish runs on the poll goroutine only, so after the drain below the
// buffer is empty and the send never blocks.
func (s *Subscription[T]) publish(value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.has && s.changed != nil && !s.changed(s.latest, value) {
		return
	}

	select {
	case pending := <-s.updates:
		if s.merge != nil {
			value = s.merge(pending, value)
		}
	default:
	}
	s.latest = value
	s.has = true
	s.updates <- value
}

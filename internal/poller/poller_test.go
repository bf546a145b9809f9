package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fast    = 10 * time.Millisecond
	waitFor = 2 * time.Second
)

func TestPoller_FetchesImmediatelyAndStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	p := New("test", time.Hour, func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 1, nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, waitFor, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("poller did not stop after cancel")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestPoller_ErrorKeepsLastValue(t *testing.T) {
	var calls atomic.Int32
	sub := Subscribe(context.Background(), fast, func(ctx context.Context) (int, error) {
		n := calls.Add(1)
		if n == 1 {
			return 42, nil
		}
		return 0, errors.New("boom")
	})
	defer sub.Close()

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, waitFor, time.Millisecond)

	v, ok := sub.Latest()
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestPoller_RecoversFromPanic(t *testing.T) {
	var calls atomic.Int32
	sub := Subscribe(context.Background(), fast, func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			panic("first fetch explodes")
		}
		return "ok", nil
	})
	defer sub.Close()

	assert.Eventually(t, func() bool {
		v, ok := sub.Latest()
		return ok && v == "ok"
	}, waitFor, time.Millisecond)
}

func TestSubscription_CloseStopsPolling(t *testing.T) {
	var calls atomic.Int32
	sub := Subscribe(context.Background(), fast, func(ctx context.Context) (int32, error) {
		return calls.Add(1), nil
	})

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, waitFor, time.Millisecond)

	sub.Close()
	sub.Close()

	stopped := calls.Load()
	time.Sleep(5 * fast)
	assert.Equal(t, stopped, calls.Load(), "fetch ran after Close")

	select {
	case <-sub.Done():
	default:
		t.Fatal("Done not closed after Close")
	}

	// Updates is closed once the goroutine exits.
	for range sub.Updates() {
	}
}

func TestSubscription_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := Subscribe(ctx, fast, func(ctx context.Context) (int, error) { return 1, nil })

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(waitFor):
		t.Fatal("subscription outlived its context")
	}
	sub.Close()
}

func TestSubscription_FetchSeesCancellation(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	sub := Subscribe(context.Background(), time.Hour, func(ctx context.Context) (int, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return 0, ctx.Err()
	})

	<-started
	closed := make(chan struct{})
	go func() {
		sub.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(waitFor):
		t.Fatal("Close blocked on an in-flight fetch")
	}
	_, ok := sub.Latest()
	assert.False(t, ok)
}

type countSource struct {
	mu     sync.Mutex
	values []int64
}

func (s *countSource) UnreadCount(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[0]
	if len(s.values) > 1 {
		s.values = s.values[1:]
	}
	return v, nil
}

func TestUnreadCounter_EmitsOnlyOnChange(t *testing.T) {
	src := &countSource{values: []int64{3, 3, 3, 5}}
	sub := NewUnreadCounter(src, fast).Watch(context.Background())
	defer sub.Close()

	var got []int64
	timeout := time.After(waitFor)
	for len(got) == 0 || got[len(got)-1] != 5 {
		select {
		case v := <-sub.Updates():
			got = append(got, v)
		case <-timeout:
			t.Fatalf("no change to 5, got %v", got)
		}
	}

	for i := 1; i < len(got); i++ {
		assert.NotEqual(t, got[i-1], got[i], "duplicate value published")
	}

	// Further polls return 5 forever and must not publish again.
	select {
	case v := <-sub.Updates():
		t.Fatalf("unexpected update %d", v)
	case <-time.After(5 * fast):
	}
}

func TestUnreadCounter_DefaultInterval(t *testing.T) {
	u := NewUnreadCounter(&countSource{values: []int64{0}}, 0)
	assert.Equal(t, DefaultUnreadInterval, u.interval)
}

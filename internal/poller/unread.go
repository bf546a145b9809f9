package poller

import (
	"context"
	"time"
)

const DefaultUnreadInterval = 30 * time.Second

type UnreadSource interface {
	UnreadCount(ctx context.Context) (int64, error)
}

// UnreadCounter tracks the caller's unread notification count.
type UnreadCounter struct {
	source   UnreadSource
	interval time.Duration
}

func NewUnreadCounter(source UnreadSource, interval time.Duration) *UnreadCounter {
	if interval <= 0 {
		interval = DefaultUnreadInterval
	}
	return &UnreadCounter{source: source, interval: interval}
}

// Watch publishes the count once, then only when it changes.
func (u *UnreadCounter) Watch(ctx context.Context) *Subscription[int64] {
	return SubscribeWith(ctx, Options[int64]{
		Name:     "unread-count",
		Interval: u.interval,
		Changed:  func(prev, next int64) bool { return prev != next },
	}, u.source.UnreadCount)
}

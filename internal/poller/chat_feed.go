package poller

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"flulance/internal/services/dto"

	mapset "github.com/deckarep/golang-set/v2"
)

const (
	DefaultMessageInterval = 3 * time.Second
	chatPageSize           = 200
	// maxPagesPerSync bounds one catch-up so a huge backlog cannot pin a tick.
	maxPagesPerSync = 10
)

// MessageSource lists the messages of a match, oldest first, strictly after
// the message id in after when it is set.
type MessageSource interface {
	ListMessages(ctx context.Context, matchID, after string, limit int) (dto.MessageListResponse, error)
}

// ChatFeed holds the reconciled message log of one match.
type ChatFeed struct {
	source   MessageSource
	matchID  string
	interval time.Duration

	mu       sync.Mutex
	seen     mapset.Set[string]
	messages []*dto.MessageResponse
	// cursor is the newest message obtained from the server. Locally added
	// messages never move it, so a counterpart message committed before our
	// own send is still fetched.
	cursor string
}

func NewChatFeed(source MessageSource, matchID string, interval time.Duration) *ChatFeed {
	if interval <= 0 {
		interval = DefaultMessageInterval
	}
	return &ChatFeed{
		source:   source,
		matchID:  matchID,
		interval: interval,
		seen:     mapset.NewThreadUnsafeSet[string](),
	}
}

// Sync fetches everything newer than the cursor and merges it into the log.
// It returns the messages that were not known before, in log order.
func (f *ChatFeed) Sync(ctx context.Context) ([]*dto.MessageResponse, error) {
	f.mu.Lock()
	cursor := f.cursor
	f.mu.Unlock()

	var fetched []*dto.MessageResponse
	for page := 0; page < maxPagesPerSync; page++ {
		list, err := f.source.ListMessages(ctx, f.matchID, cursor, chatPageSize)
		if err != nil {
			if len(fetched) == 0 {
				return nil, err
			}
			break
		}
		fetched = append(fetched, list.Messages...)
		if len(list.Messages) > 0 {
			cursor = list.Messages[len(list.Messages)-1].ID
		}
		if !list.HasMore || len(list.Messages) == 0 {
			break
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(fetched) > 0 {
		f.cursor = cursor
	}
	added := make([]*dto.MessageResponse, 0, len(fetched))
	for _, msg := range fetched {
		if f.insert(msg) {
			added = append(added, msg)
		}
	}
	return added, nil
}

// Add merges a message the caller already holds, typically the response of a
// send, without waiting for the next poll.
func (f *ChatFeed) Add(msg *dto.MessageResponse) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insert(msg)
}

// Messages returns a copy of the log in seq order.
func (f *ChatFeed) Messages() []*dto.MessageResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.messages)
}

// Watch polls the feed every interval and publishes each batch of new
// messages. Empty batches are only published once, as the initial value.
// Batches the reader has not taken yet are concatenated, so every message is
// delivered exactly once however slow the reader is.
func (f *ChatFeed) Watch(ctx context.Context) *Subscription[[]*dto.MessageResponse] {
	return SubscribeWith(ctx, Options[[]*dto.MessageResponse]{
		Name:     "chat:" + f.matchID,
		Interval: f.interval,
		Changed: func(_, next []*dto.MessageResponse) bool {
			return len(next) > 0
		},
		Merge: func(pending, next []*dto.MessageResponse) []*dto.MessageResponse {
			return append(slices.Clip(pending), next...)
		},
	}, f.Sync)
}

func (f *ChatFeed) insert(msg *dto.MessageResponse) bool {
	if msg == nil || msg.ID == "" || f.seen.Contains(msg.ID) {
		return false
	}
	f.seen.Add(msg.ID)

	i, _ := slices.BinarySearchFunc(f.messages, msg, compareMessages)
	f.messages = slices.Insert(f.messages, i, msg)
	return true
}

// compareMessages orders by the server's per-match seq, which follows commit
// order. The id only breaks ties between messages that lack one.
func compareMessages(a, b *dto.MessageResponse) int {
	if c := cmp.Compare(a.Seq, b.Seq); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

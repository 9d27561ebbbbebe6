// Package notify fans out capture notifications to live observers,
// one subscriber set per endpoint token.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// mailboxSize bounds each subscriber's queue. A subscriber that falls
// this far behind starts losing notifications rather than blocking
// publishers or pinning memory.
const mailboxSize = 64

// Notification is the transient value pushed to observers when a
// request is captured. It is never persisted.
type Notification struct {
	ID         int64     `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
}

// Subscription is one observer's mailbox under a token.
type Subscription struct {
	id string
	C  chan Notification
}

type Broadcaster struct {
	mu       sync.Mutex
	channels map[string]map[string]*Subscription
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		channels: make(map[string]map[string]*Subscription),
	}
}

// Subscribe registers a fresh mailbox under token.
func (b *Broadcaster) Subscribe(token string) *Subscription {
	sub := &Subscription{
		id: uuid.New().String(),
		C:  make(chan Notification, mailboxSize),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.channels[token]
	if subs == nil {
		subs = make(map[string]*Subscription)
		b.channels[token] = subs
	}
	subs[sub.id] = sub
	return sub
}

// Unsubscribe removes the mailbox. The token entry is dropped once its
// subscriber set empties, so idle tokens leave nothing behind.
func (b *Broadcaster) Unsubscribe(token string, sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.channels[token]
	if !ok {
		return
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(b.channels, token)
	}
}

// Publish delivers n to every mailbox currently registered under token.
// The lock guards the subscriber set, not delivery: mailboxes are
// snapshotted under the lock and filled outside it with non-blocking
// sends, so a stalled subscriber never slows a publisher. A full
// mailbox sheds its oldest entry to make room, keeping the most recent
// captures for a subscriber that catches up. Publishing to a token with
// no subscribers is a no-op.
func (b *Broadcaster) Publish(token string, n Notification) {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.channels[token]))
	for _, sub := range b.channels[token] {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.C <- n:
		default:
			select {
			case <-sub.C:
			default:
			}
			select {
			case sub.C <- n:
			default:
			}
		}
	}
}

// Subscribers reports how many mailboxes are registered under token.
func (b *Broadcaster) Subscribers(token string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.channels[token])
}

// ABOUTME: In-memory fan-out of committed store mutations
// ABOUTME: Implements store.Notifier; slow subscribers are evicted so they can resync

package events

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/reqstore/internal/metrics"
	"github.com/2389/reqstore/internal/store"
)

// DefaultBufferSize is the channel buffer for each subscriber.
const DefaultBufferSize = 64

// Event is one change notification. Name is store.ChannelUpserted or
// store.ChannelDeleted; Model is the full committed entity.
type Event struct {
	Name  string      `json:"event"`
	Model store.Model `json:"payload"`
}

type subscriber struct {
	ch    chan Event
	kinds []string // empty means every kind
}

func (s *subscriber) wants(kind string) bool {
	return len(s.kinds) == 0 || slices.Contains(s.kinds, kind)
}

// Broadcaster delivers every published event to all current subscribers.
// Events are not buffered for subscribers that arrive later. A subscriber
// whose buffer is full is removed and its channel closed rather than
// silently missing events; a closed channel therefore means "resync".
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool
	bufferSize  int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default,
// nil metrics to disable, and a bufferSize <= 0 for DefaultBufferSize.
func NewBroadcaster(logger *slog.Logger, m *metrics.Metrics, bufferSize int) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Broadcaster{
		subscribers: make(map[string]*subscriber),
		bufferSize:  bufferSize,
		logger:      logger.With("component", "broadcaster"),
		metrics:     m,
	}
}

// Subscribe registers a subscriber for the given model kinds, or for every
// kind when none are given. Returns a channel that receives events and a
// subscription ID for later unsubscription. The subscription is
// automatically cleaned up when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, kinds ...string) (<-chan Event, string) {
	subID := uuid.New().String()
	sub := &subscriber{ch: make(chan Event, b.bufferSize), kinds: kinds}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, subID
	}
	b.subscribers[subID] = sub
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID, "kinds", kinds)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return sub.ch, subID
}

// Publish sends an event to every interested subscriber without blocking.
func (b *Broadcaster) Publish(e Event) {
	kind := e.Model.ModelKind()

	// Sends happen under the read lock so no channel can be closed mid-send.
	var slow []string
	b.mu.RLock()
	for id, sub := range b.subscribers {
		if !sub.wants(kind) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			slow = append(slow, id)
		}
	}
	b.mu.RUnlock()

	for _, id := range slow {
		b.evict(id)
	}
}

// NotifyUpserted implements store.Notifier.
func (b *Broadcaster) NotifyUpserted(m store.Model) {
	b.Publish(Event{Name: store.ChannelUpserted, Model: m})
}

// NotifyDeleted implements store.Notifier.
func (b *Broadcaster) NotifyDeleted(m store.Model) {
	b.Publish(Event{Name: store.ChannelDeleted, Model: m})
}

func (b *Broadcaster) evict(subID string) {
	if b.remove(subID) {
		b.logger.Warn("evicted slow subscriber", "sub_id", subID)
		b.metrics.SubscriberEvicted()
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(subID string) {
	if b.remove(subID) {
		b.logger.Debug("subscriber removed", "sub_id", subID)
	}
}

func (b *Broadcaster) remove(subID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subscribers[subID]
	if !ok {
		return false
	}
	delete(b.subscribers, subID)
	close(sub.ch)
	return true
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subID, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, subID)
	}
	b.closed = true

	b.logger.Debug("broadcaster closed")
}

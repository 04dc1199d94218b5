// ABOUTME: Notification channel names and helper Notifier implementations
// ABOUTME: Notifiers for recording and fanning out mutations to several observers

package store

import "sync"

// Notification channels.
const (
	ChannelUpserted = "upserted"
	ChannelDeleted  = "deleted"
)

// Notification is one recorded change.
type Notification struct {
	Channel string
	Model   Model
}

// RecordingNotifier keeps notifications in memory in publish order.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []Notification
}

// NotifyUpserted implements Notifier.
func (r *RecordingNotifier) NotifyUpserted(m Model) {
	r.record(ChannelUpserted, m)
}

// NotifyDeleted implements Notifier.
func (r *RecordingNotifier) NotifyDeleted(m Model) {
	r.record(ChannelDeleted, m)
}

func (r *RecordingNotifier) record(channel string, m Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Notification{Channel: channel, Model: m})
}

// Events returns a copy of everything recorded so far.
func (r *RecordingNotifier) Events() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.events))
	copy(out, r.events)
	return out
}

// Filter returns recorded notifications on channel for the given kind.
func (r *RecordingNotifier) Filter(channel, kind string) []Notification {
	var out []Notification
	for _, n := range r.Events() {
		if n.Channel == channel && n.Model.ModelKind() == kind {
			out = append(out, n)
		}
	}
	return out
}

// Reset discards recorded notifications.
func (r *RecordingNotifier) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// MultiNotifier fans a mutation out to several notifiers in order.
type MultiNotifier []Notifier

// NotifyUpserted implements Notifier.
func (m MultiNotifier) NotifyUpserted(model Model) {
	for _, n := range m {
		n.NotifyUpserted(model)
	}
}

// NotifyDeleted implements Notifier.
func (m MultiNotifier) NotifyDeleted(model Model) {
	for _, n := range m {
		n.NotifyDeleted(model)
	}
}

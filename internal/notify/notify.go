// Package notify implements the process-wide Notification Bus of spec
// §4.I: sessions publish events, and each subscriber (one per
// connected Connection Handler) receives them only if it belongs to
// the publishing session's owner, gated further by that owner's own
// stored notification preferences.
package notify

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/azalio/gatewayd/internal/store"
)

// Kind enumerates the notification kinds a session can publish, per
// spec §3 Notification.
type Kind string

const (
	KindInputRequired Kind = "input-required"
	KindCompleted     Kind = "completed"
)

// Notification is one published event.
type Notification struct {
	SessionID string
	OwnerID   string
	Kind      Kind
}

// Subscription is returned by Subscribe and lets the caller stop
// receiving events deterministically, mirroring the Subscription value
// type used by internal/session for data/exit fan-out.
type Subscription struct {
	cancel func()
}

// Cancel unregisters the subscriber. Safe to call more than once.
func (s Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

type subscriber struct {
	userID string
	fn     func(Notification)
}

// Bus is a process-wide publish/subscribe hub. Constructed once by
// cmd/gatewayd and passed by reference to internal/wsconn and
// internal/session, never a package-level global, per spec §9.
type Bus struct {
	store *store.Store
	log   zerolog.Logger

	mu          sync.Mutex
	subscribers map[int]subscriber
	nextID      int

	latest map[string]Notification // sessionID -> most recent publish
}

// New builds a Bus backed by s for preference lookups.
func New(s *store.Store, log zerolog.Logger) *Bus {
	return &Bus{
		store:       s,
		log:         log.With().Str("component", "notify").Logger(),
		subscribers: make(map[int]subscriber),
		latest:      make(map[string]Notification),
	}
}

// Subscribe registers fn to receive every Publish call that passes
// userID's own preference gate. The returned Subscription's Cancel
// removes fn; callers must Cancel on connection close to avoid leaking
// a closure over a dead websocket.
func (b *Bus) Subscribe(userID string, fn func(Notification)) Subscription {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = subscriber{userID: userID, fn: fn}
	b.mu.Unlock()

	return Subscription{cancel: func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}}
}

// Publish records n as the latest event for its session, then fans it
// out to each subscriber whose userID matches n.OwnerID and whose own
// stored notification preferences allow the kind (spec §4.I: "for each
// open connection with a resolved principal whose per-user preference
// enables that kind", scoped to that session's owner so one tenant
// never sees another's session activity). BrowserEnabled/VisualEnabled
// govern delivery; NotifyOnInput/NotifyOnCompleted govern which kinds
// are even considered.
func (b *Bus) Publish(n Notification) {
	b.mu.Lock()
	b.latest[n.SessionID] = n
	subs := make([]subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		if sub.userID == n.OwnerID && b.allows(sub.userID, n.Kind) {
			sub.fn(n)
		}
	}
}

func (b *Bus) allows(userID string, kind Kind) bool {
	prefs, err := b.store.GetPreferences(userID)
	if err != nil {
		b.log.Warn().Err(err).Str("userId", userID).Msg("notify: get preferences failed, using defaults")
		prefs = store.DefaultPreferences(userID)
	}

	switch kind {
	case KindInputRequired:
		if !prefs.NotifyOnInput {
			return false
		}
	case KindCompleted:
		if !prefs.NotifyOnCompleted {
			return false
		}
	}
	return prefs.BrowserEnabled || prefs.VisualEnabled
}

// Latest returns the most recently published notification for
// sessionID, if any, for late-attaching clients per spec §4.I's
// "latest-per-session" retention.
func (b *Bus) Latest(sessionID string) (Notification, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.latest[sessionID]
	return n, ok
}

// Dismiss clears the retained latest notification for a session, per
// the client's notification.dismiss message (spec §4.G).
func (b *Bus) Dismiss(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.latest, sessionID)
}

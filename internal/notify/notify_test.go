package notify

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/azalio/gatewayd/internal/store"
)

func openTest(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPublish_DeliversToSubscriber(t *testing.T) {
	s := openTest(t)
	b := New(s, zerolog.Nop())

	received := make(chan Notification, 1)
	sub := b.Subscribe("anonymous", func(n Notification) { received <- n })
	defer sub.Cancel()

	b.Publish(Notification{SessionID: "s1", OwnerID: "anonymous", Kind: KindCompleted})

	select {
	case n := <-received:
		if n.SessionID != "s1" || n.Kind != KindCompleted {
			t.Errorf("got %+v", n)
		}
	default:
		t.Fatal("expected notification to be delivered")
	}
}

func TestPublish_GatedByPreference(t *testing.T) {
	s := openTest(t)
	if err := s.UpsertPreferences(store.NotificationPreferenceRecord{
		UserID:            "u1",
		BrowserEnabled:    true,
		VisualEnabled:     true,
		NotifyOnInput:     false,
		NotifyOnCompleted: true,
	}); err != nil {
		t.Fatalf("UpsertPreferences: %v", err)
	}

	b := New(s, zerolog.Nop())
	received := make(chan Notification, 1)
	sub := b.Subscribe("u1", func(n Notification) { received <- n })
	defer sub.Cancel()

	b.Publish(Notification{SessionID: "s1", OwnerID: "u1", Kind: KindInputRequired})

	select {
	case n := <-received:
		t.Fatalf("expected input-required to be gated off by u1's own preference, got %+v", n)
	default:
	}
}

// TestPublish_GatesPerRecipient covers both halves of delivery: a
// subscriber must own the published session AND have preferences that
// allow the kind. Neither alone is enough.
func TestPublish_GatesPerRecipient(t *testing.T) {
	s := openTest(t)
	if err := s.UpsertPreferences(store.NotificationPreferenceRecord{
		UserID:            "muted-owner",
		BrowserEnabled:    false,
		VisualEnabled:     false,
		NotifyOnInput:     true,
		NotifyOnCompleted: true,
	}); err != nil {
		t.Fatalf("UpsertPreferences: %v", err)
	}

	b := New(s, zerolog.Nop())
	mutedOwnerRecv := make(chan Notification, 1)
	otherUserRecv := make(chan Notification, 1)
	mutedOwnerSub := b.Subscribe("muted-owner", func(n Notification) { mutedOwnerRecv <- n })
	otherUserSub := b.Subscribe("other-user", func(n Notification) { otherUserRecv <- n })
	defer mutedOwnerSub.Cancel()
	defer otherUserSub.Cancel()

	// muted-owner owns the session but has notifications muted: gated by preference.
	b.Publish(Notification{SessionID: "s1", OwnerID: "muted-owner", Kind: KindCompleted})
	select {
	case n := <-mutedOwnerRecv:
		t.Fatalf("expected muted-owner to be gated off by preference, got %+v", n)
	default:
	}

	// other-user has default (permissive) preferences but doesn't own the
	// session: gated by ownership regardless of preference.
	b.Publish(Notification{SessionID: "s2", OwnerID: "muted-owner", Kind: KindCompleted})
	select {
	case n := <-otherUserRecv:
		t.Fatalf("expected other-user to be gated off by ownership, got %+v", n)
	default:
	}

	// the actual, unmuted owner receives it.
	ownerRecv := make(chan Notification, 1)
	ownerSub := b.Subscribe("other-user", func(n Notification) { ownerRecv <- n })
	defer ownerSub.Cancel()
	b.Publish(Notification{SessionID: "s3", OwnerID: "other-user", Kind: KindCompleted})
	select {
	case n := <-ownerRecv:
		if n.SessionID != "s3" {
			t.Errorf("got %+v", n)
		}
	default:
		t.Fatal("expected other-user, as owner with default preferences, to receive notification")
	}
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	s := openTest(t)
	b := New(s, zerolog.Nop())

	var count int
	sub := b.Subscribe("anonymous", func(n Notification) { count++ })
	sub.Cancel()

	b.Publish(Notification{SessionID: "s1", OwnerID: "anonymous", Kind: KindCompleted})
	if count != 0 {
		t.Errorf("count = %d, want 0 after cancel", count)
	}
}

func TestLatestAndDismiss(t *testing.T) {
	s := openTest(t)
	b := New(s, zerolog.Nop())

	if _, ok := b.Latest("s1"); ok {
		t.Fatal("expected no latest notification before any publish")
	}

	b.Publish(Notification{SessionID: "s1", OwnerID: "anonymous", Kind: KindCompleted})
	n, ok := b.Latest("s1")
	if !ok || n.Kind != KindCompleted {
		t.Fatalf("Latest() = (%+v, %v), want (KindCompleted, true)", n, ok)
	}

	b.Dismiss("s1")
	if _, ok := b.Latest("s1"); ok {
		t.Fatal("expected no latest notification after dismiss")
	}
}

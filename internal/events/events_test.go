package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBroadcasterCoalescesSignals(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < 3; i++ {
		if err := b.Notify(context.Background(), Change{Version: int64(i)}); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a signal")
	}
	select {
	case <-ch:
		t.Fatal("burst should coalesce into one pending signal")
	default:
	}
}

func TestBroadcasterCancel(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe()
	if b.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", b.Subscribers())
	}
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after cancel")
	}
	if b.Subscribers() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", b.Subscribers())
	}
	// Must not panic on a closed subscription.
	_ = b.Notify(context.Background(), Change{})
}

func TestFanoutJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	var calls int
	ok := NotifierFunc(func(context.Context, Change) error { calls++; return nil })
	bad := NotifierFunc(func(context.Context, Change) error { calls++; return boom })

	err := Fanout{ok, nil, bad, ok}.Notify(context.Background(), Change{Operation: "add"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("every notifier must be called, got %d", calls)
	}
}

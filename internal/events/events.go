// Package events carries post-commit change notifications from the ledger to
// in-process subscribers and external brokers.
package events

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Change describes one committed ledger mutation.
type Change struct {
	Version   int64     `json:"version"`
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier is told about every successful commit.
type Notifier interface {
	Notify(ctx context.Context, c Change) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, c Change) error

func (f NotifierFunc) Notify(ctx context.Context, c Change) error { return f(ctx, c) }

// Broadcaster is the in-process change signal. Subscribers receive an empty
// refresh signal; a slow subscriber sees bursts coalesced into one.
type Broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]chan struct{}
}

var _ Notifier = (*Broadcaster)(nil)

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan struct{})}
}

// Subscribe returns the signal channel and a cancel func that closes it.
func (b *Broadcaster) Subscribe() (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan struct{}, 1)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

func (b *Broadcaster) Notify(_ context.Context, _ Change) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// Subscribers reports the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Fanout notifies every non-nil notifier and joins their errors.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, c Change) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

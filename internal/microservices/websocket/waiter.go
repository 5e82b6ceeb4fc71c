package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MatchFunc selects the inbound payload a waiter is interested in.
type MatchFunc func(payload json.RawMessage) bool

// PendingWait is a one-shot subscription with a result slot. Create it with
// Bus.Expect before triggering the reply, then Wait on it; Release must run on
// every exit path and is safe to call more than once.
type PendingWait struct {
	bus      *Bus
	sub      *Subscription
	category Category
	match    MatchFunc

	result  chan json.RawMessage // cap 1
	resolve sync.Once
	release sync.Once
}

// Expect subscribes a one-shot waiter on category immediately, so a reply
// arriving before Wait is called is not lost.
func (b *Bus) Expect(category Category, match MatchFunc) *PendingWait {
	pw := &PendingWait{
		bus:      b,
		category: category,
		match:    match,
		result:   make(chan json.RawMessage, 1),
	}
	pw.sub = b.Subscribe(category, pw.handle)
	return pw
}

func (pw *PendingWait) handle(_ context.Context, payload json.RawMessage, _ string) error {
	if pw.match != nil && !pw.match(payload) {
		return nil
	}
	// the first matching handler removes the subscription before resolving
	pw.Release()
	pw.resolve.Do(func() {
		pw.result <- payload
	})
	return nil
}

// Wait blocks until a matching payload arrives, timeout elapses or ctx is
// done. A non-positive timeout waits on ctx alone. The subscription is always
// removed before Wait returns.
func (pw *PendingWait) Wait(ctx context.Context, timeout time.Duration) (json.RawMessage, error) {
	defer pw.Release()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case payload := <-pw.result:
		return payload, nil
	case <-expired:
		// a match may have landed together with the deadline
		select {
		case payload := <-pw.result:
			return payload, nil
		default:
		}
		pw.bus.logger.Debug("wait_timed_out",
			"category", pw.category,
			"timeout", timeout,
		)
		return nil, &WaitTimeoutError{Category: pw.category, Timeout: timeout}
	case <-ctx.Done():
		select {
		case payload := <-pw.result:
			return payload, nil
		default:
		}
		return nil, ctx.Err()
	}
}

// Release removes the underlying subscription.
func (pw *PendingWait) Release() {
	pw.release.Do(func() {
		pw.bus.Unsubscribe(pw.sub)
	})
}

// WaitFor awaits the first payload on category accepted by match.
func (b *Bus) WaitFor(ctx context.Context, category Category, match MatchFunc, timeout time.Duration) (json.RawMessage, error) {
	pw := b.Expect(category, match)
	defer pw.Release()
	return pw.Wait(ctx, timeout)
}

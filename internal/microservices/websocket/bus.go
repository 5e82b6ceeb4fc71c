package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Category groups subscribers on the Bus.
type Category string

const (
	CategoryMessage    Category = "on_message"    // inbound MESSAGE payloads
	CategoryDisconnect Category = "on_disconnect" // {"client_id": id} after unregistration
)

// Handler receives one published payload and the display name of the session
// it came from (empty if none was set). A returned error is logged only.
type Handler func(ctx context.Context, payload json.RawMessage, displayName string) error

// Subscription is the handle returned by Subscribe; Unsubscribe removes it by identity.
type Subscription struct {
	ID       uuid.UUID
	Category Category
	handler  Handler
}

// Bus fans inbound application messages out to subscribers. It is owned by a
// Hub and lives as long as it does.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Category][]*Subscription // insertion order
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed bool           // guarded by mu
	wg     sync.WaitGroup // in-flight handler goroutines, added to under mu
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		subs:   make(map[Category][]*Subscription),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Subscribe registers handler for category.
func (b *Bus) Subscribe(category Category, handler Handler) *Subscription {
	sub := &Subscription{
		ID:       uuid.New(),
		Category: category,
		handler:  handler,
	}

	b.mu.Lock()
	b.subs[category] = append(b.subs[category], sub)
	b.mu.Unlock()

	b.logger.Debug("subscription_added",
		"category", category,
		"subscription_id", sub.ID,
	)
	return sub
}

// Unsubscribe removes sub. It reports false if sub was not registered.
func (b *Bus) Unsubscribe(sub *Subscription) bool {
	if sub == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[sub.Category]
	for i, s := range list {
		if s != sub {
			continue
		}
		// copy so snapshots taken by Publish stay intact
		next := make([]*Subscription, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(b.subs, sub.Category)
		} else {
			b.subs[sub.Category] = next
		}
		b.logger.Debug("subscription_removed",
			"category", sub.Category,
			"subscription_id", sub.ID,
		)
		return true
	}
	return false
}

// Publish schedules every handler currently subscribed to category in its own
// goroutine and returns how many were scheduled. It never blocks on handlers.
func (b *Bus) Publish(category Category, payload json.RawMessage, displayName string) int {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return 0
	}
	snapshot := b.subs[category]
	b.wg.Add(len(snapshot))
	b.mu.RUnlock()

	for _, sub := range snapshot {
		go b.dispatch(sub, payload, displayName)
	}
	return len(snapshot)
}

func (b *Bus) dispatch(sub *Subscription, payload json.RawMessage, displayName string) {
	defer b.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("subscriber_panicked",
				"category", sub.Category,
				"subscription_id", sub.ID,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	if err := sub.handler(b.ctx, payload, displayName); err != nil {
		b.logger.Warn("subscriber_failed",
			"category", sub.Category,
			"subscription_id", sub.ID,
			"error", err.Error(),
		)
	}
}

// Count returns the number of subscribers for category.
func (b *Bus) Count(category Category) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[category])
}

// Close cancels the context handed to handlers and waits for in-flight ones.
// Publish is a no-op afterwards, and no handler starts once Close returns.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
}

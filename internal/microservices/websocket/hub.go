package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// defaults used when Options leaves a field at its zero value
const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultHeartbeatTimeout  = 120 * time.Second
	DefaultMessageBurst      = 20 // used when MessageRate is set without a burst
)

type Options struct {
	HeartbeatInterval time.Duration // advertised to clients in INITIALIZE
	HeartbeatTimeout  time.Duration // silence allowed before a session is closed
	MessageRate       float64 // MESSAGE envelopes per second per session, 0 = unlimited
	MessageBurst      int
	Logger            *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.HeartbeatTimeout <= 0 {
		o.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if o.MessageRate > 0 && o.MessageBurst <= 0 {
		o.MessageBurst = DefaultMessageBurst
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Hub is the session registry: at most one Session per ClientID, each with its
// own liveness monitor and read loop.
type Hub struct {
	opts   Options
	logger *slog.Logger
	bus    *Bus

	registerMu sync.Mutex // serializes Register/Unregister/Close
	mu         sync.RWMutex
	sessions   map[ClientID]*Session

	closed   atomic.Bool
	monitors atomic.Int32 // running monitor goroutines
}

func NewHub(opts Options) *Hub {
	opts = opts.withDefaults()
	return &Hub{
		opts:     opts,
		logger:   opts.Logger,
		bus:      NewBus(opts.Logger),
		sessions: make(map[ClientID]*Session),
	}
}

// Bus returns the dispatch bus fed by this hub's read loops.
func (h *Hub) Bus() *Bus { return h.bus }

// Register sends INITIALIZE on t and installs a session for id. If id is
// already registered, the old monitor is cancelled and confirmed stopped
// before the replacement is installed, and the superseded transport is closed.
// An empty displayName keeps the previous session's name.
//
// INITIALIZE is written before registerMu is taken, so a peer that is slow to
// read never holds up registrations of other ids.
func (h *Hub) Register(ctx context.Context, t Transport, id ClientID, displayName string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.closed.Load() {
		return nil, ErrHubClosed
	}

	if err := WriteEnvelope(t, &Initialize{HeartbeatInterval: h.opts.HeartbeatInterval.Seconds()}); err != nil {
		return nil, fmt.Errorf("failed to send initialize: %w", err)
	}

	s, reconnect, err := h.install(t, id, displayName)
	if err != nil {
		return nil, err
	}

	h.logger.Info("client_registered",
		"client_id", id,
		"remote_addr", t.RemoteAddr(),
		"reconnect", reconnect,
	)
	return s, nil
}

// install swaps the registry entry for id under registerMu.
func (h *Hub) install(t Transport, id ClientID, displayName string) (*Session, bool, error) {
	h.registerMu.Lock()
	defer h.registerMu.Unlock()

	if h.closed.Load() {
		return nil, false, ErrHubClosed
	}

	h.mu.Lock()
	old := h.sessions[id]
	if old != nil {
		// cancelled under the map lock so its liveness check cannot act afterwards
		old.monitor.cancel()
	}
	h.mu.Unlock()

	if old != nil {
		err := old.monitor.Wait()
		h.logger.Debug("previous_monitor_stopped",
			"client_id", id,
			"result", fmt.Sprint(err),
		)
		if displayName == "" {
			displayName = old.DisplayName()
		}
		if old.transport != t {
			_ = old.transport.Close()
		}
		old.markGone()
	}

	var limiter *rate.Limiter
	if h.opts.MessageRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(h.opts.MessageRate), h.opts.MessageBurst)
	}
	s := newSession(id, t, displayName, limiter)
	s.monitor = newMonitor(h, s)

	h.mu.Lock()
	h.sessions[id] = s
	s.monitor.start()
	h.mu.Unlock()

	return s, old != nil, nil
}

// Unregister removes id, stops its monitor and closes its transport. It
// reports false (and only logs) when id is not registered.
func (h *Hub) Unregister(id ClientID) bool {
	h.registerMu.Lock()
	defer h.registerMu.Unlock()

	h.mu.RLock()
	s, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		h.logger.Info("client_not_registered", "client_id", id)
		return false
	}
	return h.removeLocked(s, "unregistered")
}

// release is the read loop's exit path; it only removes s if no reconnect
// has replaced it in the meantime.
func (h *Hub) release(s *Session) {
	h.registerMu.Lock()
	defer h.registerMu.Unlock()
	h.removeLocked(s, "disconnected")
}

// removeLocked requires registerMu.
func (h *Hub) removeLocked(s *Session, reason string) bool {
	if !h.detachLocked(s) {
		return false
	}
	h.teardown(s, reason)
	return true
}

// detachLocked drops s from the map if it is still the current entry for its
// id. It requires registerMu.
func (h *Hub) detachLocked(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.sessions[s.ID]; !ok || cur != s {
		return false
	}
	delete(h.sessions, s.ID)
	s.markGone()
	return true
}

// teardown stops a detached session's monitor, closes its transport and
// publishes on_disconnect.
func (h *Hub) teardown(s *Session, reason string) {
	_ = s.monitor.stop()
	_ = s.transport.Close()
	h.disconnected(s, reason)
}

// checkLiveness runs on each monitor wake. It returns a negative duration when
// the session is gone, the time left before expiry when it is healthy, and
// ErrHeartbeatTimeout after closing an expired session.
func (h *Hub) checkLiveness(m *monitor) (time.Duration, error) {
	h.mu.Lock()
	if err := m.ctx.Err(); err != nil {
		h.mu.Unlock()
		return 0, err
	}
	s, ok := h.sessions[m.session.ID]
	if !ok || s != m.session {
		h.mu.Unlock()
		return -1, nil
	}
	elapsed := time.Since(s.LastHeartbeat())
	if elapsed <= h.opts.HeartbeatTimeout {
		h.mu.Unlock()
		return h.opts.HeartbeatTimeout - elapsed, nil
	}
	delete(h.sessions, s.ID)
	s.markGone()
	h.mu.Unlock()

	if err := WriteEnvelope(s.transport, &Close{}); err != nil {
		h.logger.Debug("close_envelope_failed",
			"client_id", s.ID,
			"error", err.Error(),
		)
	}
	_ = s.transport.Close()
	h.disconnected(s, "heartbeat_timeout")
	return 0, ErrHeartbeatTimeout
}

func (h *Hub) disconnected(s *Session, reason string) {
	attrs := []any{"client_id", s.ID, "reason", reason}
	if name := s.DisplayName(); name != "" {
		attrs = append(attrs, "display_name", name)
	}
	h.logger.Info("client_unregistered", attrs...)

	payload, _ := json.Marshal(map[string]any{"client_id": s.ID})
	h.bus.Publish(CategoryDisconnect, payload, s.DisplayName())
}

// Get returns the transport registered for id.
func (h *Hub) Get(id ClientID) (Transport, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	if !ok {
		return nil, false
	}
	return s.transport, true
}

// Session returns the live session for id.
func (h *Hub) Session(id ClientID) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	return s, ok
}

// SetDisplayName attaches a human-readable name to a live session.
func (h *Hub) SetDisplayName(id ClientID, name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	if ok {
		s.setDisplayName(name)
	}
	return ok
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Sessions lists the registered ids in ascending order.
func (h *Hub) Sessions() []ClientID {
	h.mu.RLock()
	ids := make([]ClientID, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// Send pushes SEND_MESSAGE{message} to id. An unregistered id is skipped
// without error.
func (h *Hub) Send(id ClientID, message any) error {
	t, ok := h.Get(id)
	if !ok {
		h.logger.Debug("send_skipped", "client_id", id)
		return nil
	}
	env, err := NewSendMessage(message)
	if err != nil {
		return err
	}
	return WriteEnvelope(t, env)
}

// Broadcast pushes SEND_MESSAGE{message} to every registered session and
// returns how many writes succeeded.
func (h *Hub) Broadcast(message any) int {
	env, err := NewSendMessage(message)
	if err != nil {
		h.logger.Error("broadcast_encode_failed", "error", err.Error())
		return 0
	}
	data, err := EncodeEnvelope(env)
	if err != nil {
		h.logger.Error("broadcast_encode_failed", "error", err.Error())
		return 0
	}

	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	sent := 0
	for _, s := range targets {
		if err := s.transport.WriteMessage(data); err != nil {
			h.logger.Warn("failed_to_send_broadcast",
				"client_id", s.ID,
				"error", err.Error(),
			)
			continue
		}
		sent++
	}
	return sent
}

// Push writes an arbitrary envelope to id, typically an op=6 MESSAGE built
// with NewMessage.
func (h *Hub) Push(id ClientID, env Envelope) error {
	t, ok := h.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrSessionNotFound, id)
	}
	return WriteEnvelope(t, env)
}

// Request sends message to id and waits for the first on_message payload
// accepted by match. The waiter is subscribed before the push goes out. If the
// session goes away before a match arrives, Request returns ErrSessionClosed
// without waiting for the timeout.
func (h *Hub) Request(ctx context.Context, id ClientID, message any, match MatchFunc, timeout time.Duration) (json.RawMessage, error) {
	s, ok := h.Session(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrSessionNotFound, id)
	}
	env, err := NewSendMessage(message)
	if err != nil {
		return nil, err
	}

	pw := h.bus.Expect(CategoryMessage, match)
	defer pw.Release()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case <-s.Done():
			cancel(fmt.Errorf("%w: %d", ErrSessionClosed, id))
		case <-ctx.Done():
		}
	}()

	if err := WriteEnvelope(s.transport, env); err != nil {
		return nil, fmt.Errorf("%w: failed to send request to %d: %v", ErrSessionClosed, id, err)
	}

	payload, err := pw.Wait(ctx, timeout)
	if err != nil {
		if cause := context.Cause(ctx); errors.Is(cause, ErrSessionClosed) {
			h.logger.Debug("request_session_closed", "client_id", id)
			return nil, cause
		}
		return nil, err
	}
	return payload, nil
}

// Serve registers t under id and runs its read loop until the transport
// closes or ctx is cancelled. The session is always unregistered on return
// unless a reconnect has already replaced it.
func (h *Hub) Serve(ctx context.Context, t Transport, id ClientID, displayName string) error {
	s, err := h.Register(ctx, t, id, displayName)
	if err != nil {
		_ = t.Close()
		return err
	}
	defer h.release(s)

	stop := context.AfterFunc(ctx, func() { _ = t.Close() })
	defer stop()

	return h.readLoop(s)
}

func (h *Hub) readLoop(s *Session) error {
	for {
		data, err := s.transport.ReadMessage()
		if err != nil {
			if isExpectedClose(err) {
				h.logger.Info("client_disconnected", "client_id", s.ID)
				return nil
			}
			h.logger.Warn("client_read_error",
				"client_id", s.ID,
				"error", err.Error(),
			)
			return err
		}
		h.handleFrame(s, data)
	}
}

func (h *Hub) handleFrame(s *Session, data []byte) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		h.logger.Warn("invalid_envelope_received",
			"client_id", s.ID,
			"error", err.Error(),
		)
		h.reply(s, ProtocolErrorReply(err))
		return
	}

	switch e := env.(type) {
	case *Heartbeat:
		h.reply(s, &HeartbeatConfirm{})
		s.touch()
		h.logger.Debug("heartbeat_received", "client_id", s.ID)

	case *Message:
		if e.Message == nil {
			h.reply(s, ProtocolErrorReply(&ProtocolError{Reason: "missing message field"}))
			return
		}
		if !s.allow() {
			h.logger.Warn("rate_limit_exceeded", "client_id", s.ID)
			h.reply(s, &Message{Error: "Rate limit exceeded", Description: "Too many messages, slow down"})
			return
		}
		n := h.bus.Publish(CategoryMessage, e.Message, s.DisplayName())
		h.logger.Debug("message_dispatched",
			"client_id", s.ID,
			"subscribers", n,
		)

	case *Unknown:
		h.logger.Debug("unknown_op_dropped",
			"client_id", s.ID,
			"op", int(e.Op),
		)

	default:
		// server -> client opcodes have no meaning inbound
		h.logger.Debug("unexpected_op_dropped",
			"client_id", s.ID,
			"op", env.OpCode().String(),
		)
	}
}

func (h *Hub) reply(s *Session, env Envelope) {
	if err := WriteEnvelope(s.transport, env); err != nil {
		h.logger.Warn("reply_failed",
			"client_id", s.ID,
			"op", env.OpCode().String(),
			"error", err.Error(),
		)
	}
}

// Close unregisters every session, sends each one CLOSE and shuts the bus
// down. Register fails with ErrHubClosed afterwards. The registry is emptied
// under registerMu; the CLOSE writes happen after it is released.
func (h *Hub) Close() {
	h.registerMu.Lock()
	if h.closed.Swap(true) {
		h.registerMu.Unlock()
		return
	}

	h.mu.RLock()
	snapshot := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		snapshot = append(snapshot, s)
	}
	h.mu.RUnlock()

	sessions := snapshot[:0]
	for _, s := range snapshot {
		if h.detachLocked(s) {
			sessions = append(sessions, s)
		}
	}
	h.registerMu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			if err := WriteEnvelope(s.transport, &Close{}); err != nil {
				h.logger.Debug("close_envelope_failed",
					"client_id", s.ID,
					"error", err.Error(),
				)
			}
			h.teardown(s, "shutdown")
		}(s)
	}
	wg.Wait()

	h.bus.Close()
	h.logger.Info("hub_closed", "sessions", len(sessions))
}

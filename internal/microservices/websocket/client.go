package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// ClientID identifies a connected client; it comes from the /ws/:client_id path.
type ClientID int64

// Session is the live state of one connected client. A reconnect under the
// same ClientID replaces the Session rather than mutating it, so a stale read
// loop can tell its own entry apart from the newer one.
type Session struct {
	ID ClientID

	transport     Transport
	lastHeartbeat atomic.Int64 // unix nanos
	displayName   atomic.Pointer[string]
	limiter       *rate.Limiter // MESSAGE envelopes only, nil when unlimited
	monitor       *monitor      // set before the entry is published

	gone     chan struct{} // closed once the entry leaves the registry
	goneOnce sync.Once
}

func newSession(id ClientID, t Transport, displayName string, limiter *rate.Limiter) *Session {
	s := &Session{
		ID:        id,
		transport: t,
		limiter:   limiter,
		gone:      make(chan struct{}),
	}
	s.touch()
	s.setDisplayName(displayName)
	return s
}

// Transport returns the connection handle owned by the session.
func (s *Session) Transport() Transport { return s.transport }

// LastHeartbeat is the time of the last HEARTBEAT, or of registration.
func (s *Session) LastHeartbeat() time.Time {
	return time.Unix(0, s.lastHeartbeat.Load())
}

// DisplayName returns the optional human-readable name, empty if unset.
func (s *Session) DisplayName() string {
	if p := s.displayName.Load(); p != nil {
		return *p
	}
	return ""
}

func (s *Session) setDisplayName(name string) {
	s.displayName.Store(&name)
}

func (s *Session) touch() {
	s.lastHeartbeat.Store(time.Now().UnixNano())
}

// Done is closed when the session is unregistered, times out or is replaced
// by a reconnect.
func (s *Session) Done() <-chan struct{} { return s.gone }

func (s *Session) markGone() {
	s.goneOnce.Do(func() { close(s.gone) })
}

func (s *Session) allow() bool {
	return s.limiter == nil || s.limiter.Allow()
}

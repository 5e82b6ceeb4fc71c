package websocket

import (
	"context"
	"errors"
	"time"
)

// monitor enforces the heartbeat timeout for one Session. It is started by
// Register and stopped either by its own timeout path or by stop().
type monitor struct {
	hub     *Hub
	session *Session

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	err    error // valid after done is closed
}

func newMonitor(h *Hub, s *Session) *monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &monitor{
		hub:     h,
		session: s,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

func (m *monitor) start() {
	m.hub.monitors.Add(1)
	go m.run()
}

func (m *monitor) run() {
	defer close(m.done)
	defer m.hub.monitors.Add(-1)

	m.err = m.loop()

	switch {
	case errors.Is(m.err, context.Canceled):
		m.hub.logger.Debug("monitor_cancelled", "client_id", m.session.ID)
	case errors.Is(m.err, ErrHeartbeatTimeout):
		m.hub.logger.Warn("heartbeat_timeout",
			"client_id", m.session.ID,
			"display_name", m.session.DisplayName(),
			"last_heartbeat", m.session.LastHeartbeat(),
		)
	default:
		m.hub.logger.Debug("monitor_stopped", "client_id", m.session.ID)
	}
}

// loop returns context.Canceled when stopped from outside, ErrHeartbeatTimeout
// after closing an expired session, and nil when the entry disappeared on its own.
func (m *monitor) loop() error {
	wait := m.hub.opts.HeartbeatTimeout
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return m.ctx.Err()
		case <-timer.C:
		}

		remaining, err := m.hub.checkLiveness(m)
		if err != nil || remaining < 0 {
			return err
		}
		timer.Reset(remaining)
	}
}

// Wait blocks until the monitor goroutine has exited and returns its result.
func (m *monitor) Wait() error {
	<-m.done
	return m.err
}

// stop cancels the monitor and waits for it to exit.
func (m *monitor) stop() error {
	m.cancel()
	return m.Wait()
}

package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory Transport: tests push inbound frames on in
// and read what the hub wrote from out.
type fakeTransport struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
	closes atomic.Int32
	addr   string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 256),
		closed: make(chan struct{}),
		addr:   "127.0.0.1:40000",
	}
}

func (f *fakeTransport) ReadMessage() ([]byte, error) {
	select {
	case data := <-f.in:
		return data, nil
	case <-f.closed:
		return nil, net.ErrClosed
	}
}

func (f *fakeTransport) WriteMessage(data []byte) error {
	select {
	case <-f.closed:
		return net.ErrClosed
	default:
	}
	buf := append([]byte(nil), data...)
	select {
	case f.out <- buf:
		return nil
	case <-f.closed:
		return net.ErrClosed
	}
}

func (f *fakeTransport) Close() error {
	f.closes.Add(1)
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) RemoteAddr() string { return f.addr }

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// deliver queues an inbound frame built from env.
func (f *fakeTransport) deliver(t *testing.T, env Envelope) {
	t.Helper()
	data, err := EncodeEnvelope(env)
	require.NoError(t, err)
	f.in <- data
}

// next returns the next envelope written by the hub.
func (f *fakeTransport) next(t *testing.T) Envelope {
	t.Helper()
	select {
	case data := <-f.out:
		env, err := DecodeEnvelope(data)
		require.NoError(t, err)
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for an outbound envelope")
		return nil
	}
}

// expectSilence asserts nothing is written within d.
func (f *fakeTransport) expectSilence(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case data := <-f.out:
		t.Fatalf("unexpected outbound frame: %s", data)
	case <-time.After(d):
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHub(t *testing.T, opts Options) *Hub {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = testLogger()
	}
	h := NewHub(opts)
	t.Cleanup(h.Close)
	return h
}

// serve runs Hub.Serve in the background and consumes the INITIALIZE frame.
func serve(t *testing.T, h *Hub, ft *fakeTransport, id ClientID, name string) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- h.Serve(context.Background(), ft, id, name)
	}()
	env := ft.next(t)
	require.IsType(t, &Initialize{}, env)
	return done
}

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// stallingTransport blocks every write after the first allowed ones until
// unblock is called.
type stallingTransport struct {
	*fakeTransport
	allowed atomic.Int32
	stalled chan struct{} // closed when a write starts blocking
	gate    chan struct{}
	once    sync.Once
}

func newStallingTransport(allowed int32) *stallingTransport {
	st := &stallingTransport{
		fakeTransport: newFakeTransport(),
		stalled:       make(chan struct{}),
		gate:          make(chan struct{}),
	}
	st.allowed.Store(allowed)
	return st
}

func (s *stallingTransport) WriteMessage(data []byte) error {
	if s.allowed.Add(-1) >= 0 {
		return s.fakeTransport.WriteMessage(data)
	}
	s.once.Do(func() { close(s.stalled) })
	<-s.gate
	return s.fakeTransport.WriteMessage(data)
}

func (s *stallingTransport) unblock() {
	select {
	case <-s.gate:
	default:
		close(s.gate)
	}
}

func (s *stallingTransport) waitStalled(t *testing.T) {
	t.Helper()
	select {
	case <-s.stalled:
	case <-time.After(time.Second):
		t.Fatal("write never started")
	}
}

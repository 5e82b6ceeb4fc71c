package websocket

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const ( // connection limits for the gorilla transport
	WriteWait      = 10 * time.Second // max time to write a frame to the peer
	MaxMessageSize = 64 * 1024        // maximum inbound frame size
)

// close codes used on the handshake path; 4000-4999 are application-defined
const (
	CloseUnauthorized = 4401
)

// Transport is the connection handle owned by a Session. ReadMessage is only
// ever called by the session's read loop; WriteMessage and Close must be safe
// for concurrent use.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
	RemoteAddr() string
}

// WriteEnvelope encodes env and writes it to t.
func WriteEnvelope(t Transport, env Envelope) error {
	data, err := EncodeEnvelope(env)
	if err != nil {
		return err
	}
	return t.WriteMessage(data)
}

// conn adapts a gorilla connection to Transport.
type conn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewTransport wraps an upgraded gorilla connection.
func NewTransport(ws *websocket.Conn) Transport {
	ws.SetReadLimit(MaxMessageSize)
	return &conn{ws: ws}
}

func (c *conn) ReadMessage() ([]byte, error) {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType == websocket.TextMessage || msgType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *conn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(WriteWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// CloseWithReason sends a close frame with code and reason before closing.
func (c *conn) CloseWithReason(code int, reason string) error {
	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(WriteWait))
	c.writeMu.Unlock()
	return c.Close()
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// isExpectedClose reports whether a read error is an ordinary disconnect
// rather than something worth a warning.
func isExpectedClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}

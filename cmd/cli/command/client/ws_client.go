package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	gorilla "github.com/gorilla/websocket"

	"mooshihub/internal/microservices/websocket"
)

// ws_client.go = the session side of the mooshi CLI: registers with the
// connection manager, keeps the heartbeat going and relays stdin/pushes.

type ConnectOptions struct {
	Server   string // http(s) or ws(s) base URL
	ClientID int64
	APIKey   string
	Name     string
	In       io.Reader // each line becomes a MESSAGE
	Out      io.Writer
}

var (
	pushColor   = color.New(color.FgCyan)
	systemColor = color.New(color.FgYellow)
	errorColor  = color.New(color.FgRed)
)

// Connect runs one session until ctx is cancelled, the server closes the
// connection, or In reaches EOF or a "/quit" line.
func Connect(ctx context.Context, opts ConnectOptions) error {
	wsURL, err := sessionURL(opts.Server, opts.ClientID, opts.Name)
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", opts.APIKey)
	ws, resp, err := gorilla.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connection failed (%d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("connection failed: %w", err)
	}
	t := websocket.NewTransport(ws)
	defer t.Close()

	interval, err := awaitInitialize(t)
	if err != nil {
		return err
	}
	systemColor.Fprintf(opts.Out, "connected as client %d, heartbeat every %s\n", opts.ClientID, interval)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	readErr := make(chan error, 1)
	go func() { readErr <- readPushes(t, opts.Out) }()
	go heartbeat(ctx, t, interval)
	if opts.In != nil {
		go func() {
			sendLines(t, opts.In)
			cancel()
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-readErr:
		return err
	}
}

func sessionURL(server string, clientID int64, name string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + strconv.FormatInt(clientID, 10)
	if name != "" {
		u.RawQuery = url.Values{"name": {name}}.Encode()
	}
	return u.String(), nil
}

// awaitInitialize reads the first envelope, which must be INITIALIZE.
func awaitInitialize(t websocket.Transport) (time.Duration, error) {
	data, err := t.ReadMessage()
	if err != nil {
		return 0, describeClose(err)
	}
	env, err := websocket.DecodeEnvelope(data)
	if err != nil {
		return 0, fmt.Errorf("invalid first envelope: %w", err)
	}
	if _, ok := env.(*websocket.Close); ok {
		// rejected handshake: the close frame carries the reason
		if _, err := t.ReadMessage(); err != nil {
			return 0, describeClose(err)
		}
		return 0, errors.New("session closed by server")
	}
	ini, ok := env.(*websocket.Initialize)
	if !ok {
		return 0, fmt.Errorf("expected INITIALIZE, got %s", env.OpCode())
	}
	if ini.Interval() <= 0 {
		return websocket.DefaultHeartbeatInterval, nil
	}
	return ini.Interval(), nil
}

func readPushes(t websocket.Transport, out io.Writer) error {
	for {
		data, err := t.ReadMessage()
		if err != nil {
			return describeClose(err)
		}
		printEnvelope(out, data)
	}
}

func printEnvelope(out io.Writer, data []byte) {
	env, err := websocket.DecodeEnvelope(data)
	if err != nil {
		fmt.Fprintf(out, "received: %s\n", string(data))
		return
	}

	switch e := env.(type) {
	case *websocket.HeartbeatConfirm:
	case *websocket.SendMessage:
		pushColor.Fprintf(out, "[push] %s\n", string(e.Message))
	case *websocket.Message:
		if e.Error != "" {
			errorColor.Fprintf(out, "[error] %s: %s\n", e.Error, e.Description)
			return
		}
		pushColor.Fprintf(out, "[message] %s\n", string(data))
	case *websocket.Close:
		systemColor.Fprintln(out, "[close] server is closing the session")
	default:
		fmt.Fprintf(out, "[%s] %s\n", env.OpCode(), string(data))
	}
}

func heartbeat(ctx context.Context, t websocket.Transport, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := websocket.WriteEnvelope(t, &websocket.Heartbeat{}); err != nil {
				return
			}
		}
	}
}

// sendLines sends each input line as a MESSAGE until EOF or "/quit". JSON
// lines are sent as-is, anything else as a JSON string.
func sendLines(t websocket.Transport, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return
		}
		if err := websocket.WriteEnvelope(t, &websocket.Message{Message: linePayload(line)}); err != nil {
			return
		}
	}
}

func linePayload(line string) json.RawMessage {
	if json.Valid([]byte(line)) {
		return json.RawMessage(line)
	}
	quoted, _ := json.Marshal(line)
	return quoted
}

func describeClose(err error) error {
	var ce *gorilla.CloseError
	if errors.As(err, &ce) {
		return fmt.Errorf("closed by server: %d %s", ce.Code, ce.Text)
	}
	return err
}

package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Message protocol definitions

// OpCode tags the purpose of one envelope on the session connection.
type OpCode int

const (
	OpInitialize       OpCode = 1 // server -> client, carries heartbeat_interval
	OpHeartbeat        OpCode = 2 // client -> server
	OpHeartbeatConfirm OpCode = 3 // server -> client
	OpClose            OpCode = 4 // server -> client, precedes a forced disconnect
	OpMessage          OpCode = 6 // client -> server payload, also server -> client one-off pushes
	OpSendMessage      OpCode = 7 // server -> client broadcast/unicast push
)

// Known reports whether op is one of the protocol opcodes.
func (op OpCode) Known() bool {
	switch op {
	case OpInitialize, OpHeartbeat, OpHeartbeatConfirm, OpClose, OpMessage, OpSendMessage:
		return true
	}
	return false
}

func (op OpCode) String() string {
	switch op {
	case OpInitialize:
		return "INITIALIZE"
	case OpHeartbeat:
		return "HEARTBEAT"
	case OpHeartbeatConfirm:
		return "HEARTBEAT_CONFIRM"
	case OpClose:
		return "CLOSE"
	case OpMessage:
		return "MESSAGE"
	case OpSendMessage:
		return "SEND_MESSAGE"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(op)) + ")"
	}
}

// Envelope is one structured message exchanged over a session connection.
// The set of implementations is closed; switch on the concrete type.
type Envelope interface {
	OpCode() OpCode
	envelope()
}

// Initialize is sent once after every successful registration.
type Initialize struct {
	HeartbeatInterval float64 // seconds
}

// Interval converts HeartbeatInterval to a time.Duration.
func (e *Initialize) Interval() time.Duration {
	return time.Duration(e.HeartbeatInterval * float64(time.Second))
}

type Heartbeat struct{}

type HeartbeatConfirm struct{}

type Close struct{}

// Message carries an application payload. Inbound it holds the client's
// "message" field; outbound it is also used for protocol error replies
// (Error/Description) and for ad hoc pushes whose fields live in Extra.
type Message struct {
	Message     json.RawMessage
	Error       string
	Description string
	Extra       map[string]json.RawMessage
}

// SendMessage is the server push used by Hub.Send and Hub.Broadcast.
type SendMessage struct {
	Message json.RawMessage
}

// Unknown is an envelope with a well-formed but unrecognized op. It is
// accepted by the decoder and dropped by the read loop without a reply.
type Unknown struct {
	Op  OpCode
	Raw json.RawMessage
}

func (*Initialize) OpCode() OpCode       { return OpInitialize }
func (*Heartbeat) OpCode() OpCode        { return OpHeartbeat }
func (*HeartbeatConfirm) OpCode() OpCode { return OpHeartbeatConfirm }
func (*Close) OpCode() OpCode            { return OpClose }
func (*Message) OpCode() OpCode          { return OpMessage }
func (*SendMessage) OpCode() OpCode      { return OpSendMessage }
func (e *Unknown) OpCode() OpCode        { return e.Op }

func (*Initialize) envelope()       {}
func (*Heartbeat) envelope()        {}
func (*HeartbeatConfirm) envelope() {}
func (*Close) envelope()            {}
func (*Message) envelope()          {}
func (*SendMessage) envelope()      {}
func (*Unknown) envelope()          {}

// reserved top-level keys of an op=6 envelope
var messageFields = map[string]bool{"op": true, "message": true, "error": true, "description": true}

// DecodeEnvelope parses one inbound frame. Payloads that are not a JSON object
// or lack an integer op yield a *ProtocolError. Missing op-specific fields are
// left for the caller to validate.
func DecodeEnvelope(data []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &ProtocolError{Reason: "payload is not a JSON object"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, &ProtocolError{Reason: "invalid JSON", Err: err}
	}

	rawOp, ok := fields["op"]
	if !ok || bytes.Equal(bytes.TrimSpace(rawOp), []byte("null")) {
		return nil, &ProtocolError{Reason: "missing op"}
	}
	var op int
	if err := json.Unmarshal(rawOp, &op); err != nil {
		return nil, &ProtocolError{Reason: "op must be an integer", Err: err}
	}

	switch OpCode(op) {
	case OpInitialize:
		env := &Initialize{}
		if raw, ok := fields["heartbeat_interval"]; ok {
			if err := json.Unmarshal(raw, &env.HeartbeatInterval); err != nil {
				return nil, &ProtocolError{Reason: "heartbeat_interval must be a number", Err: err}
			}
		}
		return env, nil
	case OpHeartbeat:
		return &Heartbeat{}, nil
	case OpHeartbeatConfirm:
		return &HeartbeatConfirm{}, nil
	case OpClose:
		return &Close{}, nil
	case OpMessage:
		env := &Message{}
		for key, raw := range fields {
			switch key {
			case "op":
			case "message":
				env.Message = raw
			case "error":
				_ = json.Unmarshal(raw, &env.Error)
			case "description":
				_ = json.Unmarshal(raw, &env.Description)
			default:
				if env.Extra == nil {
					env.Extra = make(map[string]json.RawMessage)
				}
				env.Extra[key] = raw
			}
		}
		return env, nil
	case OpSendMessage:
		return &SendMessage{Message: fields["message"]}, nil
	default:
		raw := make(json.RawMessage, len(trimmed))
		copy(raw, trimmed)
		return &Unknown{Op: OpCode(op), Raw: raw}, nil
	}
}

// EncodeEnvelope is the structural inverse of DecodeEnvelope.
func EncodeEnvelope(env Envelope) ([]byte, error) {
	out := map[string]any{"op": env.OpCode()}

	switch e := env.(type) {
	case *Initialize:
		out["heartbeat_interval"] = e.HeartbeatInterval
	case *Heartbeat, *HeartbeatConfirm, *Close:
	case *Message:
		for key, raw := range e.Extra {
			if messageFields[key] {
				continue
			}
			out[key] = raw
		}
		if e.Message != nil {
			out["message"] = e.Message
		}
		if e.Error != "" {
			out["error"] = e.Error
		}
		if e.Description != "" {
			out["description"] = e.Description
		}
	case *SendMessage:
		if e.Message != nil {
			out["message"] = e.Message
		}
	case *Unknown:
		if len(e.Raw) > 0 {
			return append([]byte(nil), e.Raw...), nil
		}
	default:
		return nil, fmt.Errorf("websocket: cannot encode envelope %T", env)
	}

	return json.Marshal(out)
}

// NewMessage builds an outbound op=6 envelope whose top-level fields are the
// JSON encoding of fields. Used for one-off pushes outside the heartbeat cycle.
func NewMessage(fields map[string]any) (*Message, error) {
	env := &Message{Extra: make(map[string]json.RawMessage, len(fields))}
	for key, value := range fields {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode field %q: %w", key, err)
		}
		switch key {
		case "op":
		case "message":
			env.Message = raw
		default:
			env.Extra[key] = raw
		}
	}
	return env, nil
}

// NewSendMessage wraps message as the "message" field of a SEND_MESSAGE push.
// Raw JSON and byte slices are passed through unchanged.
func NewSendMessage(message any) (*SendMessage, error) {
	raw, err := marshalPayload(message)
	if err != nil {
		return nil, err
	}
	return &SendMessage{Message: raw}, nil
}

// ProtocolErrorReply is the corrective reply sent for an undecodable frame.
func ProtocolErrorReply(err error) *Message {
	reply := &Message{
		Error:       "Invalid JSON",
		Description: "An invalid json was sent to the server",
	}
	if pe, ok := err.(*ProtocolError); ok && pe.Reason != "" {
		reply.Description = pe.Reason
	}
	return reply
}

func marshalPayload(v any) (json.RawMessage, error) {
	switch p := v.(type) {
	case json.RawMessage:
		return p, nil
	case []byte:
		if json.Valid(p) {
			return json.RawMessage(p), nil
		}
		return json.Marshal(string(p))
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload: %w", err)
		}
		return raw, nil
	}
}

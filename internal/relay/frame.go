package relay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/phonelink/broker-server-go/internal/model"
)

type FrameType string

const (
	FrameTypePing      FrameType = "ping"
	FrameTypePong      FrameType = "pong"
	FrameTypeCommand   FrameType = "command"
	FrameTypeEvent     FrameType = "event"
	FrameTypeWebRTC    FrameType = "webrtc"
	FrameTypeConnected FrameType = "connected"
)

// EventDeviceOffline is emitted to live peers when a paired device's
// channel is torn down.
const EventDeviceOffline = "DEVICE_OFFLINE"

var ErrInvalidJSON = errors.New("invalid JSON")

// UnknownFrameError reports a frame whose declared kind is outside the
// allowed set. The connection stays open after it is surfaced.
type UnknownFrameError struct {
	Type string
}

func (e *UnknownFrameError) Error() string {
	return fmt.Sprintf("invalid message type: %s", e.Type)
}

// MalformedFrameError reports a frame of a known kind whose fields fail
// validation. ReqID, when present, lets the rejection be correlated to
// the sender's request.
type MalformedFrameError struct {
	Reason string
	ReqID  string
}

func (e *MalformedFrameError) Error() string { return e.Reason }

// Frame is one decoded wire message. Each kind is its own variant so a
// frame only ever carries the fields that are valid for its kind.
type Frame interface {
	Kind() FrameType
}

type Ping struct {
	Type FrameType `json:"type"`
}

func (Ping) Kind() FrameType { return FrameTypePing }

type Pong struct {
	Type FrameType `json:"type"`
}

func (Pong) Kind() FrameType { return FrameTypePong }

// Command carries a telephony instruction for a host device.
// DeviceID names an explicit destination; zero means the unique peer.
type Command struct {
	Type     FrameType         `json:"type"`
	Cmd      model.CommandName `json:"cmd"`
	Sim      int               `json:"sim,omitempty"`
	To       string            `json:"to,omitempty"`
	Body     string            `json:"body,omitempty"`
	ReqID    string            `json:"req_id,omitempty"`
	DeviceID int64             `json:"device_id,omitempty"`
}

func (Command) Kind() FrameType { return FrameTypeCommand }

func (f Command) validate() error {
	if !f.Cmd.Valid() {
		return &MalformedFrameError{Reason: fmt.Sprintf("invalid command: %s", f.Cmd), ReqID: f.ReqID}
	}
	return nil
}

// Event carries a status report. Inbound events flow from a host back to
// its client; the broker also originates events such as DEVICE_OFFLINE,
// where DeviceID names the device the event is about.
type Event struct {
	Type     FrameType `json:"type"`
	Event    string    `json:"event"`
	Status   string    `json:"status,omitempty"`
	State    string    `json:"state,omitempty"`
	ReqID    string    `json:"req_id,omitempty"`
	DeviceID int64     `json:"device_id,omitempty"`
}

func (Event) Kind() FrameType { return FrameTypeEvent }

func (f Event) validate() error {
	if f.Event == "" {
		return &MalformedFrameError{Reason: "event name required", ReqID: f.ReqID}
	}
	return nil
}

// WebRTCSignal is opaque call-audio signaling forwarded between peers.
// The broker never interprets SDP or candidate contents.
type WebRTCSignal struct {
	Type      FrameType `json:"type"`
	Action    string    `json:"action"`
	SDP       string    `json:"sdp,omitempty"`
	Candidate string    `json:"candidate,omitempty"`
	ReqID     string    `json:"req_id,omitempty"`
	DeviceID  int64     `json:"device_id,omitempty"`
}

func (WebRTCSignal) Kind() FrameType { return FrameTypeWebRTC }

func (f WebRTCSignal) validate() error {
	switch f.Action {
	case "offer", "answer", "ice", "error":
		return nil
	}
	return &MalformedFrameError{Reason: fmt.Sprintf("invalid webrtc action: %s", f.Action), ReqID: f.ReqID}
}

// Connected is the server's acknowledgment on channel open, carrying the
// device's own identity.
type Connected struct {
	Type     FrameType `json:"type"`
	DeviceID int64     `json:"device_id"`
}

func (Connected) Kind() FrameType { return FrameTypeConnected }

// ErrorFrame is a server-originated error. ReqID, when present, lets the
// caller correlate it to its own pending request.
type ErrorFrame struct {
	Error string `json:"error"`
	ReqID string `json:"req_id,omitempty"`
}

func NewPing() Ping { return Ping{Type: FrameTypePing} }

func NewPong() Pong { return Pong{Type: FrameTypePong} }

func NewConnected(deviceID int64) Connected {
	return Connected{Type: FrameTypeConnected, DeviceID: deviceID}
}

func NewCommand(cmd model.CommandName, sim int, to, body, reqID string) Command {
	return Command{Type: FrameTypeCommand, Cmd: cmd, Sim: sim, To: to, Body: body, ReqID: reqID}
}

func NewOfflineEvent(deviceID int64) Event {
	return Event{Type: FrameTypeEvent, Event: EventDeviceOffline, DeviceID: deviceID}
}

// Decode parses a wire message by its type discriminator and returns the
// matching variant. Malformed JSON fails with ErrInvalidJSON and unknown
// kinds with UnknownFrameError. A known kind whose fields fail
// validation is rejected with a MalformedFrameError carrying the frame's
// request id.
func Decode(data []byte) (Frame, error) {
	var env struct {
		Type FrameType `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrInvalidJSON
	}

	switch env.Type {
	case FrameTypePing:
		return NewPing(), nil
	case FrameTypePong:
		return NewPong(), nil
	case FrameTypeCommand:
		var f Command
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, ErrInvalidJSON
		}
		if err := f.validate(); err != nil {
			return nil, err
		}
		return f, nil
	case FrameTypeEvent:
		var f Event
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, ErrInvalidJSON
		}
		if err := f.validate(); err != nil {
			return nil, err
		}
		return f, nil
	case FrameTypeWebRTC:
		var f WebRTCSignal
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, ErrInvalidJSON
		}
		if err := f.validate(); err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, &UnknownFrameError{Type: string(env.Type)}
	}
}

// Encode marshals a frame for the wire.
func Encode(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// routing returns the explicit destination and request id of a routable
// frame, or zero values for kinds that are handled locally.
func routing(f Frame) (deviceID int64, reqID string) {
	switch v := f.(type) {
	case Command:
		return v.DeviceID, v.ReqID
	case Event:
		return v.DeviceID, v.ReqID
	case WebRTCSignal:
		return v.DeviceID, v.ReqID
	}
	return 0, ""
}

// logKind maps a routable frame kind to its message log classification.
func logKind(t FrameType) model.MessageKind {
	switch t {
	case FrameTypeEvent:
		return model.MessageKindEvent
	case FrameTypeWebRTC:
		return model.MessageKindWebRTC
	default:
		return model.MessageKindCommand
	}
}

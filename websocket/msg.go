package websocket

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/gridrider/field"
	"github.com/aukilabs/gridrider/models"
	"github.com/aukilabs/gridrider/sector"
	"github.com/segmentio/encoding/json"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/net/websocket"
)

// Message types.
const (
	MsgTypePing          = "ping"
	MsgTypePong          = "pong"
	MsgTypeIntent        = "intent"
	MsgTypeSourceAdd     = "source_add"
	MsgTypeSourceRemove  = "source_remove"
	MsgTypeJoined        = "joined"
	MsgTypeSnapshot      = "snapshot"
	MsgTypeSourceAdded   = "source_added"
	MsgTypeSourceRemoved = "source_removed"
	MsgTypeError         = "error"
)

// Msg is the envelope of every message exchanged with a pilot. Which fields
// are set depends on Type.
type Msg struct {
	Type      string `json:"type"                 msgpack:"type"`
	RequestID uint32 `json:"request_id,omitempty" msgpack:"request_id,omitempty"`

	Rotate  float64 `json:"rotate,omitempty"  msgpack:"rotate,omitempty"`
	Thrust  float64 `json:"thrust,omitempty"  msgpack:"thrust,omitempty"`
	Impulse bool    `json:"impulse,omitempty" msgpack:"impulse,omitempty"`

	Source *field.Source  `json:"source,omitempty" msgpack:"source,omitempty"`
	Handle *models.Handle `json:"handle,omitempty" msgpack:"handle,omitempty"`

	Sector    string           `json:"sector,omitempty"     msgpack:"sector,omitempty"`
	SessionID string           `json:"session_id,omitempty" msgpack:"session_id,omitempty"`
	Body      *models.Handle   `json:"body,omitempty"       msgpack:"body,omitempty"`
	Snapshot  *sector.Snapshot `json:"snapshot,omitempty"   msgpack:"snapshot,omitempty"`
	Error     string           `json:"error,omitempty"      msgpack:"error,omitempty"`
}

// TypeString returns the message type, or "unknown" when it is empty.
func (m Msg) TypeString() string {
	if m.Type == "" {
		return "unknown"
	}
	return m.Type
}

// Receiver reads the next message of a connection.
type Receiver func() (Msg, int, error)

// Sender writes a message to a connection.
type Sender func(Msg) (int, error)

// ResponseSender queues messages to the client of the handled connection.
type ResponseSender interface {
	Send(Msg)
}

// Codec encodes messages for the wire. Binary codecs are written in binary
// frames, the others in text frames.
type Codec struct {
	Name      string
	Binary    bool
	Marshal   func(any) ([]byte, error)
	Unmarshal func([]byte, any) error
}

// CodecFor returns the codec with the given name. An empty name selects
// JSON.
func CodecFor(name string) (Codec, error) {
	switch name {
	case sector.CodecJSON, "":
		return Codec{
			Name:      sector.CodecJSON,
			Marshal:   json.Marshal,
			Unmarshal: json.Unmarshal,
		}, nil

	case sector.CodecMsgpack:
		return Codec{
			Name:      sector.CodecMsgpack,
			Binary:    true,
			Marshal:   msgpack.Marshal,
			Unmarshal: msgpack.Unmarshal,
		}, nil

	default:
		return Codec{}, errors.New("unknown codec").
			WithType(models.ErrTypeInvalidMessage).
			WithTag("codec", name)
	}
}

// NewReceiver returns a receiver that decodes the messages of conn with c.
func NewReceiver(conn *websocket.Conn, c Codec) Receiver {
	return func() (Msg, int, error) {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			return Msg{}, 0, err
		}

		var msg Msg
		if err := c.Unmarshal(data, &msg); err != nil {
			return Msg{}, len(data), errors.New("decoding message failed").
				WithType(models.ErrTypeInvalidMessage).
				WithTag("codec", c.Name).
				Wrap(err)
		}
		return msg, len(data), nil
	}
}

// NewSender returns a sender that encodes messages with c before writing
// them to conn.
func NewSender(conn *websocket.Conn, c Codec) Sender {
	return func(msg Msg) (int, error) {
		data, err := c.Marshal(msg)
		if err != nil {
			return 0, errors.New("encoding message failed").
				WithType(models.ErrTypeInvalidMessage).
				WithTag("codec", c.Name).
				WithTag("msg_type", msg.TypeString()).
				Wrap(err)
		}

		if c.Binary {
			err = websocket.Message.Send(conn, data)
		} else {
			err = websocket.Message.Send(conn, string(data))
		}
		if err != nil {
			return 0, err
		}
		return len(data), nil
	}
}

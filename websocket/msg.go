package websocket

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/spatialid/volumeset"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	// ErrTypeMalformedRequest is the error type of requests that can't be
	// decoded.
	ErrTypeMalformedRequest = "stream_malformed_request"

	// ErrTypeTooManyItems is the error type of requests with more items than
	// allowed.
	ErrTypeTooManyItems = "stream_too_many_items"
)

// The types of the messages sent to clients.
const (
	MsgTypeVolume = "volume"
	MsgTypeDone   = "done"
	MsgTypeError  = "error"
)

// Request is a volume set request sent by a client.
type Request struct {
	RequestID   uint32 `json:"requestId"`
	Ellipsoid   string `json:"ellipsoid"`
	Concurrency int    `json:"concurrency,omitempty"`
	Items       []Item `json:"items"`
}

// Item is a volume set request item.
type Item struct {
	ID       string          `json:"id"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Msg is a message sent to clients.
type Msg struct {
	Type      string `json:"type"`
	RequestID uint32 `json:"requestId"`

	// Set on volume messages.
	Volume *volumeset.Volume[json.RawMessage] `json:"volume,omitempty"`

	// Set on done messages.
	Attempted int         `json:"attempted,omitempty"`
	Failed    int         `json:"failed,omitempty"`
	Errors    []ItemError `json:"errors,omitempty"`

	// Set on error messages.
	Error *ErrorInfo `json:"error,omitempty"`
}

// ItemError describes a request item that could not be resolved.
type ItemError struct {
	Key  string `json:"key"`
	Type string `json:"type"`
}

// ErrorInfo describes why a request failed.
type ErrorInfo struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func errorMsg(requestID uint32, err error) Msg {
	return Msg{
		Type:      MsgTypeError,
		RequestID: requestID,
		Error: &ErrorInfo{
			Type:    errors.Type(err),
			Message: err.Error(),
		},
	}
}

// Receiver receives a request. It returns the number of bytes read.
type Receiver func() (Request, int, error)

// Sender sends a message. It returns the number of bytes written.
type Sender func(Msg) (int, error)

// ResponseSender queues messages to be sent to the client.
type ResponseSender interface {
	Send(Msg)
}

// NewReceiver returns a receiver that reads JSON requests from conn.
// Undecodable frames return an ErrTypeMalformedRequest error and leave the
// connection usable.
func NewReceiver(conn *websocket.Conn) Receiver {
	return func() (Request, int, error) {
		var b []byte
		if err := websocket.Message.Receive(conn, &b); err != nil {
			return Request{}, 0, err
		}

		var req Request
		if err := json.Unmarshal(b, &req); err != nil {
			return Request{}, len(b), errors.New("decoding stream request failed").
				WithType(ErrTypeMalformedRequest).
				Wrap(err)
		}
		return req, len(b), nil
	}
}

// NewSender returns a sender that writes JSON messages as text frames.
func NewSender(conn *websocket.Conn) Sender {
	return func(msg Msg) (int, error) {
		b, err := json.Marshal(msg)
		if err != nil {
			return 0, errors.New("encoding stream message failed").
				WithTag("msg_type", msg.Type).
				Wrap(err)
		}

		if err := websocket.Message.Send(conn, string(b)); err != nil {
			return 0, err
		}
		return len(b), nil
	}
}

package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	httpcmn "github.com/aukilabs/hagall-common/http"
	"github.com/aukilabs/spatialid/ellipsoid"
	"github.com/aukilabs/spatialid/geometry"
	"github.com/aukilabs/spatialid/volumeset"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	// DefaultIdleTimeout is the time a client can stay idle when
	// VolumeHandler.ClientIdleTimeout is not set.
	DefaultIdleTimeout = 5 * time.Minute

	// DefaultMaxItems is the maximum number of items of a request when
	// VolumeHandler.MaxItems is not set.
	DefaultMaxItems = 10000
)

// VolumeHandler streams the volumes of the volume set requests sent by a
// client. Volumes are sent one message each, in set order, followed by a
// done message.
type VolumeHandler struct {
	// The ellipsoids that can be selected by name.
	Ellipsoids ellipsoid.Presets

	// The maximum number of items resolved at the same time per request.
	Concurrency int

	// The maximum number of items of a request.
	MaxItems int

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	conn     *websocket.Conn
	clientID string
	streamID string
}

// HandleConnect binds the handler to conn and gives the stream a random ID.
func (h *VolumeHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn
	h.clientID = conn.Request().Header.Get(httpcmn.HeaderPosemeshClientID)
	h.streamID = uuid.NewString()
}

// HandleRequest resolves the items of req and sends a volume message for each
// resolved item, in request order, followed by a done message. Requests over
// the item limit are answered with an error message.
func (h *VolumeHandler) HandleRequest(ctx context.Context, respond ResponseSender, req Request) error {
	maxItems := h.MaxItems
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	if len(req.Items) > maxItems {
		respond.Send(errorMsg(req.RequestID, errors.New("too many volume set items").
			WithType(ErrTypeTooManyItems).
			WithTag("count", len(req.Items)).
			WithTag("limit", maxItems)))
		return nil
	}

	e, err := h.Ellipsoids.Lookup(req.Ellipsoid)
	if err != nil {
		respond.Send(errorMsg(req.RequestID, err))
		return nil
	}

	resolver, err := geometry.NewResolver(e)
	if err != nil {
		respond.Send(errorMsg(req.RequestID, err))
		return nil
	}

	items := make([]volumeset.Item[json.RawMessage], len(req.Items))
	for i, item := range req.Items {
		items[i] = volumeset.Item[json.RawMessage]{
			Key:      item.ID,
			Metadata: item.Metadata,
		}
	}

	concurrency := h.Concurrency
	if concurrency <= 0 {
		concurrency = volumeset.DefaultConcurrency
	}
	if req.Concurrency > 0 {
		concurrency = min(concurrency, req.Concurrency)
	}

	var sink volumeset.CollectSink
	set, err := volumeset.Build(ctx, items, resolver,
		volumeset.WithConcurrency(concurrency),
		volumeset.WithErrorSink(&sink),
		volumeset.WithCleanAbort(),
	)
	if err != nil {
		return err
	}

	for v := range set.All() {
		respond.Send(Msg{
			Type:      MsgTypeVolume,
			RequestID: req.RequestID,
			Volume:    &v,
		})
	}

	done := Msg{
		Type:      MsgTypeDone,
		RequestID: req.RequestID,
		Attempted: set.Attempted(),
		Failed:    set.Failed(),
	}
	for _, ie := range sink.Errors() {
		done.Errors = append(done.Errors, ItemError{
			Key:  ie.Key,
			Type: errors.Type(ie.Err),
		})
	}
	respond.Send(done)
	return nil
}

// HandleDisconnect does nothing.
func (h *VolumeHandler) HandleDisconnect(err error) {
}

// Receiver returns a receiver reading requests from the connection.
func (h *VolumeHandler) Receiver() Receiver {
	return NewReceiver(h.conn)
}

// Sender returns a sender writing messages to the connection.
func (h *VolumeHandler) Sender() Sender {
	return NewSender(h.conn)
}

// Close does nothing. The connection is closed by its owner.
func (h *VolumeHandler) Close() {
}

// IdleTimeout returns ClientIdleTimeout, or DefaultIdleTimeout when unset.
func (h *VolumeHandler) IdleTimeout() time.Duration {
	if h.ClientIdleTimeout <= 0 {
		return DefaultIdleTimeout
	}
	return h.ClientIdleTimeout
}

// GetClientID returns the client ID sent in the connection headers.
func (h *VolumeHandler) GetClientID() string {
	return h.clientID
}

// GetStreamID returns the random ID given on connect.
func (h *VolumeHandler) GetStreamID() string {
	return h.streamID
}

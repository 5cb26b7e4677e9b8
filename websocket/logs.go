package websocket

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	httpcmn "github.com/aukilabs/hagall-common/http"
	"golang.org/x/net/websocket"
)

const streamIDTag = "stream_id"

func HandlerWithLogs(h Handler, summaryInterval time.Duration) Handler {
	ctx, cancel := context.WithCancel(context.Background())

	handler := &handlerWithLogs{
		Handler:            h,
		summaryInterval:    summaryInterval,
		closeSummaryWorker: cancel,
		counter:            make(map[string]int),
	}

	go handler.startSummaryWorker(ctx)
	return handler
}

type handlerWithLogs struct {
	Handler

	originalRequest *http.Request

	summaryInterval    time.Duration
	closeSummaryWorker func()
	counterMutex       sync.Mutex
	counter            map[string]int
}

func (h *handlerWithLogs) HandleConnect(conn *websocket.Conn) {
	h.Handler.HandleConnect(conn)
	h.originalRequest = conn.Request()

	logs.WithTag(streamIDTag, h.GetStreamID()).
		WithClientID(h.GetClientID()).
		WithTag("http_headers", struct {
			UserAgent               string `json:"user_agent,omitempty"`
			XForwardedFor           string `json:"x_forwarded_for,omitempty"`
			CloudFrontCountryName   string `json:"cloudfront_viewer_country,omitempty"`
			CloudFrontViewerAddress string `json:"cloudfront_viewer_address,omitempty"`
		}{
			UserAgent:               h.originalRequest.UserAgent(),
			XForwardedFor:           h.originalRequest.Header.Get(httpcmn.XForwardedForHeaderKey),
			CloudFrontCountryName:   h.originalRequest.Header.Get(httpcmn.CloudFrontCountryNameHeaderKey),
			CloudFrontViewerAddress: h.originalRequest.Header.Get(httpcmn.CloudFrontViewerAddressHeaderKey),
		}).
		Info("new client is connected")
}

func (h *handlerWithLogs) HandleRequest(ctx context.Context, respond ResponseSender, req Request) error {
	start := time.Now()
	err := h.Handler.HandleRequest(ctx, respond, req)

	entry := logs.WithTag(streamIDTag, h.GetStreamID()).
		WithClientID(h.GetClientID()).
		WithTag("request_id", req.RequestID).
		WithTag("ellipsoid", req.Ellipsoid).
		WithTag("items", len(req.Items)).
		WithTag("duration", time.Since(start))
	if err != nil {
		entry.Warn(errors.New("volume set request failed").Wrap(err))
		return err
	}

	entry.Debug("volume set request handled")
	return nil
}

func (h *handlerWithLogs) HandleDisconnect(err error) {
	h.Handler.HandleDisconnect(err)

	entry := logs.WithTag(streamIDTag, h.GetStreamID()).
		WithClientID(h.GetClientID())
	if err != nil {
		entry = entry.WithTag("reason", err.Error())
	}
	entry.Info("client disconnected")
}

func (h *handlerWithLogs) Receiver() Receiver {
	receive := h.Handler.Receiver()

	return func() (Request, int, error) {
		req, n, err := receive()
		if errors.IsType(err, ErrTypeMalformedRequest) {
			logs.WithTag(streamIDTag, h.GetStreamID()).
				WithClientID(h.GetClientID()).
				Warn(err)
			h.incCounter("malformed_requests")
		} else if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			logs.WithTag(streamIDTag, h.GetStreamID()).
				WithClientID(h.GetClientID()).
				Error(errors.New("receiving message failed").Wrap(err))
		} else if err == nil {
			logs.WithTag(streamIDTag, h.GetStreamID()).
				WithClientID(h.GetClientID()).
				WithTag("request_id", req.RequestID).
				Debug("request received")
			h.incCounter("requests")
			h.incCounterBy("items", len(req.Items))
		}
		return req, n, err
	}
}

func (h *handlerWithLogs) Sender() Sender {
	sender := h.Handler.Sender()

	return func(msg Msg) (int, error) {
		n, err := sender(msg)
		if err != nil && !errors.Is(err, net.ErrClosed) {
			logs.WithTag(streamIDTag, h.GetStreamID()).
				WithClientID(h.GetClientID()).
				WithTag("msg_type", msg.Type).
				WithTag("request_id", msg.RequestID).
				Error(errors.New("sending message failed").Wrap(err))
		} else if err == nil && msg.Type != MsgTypeVolume {
			logs.WithTag(streamIDTag, h.GetStreamID()).
				WithClientID(h.GetClientID()).
				WithTag("msg_type", msg.Type).
				WithTag("request_id", msg.RequestID).
				Debug("message sent")
		}
		return n, err
	}
}

func (h *handlerWithLogs) Close() {
	h.Handler.Close()
	h.closeSummaryWorker()
	h.logSummary()
}

func (h *handlerWithLogs) startSummaryWorker(ctx context.Context) {
	ticker := time.NewTicker(h.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			h.logSummary()
		}
	}
}

func (h *handlerWithLogs) incCounter(key string) {
	h.incCounterBy(key, 1)
}

func (h *handlerWithLogs) incCounterBy(key string, n int) {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	h.counter[key] += n
}

func (h *handlerWithLogs) logSummary() {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	if len(h.counter) == 0 {
		return
	}

	entry := logs.WithTag(streamIDTag, h.GetStreamID()).
		WithClientID(h.GetClientID()).
		WithTag("time_interval", h.summaryInterval)

	for k, v := range h.counter {
		entry = entry.WithTag(k, v)
		delete(h.counter, k)
	}

	entry.Info("inbound message summary")
}

// Package smoketest checks that a server streams volumes end to end.
package smoketest

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	httpcmn "github.com/aukilabs/hagall-common/http"
	swebsocket "github.com/aukilabs/spatialid/websocket"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"

	// ErrTypeUnexpectedResponse is the error type returned when the tested
	// server answers with something else than the expected volumes.
	ErrTypeUnexpectedResponse = "smoke_test_unexpected_response"

	// ErrTypeForbiddenEndpoint is the error type returned when a smoke test
	// targets an endpoint that is not allowed.
	ErrTypeForbiddenEndpoint = "smoke_test_forbidden_endpoint"

	// ErrTypeBusy is the error type returned when the maximum number of
	// smoke tests are already running.
	ErrTypeBusy = "smoke_test_busy"

	DefaultTimeout       = 10 * time.Second
	DefaultMaxConcurrent = 1

	streamPath = "/stream"
)

// The items requested during a smoke test.
var testItems = []string{
	"20/3/873654/389245",
	"20/3/873655/389245",
	"25/0/29088773/12903864",
}

// Request is the body of a smoke test request.
type Request struct {
	// The endpoint of the tested server. Defaults to the local endpoint.
	Endpoint string `json:"endpoint"`

	// The time in milliseconds the smoke test can take. Defaults to
	// DefaultTimeout.
	TimeoutMS int64 `json:"timeoutMs"`
}

// Result is the outcome of a smoke test.
type Result struct {
	FromEndpoint string  `json:"fromEndpoint"`
	ToEndpoint   string  `json:"toEndpoint"`
	Status       string  `json:"status"`
	Volumes      int     `json:"volumes"`
	LatencyMS    float64 `json:"latencyMs"`
	Error        string  `json:"error,omitempty"`
}

type Options struct {
	// The endpoint of the local server.
	Endpoint string

	// The endpoints other than the local one that can be tested.
	AllowedEndpoints []string

	// The maximum number of smoke tests running at the same time. Defaults
	// to DefaultMaxConcurrent.
	MaxConcurrent int

	UserAgent  string
	SendResult func(context.Context, Result) error
}

func (o Options) allows(endpoint string) bool {
	endpoint = httpcmn.NormalizeEndpoint(endpoint)
	if endpoint == "" || endpoint == httpcmn.NormalizeEndpoint(o.Endpoint) {
		return true
	}
	for _, e := range o.AllowedEndpoints {
		if endpoint == httpcmn.NormalizeEndpoint(e) {
			return true
		}
	}
	return false
}

// HandleSmokeTest starts a smoke test in the background and replies right
// away. The result is reported with opts.SendResult.
//
// Only the local endpoint and opts.AllowedEndpoints can be tested. Requests
// made while opts.MaxConcurrent smoke tests are running are rejected with
// 429.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	running := make(chan struct{}, maxConcurrent)

	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			httpcmn.InternalServerError(w, errors.New("reading body failed").Wrap(err))
			return
		}

		var req Request
		if err := json.Unmarshal(b, &req); err != nil {
			httpcmn.BadRequest(w, httpcmn.ErrBadRequest)
			return
		}
		if req.TimeoutMS < 0 {
			httpcmn.BadRequest(w, httpcmn.ErrBadRequest)
			return
		}

		if !opts.allows(req.Endpoint) {
			httpcmn.Forbidden(w, errors.New("smoke test endpoint not allowed").
				WithType(ErrTypeForbiddenEndpoint).
				WithTag("to_endpoint", req.Endpoint))
			return
		}

		select {
		case running <- struct{}{}:
		default:
			httpcmn.HTTPError(w, http.StatusTooManyRequests, errors.New("smoke test already running").
				WithType(ErrTypeBusy))
			return
		}

		go func() {
			defer func() { <-running }()

			res, err := Run(ctx, opts, req)
			if err != nil {
				logs.WithTag("from_endpoint", opts.Endpoint).
					WithTag("to_endpoint", res.ToEndpoint).
					Warn(err)
			}

			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("from_endpoint", opts.Endpoint).
					WithTag("to_endpoint", res.ToEndpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

// Run requests a fixed volume set from the stream of the tested server and
// checks that every volume comes back in order.
func Run(ctx context.Context, opts Options, req Request) (Result, error) {
	res := Result{
		FromEndpoint: opts.Endpoint,
		ToEndpoint:   req.Endpoint,
		Status:       StatusFailed,
	}
	if res.ToEndpoint == "" {
		res.ToEndpoint = opts.Endpoint
	}

	timeout := time.Duration(req.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	start := time.Now()
	volumes, err := run(ctx, opts, res.ToEndpoint, timeout)
	if err != nil {
		res.Error = err.Error()
		return res, errors.New("smoke test failed").
			WithTag("to_endpoint", res.ToEndpoint).
			Wrap(err)
	}

	res.Status = StatusSuccess
	res.Volumes = volumes
	res.LatencyMS = float64(time.Since(start).Microseconds()) / 1000
	return res, nil
}

func run(ctx context.Context, opts Options, endpoint string, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	config, err := websocket.NewConfig(streamURL(endpoint), endpoint)
	if err != nil {
		return 0, errors.New("creating stream config failed").Wrap(err)
	}
	config.Dialer = &net.Dialer{Timeout: timeout}
	config.Header.Set("User-Agent", opts.UserAgent)
	config.Header.Set(httpcmn.HeaderPosemeshClientID, uuid.NewString())

	conn, err := websocket.DialConfig(config)
	if err != nil {
		return 0, errors.New("dialing stream failed").Wrap(err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	conn.SetDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	req := swebsocket.Request{RequestID: 1}
	for _, id := range testItems {
		req.Items = append(req.Items, swebsocket.Item{ID: id})
	}

	b, err := json.Marshal(req)
	if err != nil {
		return 0, err
	}
	if err := websocket.Message.Send(conn, string(b)); err != nil {
		return 0, errors.New("sending stream request failed").Wrap(err)
	}

	volumes := 0
	for {
		var b []byte
		if err := websocket.Message.Receive(conn, &b); err != nil {
			return volumes, errors.New("receiving stream message failed").Wrap(err)
		}

		var msg swebsocket.Msg
		if err := json.Unmarshal(b, &msg); err != nil {
			return volumes, errors.New("decoding stream message failed").Wrap(err)
		}

		switch msg.Type {
		case swebsocket.MsgTypeVolume:
			if volumes >= len(testItems) || msg.Volume == nil || msg.Volume.ID.String() != testItems[volumes] {
				return volumes, errors.New("unexpected volume").
					WithType(ErrTypeUnexpectedResponse).
					WithTag("index", volumes)
			}
			volumes++

		case swebsocket.MsgTypeDone:
			if volumes != len(testItems) || msg.Failed != 0 {
				return volumes, errors.New("incomplete volume set").
					WithType(ErrTypeUnexpectedResponse).
					WithTag("volumes", volumes).
					WithTag("failed", msg.Failed)
			}
			return volumes, nil

		default:
			err := errors.New("unexpected stream message").
				WithType(ErrTypeUnexpectedResponse).
				WithTag("msg_type", msg.Type)
			if msg.Error != nil {
				err = err.WithTag("error_type", msg.Error.Type)
			}
			return volumes, err
		}
	}
}

func streamURL(endpoint string) string {
	endpoint = strings.TrimSuffix(endpoint, "/")
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = "ws://" + strings.TrimPrefix(endpoint, "http://")
	}
	return endpoint + streamPath
}

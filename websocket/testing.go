package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	httpcmn "github.com/aukilabs/hagall-common/http"
	"github.com/aukilabs/spatialid/ellipsoid"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	testLogsOnce  sync.Once
	testLogsMutex sync.Mutex
	testLogger    func(logs.Entry)
)

// setTestLogger redirects logs to l until it is called again. The global
// encoders and logger are installed once so that handlers still running from
// a previous test never race with a new one.
func setTestLogger(l func(logs.Entry)) {
	testLogsOnce.Do(func() {
		logs.SetInlineEncoder()
		errors.Encoder = json.Marshal
		logs.SetLogger(func(e logs.Entry) {
			testLogsMutex.Lock()
			defer testLogsMutex.Unlock()

			if testLogger != nil {
				testLogger(e)
			}
		})
	})

	testLogsMutex.Lock()
	defer testLogsMutex.Unlock()
	testLogger = l
}

// NewTestingEnv creates a testing environment to unit test stream handlers.
// It returns a client connected to a server that serves each connection with
// a handler created by newHandler. The returned close function waits for the
// server handlers to return.
func NewTestingEnv(t *testing.T, newHandler func() Handler) (*websocket.Conn, func()) {
	setTestLogger(func(e logs.Entry) {
		t.Log(e)
	})

	client, close := newTestingEnv(t, newHandler)
	return client, func() {
		close()
		setTestLogger(nil)
	}
}

func newTestingEnv(t *testing.T, newHandler func() Handler) (*websocket.Conn, func()) {
	var handlers sync.WaitGroup

	server := httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			// Counted before the client dial returns.
			handlers.Add(1)
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer handlers.Done()
			defer conn.Close()

			handler := newHandler()
			defer handler.Close()

			Handle(context.Background(), conn, handler)
		},
	})

	config, err := websocket.NewConfig(
		strings.ReplaceAll(server.URL, "http://", "ws://"),
		"http://localhost",
	)
	if err != nil {
		t.Fatalf("error initializing web socket: %s", err)
	}

	config.Header.Set("User-Agent", "ted")
	config.Header.Set("X-Forwarded-for", "192.0.0.0")
	config.Header.Set(httpcmn.HeaderPosemeshClientID, uuid.NewString())

	client, err := websocket.DialConfig(config)
	if err != nil {
		t.Fatalf("error dialing web socket: %s", err)
	}

	return client, func() {
		client.Close()
		server.Close()

		// Hijacked connections are not tracked by the test server.
		handlers.Wait()
	}
}

func newTestHandler(maxItems int) func() Handler {
	return func() Handler {
		var h Handler = &VolumeHandler{
			Ellipsoids:        ellipsoid.DefaultPresets(),
			Concurrency:       4,
			MaxItems:          maxItems,
			ClientIdleTimeout: time.Minute,
		}

		h = HandlerWithLogs(h, time.Millisecond*100)
		h = HandlerWithMetrics(h, "https://auki-test.com")
		return h
	}
}

func sendTestRequest(t *testing.T, conn *websocket.Conn, req Request) {
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("error encoding request: %s", err)
	}
	sendTestFrame(t, conn, string(b))
}

func sendTestFrame(t *testing.T, conn *websocket.Conn, frame string) {
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	if err := websocket.Message.Send(conn, frame); err != nil {
		t.Fatalf("error sending frame: %s", err)
	}
}

func receiveTestMsg(t *testing.T, conn *websocket.Conn) Msg {
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var b []byte
	if err := websocket.Message.Receive(conn, &b); err != nil {
		t.Fatalf("error receiving message: %s", err)
	}

	var msg Msg
	if err := json.Unmarshal(b, &msg); err != nil {
		t.Fatalf("error decoding message: %s", err)
	}
	return msg
}

package websocket

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/stretchr/testify/require"
)

func TestHandlerWithLogsIncCounter(t *testing.T) {
	h := HandlerWithLogs(&VolumeHandler{}, time.Second).(*handlerWithLogs)
	defer h.Close()

	h.incCounter("test")
	h.incCounterBy("items", 3)
	require.Equal(t, 1, h.counter["test"])
	require.Equal(t, 3, h.counter["items"])
}

func TestHandlerWithLogsLogSummary(t *testing.T) {
	testClientID := "test-client"
	h := HandlerWithLogs(&VolumeHandler{
		clientID: testClientID,
		streamID: "test-stream",
	}, time.Second).(*handlerWithLogs)
	defer h.Close()

	h.incCounter("test-1")
	h.incCounter("test-1")
	h.incCounter("test-2")

	var mutex sync.Mutex
	var b strings.Builder
	setTestLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()
		fmt.Fprint(&b, e)
	})
	defer setTestLogger(nil)

	h.logSummary()
	require.Empty(t, h.counter)

	mutex.Lock()
	logString := b.String()
	mutex.Unlock()

	require.Contains(t, logString, `"test-1":2`)
	require.Contains(t, logString, `"test-2":1`)
	require.Contains(t, logString, fmt.Sprintf(`"%s":"%s"`, logs.ClientIDTag, testClientID))
	require.Contains(t, logString, `"stream_id":"test-stream"`)
}

func TestHandlerWithLogsStartSummaryWorker(t *testing.T) {
	var wg sync.WaitGroup
	var once sync.Once

	var mutex sync.Mutex
	var b strings.Builder
	setTestLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()
		fmt.Fprint(&b, e)
		once.Do(wg.Done)
	})
	defer setTestLogger(nil)

	wg.Add(1)
	h := HandlerWithLogs(&VolumeHandler{}, time.Millisecond).(*handlerWithLogs)
	defer h.Close()

	// No summary is logged until a counter is incremented.
	h.incCounter("test-1")

	wg.Wait()

	mutex.Lock()
	defer mutex.Unlock()
	require.Contains(t, b.String(), "inbound message summary")
}

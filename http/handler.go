package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
)

// ReadyCheckTimeout bounds the time each readiness check can take.
var ReadyCheckTimeout = 2 * time.Second

// ReadyCheck is a named dependency check run on readiness probes.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

type readyResponse struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks,omitempty"`
}

func HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// HandleReadyCheck runs the checks concurrently and replies 503 when one of
// them fails. The outcome of each check is reported by name.
func HandleReadyCheck(checks ...ReadyCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), ReadyCheckTimeout)
		defer cancel()

		res := readyResponse{
			Ready:  true,
			Checks: make(map[string]string, len(checks)),
		}

		var mutex sync.Mutex
		var wg sync.WaitGroup
		for _, c := range checks {
			wg.Add(1)
			go func() {
				defer wg.Done()

				err := c.Check(ctx)

				mutex.Lock()
				defer mutex.Unlock()

				if err != nil {
					res.Ready = false
					res.Checks[c.Name] = err.Error()
					logs.WithTag("check", c.Name).Warn(err)
					return
				}
				res.Checks[c.Name] = "ok"
			}()
		}
		wg.Wait()

		status := http.StatusOK
		if !res.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, r, status, res)
	}
}

func HandleVersion(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(version))
	}
}

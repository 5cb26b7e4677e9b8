package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// ShutdownTimeout is the time servers are given to finish in-flight requests
// once the listening context is done.
var ShutdownTimeout = 10 * time.Second

// ListenAndServe starts the given servers and blocks until they are all
// stopped. Servers are shut down when ctx is done.
func ListenAndServe(ctx context.Context, servers ...*http.Server) {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				logs.Warn(errors.New("shutting down the server failed").
					WithTag("addr", s.Addr).
					Wrap(err))
			}
		}
	}()

	var wg sync.WaitGroup

	for _, s := range servers {
		wg.Add(1)

		go func(s *http.Server) {
			defer wg.Done()

			logs.WithTag("addr", s.Addr).Info("starting server")

			switch err := s.ListenAndServe(); err {
			case nil, http.ErrServerClosed, context.Canceled:
				logs.WithTag("addr", s.Addr).Info("stopping server")

			default:
				logs.Warn(errors.New("server stopped").
					WithTag("addr", s.Addr).
					Wrap(err))
			}
		}(s)
	}

	wg.Wait()
}

// MetricsPathFormatter groups the paths reported in HTTP metrics by route.
// Responses to unroutable requests are not reported.
func MetricsPathFormatter(statusCode int, path string) string {
	if statusCode == http.StatusMovedPermanently ||
		statusCode == http.StatusNotFound ||
		statusCode == http.StatusMethodNotAllowed {
		return ""
	}
	return route(path)
}

var routes = map[string]struct{}{
	"/volume-sets": {},
	"/viewport":    {},
	"/ellipsoids":  {},
	"/health":      {},
	"/ready":       {},
	"/version":     {},
	"/smoke-test":  {},
	"/stream":      {},
}

// route returns the route serving path, with a bounded set of values.
func route(path string) string {
	if strings.HasPrefix(path, volumesPrefix) && len(path) > len(volumesPrefix) {
		return volumesPrefix + "{id}"
	}
	if _, ok := routes[path]; ok {
		return path
	}
	return "/{unknown}"
}

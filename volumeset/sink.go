package volumeset

import (
	"context"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/logs"
)

// ErrorSink receives the errors of the items skipped while building a set.
// Implementations must be safe for concurrent use.
type ErrorSink interface {
	Report(ctx context.Context, err error, key string)
}

// SinkFunc is a function that implements ErrorSink.
type SinkFunc func(ctx context.Context, err error, key string)

// Report calls f.
func (f SinkFunc) Report(ctx context.Context, err error, key string) {
	f(ctx, err, key)
}

// LogSink reports item errors as warning logs.
type LogSink struct{}

// Report logs err.
func (LogSink) Report(ctx context.Context, err error, key string) {
	logs.WithTag("volume_key", key).Warn(err)
}

// ItemError is an error collected by a CollectSink.
type ItemError struct {
	Key string
	Err error
}

// CollectSink stores reported errors in memory.
type CollectSink struct {
	mutex  sync.Mutex
	errors []ItemError
}

// Report appends err to the collected errors.
func (s *CollectSink) Report(ctx context.Context, err error, key string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.errors = append(s.errors, ItemError{
		Key: key,
		Err: err,
	})
}

// Errors returns a copy of the collected errors, in report order.
func (s *CollectSink) Errors() []ItemError {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	res := make([]ItemError, len(s.errors))
	copy(res, s.errors)
	return res
}

// Len returns the number of collected errors.
func (s *CollectSink) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.errors)
}

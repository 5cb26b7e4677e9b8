package volumeset

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/spatialid/geometry"
	"github.com/aukilabs/spatialid/spatialid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ErrTypeBatchItem is the error type of the errors reported for skipped
	// items.
	ErrTypeBatchItem = "volume_set_item_failed"

	// ErrTypeBatchCanceled is the error type returned when a build is
	// canceled before every item is resolved.
	ErrTypeBatchCanceled = "volume_set_build_canceled"

	// DefaultConcurrency is the default number of items resolved at the same
	// time.
	DefaultConcurrency = 8

	tracerName = "github.com/aukilabs/spatialid/volumeset"
)

// Resolver computes the geometry of spatial IDs.
type Resolver interface {
	Resolve(ctx context.Context, id spatialid.ID) (geometry.Volume, error)
}

// Item is an unresolved volume set entry. Keys are spatial ID strings as
// they are transmitted by upstream services and may be malformed.
type Item[M any] struct {
	Key      string
	Metadata M
}

// ItemOf returns the item of an already parsed ID.
func ItemOf[M any](id spatialid.ID, m M) Item[M] {
	return Item[M]{
		Key:      id.String(),
		Metadata: m,
	}
}

// Option configures a build.
type Option func(*options)

type options struct {
	concurrency int
	sink        ErrorSink
	cleanAbort  bool
}

// WithConcurrency sets the maximum number of items resolved at the same
// time. Values lower than 1 mean 1.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = max(n, 1)
	}
}

// WithErrorSink sets where the errors of skipped items are reported. It
// defaults to LogSink.
func WithErrorSink(s ErrorSink) Option {
	return func(o *options) {
		if s != nil {
			o.sink = s
		}
	}
}

// WithCleanAbort makes a canceled build discard the volumes resolved before
// the cancellation.
func WithCleanAbort() Option {
	return func(o *options) {
		o.cleanAbort = true
	}
}

type entry[M any] struct {
	key      string
	id       spatialid.ID
	metadata M
}

// Build resolves items into a set.
//
// Items are deduplicated by ID: an ID keeps the position of its first
// occurrence and the metadata of its last one. Items whose key does not
// parse or whose resolution fails are reported to the error sink and
// skipped. The volume order is the deduplicated input order, whatever order
// the concurrent resolutions complete in.
//
// When ctx is done before every item is resolved, Build stops scheduling
// items and returns the volumes resolved so far with an ErrTypeBatchCanceled
// error, or no set at all with WithCleanAbort.
func Build[M any](ctx context.Context, items []Item[M], r Resolver, opts ...Option) (*Set[M], error) {
	start := time.Now()

	o := options{
		concurrency: DefaultConcurrency,
		sink:        LogSink{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "volumeset.Build", trace.WithAttributes(
		attribute.Int("volumeset.items", len(items)),
		attribute.Int("volumeset.concurrency", o.concurrency),
	))
	defer span.End()

	var failed atomic.Int64
	report := func(err error, key string) {
		failed.Add(1)
		instrumentItemFailure(err)
		o.sink.Report(ctx, errors.New("skipping volume set item").
			WithType(ErrTypeBatchItem).
			WithTag("volume_key", key).
			WithTag("cause_type", errors.Type(err)).
			Wrap(err), key)
	}

	entries, malformed := dedup(items, report)

	volumes := make([]geometry.Volume, len(entries))
	resolved := make([]bool, len(entries))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < min(o.concurrency, len(entries)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for idx := range jobs {
				if ctx.Err() != nil {
					continue
				}
				e := entries[idx]

				v, err := r.Resolve(ctx, e.id)
				if err != nil {
					if ctx.Err() == nil {
						report(err, e.key)
					}
					continue
				}

				volumes[idx] = v
				resolved[idx] = true
			}
		}()
	}

	scheduled := 0
schedule:
	for i := range entries {
		if ctx.Err() != nil {
			break
		}

		select {
		case jobs <- i:
			scheduled++
		case <-ctx.Done():
			break schedule
		}
	}
	close(jobs)
	wg.Wait()

	set := newSet(entries, volumes, resolved)
	set.attempted = len(entries) + malformed
	set.failed = int(failed.Load())
	instrumentResolvedVolumes(set.Len())

	span.SetAttributes(
		attribute.Int("volumeset.attempted", set.attempted),
		attribute.Int("volumeset.failed", set.failed),
		attribute.Int("volumeset.resolved", set.Len()),
	)

	if err := ctx.Err(); err != nil && set.Len()+set.failed < set.attempted {
		instrumentBuildLatency(start, true)

		err = errors.New("volume set build canceled").
			WithType(ErrTypeBatchCanceled).
			WithTag("scheduled", scheduled).
			WithTag("resolved", set.Len()).
			WithTag("attempted", set.attempted).
			Wrap(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "canceled")

		if o.cleanAbort {
			return nil, err
		}
		return set, err
	}

	instrumentBuildLatency(start, false)

	if set.attempted > 0 && set.failed == set.attempted {
		logs.WithTag("attempted", set.attempted).
			WithTag("failed", set.failed).
			Warn("every volume set item failed to resolve")
	}
	return set, nil
}

// dedup parses item keys and merges items with the same ID. It returns the
// number of items whose key did not parse.
func dedup[M any](items []Item[M], report func(err error, key string)) ([]entry[M], int) {
	entries := make([]entry[M], 0, len(items))
	positions := make(map[spatialid.ID]int, len(items))
	malformed := 0

	for _, item := range items {
		id, err := spatialid.Parse(item.Key)
		if err != nil {
			malformed++
			report(err, item.Key)
			continue
		}

		if pos, ok := positions[id]; ok {
			entries[pos].metadata = item.Metadata
			continue
		}

		positions[id] = len(entries)
		entries = append(entries, entry[M]{
			key:      item.Key,
			id:       id,
			metadata: item.Metadata,
		})
	}

	return entries, malformed
}

package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInit(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		shutdown, err := Init(ctx, Config{})
		require.NoError(t, err)
		require.NoError(t, shutdown(ctx))

		_, span := otel.Tracer("test").Start(ctx, "noop")
		require.False(t, span.SpanContext().IsValid())
		span.End()
	})

	t.Run("stdout exporter", func(t *testing.T) {
		var b bytes.Buffer
		shutdown, err := Init(ctx, Config{
			Enabled:     true,
			Exporter:    ExporterStdout,
			SampleRatio: 1,
			Writer:      &b,
		})
		require.NoError(t, err)

		_, span := otel.Tracer("test").Start(ctx, "exported")
		require.True(t, span.SpanContext().IsSampled())
		span.End()

		require.NoError(t, shutdown(ctx))
		require.Contains(t, b.String(), "exported")
		require.Contains(t, b.String(), DefaultServiceName)

		_, err = Init(ctx, Config{})
		require.NoError(t, err)
	})

	t.Run("zero sample ratio", func(t *testing.T) {
		var b bytes.Buffer
		shutdown, err := Init(ctx, Config{
			Enabled:  true,
			Exporter: ExporterStdout,
			Writer:   &b,
		})
		require.NoError(t, err)

		_, span := otel.Tracer("test").Start(ctx, "dropped")
		require.False(t, span.SpanContext().IsSampled())
		span.End()

		require.NoError(t, shutdown(ctx))
		require.Empty(t, b.String())

		_, err = Init(ctx, Config{})
		require.NoError(t, err)
	})

	t.Run("invalid configs", func(t *testing.T) {
		_, err := Init(ctx, Config{Enabled: true, Exporter: "zipkin", SampleRatio: 1})
		require.Equal(t, ErrTypeInvalidTracingConfig, errors.Type(err))

		_, err = Init(ctx, Config{Enabled: true, SampleRatio: 2})
		require.Equal(t, ErrTypeInvalidTracingConfig, errors.Type(err))
	})
}

func TestShutdown(t *testing.T) {
	Shutdown(nil)

	var called bool
	Shutdown(func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		require.True(t, ok)
		called = true
		return errors.New("flush failed")
	})
	require.True(t, called)
}

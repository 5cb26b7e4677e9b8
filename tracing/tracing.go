// Package tracing installs the OpenTelemetry tracer provider used by the
// volume set builds and the HTTP handlers.
package tracing

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	// ErrTypeInvalidTracingConfig is the error type returned when the tracing
	// configuration can't be used.
	ErrTypeInvalidTracingConfig = "tracing_invalid_config"

	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"

	DefaultServiceName  = "spatialid"
	DefaultOTLPEndpoint = "localhost:4317"

	shutdownTimeout = 5 * time.Second
)

// Config describes how traces are sampled and exported.
type Config struct {
	Enabled     bool
	ServiceName string

	// stdout or otlp.
	Exporter string

	// The OTLP collector address, used with the otlp exporter.
	Endpoint string

	// The fraction of root spans that are sampled, within [0, 1].
	SampleRatio float64

	// Where the stdout exporter writes spans. Defaults to os.Stdout.
	Writer io.Writer
}

// ShutdownFunc flushes pending spans and releases the exporter.
type ShutdownFunc func(context.Context) error

// Init installs the global tracer provider and the W3C trace context and
// baggage propagators. A no-op provider is installed when tracing is
// disabled.
func Init(ctx context.Context, conf Config) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !conf.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	if conf.SampleRatio < 0 || conf.SampleRatio > 1 {
		return nil, errors.New("tracing sample ratio out of range").
			WithType(ErrTypeInvalidTracingConfig).
			WithTag("sample_ratio", conf.SampleRatio)
	}

	if conf.ServiceName == "" {
		conf.ServiceName = DefaultServiceName
	}

	exp, err := newExporter(ctx, conf)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", conf.ServiceName),
	))
	if err != nil {
		return nil, errors.New("creating tracing resource failed").
			WithType(ErrTypeInvalidTracingConfig).
			Wrap(err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(conf.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logs.WithTag("exporter", conf.Exporter).
		WithTag("service_name", conf.ServiceName).
		WithTag("sample_ratio", conf.SampleRatio).
		Info("tracing enabled")

	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, conf Config) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(conf.Exporter) {
	case ExporterStdout, "":
		w := conf.Writer
		if w == nil {
			w = os.Stdout
		}
		return stdouttrace.New(
			stdouttrace.WithWriter(w),
			stdouttrace.WithoutTimestamps(),
		)

	case ExporterOTLP:
		endpoint := conf.Endpoint
		if endpoint == "" {
			endpoint = DefaultOTLPEndpoint
		}

		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
		exp, err := otlptrace.New(ctx, client)
		if err != nil {
			return nil, errors.New("creating otlp exporter failed").
				WithType(ErrTypeInvalidTracingConfig).
				WithTag("endpoint", endpoint).
				Wrap(err)
		}
		return exp, nil

	default:
		return nil, errors.New("unsupported tracing exporter").
			WithType(ErrTypeInvalidTracingConfig).
			WithTag("exporter", conf.Exporter)
	}
}

// Shutdown calls shutdown with a bounded timeout and logs failures.
func Shutdown(shutdown ShutdownFunc) {
	if shutdown == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := shutdown(ctx); err != nil {
		logs.Warn(errors.New("shutting down tracing failed").Wrap(err))
	}
}

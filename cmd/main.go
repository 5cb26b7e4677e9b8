package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/spatialid/ellipsoid"
	"github.com/aukilabs/spatialid/featureflag"
	"github.com/aukilabs/spatialid/geoid"
	sidhttp "github.com/aukilabs/spatialid/http"
	"github.com/aukilabs/spatialid/smoketest"
	"github.com/aukilabs/spatialid/tracing"
	"github.com/aukilabs/spatialid/volumeset"
	swebsocket "github.com/aukilabs/spatialid/websocket"
	"github.com/joho/godotenv"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The server version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "spatialid_info",
		Help:        "Spatial ID server information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr                 string        `cli:""        env:"SPATIALID_ADDR"                   help:"Listening address for client connections."`
	AdminAddr            string        `cli:""        env:"SPATIALID_ADMIN_ADDR"             help:"Admin listening address."`
	PublicEndpoint       string        `cli:""        env:"SPATIALID_PUBLIC_ENDPOINT"        help:"The public endpoint where this server is reachable."`
	LogLevel             string        `cli:""        env:"SPATIALID_LOG_LEVEL"              help:"Log level (debug|info|warning|error)."`
	LogIndent            bool          `cli:""        env:"SPATIALID_LOG_INDENT"             help:"Indent logs."`
	EllipsoidPresetsFile string        `cli:""        env:"SPATIALID_ELLIPSOID_PRESETS_FILE" help:"YAML file with additional ellipsoid presets."`
	Concurrency          int           `cli:""        env:"SPATIALID_CONCURRENCY"            help:"The maximum number of volumes resolved at the same time per request."`
	MaxItems             int           `cli:""        env:"SPATIALID_MAX_ITEMS"              help:"The maximum number of items of a volume set request."`
	ClientIdleTimeout    time.Duration `cli:",hidden" env:"SPATIALID_CLIENT_IDLE_TIMEOUT"    help:"Time until an idle stream client will be disconnected."`
	LogSummaryInterval   time.Duration `cli:",hidden" env:"SPATIALID_LOG_SUMMARY_INTERVAL"   help:"The duration between each log summary by stream connection."`
	Geoid                geoidConfig   `cli:",hidden" env:"-"                                help:"Geoid configuration."`
	Tracing              tracingConfig `cli:",hidden" env:"-"                                help:"Tracing configuration."`
	Events               eventsConfig  `cli:",hidden" env:"-"                                help:"Event pusher configuration."`
	SmokeTest            smokeConfig   `cli:",hidden" env:"-"                                help:"Smoke test configuration."`
	FeatureFlags         []string      `cli:",hidden" env:"SPATIALID_FEATURE_FLAGS"          help:"Comma separated feature flags"`
	Version              bool          `cli:""        env:"-"                                help:"Show version."`
	Help                 bool          `cli:""        env:"-"                                help:"Show help."`
}

type smokeConfig struct {
	Endpoints     []string `cli:",hidden" env:"SPATIALID_SMOKE_TEST_ENDPOINTS"      help:"Comma separated endpoints other than the public one that can be smoke tested."`
	MaxConcurrent int      `cli:",hidden" env:"SPATIALID_SMOKE_TEST_MAX_CONCURRENT" help:"The maximum number of smoke tests running at the same time."`
}

type geoidConfig struct {
	Constant       float64       `cli:",hidden" env:"SPATIALID_GEOID_CONSTANT"        help:"Geoid height in metres used everywhere when no grid file is set."`
	GridFile       string        `cli:",hidden" env:"SPATIALID_GEOID_GRID_FILE"       help:"JSON geoid grid file, optionally zstd compressed (.zst)."`
	RedisAddr      string        `cli:",hidden" env:"SPATIALID_GEOID_REDIS_ADDR"      help:"Redis address used to cache geoid heights."`
	RedisPassword  string        `cli:",hidden" env:"SPATIALID_GEOID_REDIS_PASSWORD"  help:"Redis password."`
	RedisDB        int           `cli:",hidden" env:"SPATIALID_GEOID_REDIS_DB"        help:"Redis database."`
	CacheTTL       time.Duration `cli:",hidden" env:"SPATIALID_GEOID_CACHE_TTL"       help:"The time geoid heights stay cached."`
	CachePrecision int           `cli:",hidden" env:"SPATIALID_GEOID_CACHE_PRECISION" help:"The decimals kept from coordinates to build cache keys."`
}

type tracingConfig struct {
	Enabled     bool    `cli:",hidden" env:"SPATIALID_TRACING_ENABLED"      help:"Enable tracing."`
	Exporter    string  `cli:",hidden" env:"SPATIALID_TRACING_EXPORTER"     help:"Span exporter (stdout|otlp)."`
	Endpoint    string  `cli:",hidden" env:"SPATIALID_TRACING_ENDPOINT"     help:"OTLP collector address."`
	SampleRatio float64 `cli:",hidden" env:"SPATIALID_TRACING_SAMPLE_RATIO" help:"The fraction of traces sampled."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"SPATIALID_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"SPATIALID_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"SPATIALID_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"SPATIALID_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		LogLevel:           logs.InfoLevel.String(),
		Concurrency:        volumeset.DefaultConcurrency,
		MaxItems:           sidhttp.DefaultMaxItems,
		ClientIdleTimeout:  swebsocket.DefaultIdleTimeout,
		LogSummaryInterval: time.Minute,
		Geoid: geoidConfig{
			CacheTTL:       geoid.DefaultCacheTTL,
			CachePrecision: geoid.DefaultCachePrecision,
		},
		Tracing: tracingConfig{
			Exporter:    tracing.ExporterOTLP,
			Endpoint:    tracing.DefaultOTLPEndpoint,
			SampleRatio: 1,
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
		SmokeTest: smokeConfig{
			MaxConcurrent: smoketest.DefaultMaxConcurrent,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logs.Warn(errors.New("loading .env file failed").Wrap(err))
	}

	cli.Register().
		Help("Starts the spatial ID server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "spatialid",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:     conf.Tracing.Enabled,
		ServiceName: tracing.DefaultServiceName,
		Exporter:    conf.Tracing.Exporter,
		Endpoint:    conf.Tracing.Endpoint,
		SampleRatio: conf.Tracing.SampleRatio,
	})
	if err != nil {
		logs.Fatal(errors.New("initializing tracing failed").Wrap(err))
	}
	defer tracing.Shutdown(shutdownTracing)

	presets := ellipsoid.DefaultPresets()
	if conf.EllipsoidPresetsFile != "" {
		if presets, err = ellipsoid.LoadPresets(conf.EllipsoidPresetsFile); err != nil {
			logs.Fatal(err)
		}
	}

	geoidSource, geoidPing, closeGeoid, err := newGeoidSource(conf.Geoid)
	if err != nil {
		logs.Fatal(err)
	}
	defer closeGeoid()

	featureFlags := featureflag.Parse(strings.Join(conf.FeatureFlags, ","))

	api := sidhttp.API{
		Ellipsoids:   presets,
		Geoid:        geoidSource,
		FeatureFlags: featureFlags,
		Concurrency:  conf.Concurrency,
		MaxItems:     conf.MaxItems,
	}

	readyChecks := []sidhttp.ReadyCheck{
		{
			Name: "server",
			Check: func(context.Context) error {
				return ctx.Err()
			},
		},
	}
	if geoidPing != nil {
		readyChecks = append(readyChecks, sidhttp.ReadyCheck{
			Name:  "geoid_cache",
			Check: geoidPing,
		})
	}

	var service http.ServeMux
	api.Register(&service)
	service.HandleFunc("/health", sidhttp.HandleHealthCheck)
	service.HandleFunc("/ready", sidhttp.HandleReadyCheck(readyChecks...))
	service.HandleFunc("/version", sidhttp.HandleVersion(version))
	service.HandleFunc("POST /smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint:         conf.PublicEndpoint,
		AllowedEndpoints: conf.SmokeTest.Endpoints,
		MaxConcurrent:    conf.SmokeTest.MaxConcurrent,
		UserAgent:        fmt.Sprintf("spatialid %s", version),
		SendResult: func(ctx context.Context, res smoketest.Result) error {
			logs.WithTag("to_endpoint", res.ToEndpoint).
				WithTag("status", res.Status).
				WithTag("volumes", res.Volumes).
				WithTag("latency_ms", res.LatencyMS).
				Info("smoke test done")
			return nil
		},
	}))

	var root http.ServeMux
	root.Handle("/", gzhttp.GzipHandler(
		sidhttp.HandleWithCORS(
			sidhttp.HandleWithClientID(
				sidhttp.HandleWithTracing(&service)))))

	featureFlags.IfNotSet(featureflag.FlagDisableVolumeStream, func() {
		root.Handle("/stream", sidhttp.HandleWithCORS(websocket.Server{
			Handshake: func(c *websocket.Config, r *http.Request) error {
				return nil
			},
			Handler: func(conn *websocket.Conn) {
				defer conn.Close()

				var h swebsocket.Handler = &swebsocket.VolumeHandler{
					Ellipsoids:        presets,
					Concurrency:       conf.Concurrency,
					MaxItems:          conf.MaxItems,
					ClientIdleTimeout: conf.ClientIdleTimeout,
				}
				h = swebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
				h = swebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
				defer h.Close()

				swebsocket.Handle(ctx, conn, h)
			},
		}))
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", sidhttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", sidhttp.HandleReadyCheck(readyChecks...))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("ellipsoids", presets.Names()).
		WithTag("feature_flags", conf.FeatureFlags).
		Info("starting spatial id server")

	sidhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&root,
			sidhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

// newGeoidSource returns the grid source when a grid file is configured, a
// constant one otherwise. Heights are cached in Redis when an address is
// set, in which case ping checks the Redis connection.
func newGeoidSource(conf geoidConfig) (src geoid.Source, ping func(context.Context) error, close func(), err error) {
	src = geoid.Constant(conf.Constant)
	if conf.GridFile != "" {
		grid, err := geoid.LoadGrid(conf.GridFile)
		if err != nil {
			return nil, nil, nil, err
		}
		src = grid
	}

	if conf.RedisAddr == "" {
		return src, nil, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     conf.RedisAddr,
		Password: conf.RedisPassword,
		DB:       conf.RedisDB,
	})
	ping = func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
	close = func() {
		if err := client.Close(); err != nil {
			logs.Warn(errors.New("closing redis client failed").Wrap(err))
		}
	}

	return geoid.NewCache(src, client,
		geoid.WithCacheTTL(conf.CacheTTL),
		geoid.WithCachePrecision(conf.CachePrecision),
	), ping, close, nil
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.Concurrency <= 0 {
		return errors.New("concurrency must be positive").
			WithTag("concurrency", conf.Concurrency)
	}

	if conf.MaxItems <= 0 {
		return errors.New("max items must be positive").
			WithTag("max_items", conf.MaxItems)
	}

	for _, e := range conf.SmokeTest.Endpoints {
		if _, err := url.ParseRequestURI(e); err != nil {
			return errors.New("invalid smoke test endpoint").
				WithTag("endpoint", e).
				Wrap(err)
		}
	}

	if conf.Geoid.CachePrecision < 0 {
		return errors.New("geoid cache precision can't be negative").
			WithTag("precision", conf.Geoid.CachePrecision)
	}

	return nil
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/gridrider/eventlog"
	"github.com/aukilabs/gridrider/featureflag"
	gridhttp "github.com/aukilabs/gridrider/http"
	"github.com/aukilabs/gridrider/sector"
	"github.com/aukilabs/gridrider/smoketest"
	gridwebsocket "github.com/aukilabs/gridrider/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
	"golang.org/x/sync/errgroup"
)

var (
	// The Gridrider version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "gridrider_info",
		Help:        "Gridrider information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"GRIDRIDER_ADDR"                 help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"GRIDRIDER_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"GRIDRIDER_PUBLIC_ENDPOINT"      help:"The public endpoint where this server is reachable."`
	LogLevel           string        `cli:""        env:"GRIDRIDER_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"GRIDRIDER_LOG_INDENT"           help:"Indent logs."`
	Sectors            []string      `cli:""        env:"GRIDRIDER_SECTORS"              help:"Comma separated sector files (yaml or json) loaded at startup."`
	SectorTemplate     string        `cli:""        env:"GRIDRIDER_SECTOR_TEMPLATE"      help:"Sector file used for sectors created on demand."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"GRIDRIDER_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle client will be disconnected"`
	FrameDuration      time.Duration `cli:",hidden" env:"GRIDRIDER_FRAME_DURATION"       help:"The duration of a sector frame."`
	SnapshotInterval   int           `cli:",hidden" env:"GRIDRIDER_SNAPSHOT_INTERVAL"    help:"The number of frames between two snapshots sent to a client."`
	EventBufferSize    int           `cli:",hidden" env:"GRIDRIDER_EVENT_BUFFER_SIZE"    help:"The size of the sector event queue."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"GRIDRIDER_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	SmokeTestTicks     int           `cli:",hidden" env:"GRIDRIDER_SMOKE_TEST_TICKS"     help:"The number of ticks run by a smoke test."`
	Events             eventsConfig  `cli:",hidden" env:"-"                              help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"GRIDRIDER_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                              help:"Show version."`
	Help               bool          `cli:""        env:"-"                              help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"GRIDRIDER_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"GRIDRIDER_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"GRIDRIDER_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"GRIDRIDER_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		LogLevel:           logs.InfoLevel.String(),
		ClientIdleTimeout:  time.Minute * 5,
		FrameDuration:      time.Millisecond * 16,
		SnapshotInterval:   4,
		EventBufferSize:    1024,
		LogSummaryInterval: time.Minute,
		SmokeTestTicks:     600,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts Gridrider server.").
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

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "gridrider",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	featureFlags := featureflag.New(conf.FeatureFlags)

	sectorEvents := make(chan sector.Event, conf.EventBufferSize)
	eventLog := eventlog.Handler{Events: sectorEvents}
	eventLog.HandleEvents(ctx)

	var sectors sector.Store
	if err := loadSectors(&sectors, conf, featureFlags, sectorEvents); err != nil {
		logs.Fatal(err)
	}

	newSectorInfo, err := sectorTemplate(conf)
	if err != nil {
		logs.Fatal(err)
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, session := range sectors.List() {
		session := session
		g.Go(func() error {
			session.StartDispatchFrames(gctx)
			return nil
		})
	}

	var service http.ServeMux
	service.Handle("/health", gridhttp.HandleWithCORS(http.HandlerFunc(gridhttp.HandleHealthCheck)))
	service.Handle("/version", gridhttp.HandleWithCORS(http.HandlerFunc(gridhttp.HandleVersion(version))))

	readinessCheck := func() bool {
		return sectors.Len() != 0
	}
	service.Handle("/ready", gridhttp.HandleWithCORS(http.HandlerFunc(gridhttp.HandleReadyCheck(readinessCheck))))
	service.Handle("/sectors", gridhttp.HandleWithCORS(gridhttp.HandleSectors(&sectors)))
	service.Handle("/sectors/snapshot", gridhttp.HandleWithCORS(gridhttp.HandleSectorSnapshot(&sectors)))

	service.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(gctx, smoketest.Options{
		Ticks:        conf.SmokeTestTicks,
		Info:         func() sector.Info { return mustSectorInfo(newSectorInfo, "smoke-test") },
		FeatureFlags: featureFlags,
		SendResult: func(_ context.Context, res smoketest.Result) error {
			logs.WithTag("result", res).Info("smoke test done")
			return nil
		},
	}))

	service.Handle("/", gridhttp.HandleWithCORS(websocket.Server{
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var ph gridwebsocket.Handler = &gridwebsocket.PilotHandler{
				ClientIdleTimeout: conf.ClientIdleTimeout,
				FrameDuration:     conf.FrameDuration,
				SnapshotInterval:  conf.SnapshotInterval,
				Sectors:           &sectors,
				NewSectorInfo:     newSectorInfo,
				FeatureFlags:      featureFlags,
				Events:            sectorEvents,
			}
			h := gridwebsocket.HandlerWithLogs(ph, conf.LogSummaryInterval)
			h = gridwebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			gridwebsocket.Handle(gctx, conn, h)
		},
	}))

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", gridhttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", gridhttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("sectors", sectors.Len()).
		Info("starting gridrider server")

	g.Go(func() error {
		return gridhttp.ListenAndServe(gctx,
			&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
				gridhttp.MetricsPathFormatter)},
			&http.Server{Addr: conf.AdminAddr, Handler: &admin},
		)
	})

	if err := g.Wait(); err != nil {
		logs.Warn(errors.New("server stopped with an error").Wrap(err))
	}

	for _, session := range sectors.List() {
		sectors.Remove(session)
	}
	logs.WithTag("events", eventLog.Counts()).Info("gridrider server stopped")
}

// loadSectors registers the sectors loaded at startup. The default sector is
// registered when no file is given.
func loadSectors(store *sector.Store, conf config, flags featureflag.FeatureFlag, events chan<- sector.Event) error {
	var infos []sector.Info

	for _, path := range conf.Sectors {
		info, err := sector.LoadInfo(path)
		if err != nil {
			return err
		}
		infos = append(infos, info)
	}
	if len(infos) == 0 {
		infos = append(infos, sector.DefaultInfo())
	}

	for _, info := range infos {
		flags.Configure(&info.Config)

		s, err := sector.New(info)
		if err != nil {
			return errors.New("creating sector failed").
				WithTag("sector", info.Name).
				Wrap(err)
		}
		s.NotifyEvents(events)

		session := sector.NewSession(s, conf.FrameDuration)
		session.Persistent = true
		if err := store.Add(session); err != nil {
			return err
		}
	}
	return nil
}

// sectorTemplate returns how sectors created on demand are described.
func sectorTemplate(conf config) (func(name string) (sector.Info, error), error) {
	if conf.SectorTemplate == "" {
		return func(name string) (sector.Info, error) {
			info := sector.DefaultInfo()
			info.Name = name
			return info, nil
		}, nil
	}

	template, err := sector.LoadInfo(conf.SectorTemplate)
	if err != nil {
		return nil, err
	}

	return func(name string) (sector.Info, error) {
		info := template
		info.Name = name
		return info, nil
	}, nil
}

func mustSectorInfo(newSectorInfo func(string) (sector.Info, error), name string) sector.Info {
	info, err := newSectorInfo(name)
	if err != nil {
		logs.Warn(err)
		info = sector.DefaultInfo()
		info.Name = name
	}
	return info
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.FrameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithTag("frame_duration", conf.FrameDuration)
	}

	if conf.SnapshotInterval < 1 {
		return errors.New("snapshot interval must be at least 1").
			WithTag("snapshot_interval", conf.SnapshotInterval)
	}

	if conf.EventBufferSize < 0 {
		return errors.New("event buffer size must not be negative").
			WithTag("event_buffer_size", conf.EventBufferSize)
	}

	return nil
}

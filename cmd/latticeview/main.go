package main

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/gridrider/featureflag"
	"github.com/aukilabs/gridrider/field"
	"github.com/aukilabs/gridrider/sector"
	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/segmentio/encoding/json"
	"golang.org/x/sync/errgroup"
)

var _ = reflect.TypeOf(config{})

type config struct {
	Sector       string   `cli:"" env:"LATTICEVIEW_SECTOR"        help:"Sector file (yaml or json). The default sector is shown when empty."`
	FPS          int      `cli:"" env:"LATTICEVIEW_FPS"           help:"Frames per second."`
	Zoom         float64  `cli:"" env:"LATTICEVIEW_ZOOM"          help:"Terminal columns per world unit."`
	LogLevel     string   `cli:"" env:"LATTICEVIEW_LOG_LEVEL"     help:"Log level (debug|info|warning|error)."`
	LogFile      string   `cli:"" env:"LATTICEVIEW_LOG_FILE"      help:"File where logs are written. Logs are discarded when empty."`
	FeatureFlags []string `cli:"" env:"LATTICEVIEW_FEATURE_FLAGS" help:"Comma separated feature flags"`
	Help         bool     `cli:"" env:"-"                         help:"Show help."`
}

func main() {
	conf := config{
		FPS:      30,
		Zoom:     6,
		LogLevel: logs.InfoLevel.String(),
	}

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Flies a ship through a sector in the terminal.").
		Options(&conf)
	cli.Load()

	closeLogs, err := setupLogs(conf)
	if err != nil {
		logs.Fatal(err)
	}
	defer closeLogs()

	if err := run(ctx, conf); err != nil {
		logs.Warn(err)
		closeLogs()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogs keeps logs away from the terminal the viewer draws on.
func setupLogs(conf config) (func(), error) {
	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	errors.Encoder = json.Marshal

	if conf.LogFile == "" {
		logs.SetLogger(func(logs.Entry) {})
		return func() {}, nil
	}

	f, err := os.OpenFile(conf.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.New("opening log file failed").
			WithTag("path", conf.LogFile).
			Wrap(err)
	}

	logs.SetLogger(func(e logs.Entry) {
		fmt.Fprintln(f, e)
	})
	return func() { f.Close() }, nil
}

func run(ctx context.Context, conf config) error {
	if conf.FPS <= 0 {
		return errors.New("fps must be positive").WithTag("fps", conf.FPS)
	}

	info := sector.DefaultInfo()
	if conf.Sector != "" {
		var err error
		if info, err = sector.LoadInfo(conf.Sector); err != nil {
			return err
		}
	}
	featureflag.New(conf.FeatureFlags).Configure(&info.Config)

	s, err := sector.New(info)
	if err != nil {
		return err
	}

	ship, err := s.AddBody(mgl64.Vec3{})
	if err != nil {
		return errors.New("spawning ship failed").Wrap(err)
	}

	session := sector.NewSession(s, time.Second/time.Duration(conf.FPS))
	defer session.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		return errors.New("creating screen failed").Wrap(err)
	}
	if err := screen.Init(); err != nil {
		return errors.New("initializing screen failed").Wrap(err)
	}

	v := viewer{
		screen:  screen,
		session: session,
		body:    ship,
		camera:  newCamera(conf.FPS, conf.Zoom),
		fps:     conf.FPS,
		repellent: field.Source{
			Order:  2,
			Radial: -0.5,
			Spiral: 0.2,
		},
	}

	ctx, quit := context.WithCancel(ctx)
	defer quit()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		session.StartDispatchFrames(gctx)
		return nil
	})

	g.Go(func() error {
		return v.render(gctx)
	})

	g.Go(func() error {
		return v.handleEvents(quit)
	})

	g.Go(func() error {
		<-gctx.Done()
		// Unblocks PollEvent.
		screen.Fini()
		return nil
	})

	return g.Wait()
}

package smoketest

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/gridrider/featureflag"
	"github.com/aukilabs/gridrider/sector"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/segmentio/encoding/json"
)

const (
	defaultTicks = 600
	defaultDT    = 1.0 / 60
)

type Options struct {
	// The number of ticks run by a smoke test.
	Ticks int

	// The fixed time step of a tick, in seconds.
	DT float64

	// Describes the tested sector. sector.DefaultInfo is used when nil.
	Info func() sector.Info

	FeatureFlags featureflag.FeatureFlag

	SendResult func(context.Context, Result) error
}

// Request optionally overrides the options of a smoke test.
type Request struct {
	Ticks int     `json:"ticks,omitempty"`
	DT    float64 `json:"dt,omitempty"`
}

// Result reports a headless sector run.
type Result struct {
	Sector           string  `json:"sector"`
	Ticks            int     `json:"ticks"`
	Nodes            int     `json:"nodes"`
	Edges            int     `json:"edges"`
	Bodies           int     `json:"bodies"`
	Died             int     `json:"died"`
	Subdivided       int     `json:"subdivided"`
	Collapsed        int     `json:"collapsed"`
	Rebased          int     `json:"rebased"`
	DurationMilliSec float64 `json:"duration_ms"`
	OK               bool    `json:"ok"`
	Error            string  `json:"error,omitempty"`
}

// HandleSmokeTest starts a smoke test in the background and answers 202
// right away. The result is reported with opts.SendResult.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			logs.Warn(errors.New("reading body failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var req Request
		if len(b) != 0 {
			if err := json.Unmarshal(b, &req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}
		if req.Ticks < 0 || req.DT < 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		runOpts := opts
		if req.Ticks != 0 {
			runOpts.Ticks = req.Ticks
		}
		if req.DT != 0 {
			runOpts.DT = req.DT
		}

		go func() {
			res, err := Run(ctx, runOpts)
			if err != nil {
				logs.Warn(err)
			}

			if opts.SendResult == nil {
				return
			}
			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("sector", res.Sector).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusAccepted)
	}
}

// Run flies a body through a headless sector and checks the sector
// invariants after every tick.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Ticks <= 0 {
		opts.Ticks = defaultTicks
	}
	if opts.DT <= 0 {
		opts.DT = defaultDT
	}

	info := sector.DefaultInfo()
	if opts.Info != nil {
		info = opts.Info()
	}
	opts.FeatureFlags.Configure(&info.Config)

	res := Result{Sector: info.Name}
	start := time.Now()

	fail := func(err error) (Result, error) {
		res.Error = err.Error()
		res.DurationMilliSec = float64(time.Since(start)) / float64(time.Millisecond)
		return res, errors.New("smoke test failed").
			WithTag("sector", res.Sector).
			WithTag("tick", res.Ticks).
			Wrap(err)
	}

	s, err := sector.New(info)
	if err != nil {
		return fail(err)
	}

	body, err := s.AddBody(mgl64.Vec3{})
	if err != nil {
		return fail(err)
	}

	for res.Ticks < opts.Ticks {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		// Circle around the spawn point.
		if err := s.Thrust(body, 1); err != nil {
			return fail(err)
		}
		if err := s.Rotate(body, 1); err != nil {
			return fail(err)
		}

		stats := s.Advance(opts.DT)
		res.Ticks++
		res.Nodes = stats.Nodes
		res.Edges = stats.Connections
		res.Bodies = stats.Bodies
		res.Died += stats.Died
		res.Subdivided += stats.Subdivided
		res.Collapsed += stats.Collapsed
		res.Rebased += stats.Rebased

		if err := s.CheckInvariants(); err != nil {
			return fail(err)
		}
	}

	res.OK = true
	res.DurationMilliSec = float64(time.Since(start)) / float64(time.Millisecond)
	return res, nil
}

package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/sync/errgroup"
)

// How long servers get to drain open connections once ctx is done. Pilot
// websockets are hijacked and are not waited on.
const shutdownTimeout = 5 * time.Second

// ListenAndServe runs the given servers until ctx is done. The returned error
// is the first server that stopped on its own.
func ListenAndServe(ctx context.Context, servers ...*http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, s := range servers {
		s := s
		g.Go(func() error {
			logs.WithTag("addr", s.Addr).Info("starting server")

			switch err := s.ListenAndServe(); err {
			case nil, http.ErrServerClosed:
				logs.WithTag("addr", s.Addr).Info("stopping server")
				return nil

			default:
				return errors.New("server stopped").
					WithTag("addr", s.Addr).
					Wrap(err)
			}
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				logs.Warn(errors.New("shutting down the server failed").
					WithTag("addr", s.Addr).
					Wrap(err))
			}
		}
		return nil
	})

	return g.Wait()
}

// MetricsPathFormatter labels requests by route. Rejected requests and
// unknown paths are not labelled, so scanners cannot grow the label set.
func MetricsPathFormatter(statusCode int, path string) string {
	switch statusCode {
	case http.StatusMovedPermanently,
		http.StatusBadRequest,
		http.StatusNotFound,
		http.StatusMethodNotAllowed:
		return ""
	}

	path = strings.TrimSuffix(path, "/")
	switch path {
	case "":
		return "/"

	case "/health", "/ready", "/version", "/sectors", "/sectors/snapshot", "/smoke-test":
		return path

	default:
		return ""
	}
}

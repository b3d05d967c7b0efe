package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/notnil/cancomm"
)

type dumpOptions struct {
	count       int
	metricsAddr string
	ids         []string
	errors      bool
}

func newDumpCmd(a *app) *cobra.Command {
	var opts dumpOptions
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print received frames until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runDump(ctx, cmd, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.count, "count", "n", 0, "exit after this many frames (0 = unlimited)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9100")
	cmd.Flags().StringSliceVar(&opts.ids, "id", nil, "only show these hex identifiers")
	cmd.Flags().BoolVarP(&opts.errors, "errors", "e", false, "also show error frames")
	return cmd
}

func (a *app) runDump(ctx context.Context, cmd *cobra.Command, opts dumpOptions) error {
	filter, err := dumpFilter(opts.ids, opts.errors)
	if err != nil {
		return err
	}

	addr := opts.metricsAddr
	if addr == "" {
		addr = a.cfg.MetricsAddr
	}
	reg := prometheus.NewRegistry()
	c := a.newContext(cancomm.WithMetrics(cancomm.NewMetrics(reg)))
	defer c.Close()
	if err := a.connect(c); err != nil {
		return err
	}
	if addr != "" {
		srv := serveMetrics(addr, reg, a.logger)
		defer srv.Close()
	}

	bus := cancomm.NewLoggedBus(c, a.logger, zerolog.TraceLevel, cancomm.LogRead)
	mux := cancomm.NewMux(bus, a.cfg.PollInterval)
	defer mux.Close()
	frames, cancel := mux.Subscribe(filter, 256)
	defer cancel()

	out := cmd.OutOrStdout()
	device := c.Device()
	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-frames:
			if !ok {
				return mux.Err()
			}
			if err := writeFrame(out, a.cfg.Output, device, f); err != nil {
				return err
			}
			seen++
			if opts.count > 0 && seen >= opts.count {
				return nil
			}
		}
	}
}

// dumpFilter builds the subscriber filter from --id and --errors.
func dumpFilter(ids []string, withErrors bool) (cancomm.FrameFilter, error) {
	var filter cancomm.FrameFilter = cancomm.DataOnly()
	if len(ids) > 0 {
		parsed := make([]uint32, 0, len(ids))
		for _, s := range ids {
			id, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 29)
			if err != nil {
				return nil, fmt.Errorf("bad --id %q: %w", s, err)
			}
			parsed = append(parsed, uint32(id))
		}
		filter = cancomm.ByIDs(parsed...)
	}
	if withErrors {
		filter = cancomm.Or(filter, cancomm.ErrorOnly())
	}
	return filter, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	return srv
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"eventclock/internal/capture"
	"eventclock/internal/clock"
	"eventclock/internal/config"
	"eventclock/internal/driver"
	appLog "eventclock/internal/log"
	"eventclock/internal/metrics"
	"eventclock/internal/model"
	"eventclock/internal/source"
	"eventclock/internal/status"
	"eventclock/internal/termview"
	"eventclock/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	term       bool
	snapshot   string
	debug      bool
	jsonLogs   bool
}

func main() {
	flags := parseFlags()

	appLog.SetProduction(flags.jsonLogs)
	defer appLog.Sync()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"clocks", conf.Clocks,
		"live_threshold", conf.LiveThreshold.String(),
		"live_duration", conf.LiveDuration.String(),
		"tick", conf.Tick.String(),
		"events", len(conf.Events),
		"feeds", len(conf.Feeds),
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, flags); err != nil {
		appLog.Error("eventclock failed", err)
		os.Exit(1)
	}
	appLog.Info("eventclock exiting")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig) error {
	m := metrics.New()
	loader := source.NewLoader(conf, m)

	events, err := loader.Load(ctx)
	if err != nil {
		appLog.Error("some feeds failed to load", err)
	}

	board := web.NewBoard()
	opts := driver.Options{
		Classifier: status.NewClassifier(conf.LiveThreshold, conf.LiveDuration),
		Clocks:     clockZones(conf.Clocks),
		Formatter:  clock.NewZoneFormatter(conf.TimeLayout, conf.DateLayout),
		Clock:      clock.SystemClock,
		Tick:       conf.Tick,
		Recorder:   m,
	}
	if len(conf.Feeds) > 0 {
		opts.ReloadSpec = conf.RefreshCron
		opts.Reload = func(ctx context.Context) ([]model.Event, error) {
			events, err := loader.Load(ctx)
			if err != nil {
				appLog.Error("some feeds failed to reload", err)
			}
			return events, nil
		}
	}
	d := driver.New(board, events, opts)
	srv := web.NewServer(conf, board, d, prometheus.DefaultGatherer)

	if flags.once {
		return runOnce(ctx, conf, flags, d, board, srv)
	}

	if err := d.Start(ctx); err != nil {
		return err
	}
	defer d.Stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	if flags.snapshot != "" {
		go snapshot(ctx, conf, flags.snapshot)
	}
	if flags.term {
		go renderLoop(ctx, board, conf.Tick)
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		appLog.Info("shutting down")
		return <-errCh
	}
}

// runOnce evaluates the board a single time, prints it and optionally
// captures a PNG before exiting.
func runOnce(ctx context.Context, conf *config.Config, flags flagConfig, d *driver.Driver, board *web.Board, srv *web.Server) error {
	d.Tick(time.Now())

	if err := termview.Render(os.Stdout, board.Snapshot()); err != nil {
		return err
	}
	if flags.snapshot == "" {
		return nil
	}

	srvCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(srvCtx) }()

	err := snapshot(ctx, conf, flags.snapshot)
	cancel()
	if serr := <-errCh; serr != nil && !errors.Is(serr, context.Canceled) {
		return errors.Join(err, serr)
	}
	return err
}

func snapshot(ctx context.Context, conf *config.Config, path string) error {
	// Give the listener a moment to come up.
	select {
	case <-time.After(300 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	err := capture.CaptureBoardPNG(ctx, capture.Options{
		URL:        fmt.Sprintf("http://%s/", conf.Listen),
		OutputPath: path,
	})
	if err != nil {
		appLog.Error("board snapshot failed", err, "path", path)
		return err
	}
	appLog.Info("board snapshot written", "path", path)
	return nil
}

func renderLoop(ctx context.Context, board *web.Board, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Clear screen and home the cursor.
			fmt.Fprint(os.Stdout, "\033[H\033[2J")
			if err := termview.Render(os.Stdout, board.Snapshot()); err != nil {
				appLog.Error("terminal render failed", err)
			}
		}
	}
}

func clockZones(cc []config.ClockConfig) []driver.ClockZone {
	out := make([]driver.ClockZone, 0, len(cc))
	for _, c := range cc {
		out = append(out, driver.ClockZone{Label: c.Label, Timezone: c.Timezone})
	}
	return out
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/eventclock/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Evaluate the board once, print it and exit")
	flag.BoolVar(&cfg.term, "term", false, "Also render the board to the terminal every tick")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Write a PNG screenshot of the board to this path")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&cfg.jsonLogs, "json-logs", false, "Write logs as JSON")

	flag.Parse()

	return cfg
}

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"claycal/internal/classify"
	"claycal/internal/config"
	"claycal/internal/fetch"
	"claycal/internal/geocode"
	appLog "claycal/internal/log"
	"claycal/internal/location"
	"claycal/internal/model"
	"claycal/internal/page"
	"claycal/internal/pipeline"
	"claycal/internal/render"
	"claycal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	dryRun     bool
}

func main() {
	appLog.Info("claycal starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI -listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"calendar_count", len(conf.Calendars),
		"sheet", conf.Sheet.URL != "",
		"page", conf.Output.Page,
		"once", flags.once,
		"dry_run", flags.dryRun,
	)

	app, err := newApp(conf, flags.dryRun)
	if err != nil {
		appLog.Error("failed to initialize", err)
		os.Exit(1)
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if flags.once {
		if err := app.refresh(ctx); err != nil {
			appLog.Error("refresh failed", err)
			os.Exit(1)
		}
		appLog.Info("claycal exiting")
		return
	}

	app.runDaemon(ctx)
	appLog.Info("claycal exiting")
}

// app wires the pipeline, renderer, and output target together.
type app struct {
	conf     *config.Config
	pipe     *pipeline.Pipeline
	sources  pipeline.Sources
	renderer *render.Renderer
	server   *web.Server
	dryRun   bool
}

func newApp(conf *config.Config, dryRun bool) (*app, error) {
	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Warn("failed to load timezone, using local", "name", conf.Timezone, "err", err)
		loc = time.Local
	}

	rules := make([]classify.Rule, 0, len(conf.Rules))
	for _, r := range conf.Rules {
		rules = append(rules, classify.Rule{Keyword: r.Keyword, Category: model.Category(r.Category)})
	}

	geo := geocode.NewNominatim(
		conf.Geocoder.BaseURL,
		conf.Geocoder.UserAgent,
		time.Duration(conf.Geocoder.TimeoutSeconds)*time.Second,
	)
	humanizer := location.New(
		geo,
		conf.Geocoder.Attempts,
		time.Duration(conf.Geocoder.RetryWaitSeconds)*time.Second,
		time.Duration(conf.Geocoder.TimeoutSeconds)*time.Second,
	)

	renderer, err := render.New()
	if err != nil {
		return nil, err
	}

	calendars := make([]fetch.Source, 0, len(conf.Calendars))
	for _, c := range conf.Calendars {
		if c.URL == "" {
			continue
		}
		id := c.ID
		if id == "" {
			if c.Name != "" {
				id = c.Name
			} else {
				id = c.URL
			}
		}
		calendars = append(calendars, fetch.Source{ID: id, URL: c.URL})
	}

	var sheetSrc fetch.Source
	if conf.Sheet.URL != "" {
		sheetSrc = fetch.Source{ID: "sheet", URL: conf.Sheet.URL}
	}

	return &app{
		conf: conf,
		pipe: &pipeline.Pipeline{
			Loc:          loc,
			HorizonDays:  conf.HorizonDays,
			DefaultPlace: conf.DefaultPlace,
			Classifier:   classify.New(rules, model.Category(conf.DefaultPlace)),
			Humanizer:    humanizer,
		},
		sources: pipeline.Sources{
			Fetcher:   fetch.New(conf.CacheDir),
			Calendars: calendars,
			Sheet:     sheetSrc,
		},
		renderer: renderer,
		server:   web.NewServer(conf),
		dryRun:   dryRun,
	}, nil
}

// refresh runs one full pipeline pass and splices the result into the
// target page. Source failures degrade to fewer records; only a render
// or page-write failure is returned.
func (a *app) refresh(ctx context.Context) error {
	started := time.Now()
	groups := a.pipe.Run(ctx, time.Now(), a.sources)
	a.server.SetGroups(groups)

	events, err := a.renderer.Events(groups)
	if err != nil {
		return err
	}
	alerts, err := a.renderer.Alerts(groups)
	if err != nil {
		return err
	}

	if a.dryRun {
		appLog.Info("dry run, skipping page write",
			"events_bytes", len(events),
			"alerts_bytes", len(alerts),
			"elapsed", time.Since(started).Round(time.Millisecond),
		)
		return nil
	}

	out := a.conf.Output
	err = page.Update(out.Page, []page.Section{
		{Start: out.EventsStart, End: out.EventsEnd, Fragment: events},
		{Start: out.AlertsStart, End: out.AlertsEnd, Fragment: alerts},
	})
	if err != nil {
		return err
	}

	appLog.Info("page updated",
		"page", out.Page,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return nil
}

// runDaemon refreshes once at startup, then on the configured cron
// schedule, while serving the status endpoints until ctx is canceled.
func (a *app) runDaemon(ctx context.Context) {
	if err := a.refresh(ctx); err != nil {
		appLog.Error("initial refresh failed", err)
	}

	c := cron.New()
	_, err := c.AddFunc(a.conf.RefreshCron, func() {
		if err := a.refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	})
	if err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", a.conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	srv := &http.Server{
		Addr:    a.conf.Listen,
		Handler: a.server.Handler(),
	}
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+a.conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP server shutdown failed", err)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/claycal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one fetch+render+write cycle and exit")
	flag.BoolVar(&cfg.dryRun, "dry-run", false, "Run the pipeline but do not write the page")

	flag.Parse()

	return cfg
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cyclecal/internal/config"
	appLog "cyclecal/internal/log"
	"cyclecal/internal/model"
	"cyclecal/internal/overlay"
	"cyclecal/internal/reminder"
	"cyclecal/internal/store"
	"cyclecal/internal/tracker"
	"cyclecal/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values; they override the config file.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	today      string
	condensed  bool
}

// onceOutput is what -once prints.
type onceOutput struct {
	Today    model.Date      `json:"today"`
	Overlays []overlay.Entry `json:"overlays"`
	Stats    tracker.Stats   `json:"stats"`
}

func main() {
	appLog.Info("cyclecal starting", "version", version)

	if err := run(parseFlags()); err != nil {
		appLog.Error("cyclecal failed", err)
		os.Exit(1)
	}
	appLog.Info("cyclecal exiting")
}

// run owns every resource so deferred cleanup happens on all paths.
func run(flags flagConfig) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	if err := conf.ApplyEnv(); err != nil {
		return err
	}

	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.condensed {
		conf.CondensedLabels = true
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"state_backend", conf.State.Backend,
		"state_path", conf.State.Path,
		"horizon_days", conf.HorizonDays,
		"forecast_count", conf.ForecastCount,
		"condensed", conf.CondensedLabels,
		"basic_auth", conf.BasicAuth != nil,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	st, err := store.Open(conf.State.Backend, conf.State.Path)
	if err != nil {
		return fmt.Errorf("open %s state store: %w", conf.State.Backend, err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			appLog.Error("failed to close state store", err)
		}
	}()

	tr, err := tracker.Open(ctx, st, tracker.Options{
		HorizonDays:      conf.HorizonDays,
		ForecastCount:    conf.ForecastCount,
		ComplianceWindow: conf.ComplianceWindowDays,
	})
	if err != nil {
		return err
	}

	loc := conf.Location()

	if flags.once {
		today := model.Today(loc)
		if flags.today != "" {
			today, err = model.ParseDate(flags.today)
			if err != nil {
				return fmt.Errorf("invalid -today: %w", err)
			}
		}
		return printOnce(tr, today, conf.CondensedLabels)
	}

	sched := reminder.New(loc, tr, reminder.LogNotifier{})
	if err := sched.Apply(tr.Settings()); err != nil {
		appLog.Error("failed to schedule reminder", err)
	}
	sched.Start()
	defer sched.Stop()
	follow := sched.Follow(conf.RecomputeDebounce(), tr.Settings)
	defer follow.Stop()
	tr.OnChange(func(model.Aggregate) { follow.Trigger() })

	srv := web.NewServer(conf, tr)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	// Let in-flight log lines drain.
	time.Sleep(100 * time.Millisecond)
	return nil
}

func printOnce(tr *tracker.Tracker, today model.Date, condensed bool) error {
	out := onceOutput{
		Today:    today,
		Overlays: tr.Overlays(today, condensed),
		Stats:    tr.Stats(today),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/cyclecal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Print overlays and stats as JSON and exit")
	flag.StringVar(&cfg.today, "today", "", "Evaluate -once for this date (YYYY-MM-DD) instead of today")
	flag.BoolVar(&cfg.condensed, "condensed", false, "Use condensed labels (overrides config if set)")

	flag.Parse()

	return cfg
}

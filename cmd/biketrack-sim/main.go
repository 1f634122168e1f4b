//go:build !tinygo

// Command biketrack-sim runs the tracker firmware against simulated
// hardware. Bench lines starting with "sim" drive the sensors; anything
// else goes to the debug console.
//
//	biketrack-sim -profile bench.toml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"biketrack-go/platform"
	"biketrack-go/platform/sim"
	"biketrack-go/services/firmware"
	"biketrack-go/services/tracker"
	"biketrack-go/storage/nvs"
	"biketrack-go/types"
)

func main() {
	profilePath := flag.String("profile", "", "bench profile (TOML)")
	logLevel := flag.String("log-level", "", "override profile log_level")
	boots := flag.Int("boots", 0, "stop after n boots (0 = forever)")
	flag.Parse()

	if err := run(*profilePath, *logLevel, *boots); err != nil {
		fmt.Fprintln(os.Stderr, "biketrack-sim:", err)
		os.Exit(1)
	}
}

func run(profilePath, logLevel string, boots int) error {
	p := sim.DefaultProfile()
	if profilePath != "" {
		var err error
		if p, err = sim.LoadProfile(profilePath); err != nil {
			return err
		}
	}
	if logLevel != "" {
		p.LogLevel = logLevel
	}

	if err := os.MkdirAll(p.StateDir, 0o755); err != nil {
		return err
	}
	nv, err := nvs.OpenFile(filepath.Join(p.StateDir, "nvs.json"))
	if err != nil {
		return err
	}

	board, hw := platform.OpenSim(p, nv, tracker.NewMemRetained(), os.Stdin, os.Stdout)
	fmt.Fprintf(os.Stdout, "bench %q ready, time x%g. Type \"sim\" for bench commands, \"help\" for the console.\n",
		p.Board, p.TimeScale)
	hw.Modem.OnSMS = func(s sim.SMS) {
		fmt.Fprintf(os.Stdout, "[sms] -> %s: %s\n", s.Number, s.Text)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return firmware.Run(ctx, board, firmware.Options{
		LogLevel:  p.LogLevel,
		LogFormat: p.LogFormat,
		MaxBoots:  boots,
		Tune:      func(tp *types.TrackerParams) { applyOverrides(tp, p.Tracker) },
	})
}

func applyOverrides(tp *types.TrackerParams, o sim.TrackerOverrides) {
	if o.QuietPeriodMs > 0 {
		tp.QuietPeriodMs = o.QuietPeriodMs
	}
	if o.FixTimeoutMs > 0 {
		tp.FixTimeoutMs = o.FixTimeoutMs
	}
	if o.MonitorWindowMs > 0 {
		tp.MonitorWindowMs = o.MonitorWindowMs
	}
	if o.RetryBackoffMs > 0 {
		tp.RetryBackoffMs = o.RetryBackoffMs
	}
}

// Package firmware wires the services to a platform.Board and runs the
// boot / decide / deep-sleep cycle.
//
// On hardware a deep sleep ends in a reset, so Run never returns there.
// On the host DeepSleep returns and the loop performs an emulated reboot:
// a fresh tracker.Device restores from NV and retained memory while the
// bus, link and console stay up.
package firmware

import (
	"context"
	"errors"

	"biketrack-go/bus"
	"biketrack-go/platform"
	"biketrack-go/services/ble"
	"biketrack-go/services/config"
	"biketrack-go/services/console"
	"biketrack-go/services/heartbeat"
	"biketrack-go/services/history"
	"biketrack-go/services/settings"
	"biketrack-go/services/tracker"
	"biketrack-go/types"
	"biketrack-go/x/logx"
)

const busQueueLen = 32

type Options struct {
	LogLevel  string
	LogFormat string // "console" or "json"; ignored on the MCU
	// Tune adjusts the board's tracker tunables before range checks.
	Tune func(*types.TrackerParams)
	// MaxBoots stops the loop after n boots; 0 runs forever.
	MaxBoots int
}

// Run blocks until ctx ends (host) or forever (hardware).
func Run(ctx context.Context, b *platform.Board, opt Options) error {
	if err := logx.Configure(opt.LogLevel, opt.LogFormat, "biketrack"); err != nil {
		return err
	}
	defer logx.Sync()
	log := logx.New("firmware")

	params := trackerParams(b.Name, opt.Tune, log)

	ctx, cancel := context.WithCancel(context.WithValue(ctx, config.CtxDeviceKey, b.Name))
	defer cancel()

	bb := bus.NewBus(busQueueLen)
	config.NewConfigService(logx.New("config")).Start(ctx, bb.NewConnection("config"))
	if err := heartbeat.New(logx.New("heartbeat")).Start(ctx, bb.NewConnection("heartbeat")); err != nil {
		return err
	}

	st := settings.New(b.NV, logx.New("settings"))
	hist := history.New(b.NV, logx.New("history"))

	periph := ble.NewLinePeripheral(b.Radio, logx.New("radio"))
	link := ble.New(bb.NewConnection("ble"), st, periph, logx.New("ble"))
	link.Start(ctx)
	go func() {
		if err := periph.Serve(ctx, link); err != nil && ctx.Err() == nil {
			log.Error("radio link lost", "err", err)
		}
	}()

	if b.Console != nil {
		cons := console.New(bb.NewConnection("console"), console.DefaultReplyTimeout, logx.New("console"))
		go func() {
			if err := cons.Serve(ctx, b.Console, b.Out); err != nil && ctx.Err() == nil {
				log.Warn("console closed", "err", err)
			}
		}()
	}

	if b.Start != nil {
		b.Start(ctx)
	}

	conn := bb.NewConnection("tracker")
	for boots := 1; ; boots++ {
		dev := tracker.New(tracker.Deps{
			Clock:    b.Clock,
			Settings: st,
			History:  hist,
			Retained: b.Retained,
			Modem:    b.Modem,
			Accel:    b.Accel,
			Latch:    b.Latch,
			Presence: b.Presence,
			Link:     link,
			Sleeper:  b.Sleeper,
			Conn:     conn,
			Log:      logx.New("tracker"),
		}, params)

		if err := dev.Boot(b.BootReason()); err != nil {
			log.Warn("boot incomplete", "err", err)
		}
		req, err := dev.Run(ctx)
		dev.Close()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		b.DeepSleep(req.Duration)
		if ctx.Err() != nil || (opt.MaxBoots > 0 && boots >= opt.MaxBoots) {
			return nil
		}
		log.Info("restart", "boot", boots+1)
	}
}

// trackerParams resolves the board's tunables; a missing board document
// leaves the built-in defaults.
func trackerParams(board string, tune func(*types.TrackerParams), log logx.Logger) types.TrackerParams {
	p := types.DefaultTrackerParams()
	if cfg, err := config.Load(board); err != nil {
		log.Warn("board config", "board", board, "err", err)
	} else {
		p = cfg.Tracker
	}
	if tune != nil {
		tune(&p)
	}
	return config.ClampTracker(p)
}

//go:build !rp2040

package platform

import (
	"context"
	"io"
	"os"
	"sync/atomic"
	"time"

	"biketrack-go/drivers/nmea"
	"biketrack-go/drivers/sim7070"
	"biketrack-go/platform/sim"
	"biketrack-go/services/tracker"
	"biketrack-go/storage/nvs"
	"biketrack-go/x/logx"
	"biketrack-go/x/timex"
)

// Open brings up a simulated board with default bench settings, RAM-only
// NV and the process's stdin/stdout as console.
func Open() (*Board, error) {
	b, _ := OpenSim(sim.DefaultProfile(), nvs.NewMem(), tracker.NewMemRetained(), os.Stdin, os.Stdout)
	return b, nil
}

// OpenSim assembles a Board from simulated parts. Deep sleep returns after
// the scaled interval (or a "sim wake"), and the next boot reports a timer
// wake; retained survives as long as the caller keeps it.
func OpenSim(p sim.Profile, nv nvs.Store, retained tracker.RetainedStore, in io.Reader, out io.Writer) (*Board, *sim.Hardware) {
	log := logx.New("board")
	hw := sim.New(p, out)
	clk := timex.NewScaled(p.TimeScale)

	latch := tracker.NewLatch()
	hw.Accel.Attach(latch.Signal)

	mc := sim7070.DefaultConfig()
	mc.ResetWait = 500 * time.Millisecond
	mc.GNSSWarmup = 200 * time.Millisecond
	mc.FixPoll = 300 * time.Millisecond
	mc.GNSSSettle = 200 * time.Millisecond
	mc.RegPoll = 200 * time.Millisecond
	modemDev := sim7070.New(hw.Modem, mc, logx.New("sim7070"))

	var modem tracker.Modem = modemDev
	var gnss *nmea.Source
	if hw.NMEA != nil {
		gnss = nmea.NewUART(hw.NMEA, clk, logx.New("gnss"))
		modem = GNSSModem{Modem: modemDev, Fixes: gnss}
	}

	var reason atomic.Uint32
	reason.Store(uint32(tracker.BootPowerOn))

	b := &Board{
		Name:       p.Board,
		Clock:      clk,
		NV:         nv,
		Retained:   retained,
		Latch:      latch,
		Accel:      hw.Accel,
		Presence:   hw.Presence,
		Modem:      modem,
		Radio:      hw.Radio,
		Sleeper:    ChanSleeper{},
		Console:    hw.Console(in, out),
		Out:        out,
		BootReason: func() tracker.BootReason { return tracker.BootReason(reason.Load()) },
		DeepSleep: func(d time.Duration) {
			wall := clk.Real(d)
			log.Info("deep sleep", "scaled", d.String(), "wall", wall.String())
			select {
			case <-time.After(wall):
			case <-hw.Wake():
			}
			reason.Store(uint32(tracker.BootTimer))
		},
		Start: func(ctx context.Context) {
			if err := modemDev.Init(ctx); err != nil {
				log.Warn("modem init", "err", err)
			}
			if gnss != nil {
				gnss.Start(ctx)
			}
		},
	}
	return b, hw
}

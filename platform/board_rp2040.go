//go:build rp2040

package platform

import (
	"context"
	"device/rp"
	"machine"
	"runtime/volatile"
	"time"

	"biketrack-go/drivers/lsm6dsl"
	"biketrack-go/drivers/nmea"
	"biketrack-go/drivers/sim7070"
	"biketrack-go/services/tracker"
	"biketrack-go/storage/nvs"
	"biketrack-go/x/logx"
	"biketrack-go/x/timex"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

// Pin plan.
const (
	pinI2CSDA    = machine.GP4
	pinI2CSCL    = machine.GP5
	pinModemTX   = machine.GP0
	pinModemRX   = machine.GP1
	pinRadioTX   = machine.GP8
	pinRadioRX   = machine.GP9
	pinAccelInt1 = machine.GP14
	pinAccelInt2 = machine.GP15
	pinPIR       = machine.GP16

	modemBaud = 115200
	radioBaud = 115200

	ubloxAddr = 0x42
)

// Scratch layout: 0..3 retained record, 4 sleep marker.
const (
	scratchRecord = 0
	scratchMarker = 4
)

type wdScratch struct{}

func (wdScratch) reg(i int) *volatile.Register32 {
	switch i {
	case 0:
		return &rp.WATCHDOG.SCRATCH0
	case 1:
		return &rp.WATCHDOG.SCRATCH1
	case 2:
		return &rp.WATCHDOG.SCRATCH2
	case 3:
		return &rp.WATCHDOG.SCRATCH3
	case 4:
		return &rp.WATCHDOG.SCRATCH4
	case 5:
		return &rp.WATCHDOG.SCRATCH5
	case 6:
		return &rp.WATCHDOG.SCRATCH6
	default:
		return &rp.WATCHDOG.SCRATCH7
	}
}

func (s wdScratch) Load(i int) uint32     { return s.reg(i).Get() }
func (s wdScratch) Store(i int, v uint32) { s.reg(i).Set(v) }

type pirSensor struct{ p machine.Pin }

func (s pirSensor) Present() bool { return s.p.Get() }

// nvSlotBlocks is the erase-block count per NV image slot.
const nvSlotBlocks = 4

// Open brings up the Pico board.
func Open() (*Board, error) {
	log := logx.New("board")
	scratch := wdScratch{}

	marker := scratch.Load(scratchMarker)
	scratch.Store(scratchMarker, MarkerNone)
	reason := ClassifyBoot(rp.WATCHDOG.REASON.Get() != 0, marker)

	latch := tracker.NewLatch()
	irq := func(machine.Pin) { latch.Signal() }
	for _, p := range []machine.Pin{pinAccelInt1, pinAccelInt2} {
		p.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
		if err := p.SetInterrupt(machine.PinRising, irq); err != nil {
			log.Warn("irq not attached", "pin", int(p), "err", err)
		}
	}
	pinPIR.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})

	pinI2CSDA.Configure(machine.PinConfig{Mode: machine.PinI2C})
	pinI2CSCL.Configure(machine.PinConfig{Mode: machine.PinI2C})
	if err := machine.I2C0.Configure(machine.I2CConfig{SDA: pinI2CSDA, SCL: pinI2CSCL, Frequency: 400_000}); err != nil {
		return nil, err
	}
	owner := NewI2COwner(machine.I2C0)
	bus := owner.Bus(250 * time.Millisecond)

	accel := lsm6dsl.New(bus)
	if err := accel.Configure(lsm6dsl.Config{}); err != nil {
		log.Error("accelerometer", "err", err)
	}

	_ = uartx.UART0.Configure(uartx.UARTConfig{BaudRate: modemBaud, TX: pinModemTX, RX: pinModemRX})
	_ = uartx.UART1.Configure(uartx.UARTConfig{BaudRate: radioBaud, TX: pinRadioTX, RX: pinRadioRX})

	nv, err := nvs.OpenBlock(machine.Flash, nvSlotBlocks)
	if err != nil {
		return nil, err
	}

	clk := timex.NewSystem()
	modemDev := sim7070.New(uartx.UART0, sim7070.DefaultConfig(), logx.New("sim7070"))
	var modem tracker.Modem = modemDev
	var gnss *nmea.Source
	if bus.Tx(ubloxAddr, []byte{0xFD}, make([]byte, 2)) == nil {
		gnss = nmea.NewI2C(bus, clk, logx.New("gnss"))
		modem = GNSSModem{Modem: modemDev, Fixes: gnss}
		log.Info("external gnss on i2c")
	}

	b := &Board{
		Name:     "pico",
		Clock:    clk,
		NV:       nv,
		Retained: NewScratchStore(scratch, scratchRecord),
		Latch:    latch,
		Accel:    accel,
		Presence: pirSensor{pinPIR},
		Modem:    modem,
		Radio:    uartx.UART1,
		Sleeper: ChanSleeper{Park: func() error {
			pinAccelInt1.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
			pinAccelInt2.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
			return nil
		}},
		Console:    usbConsole{},
		Out:        usbConsole{},
		BootReason: func() tracker.BootReason { return reason },
		DeepSleep: func(d time.Duration) {
			scratch.Store(scratchMarker, MarkerTimer)
			time.Sleep(d)
			machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1})
			machine.Watchdog.Start()
			for {
			}
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
	return b, nil
}

// usbConsole adapts machine.Serial (USB CDC) to io.Reader/io.Writer.
type usbConsole struct{}

func (usbConsole) Read(p []byte) (int, error) {
	for machine.Serial.Buffered() == 0 {
		time.Sleep(20 * time.Millisecond)
	}
	n := 0
	for n < len(p) && machine.Serial.Buffered() > 0 {
		c, err := machine.Serial.ReadByte()
		if err != nil {
			break
		}
		p[n] = c
		n++
	}
	return n, nil
}

func (usbConsole) Write(p []byte) (int, error) { return machine.Serial.Write(p) }

// Package lsm6dsl drives the LSM6DSL accelerometer as a motion sensor:
// acceleration reads go through the lsm6ds3tr driver (same register map and
// WHO_AM_I), power modes and wake-on-motion routing are programmed directly.
//
// Wake-on-motion is latched and routed to both INT1 and INT2. Reading
// WAKE_UP_SRC clears the latch.
package lsm6dsl

import (
	"errors"
	"math"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/lsm6ds3tr"
)

// I2C addresses (SA0 low / high).
const (
	Address    = 0x6A
	AddressAlt = 0x6B
)

const (
	regWhoAmI    = 0x0F
	regCtrl1XL   = 0x10
	regCtrl2G    = 0x11
	regCtrl3C    = 0x12
	regCtrl6C    = 0x15
	regWakeUpSrc = 0x1B
	regTapCfg    = 0x58
	regWakeUpThs = 0x5B
	regWakeUpDur = 0x5C
	regMD1Cfg    = 0x5E
	regMD2Cfg    = 0x5F

	whoAmI = 0x6A

	ctrl1Normal   = 0x30 // 52 Hz, ±2 g
	ctrl1LowPower = 0x10 // 12.5 Hz, ±2 g
	ctrl1Off      = 0x00
	ctrl3BDU      = 0x44 // block data update, auto-increment
	ctrl6XLLowPwr = 0x10 // high-performance off

	tapCfgLatched = 0x81 // interrupts enabled, latched
	mdWakeUp      = 0x20
)

var ErrNotFound = errors.New("lsm6dsl: not found")

// Config carries the wake detector tuning. Zero fields use the defaults.
type Config struct {
	Address uint16
	WakeThs uint8 // WAKE_UP_THS, 1 LSB = FS/64; default 0x08
	WakeDur uint8 // WAKE_UP_DUR; default 0x01
}

type Device struct {
	bus  drivers.I2C
	imu  *lsm6ds3tr.Device
	addr uint16
	cfg  Config

	ref    [3]float32
	hasRef bool
	buf    [2]byte
}

// New creates the device object without touching the bus.
func New(bus drivers.I2C) *Device {
	return &Device{bus: bus, imu: lsm6ds3tr.New(bus), addr: Address}
}

// Configure probes both addresses, configures the accelerometer in normal
// mode with the gyro off and captures the reference vector.
func (d *Device) Configure(cfg Config) error {
	if cfg.WakeThs == 0 {
		cfg.WakeThs = 0x08
	}
	if cfg.WakeDur == 0 {
		cfg.WakeDur = 0x01
	}
	d.cfg = cfg

	found := false
	for _, a := range candidates(cfg.Address) {
		d.addr = a
		d.imu.Address = a
		if d.imu.Connected() {
			found = true
			break
		}
	}
	if !found {
		return ErrNotFound
	}
	if err := d.imu.Configure(lsm6ds3tr.Configuration{
		AccelRange:      lsm6ds3tr.ACCEL_2G,
		AccelSampleRate: lsm6ds3tr.ACCEL_SR_52,
	}); err != nil {
		return err
	}
	if err := d.writeAll(
		regCtrl2G, 0x00,
		regCtrl3C, ctrl3BDU,
		regCtrl6C, ctrl6XLLowPwr,
		regCtrl1XL, ctrl1Normal,
	); err != nil {
		return err
	}
	return d.ResetReference()
}

func candidates(a uint16) []uint16 {
	if a != 0 {
		return []uint16{a}
	}
	return []uint16{Address, AddressAlt}
}

// Addr is the address the device answered on.
func (d *Device) Addr() uint16 { return d.addr }

// Connected checks WHO_AM_I.
func (d *Device) Connected() bool {
	v, err := d.readReg(regWhoAmI)
	return err == nil && v == whoAmI
}

// ReadG returns the acceleration vector in g.
func (d *Device) ReadG() (x, y, z float32, err error) {
	ux, uy, uz, err := d.imu.ReadAcceleration()
	if err != nil {
		return 0, 0, 0, err
	}
	return float32(ux) / 1e6, float32(uy) / 1e6, float32(uz) / 1e6, nil
}

// ResetReference captures the current vector as the motion reference.
func (d *Device) ResetReference() error {
	x, y, z, err := d.ReadG()
	if err != nil {
		return err
	}
	d.ref = [3]float32{x, y, z}
	d.hasRef = true
	return nil
}

// ReadDelta is |a - ref| in g. The first read after power-up sets the
// reference and reports zero.
func (d *Device) ReadDelta() (float32, error) {
	x, y, z, err := d.ReadG()
	if err != nil {
		return 0, err
	}
	if !d.hasRef {
		d.ref = [3]float32{x, y, z}
		d.hasRef = true
		return 0, nil
	}
	dx, dy, dz := x-d.ref[0], y-d.ref[1], z-d.ref[2]
	return float32(math.Sqrt(float64(dx*dx + dy*dy + dz*dz))), nil
}

func (d *Device) SetNormalMode() error   { return d.writeAll(regCtrl1XL, ctrl1Normal, regCtrl2G, 0x00) }
func (d *Device) SetLowPowerMode() error { return d.writeAll(regCtrl1XL, ctrl1LowPower, regCtrl2G, 0x00) }

// PowerDown stops both sensors. The reference is dropped.
func (d *Device) PowerDown() error {
	d.hasRef = false
	return d.writeAll(regCtrl1XL, ctrl1Off, regCtrl2G, 0x00)
}

// EnableWakeInterrupt programs the latched wake-up detector and routes it
// to INT1 and INT2.
func (d *Device) EnableWakeInterrupt() error {
	_ = d.ClearInterrupt()
	if err := d.writeAll(
		regTapCfg, 0x00,
		regWakeUpDur, d.cfg.WakeDur,
		regWakeUpThs, d.cfg.WakeThs,
		regTapCfg, tapCfgLatched,
		regMD1Cfg, mdWakeUp,
		regMD2Cfg, mdWakeUp,
	); err != nil {
		return err
	}
	return d.ClearInterrupt()
}

// DisableInterrupts unroutes the wake detector from both pins.
func (d *Device) DisableInterrupts() error {
	err := d.writeAll(regMD1Cfg, 0x00, regMD2Cfg, 0x00, regTapCfg, 0x00)
	_ = d.ClearInterrupt()
	return err
}

// ClearInterrupt reads WAKE_UP_SRC, releasing a latched interrupt. The pins
// stay high until this is done.
func (d *Device) ClearInterrupt() error {
	_, err := d.readReg(regWakeUpSrc)
	return err
}

func (d *Device) readReg(reg uint8) (uint8, error) {
	d.buf[0] = reg
	if err := d.bus.Tx(d.addr, d.buf[:1], d.buf[1:2]); err != nil {
		return 0, err
	}
	return d.buf[1], nil
}

// writeAll writes register/value pairs in order, stopping at the first error.
func (d *Device) writeAll(pairs ...uint8) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		d.buf[0], d.buf[1] = pairs[i], pairs[i+1]
		if err := d.bus.Tx(d.addr, d.buf[:2], nil); err != nil {
			return err
		}
	}
	return nil
}

package platform

import (
	"time"

	"biketrack-go/errcode"

	"tinygo.org/x/drivers"
)

// Txer is a raw I2C controller (machine.I2C on hardware).
type Txer interface {
	Tx(addr uint16, w, r []byte) error
}

type i2cReq struct {
	addr uint16
	w, r []byte
	done chan error // buffered(1); worker replies best-effort
}

// I2COwner serialises every transaction on one bus through a single
// worker goroutine. The accelerometer (tracker loop) and the GNSS reader
// share the bus.
type I2COwner struct {
	hw   Txer
	reqs chan i2cReq
	quit chan struct{}
}

func NewI2COwner(hw Txer) *I2COwner {
	o := &I2COwner{
		hw:   hw,
		reqs: make(chan i2cReq, 16),
		quit: make(chan struct{}),
	}
	go o.loop()
	return o
}

func (o *I2COwner) loop() {
	for {
		select {
		case req := <-o.reqs:
			err := o.hw.Tx(req.addr, req.w, req.r)
			// best-effort reply; do not block the worker
			select {
			case req.done <- err:
			default:
			}
		case <-o.quit:
			return
		}
	}
}

func (o *I2COwner) Stop() { close(o.quit) }

// Bus returns a drivers.I2C view with a per-call timeout (0 = none).
func (o *I2COwner) Bus(timeout time.Duration) drivers.I2C {
	return &sharedI2C{o: o, timeout: timeout}
}

type sharedI2C struct {
	o       *I2COwner
	timeout time.Duration
}

var _ drivers.I2C = (*sharedI2C)(nil)

func (d *sharedI2C) Tx(addr uint16, w, r []byte) error {
	req := i2cReq{addr: addr, w: w, r: r, done: make(chan error, 1)}

	if d.timeout <= 0 {
		d.o.reqs <- req
		return <-req.done
	}

	t := time.NewTimer(d.timeout)
	defer t.Stop()
	select {
	case d.o.reqs <- req:
	case <-t.C:
		return errcode.Busy
	}
	select {
	case err := <-req.done:
		return err
	case <-t.C:
		return errcode.Timeout
	}
}

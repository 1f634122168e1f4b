package ble

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"sync"

	"biketrack-go/x/logx"
	"biketrack-go/x/strx"
)

// Port is a byte stream to a BLE co-processor.
type Port interface {
	Write(p []byte) (int, error)
	RecvSomeContext(ctx context.Context, p []byte) (int, error)
}

// LinePeripheral speaks a line protocol with a BLE co-processor that owns
// the GATT table:
//
//	in:  "C <mtu>" connected, "D" disconnected, "W <char> <body>" write
//	out: "A" advertise, "N <char> <value>" notify
//
// Values are single-line JSON, so no escaping is needed.
type LinePeripheral struct {
	port Port
	log  logx.Logger

	wmu sync.Mutex
	buf [64]byte
}

func NewLinePeripheral(port Port, log logx.Logger) *LinePeripheral {
	if log == nil {
		log = logx.Nop()
	}
	return &LinePeripheral{port: port, log: log}
}

func (p *LinePeripheral) Advertise() error {
	return p.writeLine("A")
}

func (p *LinePeripheral) Notify(ch Characteristic, value []byte) error {
	return p.writeLine("N " + ch.String() + " " + string(value))
}

func (p *LinePeripheral) writeLine(s string) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	_, err := p.port.Write([]byte(s + "\n"))
	return err
}

// Serve reads co-processor lines and dispatches them to svc until ctx ends
// or the port fails.
func (p *LinePeripheral) Serve(ctx context.Context, svc *Service) error {
	var line []byte
	for {
		n, err := p.port.RecvSomeContext(ctx, p.buf[:])
		for _, c := range p.buf[:n] {
			switch c {
			case '\n':
				p.dispatch(svc, string(bytes.TrimRight(line, "\r")))
				line = line[:0]
			default:
				if len(line) < 512 {
					line = append(line, c)
				}
			}
		}
		if err != nil {
			return err
		}
	}
}

func (p *LinePeripheral) dispatch(svc *Service, line string) {
	op, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch op {
	case "":
		return
	case "C":
		mtu, _ := strconv.Atoi(strings.TrimSpace(rest))
		svc.OnConnect(mtu)
	case "D":
		svc.OnDisconnect()
	case "W":
		name, body, _ := strings.Cut(rest, " ")
		ch, ok := ParseCharacteristic(name)
		if !ok {
			p.log.Warn("write to unknown characteristic", "char", name)
			return
		}
		_ = svc.OnWrite(ch, []byte(body))
	default:
		p.log.Warn("unknown line", "line", strx.Truncate(line, 40))
	}
}

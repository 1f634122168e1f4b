// Package heartbeat publishes a periodic tick on heartbeat/tick. The
// transport re-sends its status notification on each tick while a central
// is connected. The period follows the retained config/heartbeat message.
package heartbeat

import (
	"context"
	"time"

	"biketrack-go/bus"
	"biketrack-go/types"
	"biketrack-go/x/logx"
)

var (
	topicConfigHeartbeat = bus.Topic{"config", "heartbeat"}
	TopicTick            = bus.Topic{"heartbeat", "tick"}
)

const defaultInterval = 2 * time.Second

// Tick is the payload on TopicTick.
type Tick struct {
	Seq uint32
}

type Service struct {
	log logx.Logger
	seq uint32
}

func New(log logx.Logger) *Service {
	if log == nil {
		log = logx.Nop()
	}
	return &Service{log: log}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("heartbeat stopping")
			return
		case <-tick.C:
			s.seq++
			conn.Publish(conn.NewMessage(TopicTick, Tick{Seq: s.seq}, false))
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				return
			}
			if d, ok := interval(msg.Payload); ok {
				tick.Reset(d)
				s.log.Info("interval set", "ms", d.Milliseconds())
			}
		}
	}
}

// interval accepts the typed config payload or a generic JSON object.
func interval(p any) (time.Duration, bool) {
	var sec float64
	switch v := p.(type) {
	case types.HeartbeatConfig:
		sec = v.IntervalSec
	case map[string]any:
		f, ok := v["interval"].(float64)
		if !ok {
			return 0, false
		}
		sec = f
	default:
		return 0, false
	}
	if sec <= 0 {
		return 0, false
	}
	return time.Duration(sec * float64(time.Second)), true
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}

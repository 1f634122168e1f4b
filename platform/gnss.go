package platform

import (
	"context"
	"time"

	"biketrack-go/services/tracker"
	"biketrack-go/types"
)

// FixSource is a standalone GNSS receiver.
type FixSource interface {
	AcquireFix(ctx context.Context, timeout time.Duration) (types.Fix, error)
}

// GNSSModem takes fixes from a separate receiver and everything else from
// the cellular modem.
type GNSSModem struct {
	tracker.Modem
	Fixes FixSource
}

func (m GNSSModem) AcquireFix(ctx context.Context, timeout time.Duration) (types.Fix, error) {
	return m.Fixes.AcquireFix(ctx, timeout)
}

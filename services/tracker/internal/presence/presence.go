// Package presence fuses the link and infrared presence signals into a Mode.
package presence

import "biketrack-go/types"

// ComputeMode: link down is always DISCONNECTED; otherwise the IR sensor
// decides between READY and AWAY.
func ComputeMode(linkConnected, userPresent bool) types.Mode {
	switch {
	case !linkConnected:
		return types.ModeDisconnected
	case userPresent:
		return types.ModeReady
	default:
		return types.ModeAway
	}
}

// Status recomputes the ephemeral DeviceStatus for one loop iteration.
func Status(linkConnected, userPresent bool, lastFixMs int64) types.DeviceStatus {
	return types.DeviceStatus{
		LinkConnected: linkConnected,
		UserPresent:   userPresent,
		Mode:          ComputeMode(linkConnected, userPresent),
		LastFixMs:     lastFixMs,
	}
}

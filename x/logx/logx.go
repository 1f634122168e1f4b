// Package logx is the firmware's logging front end. Host builds log through
// zap; MCU builds print with the runtime's println to keep fmt out of flash.
package logx

// Logger logs a message with alternating key/value pairs.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// Level is the minimum severity emitted.
type Level int8

const (
	LevelDebug Level = iota - 1
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps "debug"/"info"/"warn"/"error" to a Level; unknown → info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

type nop struct{}

func (nop) Debug(string, ...any) {}
func (nop) Info(string, ...any)  {}
func (nop) Warn(string, ...any)  {}
func (nop) Error(string, ...any) {}

// Nop discards everything.
func Nop() Logger { return nop{} }

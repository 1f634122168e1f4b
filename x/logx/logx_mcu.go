//go:build tinygo

package logx

import "strconv"

var minLevel = LevelInfo

// Configure sets the minimum level; format and service are ignored on MCU.
func Configure(level, _, _ string) error {
	minLevel = ParseLevel(level)
	return nil
}

func Sync() {}

// New returns a println-backed logger that prefixes lines with [name].
func New(name string) Logger { return printLogger{prefix: "[" + name + "]"} }

type printLogger struct{ prefix string }

func (l printLogger) Debug(msg string, kv ...any) { l.emit(LevelDebug, "D", msg, kv) }
func (l printLogger) Info(msg string, kv ...any)  { l.emit(LevelInfo, "I", msg, kv) }
func (l printLogger) Warn(msg string, kv ...any)  { l.emit(LevelWarn, "W", msg, kv) }
func (l printLogger) Error(msg string, kv ...any) { l.emit(LevelError, "E", msg, kv) }

func (l printLogger) emit(lv Level, tag, msg string, kv []any) {
	if lv < minLevel {
		return
	}
	line := tag + " " + l.prefix + " " + msg
	for i := 0; i+1 < len(kv); i += 2 {
		k, _ := kv[i].(string)
		line += " " + k + "=" + str(kv[i+1])
	}
	println(line)
}

func str(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', 3, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', 3, 64)
	case error:
		if x == nil {
			return "<nil>"
		}
		return x.Error()
	case interface{ String() string }:
		return x.String()
	case nil:
		return "<nil>"
	}
	return "?"
}

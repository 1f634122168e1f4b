package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"

	"biketrack-go/errcode"
	"biketrack-go/x/strx"
)

const clearToken = "CLEAR"

// Patch is a partial update decoded from a config write. Nil means
// "leave as-is".
type Patch struct {
	Phone    *string
	Interval *int64
	Alerts   *bool
	Clear    bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return !p.Clear && p.Phone == nil && p.Interval == nil && p.Alerts == nil
}

// DecodePatch parses a Config characteristic body. Both the full form
// {"phone_number","update_interval","alert_enabled"} and the compact form
// {"p","i","a":0|1} are accepted, mixed if need be. Fields that fail to
// decode are reported in the returned error and left nil; the rest of the
// patch is still usable. A body that is not a JSON object at all yields an
// empty patch and an invalid_payload error.
func DecodePatch(body []byte) (Patch, error) {
	var p Patch
	trimmed := bytes.TrimSpace(body)
	if strx.Unquote(string(trimmed)) == clearToken {
		p.Clear = true
		return p, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return p, &errcode.E{C: errcode.InvalidPayload, Op: "settings.decode", Msg: "not a JSON object", Err: err}
	}

	var errs []error
	fieldErr := func(key string, err error) {
		errs = append(errs, &errcode.E{C: errcode.InvalidPayload, Op: "settings.decode", Msg: key, Err: err})
	}

	for _, key := range []string{"phone_number", "p"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			fieldErr(key, err)
			continue
		}
		p.Phone = &s
		break
	}

	for _, key := range []string{"update_interval", "i"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			fieldErr(key, err)
			continue
		}
		if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
			fieldErr(key, errcode.OutOfRange)
			continue
		}
		n := int64(f)
		p.Interval = &n
		break
	}

	for _, key := range []string{"alert_enabled", "a"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		b, err := decodeFlag(raw)
		if err != nil {
			fieldErr(key, err)
			continue
		}
		p.Alerts = &b
		break
	}

	return p, errors.Join(errs...)
}

// decodeFlag accepts true/false and the compact 0/1 form.
func decodeFlag(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return false, err
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, errcode.OutOfRange
}

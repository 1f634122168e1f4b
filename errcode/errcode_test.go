package errcode

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, OK},
		{"bare code", Timeout, Timeout},
		{"wrapped E", Wrap(NoFix, "modem.fix", nil), NoFix},
		{"fmt wrapped code", fmt.Errorf("send: %w", SendFailed), SendFailed},
		{"plain", errors.New("boom"), Error},
	}
	for _, c := range cases {
		if got := Of(c.err); got != c.want {
			t.Fatalf("%s: Of() = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestE_IsAndUnwrap(t *testing.T) {
	cause := errors.New("uart closed")
	e := &E{C: SendFailed, Op: "sim7070.sms", Msg: "no prompt", Err: cause}
	if !errors.Is(e, SendFailed) {
		t.Fatal("errors.Is should match the code")
	}
	if !errors.Is(e, cause) {
		t.Fatal("errors.Is should reach the cause")
	}
	if got := e.Error(); got != "sim7070.sms: send_failed: no prompt" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestMapDriverErr(t *testing.T) {
	if got := MapDriverErr(context.DeadlineExceeded); got != Timeout {
		t.Fatalf("deadline mapped to %q", got)
	}
	if got := MapDriverErr(errors.New("i2c nack")); got != Error {
		t.Fatalf("unknown mapped to %q", got)
	}
	if got := MapDriverErr(nil); got != OK {
		t.Fatalf("nil mapped to %q", got)
	}
}

package strx

import "testing"

func TestHelpers(t *testing.T) {
	if Coalesce("", "host") != "host" || Coalesce("pico", "host") != "pico" {
		t.Fatal("Coalesce")
	}
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"toolongline", 5, "tool~"},
		{"x", 0, ""},
	}
	for _, tc := range cases {
		if got := Truncate(tc.in, tc.n); got != tc.want {
			t.Errorf("Truncate(%q,%d)=%q want %q", tc.in, tc.n, got, tc.want)
		}
	}
	if Unquote(`"CLEAR"`) != "CLEAR" || Unquote(`"`) != `"` || Unquote("plain") != "plain" {
		t.Fatal("Unquote")
	}
}

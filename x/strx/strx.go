// Package strx holds small string helpers that avoid fmt.
package strx

// Coalesce returns s, or d when s is empty.
func Coalesce(s, d string) string {
	if s == "" {
		return d
	}
	return s
}

// Truncate cuts s to at most n bytes and marks the cut with "~".
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}

// Unquote strips one layer of matching double quotes.
func Unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

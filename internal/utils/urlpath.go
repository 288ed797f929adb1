package utils

import (
	"net/url"
	"strings"
)

// DisplayURL renders rawURL as host plus path without the scheme, shortened
// to at most width runes by eliding the middle. Unparsable input is shortened
// as-is. A non-positive width means no limit.
func DisplayURL(rawURL string, width int) string {
	s := strings.TrimSpace(rawURL)
	if parsed, err := url.Parse(s); err == nil && parsed.Host != "" {
		s = parsed.Host + strings.TrimSuffix(parsed.EscapedPath(), "/")
		if parsed.RawQuery != "" {
			s += "?" + parsed.RawQuery
		}
	}
	return Elide(s, width)
}

// Elide shortens s to width runes, keeping both ends.
func Elide(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	head := (width - 1) / 2
	tail := width - 1 - head
	return string(r[:head]) + "…" + string(r[len(r)-tail:])
}

package utils

import (
	"testing"
	"unicode/utf8"
)

func TestDisplayURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		width    int
		expected string
	}{
		{
			name:     "Video URL",
			url:      "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			expected: "www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			name:     "Trailing slash dropped",
			url:      "https://example.com/channel/",
			expected: "example.com/channel",
		},
		{
			name:     "Host with port",
			url:      "http://nas.local:3000/api/queue",
			expected: "nas.local:3000/api/queue",
		},
		{
			name:     "Not a URL",
			url:      "notaurl",
			expected: "notaurl",
		},
		{
			name:     "Shortened",
			url:      "https://example.com/abcdefghijklmnopqrstuvwxyz",
			width:    15,
			expected: "example…tuvwxyz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DisplayURL(tt.url, tt.width)
			if tt.width > 0 && utf8.RuneCountInString(got) > tt.width {
				t.Errorf("DisplayURL(%q, %d) = %q is wider than %d", tt.url, tt.width, got, tt.width)
			}
			if got != tt.expected {
				t.Errorf("DisplayURL(%q) = %q, want %q", tt.url, got, tt.expected)
			}
		})
	}
}

func TestElide(t *testing.T) {
	if got := Elide("abcdefghij", 5); got != "ab…ij" {
		t.Errorf("Elide = %q, want %q", got, "ab…ij")
	}
	if got := Elide("abc", 10); got != "abc" {
		t.Errorf("Elide = %q, want unchanged", got)
	}
	if got := Elide("abcdef", 2); got != "ab" {
		t.Errorf("Elide = %q, want %q", got, "ab")
	}
}

package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surge-downloader/ytdlp-remote/internal/core"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name      string
		params    map[string]any
		wantURL   string
		wantLoc   string
		wantAudio bool
		wantForce bool
		wantField string
	}{
		{name: "url only", params: map[string]any{"url": "https://example.com/v"}, wantURL: "https://example.com/v"},
		{name: "trimmed url", params: map[string]any{"url": "  https://example.com/v\n"}, wantURL: "https://example.com/v"},
		{
			name:      "all fields",
			params:    map[string]any{"url": "https://example.com/v", "location": "Music", "audio_only": true, "force": true},
			wantURL:   "https://example.com/v",
			wantLoc:   "Music",
			wantAudio: true,
			wantForce: true,
		},
		{
			name:      "string booleans",
			params:    map[string]any{"url": "u", "audio_only": "Yes", "force": "off"},
			wantURL:   "u",
			wantAudio: true,
		},
		{
			name:      "numeric booleans",
			params:    map[string]any{"url": "u", "audio_only": 1, "force": float64(1)},
			wantURL:   "u",
			wantAudio: true,
			wantForce: true,
		},
		{name: "blank location ignored", params: map[string]any{"url": "u", "location": "  "}, wantURL: "u"},
		{name: "nil optionals", params: map[string]any{"url": "u", "location": nil, "force": nil}, wantURL: "u"},
		{name: "missing url", params: map[string]any{"location": "Music"}, wantField: "url"},
		{name: "empty url", params: map[string]any{"url": ""}, wantField: "url"},
		{name: "non-string url", params: map[string]any{"url": []string{"a"}}, wantField: "url"},
		{name: "bad audio_only", params: map[string]any{"url": "u", "audio_only": "sometimes"}, wantField: "audio_only"},
		{name: "bad force", params: map[string]any{"url": "u", "force": 3}, wantField: "force"},
		{name: "bad location", params: map[string]any{"url": "u", "location": 7}, wantField: "location"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest(tt.params)
			if tt.wantField != "" {
				var ve *core.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, tt.wantField, ve.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, req.URL)
			assert.Equal(t, tt.wantLoc, req.LocationName())
			assert.Equal(t, tt.wantAudio, req.AudioOnly)
			assert.Equal(t, tt.wantForce, req.Force)
		})
	}
}

func TestParseRequest_EmptyLocationIsUnset(t *testing.T) {
	for _, loc := range []any{"", "   ", nil} {
		req, err := ParseRequest(map[string]any{"url": "u", "location": loc})
		require.NoError(t, err)
		assert.Nil(t, req.Location, "location %q should be sent as null", loc)
	}
}

func TestParseRequest_NumbersAreNotCoercedToStrings(t *testing.T) {
	for _, params := range []map[string]any{
		{"url": 42},
		{"url": "u", "location": float64(3)},
	} {
		_, err := ParseRequest(params)
		assert.True(t, core.IsValidation(err), "params %v", params)
	}
}

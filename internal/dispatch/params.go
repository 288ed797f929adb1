package dispatch

import (
	"fmt"
	"strings"

	"github.com/surge-downloader/ytdlp-remote/internal/core"
	"github.com/surge-downloader/ytdlp-remote/internal/types"
)

// Parameter names of the download command.
const (
	ParamURL       = "url"
	ParamLocation  = "location"
	ParamAudioOnly = "audio_only"
	ParamForce     = "force"
)

// ParseRequest coerces raw command parameters into a DownloadRequest. It is
// the only place untyped input is interpreted; every failure is a
// *core.ValidationError and nothing touches the network.
func ParseRequest(params map[string]any) (types.DownloadRequest, error) {
	var req types.DownloadRequest

	raw, ok := params[ParamURL]
	if !ok || raw == nil {
		return req, core.NewValidationError(ParamURL, "is required")
	}
	url, ok := raw.(string)
	if !ok {
		return req, core.NewValidationError(ParamURL, fmt.Sprintf("must be a string, got %T", raw))
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return req, core.NewValidationError(ParamURL, "must not be empty")
	}
	req.URL = url

	if raw, ok := params[ParamLocation]; ok && raw != nil {
		loc, ok := raw.(string)
		if !ok {
			return req, core.NewValidationError(ParamLocation, fmt.Sprintf("must be a string, got %T", raw))
		}
		if loc = strings.TrimSpace(loc); loc != "" {
			req.Location = &loc
		}
	}

	var err error
	if req.AudioOnly, err = boolParam(params, ParamAudioOnly); err != nil {
		return types.DownloadRequest{}, err
	}
	if req.Force, err = boolParam(params, ParamForce); err != nil {
		return types.DownloadRequest{}, err
	}
	return req, nil
}

// boolParam reads an optional boolean, defaulting to false. Strings and
// integers are accepted in the spellings config files commonly use.
func boolParam(params map[string]any, name string) (bool, error) {
	raw, ok := params[name]
	if !ok || raw == nil {
		return false, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on", "enable":
			return true, nil
		case "0", "false", "no", "off", "disable", "":
			return false, nil
		}
	case int:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	case int64:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	case float64:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	}
	return false, core.NewValidationError(name, fmt.Sprintf("invalid boolean value %v", raw))
}

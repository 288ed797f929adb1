package core

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is the port the yt-dlp WebUI listens on out of the box.
const DefaultPort = 3000

// EndpointConfig locates the remote WebUI. It is a value type; pass copies.
type EndpointConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// NewEndpointConfig validates host and port. A zero port selects DefaultPort.
func NewEndpointConfig(host string, port int) (EndpointConfig, error) {
	cfg := EndpointConfig{Host: strings.TrimSpace(host), Port: port}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if err := cfg.Validate(); err != nil {
		return EndpointConfig{}, err
	}
	return cfg, nil
}

// Validate checks that the endpoint is usable.
func (c EndpointConfig) Validate() error {
	if c.Host == "" {
		return NewValidationError("host", "is required")
	}
	if strings.Contains(c.Host, "://") || strings.ContainsAny(c.Host, "/ ") {
		return NewValidationError("host", fmt.Sprintf("%q must be a bare hostname or IP", c.Host))
	}
	if c.Port < 1 || c.Port > 65535 {
		return NewValidationError("port", fmt.Sprintf("%d out of range 1-65535", c.Port))
	}
	return nil
}

// BaseURL returns http://host:port.
func (c EndpointConfig) BaseURL() string {
	return "http://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c EndpointConfig) String() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

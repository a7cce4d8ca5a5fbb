package models

import "time"

// ProxyConfig holds the egress proxy configuration.
type ProxyConfig struct {
	URL          string // empty means direct connection
	ProbeURL     string
	ProbeTimeout time.Duration
}

// Configured reports whether an egress proxy is set.
func (c ProxyConfig) Configured() bool {
	return c.URL != ""
}

// ProxyResult holds the result of the pre-flight proxy probe.
type ProxyResult struct {
	Configured bool
	ProxyHost  string
	EgressIP   string
	Duration   time.Duration
	Error      error
}

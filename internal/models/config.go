// Package models contains the data structures used throughout gorenew.
package models

import "time"

// RunContext holds the complete, immutable configuration for a renewal run.
type RunContext struct {
	Portal     PortalConfig
	Proxy      ProxyConfig
	Browser    BrowserConfig
	Renew      RenewPolicy
	Timing     TimingConfig
	Notify     NotifyConfig
	StatusFile StatusFileConfig
	Telegram   *TelegramConfig // nil if not configured
}

// PortalConfig holds the hosting portal account and target settings.
type PortalConfig struct {
	BaseURL       string
	Email         string
	Password      string
	TargetName    string
	AutoStart     bool // trigger a start when the server is stopped or offline
	RecheckStatus bool // re-read the status after renewal if a start was triggered
}

// Credentials returns the login credentials for the portal account.
func (c PortalConfig) Credentials() Credentials {
	return Credentials{Email: c.Email, Password: c.Password}
}

// Credentials is the account login pair.
type Credentials struct {
	Email    string
	Password string
}

// MaskedEmail returns the email with everything after the first three characters hidden.
func (c Credentials) MaskedEmail() string {
	r := []rune(c.Email)
	if len(r) <= 3 {
		return "***"
	}
	return string(r[:3]) + "***"
}

// BrowserConfig holds settings for the headless browser session.
type BrowserConfig struct {
	Headless     bool
	UserAgent    string
	Locale       string
	WindowWidth  int
	WindowHeight int
	WaitTimeout  time.Duration // bound for every element wait and page call
	ExecPath     string        // optional Chrome binary
}

// RenewPolicy holds the retry and classification parameters.
type RenewPolicy struct {
	RetryDelay      time.Duration
	SettleDelay     time.Duration
	MaxHoursCeiling int      // before-hours above this count as maxed out
	LimitMarkers    []string // portal message fragments meaning "limit reached"
	WaitMarker      string   // label fragment meaning the control is on cooldown
}

// TimingConfig holds the randomized delay ranges.
type TimingConfig struct {
	StartupDelayMin   time.Duration
	StartupDelayMax   time.Duration
	KeystrokeDelayMin time.Duration
	KeystrokeDelayMax time.Duration
	ActionDelayMin    time.Duration
	ActionDelayMax    time.Duration
}

// NotifyConfig holds notification rendering settings.
type NotifyConfig struct {
	Timezone    string
	TitlePrefix string
}

// StatusFileConfig holds settings for the status artifact.
type StatusFileConfig struct {
	Enabled bool
	Path    string
}

// Package config provides configuration file parsing.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/fgeck/gorenew/internal/models"
	"github.com/fgeck/gorenew/internal/services/proxy"
	"github.com/spf13/viper"
)

// Environment variables that override file values.
var envBindings = map[string]string{
	"portal.email":       "GREATHOST_EMAIL",
	"portal.password":    "GREATHOST_PASSWORD",
	"portal.target_name": "TARGET_NAME",
	"proxy.url":          "PROXY_URL",
	"telegram.bot_token": "TELEGRAM_BOT_TOKEN",
	"telegram.chat_id":   "TELEGRAM_CHAT_ID",
}

// Parser handles configuration file parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser with defaults and environment
// bindings applied.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return &Parser{v: v}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("portal.base_url", "https://greathost.es")
	v.SetDefault("portal.target_name", "my-free-server")
	v.SetDefault("portal.auto_start", true)
	v.SetDefault("portal.recheck_status", true)

	v.SetDefault("proxy.probe_url", "https://api.ipify.org?format=json")
	v.SetDefault("proxy.probe_timeout", 10*time.Second)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36")
	v.SetDefault("browser.locale", "es-ES")
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 720)
	v.SetDefault("browser.wait_timeout", 25*time.Second)

	v.SetDefault("renew.retry_delay", 10*time.Second)
	v.SetDefault("renew.settle_delay", 15*time.Second)
	v.SetDefault("renew.max_hours_ceiling", 108)
	v.SetDefault("renew.limit_markers", []string{"5 d", "5 días"})
	v.SetDefault("renew.wait_marker", "Wait")

	v.SetDefault("timing.startup_delay_min", 0)
	v.SetDefault("timing.startup_delay_max", 120*time.Second)
	v.SetDefault("timing.keystroke_delay_min", 60*time.Millisecond)
	v.SetDefault("timing.keystroke_delay_max", 180*time.Millisecond)
	v.SetDefault("timing.action_delay_min", 400*time.Millisecond)
	v.SetDefault("timing.action_delay_max", 1200*time.Millisecond)

	v.SetDefault("notify.timezone", "Asia/Shanghai")
	v.SetDefault("notify.title_prefix", "GreatHost")

	v.SetDefault("status_file.enabled", true)
	v.SetDefault("status_file.path", "README.md")
}

// SetNoDelay disables the random startup delay for the next load.
func (p *Parser) SetNoDelay() {
	p.v.Set("timing.startup_delay_min", 0)
	p.v.Set("timing.startup_delay_max", 0)
}

// LoadFile loads configuration from a file path.
func (p *Parser) LoadFile(path string) (*models.RunContext, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: reading config file: %w", models.ErrConfiguration, err)
	}

	return p.parse()
}

// LoadReader loads configuration from a reader (useful for testing).
func (p *Parser) LoadReader(content string) (*models.RunContext, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("%w: reading config: %w", models.ErrConfiguration, err)
	}

	return p.parse()
}

// LoadEnv builds the configuration from defaults and environment variables only.
func (p *Parser) LoadEnv() (*models.RunContext, error) {
	return p.parse()
}

// Fallback returns the delivery settings that can still be read when loading
// fails: the Telegram target, notification format and status file. Everything
// else is left zero. A half-configured Telegram section or an unknown timezone
// is dropped.
func (p *Parser) Fallback() models.RunContext {
	rc := models.RunContext{
		Portal: models.PortalConfig{
			TargetName: p.expandEnv(p.v.GetString("portal.target_name")),
		},
		Notify: models.NotifyConfig{
			Timezone:    p.v.GetString("notify.timezone"),
			TitlePrefix: p.v.GetString("notify.title_prefix"),
		},
		StatusFile: models.StatusFileConfig{
			Path: p.expandEnv(p.v.GetString("status_file.path")),
		},
	}
	rc.StatusFile.Enabled = p.v.GetBool("status_file.enabled") && rc.StatusFile.Path != ""

	if _, err := time.LoadLocation(rc.Notify.Timezone); err != nil {
		rc.Notify.Timezone = ""
	}

	token := p.expandEnv(p.v.GetString("telegram.bot_token"))
	chatID := p.expandEnv(p.v.GetString("telegram.chat_id"))
	if token != "" && chatID != "" {
		rc.Telegram = &models.TelegramConfig{BotToken: token, ChatID: chatID}
	}
	return rc
}

func (p *Parser) parse() (*models.RunContext, error) {
	rc := &models.RunContext{
		Portal: models.PortalConfig{
			BaseURL:       strings.TrimRight(p.v.GetString("portal.base_url"), "/"),
			Email:         p.expandEnv(p.v.GetString("portal.email")),
			Password:      p.expandEnv(p.v.GetString("portal.password")),
			TargetName:    p.expandEnv(p.v.GetString("portal.target_name")),
			AutoStart:     p.v.GetBool("portal.auto_start"),
			RecheckStatus: p.v.GetBool("portal.recheck_status"),
		},
		Proxy: models.ProxyConfig{
			URL:          strings.TrimSpace(p.expandEnv(p.v.GetString("proxy.url"))),
			ProbeURL:     p.v.GetString("proxy.probe_url"),
			ProbeTimeout: p.v.GetDuration("proxy.probe_timeout"),
		},
		Browser: models.BrowserConfig{
			Headless:     p.v.GetBool("browser.headless"),
			UserAgent:    p.v.GetString("browser.user_agent"),
			Locale:       p.v.GetString("browser.locale"),
			WindowWidth:  p.v.GetInt("browser.window_width"),
			WindowHeight: p.v.GetInt("browser.window_height"),
			WaitTimeout:  p.v.GetDuration("browser.wait_timeout"),
			ExecPath:     p.expandEnv(p.v.GetString("browser.exec_path")),
		},
		Renew: models.RenewPolicy{
			RetryDelay:      p.v.GetDuration("renew.retry_delay"),
			SettleDelay:     p.v.GetDuration("renew.settle_delay"),
			MaxHoursCeiling: p.v.GetInt("renew.max_hours_ceiling"),
			LimitMarkers:    p.v.GetStringSlice("renew.limit_markers"),
			WaitMarker:      p.v.GetString("renew.wait_marker"),
		},
		Timing: models.TimingConfig{
			StartupDelayMin:   p.v.GetDuration("timing.startup_delay_min"),
			StartupDelayMax:   p.v.GetDuration("timing.startup_delay_max"),
			KeystrokeDelayMin: p.v.GetDuration("timing.keystroke_delay_min"),
			KeystrokeDelayMax: p.v.GetDuration("timing.keystroke_delay_max"),
			ActionDelayMin:    p.v.GetDuration("timing.action_delay_min"),
			ActionDelayMax:    p.v.GetDuration("timing.action_delay_max"),
		},
		Notify: models.NotifyConfig{
			Timezone:    p.v.GetString("notify.timezone"),
			TitlePrefix: p.v.GetString("notify.title_prefix"),
		},
		StatusFile: models.StatusFileConfig{
			Path: p.expandEnv(p.v.GetString("status_file.path")),
		},
	}
	rc.StatusFile.Enabled = p.v.GetBool("status_file.enabled") && rc.StatusFile.Path != ""

	// Parse optional Telegram config.
	token := p.expandEnv(p.v.GetString("telegram.bot_token"))
	chatID := p.expandEnv(p.v.GetString("telegram.chat_id"))
	switch {
	case token != "" && chatID != "":
		rc.Telegram = &models.TelegramConfig{BotToken: token, ChatID: chatID}
	case token != "":
		return nil, fmt.Errorf("%w: telegram.chat_id is required when telegram.bot_token is set", models.ErrConfiguration)
	case chatID != "":
		return nil, fmt.Errorf("%w: telegram.bot_token is required when telegram.chat_id is set", models.ErrConfiguration)
	}

	if err := Validate(rc); err != nil {
		return nil, err
	}

	return rc, nil
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate performs validation on the loaded configuration.
//
//nolint:gocyclo // one check per field
func Validate(rc *models.RunContext) error {
	if rc == nil {
		return fmt.Errorf("%w: configuration is nil", models.ErrConfiguration)
	}

	if rc.Portal.BaseURL == "" {
		return fmt.Errorf("%w: portal.base_url is required", models.ErrConfiguration)
	}
	if rc.Portal.Email == "" {
		return fmt.Errorf("%w: portal.email is required (or set GREATHOST_EMAIL)", models.ErrConfiguration)
	}
	if rc.Portal.Password == "" {
		return fmt.Errorf("%w: portal.password is required (or set GREATHOST_PASSWORD)", models.ErrConfiguration)
	}
	if strings.TrimSpace(rc.Portal.TargetName) == "" {
		return fmt.Errorf("%w: portal.target_name must not be empty", models.ErrConfiguration)
	}

	if rc.Proxy.Configured() {
		if _, err := proxy.ParseURL(rc.Proxy.URL); err != nil {
			return fmt.Errorf("%w: proxy.url: %w", models.ErrConfiguration, err)
		}
		if rc.Proxy.ProbeURL == "" {
			return fmt.Errorf("%w: proxy.probe_url is required when a proxy is configured", models.ErrConfiguration)
		}
	}

	if rc.Browser.WaitTimeout <= 0 {
		return fmt.Errorf("%w: browser.wait_timeout must be positive", models.ErrConfiguration)
	}

	if rc.Renew.MaxHoursCeiling <= 0 {
		return fmt.Errorf("%w: renew.max_hours_ceiling must be positive", models.ErrConfiguration)
	}
	if rc.Renew.WaitMarker == "" {
		return fmt.Errorf("%w: renew.wait_marker must not be empty", models.ErrConfiguration)
	}
	if rc.Renew.RetryDelay < 0 || rc.Renew.SettleDelay < 0 {
		return fmt.Errorf("%w: renew delays must not be negative", models.ErrConfiguration)
	}

	ranges := []struct {
		name     string
		min, max time.Duration
	}{
		{"timing.startup_delay", rc.Timing.StartupDelayMin, rc.Timing.StartupDelayMax},
		{"timing.keystroke_delay", rc.Timing.KeystrokeDelayMin, rc.Timing.KeystrokeDelayMax},
		{"timing.action_delay", rc.Timing.ActionDelayMin, rc.Timing.ActionDelayMax},
	}
	for _, r := range ranges {
		if r.min < 0 || r.max < r.min {
			return fmt.Errorf("%w: %s_min must be >= 0 and <= %s_max", models.ErrConfiguration, r.name, r.name)
		}
	}

	if rc.Notify.Timezone != "" {
		if _, err := time.LoadLocation(rc.Notify.Timezone); err != nil {
			return fmt.Errorf("%w: notify.timezone: %w", models.ErrConfiguration, err)
		}
	}

	if rc.Telegram != nil && (rc.Telegram.BotToken == "" || rc.Telegram.ChatID == "") {
		return fmt.Errorf("%w: telegram.bot_token and telegram.chat_id must both be set", models.ErrConfiguration)
	}

	return nil
}

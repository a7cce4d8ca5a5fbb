package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fgeck/gorenew/internal/config"
	"github.com/fgeck/gorenew/internal/services/proxy"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the configuration file and environment without contacting the portal.`,
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	// Check if file exists
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			log.Error().Str("file", configFile).Msg("config file not found")
			return fmt.Errorf("config file not found: %s", configFile)
		}
	}

	// Load configuration
	rc, err := loadConfig(config.NewParser())
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to parse config")
		return err
	}

	// Validate configuration
	if err := config.Validate(rc); err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}

	// Print configuration summary
	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("Portal:")
	fmt.Printf("  Base URL: %s\n", rc.Portal.BaseURL)
	fmt.Printf("  Account: %s\n", rc.Portal.Credentials().MaskedEmail())
	fmt.Printf("  Target: %s\n", rc.Portal.TargetName)
	fmt.Printf("  Auto start: %v\n", rc.Portal.AutoStart)
	fmt.Println()
	fmt.Println("Renewal Policy:")
	fmt.Printf("  Attempts: 3 (retry delay %s)\n", rc.Renew.RetryDelay)
	fmt.Printf("  Settle delay: %s\n", rc.Renew.SettleDelay)
	fmt.Printf("  Max hours ceiling: %d\n", rc.Renew.MaxHoursCeiling)
	fmt.Printf("  Limit markers: %s\n", strings.Join(rc.Renew.LimitMarkers, ", "))
	fmt.Printf("  Wait marker: %s\n", rc.Renew.WaitMarker)
	fmt.Println()
	fmt.Println("Timing:")
	fmt.Printf("  Startup delay: %s - %s\n", rc.Timing.StartupDelayMin, rc.Timing.StartupDelayMax)
	fmt.Printf("  Keystroke delay: %s - %s\n", rc.Timing.KeystrokeDelayMin, rc.Timing.KeystrokeDelayMax)
	fmt.Printf("  Action delay: %s - %s\n", rc.Timing.ActionDelayMin, rc.Timing.ActionDelayMax)
	fmt.Println()
	fmt.Println("Optional Features:")
	fmt.Printf("  Proxy: %v\n", rc.Proxy.Configured())
	fmt.Printf("  Telegram: %v\n", rc.Telegram != nil)
	fmt.Printf("  Status file: %v\n", rc.StatusFile.Enabled)

	if rc.Proxy.Configured() {
		fmt.Println()
		fmt.Println("Proxy Configuration:")
		if u, err := proxy.ParseURL(rc.Proxy.URL); err == nil {
			fmt.Printf("  URL: %s\n", proxy.Redact(u))
		}
		fmt.Printf("  Probe URL: %s\n", rc.Proxy.ProbeURL)
		fmt.Printf("  Probe timeout: %s\n", rc.Proxy.ProbeTimeout)
	}

	fmt.Println()
	fmt.Println("Browser Configuration:")
	fmt.Printf("  Headless: %v\n", rc.Browser.Headless)
	fmt.Printf("  Locale: %s\n", rc.Browser.Locale)
	fmt.Printf("  Window: %dx%d\n", rc.Browser.WindowWidth, rc.Browser.WindowHeight)
	fmt.Printf("  Wait timeout: %s\n", rc.Browser.WaitTimeout)
	if rc.Browser.ExecPath != "" {
		fmt.Printf("  Executable: %s\n", rc.Browser.ExecPath)
	}

	if rc.Telegram != nil {
		fmt.Println()
		fmt.Println("Telegram Configuration:")
		fmt.Printf("  Chat ID: %s\n", rc.Telegram.ChatID)
		fmt.Printf("  Bot Token: (configured)\n")
	}

	if rc.StatusFile.Enabled {
		fmt.Println()
		fmt.Println("Status File:")
		fmt.Printf("  Path: %s\n", rc.StatusFile.Path)
		fmt.Printf("  Timezone: %s\n", rc.Notify.Timezone)
	}

	return nil
}

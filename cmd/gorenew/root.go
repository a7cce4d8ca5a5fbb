package main

import (
	"os"
	"strings"

	"github.com/fgeck/gorenew/internal/config"
	"github.com/fgeck/gorenew/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Configuration flags.
	configFile string
	verbose    bool
	quiet      bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "gorenew",
	Short: "Keeps a free GreatHost server renewed",
	Long: `gorenew logs into the GreatHost portal with a headless browser and extends
the lifetime of a free game server:
  - optional proxy health check (SOCKS5 or HTTP)
  - server lookup by name, with a start when it is stopped
  - cooldown detection and renewal with bounded retries
  - Telegram notification and a Markdown status file

Use as a one-shot command with an external scheduler (cron, CI schedule, systemd timer, etc.)`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	SilenceUsage: true,
	Version:      Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (optional, environment variables are used otherwise)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output logs in JSON format")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(simulateCmd)
}

func setupLogging() {
	// Set output format
	if jsonOutput {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		output.FormatLevel = func(i interface{}) string {
			if s, ok := i.(string); ok {
				return strings.ToUpper(s)
			}
			return ""
		}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set log level
	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// loadConfig reads the config file when one is given, otherwise defaults plus environment.
func loadConfig(parser *config.Parser) (*models.RunContext, error) {
	if configFile == "" {
		return parser.LoadEnv()
	}
	return parser.LoadFile(configFile)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

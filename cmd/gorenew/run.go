package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fgeck/gorenew/internal/config"
	"github.com/fgeck/gorenew/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var noDelay bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one renewal run",
	Long: `Execute one renewal run:
1. Random startup delay
2. Proxy health check (if configured)
3. Browser login
4. Locate the target server, start it if stopped
5. Read the renewal state and stop early on cooldown
6. Renew with up to 3 attempts
7. Classify the outcome
8. Send the Telegram notification and write the status file

The process exits non-zero only when the run ends in an error.`,
	RunE: runRenewal,
}

func init() {
	runCmd.Flags().BoolVar(&noDelay, "no-delay", false, "skip the random startup delay")
}

// newRunner builds the runner for the run command.
var newRunner = func() runner.Runner { return runner.New(log.Logger) }

func runRenewal(cmd *cobra.Command, args []string) error {
	runnerSvc := newRunner()

	parser := config.NewParser()
	if noDelay {
		parser.SetNoDelay()
	}
	rc, err := loadConfig(parser)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		_, err = runnerSvc.Abort(cmd.Context(), parser.Fallback(), "config", err)
		return err
	}

	log.Info().
		Str("config", configFile).
		Str("target", rc.Portal.TargetName).
		Str("account", rc.Portal.Credentials().MaskedEmail()).
		Bool("proxy", rc.Proxy.Configured()).
		Bool("telegram", rc.Telegram != nil).
		Msg("configuration loaded")

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	// Run renewal
	outcome, err := runnerSvc.Run(ctx, *rc)
	if err != nil {
		log.Error().Err(err).Msg("renewal failed")
		return err
	}

	log.Info().
		Str("outcome", string(outcome.Kind)).
		Int("before_hours", outcome.Window.BeforeHours).
		Int("after_hours", outcome.Window.AfterHours).
		Msg("renewal run finished")
	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/fgeck/gorenew/internal/config"
	"github.com/fgeck/gorenew/internal/models"
	"github.com/fgeck/gorenew/internal/services/jitter"
	"github.com/fgeck/gorenew/internal/services/notifier"
	"github.com/fgeck/gorenew/internal/services/portal"
	"github.com/fgeck/gorenew/internal/services/proxy"
	"github.com/fgeck/gorenew/internal/services/runner"
	"github.com/fgeck/gorenew/internal/timemath"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// simulateDefaults stands in for a config file so a scenario can be replayed
// without portal credentials.
const simulateDefaults = `
portal:
  email: "simulate@example.com"
  password: "simulate"
status_file:
  enabled: false
`

var (
	scenarioFile  string
	sendSimulated bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay a scripted portal scenario",
	Long: `Run the full renewal workflow against a scripted portal described in a YAML
scenario file, with all delays disabled. The rendered notification is printed;
with --send it is also delivered to Telegram and the status file.`,
	RunE: runSimulation,
}

func init() {
	simulateCmd.Flags().StringVar(&scenarioFile, "scenario", "", "scenario file (required)")
	simulateCmd.Flags().BoolVar(&sendSimulated, "send", false, "deliver the notification")
	_ = simulateCmd.MarkFlagRequired("scenario")
}

// previewNotifier prints the rendered message and optionally delivers it.
type previewNotifier struct {
	renderer *notifier.Impl
	deliver  bool
	out      func(string)
}

func (p *previewNotifier) Send(ctx context.Context, rc models.RunContext, outcome models.RenewalOutcome) models.NotificationReport {
	p.out(p.renderer.Preview(rc, outcome).HTML())
	if !p.deliver {
		return models.NotificationReport{}
	}
	return p.renderer.Send(ctx, rc, outcome)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	sc, err := portal.LoadScenario(scenarioFile)
	if err != nil {
		log.Error().Err(err).Str("file", scenarioFile).Msg("failed to load scenario")
		return err
	}

	var rc *models.RunContext
	if configFile != "" {
		rc, err = config.NewParser().LoadFile(configFile)
	} else {
		rc, err = config.NewParser().LoadReader(simulateDefaults)
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return err
	}
	rc.Proxy = models.ProxyConfig{}

	logger := log.Logger
	svc := runner.NewWithServices(
		logger,
		proxy.New(logger),
		portal.NewScriptedLauncher(sc),
		&previewNotifier{
			renderer: notifier.New(logger),
			deliver:  sendSimulated,
			out:      func(s string) { fmt.Fprintln(cmd.OutOrStdout(), s) },
		},
		jitter.None{},
		timemath.New(logger),
	)

	outcome, err := svc.Run(cmd.Context(), *rc)
	if err != nil {
		return err
	}

	log.Info().Str("outcome", string(outcome.Kind)).Msg("simulation finished")
	return nil
}

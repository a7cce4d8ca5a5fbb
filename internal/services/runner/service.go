// Package runner orchestrates one renewal run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fgeck/gorenew/internal/models"
	"github.com/fgeck/gorenew/internal/services/jitter"
	"github.com/fgeck/gorenew/internal/services/notifier"
	"github.com/fgeck/gorenew/internal/services/portal"
	"github.com/fgeck/gorenew/internal/services/proxy"
	"github.com/fgeck/gorenew/internal/timemath"
	"github.com/rs/zerolog"
)

const (
	// MaxRenewAttempts bounds the renewal retry loop.
	MaxRenewAttempts = 3

	maxErrorDetail    = 200
	notifyTimeout     = 30 * time.Second
	unknownEgressAddr = "Unknown"
)

// Service defines the interface for the renewal runner.
type Service interface {
	Run(ctx context.Context, rc models.RunContext) (*models.RenewalOutcome, error)
}

// Runner is a Service that can also report a run that never started.
type Runner interface {
	Service
	Abort(ctx context.Context, rc models.RunContext, step string, cause error) (*models.RenewalOutcome, error)
}

// HoursCalculator converts an expiry timestamp into whole remaining hours.
type HoursCalculator interface {
	RemainingHours(expiry string) int
}

// Impl implements the runner Service interface.
type Impl struct {
	proxySvc    proxy.Service
	launcher    portal.Launcher
	notifierSvc notifier.Service
	pacer       jitter.Service
	hours       HoursCalculator
	logger      zerolog.Logger
}

// New creates a runner backed by a real browser.
func New(logger zerolog.Logger) *Impl {
	pacer := jitter.New(logger)
	return &Impl{
		proxySvc:    proxy.New(logger),
		launcher:    portal.NewChromeLauncher(logger, pacer),
		notifierSvc: notifier.New(logger),
		pacer:       pacer,
		hours:       timemath.New(logger),
		logger:      logger,
	}
}

// NewWithServices creates a new runner with custom services (for testing and simulation).
func NewWithServices(
	logger zerolog.Logger,
	proxySvc proxy.Service,
	launcher portal.Launcher,
	notifierSvc notifier.Service,
	pacer jitter.Service,
	hours HoursCalculator,
) *Impl {
	return &Impl{
		proxySvc:    proxySvc,
		launcher:    launcher,
		notifierSvc: notifierSvc,
		pacer:       pacer,
		hours:       hours,
		logger:      logger,
	}
}

type runState struct {
	step    string
	outcome models.RenewalOutcome
}

func (st *runState) fail(err error) {
	st.outcome.Kind = models.OutcomeError
	st.outcome.ErrorKind = models.ErrorKind(err)
	st.outcome.ErrorDetail = notifier.Truncate(err.Error(), maxErrorDetail)
	st.outcome.FailedStep = st.step
}

// Run executes one renewal run. It always returns an outcome and always sends
// exactly one notification. The error is non-nil only for the error outcome.
func (s *Impl) Run(ctx context.Context, rc models.RunContext) (outcome *models.RenewalOutcome, err error) {
	startTime := time.Now()
	st := &runState{
		step: "startup",
		outcome: models.RenewalOutcome{
			ServerName: rc.Portal.TargetName,
			ProxyMode:  "direct",
			StartTime:  startTime,
		},
	}

	s.logger.Info().
		Str("target", rc.Portal.TargetName).
		Str("account", rc.Portal.Credentials().MaskedEmail()).
		Bool("proxy", rc.Proxy.Configured()).
		Msg("starting renewal run")

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("step", st.step).Msg("renewal run panicked")
			st.fail(fmt.Errorf("unexpected panic: %v", r))
		}
		st.outcome.Duration = time.Since(startTime)
		outcome, err = s.finish(ctx, rc, st)
	}()

	if runErr := s.execute(ctx, rc, st); runErr != nil {
		s.logger.Error().Err(runErr).Str("step", st.step).Msg("renewal run failed")
		st.fail(runErr)
		return
	}

	s.logger.Info().
		Str("outcome", string(st.outcome.Kind)).
		Int("before_hours", st.outcome.Window.BeforeHours).
		Int("after_hours", st.outcome.Window.AfterHours).
		Dur("duration", time.Since(startTime)).
		Msg("renewal run completed")
	return
}

// Abort reports a run that failed at step before the workflow could begin,
// such as an invalid configuration. It sends the error notification on rc and
// returns the same values Run would.
func (s *Impl) Abort(ctx context.Context, rc models.RunContext, step string, cause error) (*models.RenewalOutcome, error) {
	st := &runState{
		step: step,
		outcome: models.RenewalOutcome{
			ServerName: rc.Portal.TargetName,
			ProxyMode:  "direct",
			StartTime:  time.Now(),
		},
	}
	s.logger.Error().Err(cause).Str("step", step).Msg("renewal run aborted")
	st.fail(cause)
	return s.finish(ctx, rc, st)
}

// finish delivers the single notification for a run on a context that
// survives cancellation of ctx.
func (s *Impl) finish(ctx context.Context, rc models.RunContext, st *runState) (*models.RenewalOutcome, error) {
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	s.notifierSvc.Send(notifyCtx, rc, st.outcome)

	if st.outcome.Failed() {
		return &st.outcome, fmt.Errorf("renewal failed at %s: %s", st.outcome.FailedStep, st.outcome.ErrorDetail)
	}
	return &st.outcome, nil
}

//nolint:gocognit,gocyclo // one branch per workflow step
func (s *Impl) execute(ctx context.Context, rc models.RunContext, st *runState) (err error) {
	// Step 1: startup jitter
	if d := s.pacer.Between(rc.Timing.StartupDelayMin, rc.Timing.StartupDelayMax); d > 0 {
		s.logger.Info().Dur("delay", d).Msg("startup delay elapsed")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: run cancelled: %w", models.ErrTransport, err)
	}

	// Step 2: proxy check
	st.step = "proxy_check"
	proxyResult, err := s.proxySvc.Verify(ctx, rc.Proxy)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrProxy, err)
	}
	if proxyResult.Error != nil {
		return proxyResult.Error
	}
	if proxyResult.Configured {
		st.outcome.ProxyMode = proxyResult.ProxyHost
		st.outcome.EgressIP = proxyResult.EgressIP
	}

	// Step 3: browser session
	st.step = "launch"
	act, err := s.launcher.Launch(ctx, rc)
	if err != nil {
		return fmt.Errorf("failed to start browser session: %w", err)
	}
	defer func() {
		if err != nil {
			st.outcome.Location = act.Location(context.WithoutCancel(ctx))
		}
		if cerr := act.Close(); cerr != nil {
			s.logger.Warn().Err(cerr).Msg("failed to close browser session")
		}
	}()

	st.step = "egress_check"
	if err := s.checkEgress(ctx, rc, act, st); err != nil {
		return err
	}

	// Step 4: login
	st.step = "login"
	if err := act.Login(ctx, rc.Portal.Credentials()); err != nil {
		if !errors.Is(err, models.ErrAuthentication) {
			err = fmt.Errorf("%w: %w", models.ErrAuthentication, err)
		}
		return err
	}
	s.logger.Info().Msg("logged in")

	// Step 5: locate target
	st.step = "locate_server"
	servers, err := act.ListServers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list servers: %w", err)
	}
	server, ok := findServer(servers, rc.Portal.TargetName)
	if !ok {
		return fmt.Errorf("%w: server %q not found among %d servers", models.ErrConfiguration, rc.Portal.TargetName, len(servers))
	}
	st.outcome.ServerID = server.ID
	s.logger.Info().Str("server_id", server.ID).Str("name", server.Name).Msg("target server located")

	// Step 6: status and optional start
	st.step = "read_status"
	status := s.readStatus(ctx, act, server)
	st.outcome.Status = status.Display()
	if status.NeedsStart() && rc.Portal.AutoStart {
		st.step = "start_server"
		if err := act.TriggerStart(ctx, server.ID); err != nil {
			s.logger.Warn().Err(err).Str("status", string(status)).Msg("failed to trigger server start")
		} else {
			st.outcome.ServerStarted = true
			s.logger.Info().Str("status", string(status)).Msg("server start triggered")
		}
	}
	defer func() {
		if err == nil && st.outcome.ServerStarted && rc.Portal.RecheckStatus {
			st.outcome.Status = s.readStatus(ctx, act, server).Display()
		}
	}()

	// Step 7: renewal state
	st.step = "read_renewal_info"
	window := models.RenewalWindow{BeforeHours: s.readHours(ctx, act, server.ID)}
	window.AfterHours = window.BeforeHours

	label, err := act.ReadRenewalControlLabel(ctx, server.ID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read renewal control, assuming no cooldown")
		label = ""
	}
	if cooldown, onCooldown := ParseCooldown(label, rc.Renew.WaitMarker); onCooldown {
		window.CooldownText = cooldown.Text
		window.Cooldown = cooldown.Duration
		st.outcome.Kind = models.OutcomeCooldown
		st.outcome.Window = window
		s.logger.Info().Str("wait", cooldown.Text).Int("hours", window.BeforeHours).Msg("renewal is on cooldown")
		return nil
	}

	// Step 8: renew with retries
	st.step = "renew"
	resp, attempts, lastErr := s.renew(ctx, rc, act, server.ID)
	if resp == nil {
		if lastErr == nil {
			lastErr = models.ErrTransport
		}
		return fmt.Errorf("no renewal response after %d attempts: %w", attempts, lastErr)
	}

	// Step 9: settle and read post state
	if resp.Structured && resp.Success {
		st.step = "read_post_state"
		s.pacer.Sleep(rc.Renew.SettleDelay)
		if resp.NextRenewalDate != "" {
			window.AfterHours = s.hours.RemainingHours(resp.NextRenewalDate)
		} else {
			window.AfterHours = s.readHours(ctx, act, server.ID)
		}
	}

	// Step 10: classify
	st.outcome.Window = window
	st.outcome.Kind = Classify(resp, window, rc.Renew)
	st.outcome.PortalMessage = resp.Message
	if !resp.Structured {
		st.outcome.RawPreview = resp.Raw
		st.outcome.ParseError = resp.ParseError
	}
	return nil
}

func (s *Impl) checkEgress(ctx context.Context, rc models.RunContext, act portal.Actuator, st *runState) error {
	ip, err := act.EgressIP(ctx)
	if err != nil {
		if rc.Proxy.Configured() {
			return fmt.Errorf("%w: browser cannot reach the network through the proxy: %w", models.ErrProxy, err)
		}
		s.logger.Warn().Err(err).Msg("failed to determine egress IP")
		if st.outcome.EgressIP == "" {
			st.outcome.EgressIP = unknownEgressAddr
		}
		return nil
	}
	st.outcome.EgressIP = ip
	s.logger.Info().Str("egress_ip", ip).Msg("browser egress checked")
	return nil
}

// renew calls the renew action until a structured response arrives or the
// attempt budget is spent. It returns the last response the portal produced.
func (s *Impl) renew(ctx context.Context, rc models.RunContext, act portal.Actuator, serverID string) (*models.RenewResponse, int, error) {
	var last *models.RenewResponse
	var lastErr error

	attempt := 0
	for attempt < MaxRenewAttempts {
		attempt++
		resp, err := act.AttemptRenew(ctx, serverID)
		switch {
		case err != nil:
			lastErr = err
		case resp == nil:
			lastErr = fmt.Errorf("%w: empty renewal response", models.ErrTransport)
		default:
			last = resp
			if resp.Structured {
				s.logger.Info().
					Int("attempt", attempt).
					Bool("success", resp.Success).
					Str("message", resp.Message).
					Msg("renewal response received")
				return resp, attempt, nil
			}
			lastErr = fmt.Errorf("%w: %s", models.ErrMalformedResponse, resp.ParseError)
		}

		s.logger.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Int("max_attempts", MaxRenewAttempts).
			Msg("renewal attempt failed")

		if attempt < MaxRenewAttempts {
			if ctx.Err() != nil {
				break
			}
			s.pacer.Sleep(rc.Renew.RetryDelay)
		}
	}

	return last, attempt, lastErr
}

func (s *Impl) readStatus(ctx context.Context, act portal.Actuator, server models.ServerHandle) models.ServerStatus {
	status, err := act.ReadStatus(ctx, server.ID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read server status")
		if server.Status != "" {
			return server.Status
		}
		return models.StatusUnknown
	}
	return status
}

func (s *Impl) readHours(ctx context.Context, act portal.Actuator, serverID string) int {
	info, err := act.ReadRenewalInfo(ctx, serverID)
	if err != nil || info == nil {
		s.logger.Warn().Err(err).Msg("failed to read renewal info, assuming 0 hours")
		return 0
	}
	return s.hours.RemainingHours(info.NextRenewalDate)
}

func findServer(servers []models.ServerHandle, name string) (models.ServerHandle, bool) {
	for _, srv := range servers {
		if srv.Name == name {
			return srv, true
		}
	}
	return models.ServerHandle{}, false
}

// Package notifier renders renewal outcomes and delivers them to the operator.
package notifier

import (
	"context"
	"time"
	_ "time/tzdata"

	"github.com/fgeck/gorenew/internal/models"
	"github.com/fgeck/gorenew/internal/services/statusfile"
	"github.com/fgeck/gorenew/internal/services/telegram"
	"github.com/rs/zerolog"
)

// Service defines the interface for outcome notification.
// Send never fails; delivery problems are logged and reported.
type Service interface {
	Send(ctx context.Context, rc models.RunContext, outcome models.RenewalOutcome) models.NotificationReport
}

// Impl implements the notifier Service interface.
type Impl struct {
	telegramSvc   telegram.Service
	statusFileSvc statusfile.Service
	now           func() time.Time
	logger        zerolog.Logger
}

// New creates a new notifier.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		telegramSvc:   telegram.New(logger),
		statusFileSvc: statusfile.New(logger),
		now:           time.Now,
		logger:        logger,
	}
}

// NewWithServices creates a new notifier with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	telegramSvc telegram.Service,
	statusFileSvc statusfile.Service,
	now func() time.Time,
) *Impl {
	return &Impl{
		telegramSvc:   telegramSvc,
		statusFileSvc: statusFileSvc,
		now:           now,
		logger:        logger,
	}
}

// Send renders the outcome, posts it to Telegram if configured and mirrors it
// into the status file.
func (s *Impl) Send(ctx context.Context, rc models.RunContext, outcome models.RenewalOutcome) models.NotificationReport {
	var report models.NotificationReport

	msg := s.Preview(rc, outcome)
	text := msg.HTML()

	s.logger.Info().
		Str("kind", string(outcome.Kind)).
		Str("server", outcome.ServerName).
		Msg("dispatching notification")

	if rc.Telegram != nil {
		result, err := s.telegramSvc.SendMessage(ctx, *rc.Telegram, text)
		switch {
		case err != nil:
			s.logger.Error().Err(err).Msg("failed to send Telegram notification")
		case result.Error != nil:
			s.logger.Error().Err(result.Error).Msg("failed to send Telegram notification")
		default:
			report.TelegramSent = result.MessageSent
		}
	} else {
		s.logger.Warn().Msg("Telegram not configured, skipping delivery")
	}

	if rc.StatusFile.Enabled {
		heading := "Renewal status"
		if rc.Notify.TitlePrefix != "" {
			heading = rc.Notify.TitlePrefix + " renewal status"
		}
		result, err := s.statusFileSvc.Write(ctx, rc.StatusFile, statusfile.Document{
			Heading:   heading,
			Body:      text,
			UpdatedAt: msg.Timestamp,
		})
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Msg("failed to write status file")
		case result.Error != nil:
			s.logger.Warn().Err(result.Error).Str("path", result.Path).Msg("failed to write status file")
		default:
			report.StatusWritten = result.Written
		}
	}

	return report
}

// Preview renders the outcome the way Send would, without delivering it.
func (s *Impl) Preview(rc models.RunContext, outcome models.RenewalOutcome) Message {
	return Render(outcome, rc.Notify.TitlePrefix, s.now(), s.location(rc.Notify.Timezone))
}

func (s *Impl) location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		s.logger.Warn().Err(err).Str("timezone", name).Msg("unknown timezone, using UTC")
		return time.UTC
	}
	return loc
}

// Package portal drives the hosting portal on behalf of the renewal runner.
//
// The runner only sees the Actuator interface. ChromeLauncher backs it with a
// real headless browser; ScriptedLauncher replays a YAML scenario.
package portal

import (
	"context"

	"github.com/fgeck/gorenew/internal/models"
)

// Actuator is one live session against the portal. Every operation may fail
// with a transport or timeout error.
type Actuator interface {
	// EgressIP reports the public address the session is seen from.
	EgressIP(ctx context.Context) (string, error)
	Login(ctx context.Context, creds models.Credentials) error
	ListServers(ctx context.Context) ([]models.ServerHandle, error)
	ReadStatus(ctx context.Context, serverID string) (models.ServerStatus, error)
	ReadRenewalInfo(ctx context.Context, serverID string) (*models.RenewalInfo, error)
	ReadRenewalControlLabel(ctx context.Context, serverID string) (string, error)
	// AttemptRenew returns a non-nil response whenever the portal answered,
	// including unparseable bodies. A nil response comes with an error.
	AttemptRenew(ctx context.Context, serverID string) (*models.RenewResponse, error)
	// TriggerStart is best effort.
	TriggerStart(ctx context.Context, serverID string) error
	// Location returns the current page URL, or "" if unknown.
	Location(ctx context.Context) string
	Close() error
}

// Launcher opens portal sessions.
type Launcher interface {
	Launch(ctx context.Context, rc models.RunContext) (Actuator, error)
}

package models

import "time"

// OutcomeKind is the terminal classification of a run.
type OutcomeKind string

// Outcome kinds.
const (
	OutcomeCooldown OutcomeKind = "cooldown"
	OutcomeSuccess  OutcomeKind = "success"
	OutcomeMaxedOut OutcomeKind = "maxed_out"
	OutcomeNoEffect OutcomeKind = "no_effect"
	OutcomeError    OutcomeKind = "error"
)

// RenewalOutcome is the single result of a run and the sole input to the notifier.
type RenewalOutcome struct {
	Kind       OutcomeKind
	ServerName string
	ServerID   string

	Status        StatusDisplay
	ServerStarted bool // a start action was triggered during the run

	Window        RenewalWindow
	PortalMessage string
	RawPreview    string // response preview when the body could not be used
	ParseError    string

	EgressIP  string
	ProxyMode string // "direct" or the proxy host

	// Error info (if failed).
	ErrorKind   string
	ErrorDetail string
	FailedStep  string
	Location    string // last known page location

	StartTime time.Time
	Duration  time.Duration
}

// Failed reports whether the run ended in an error.
func (o RenewalOutcome) Failed() bool {
	return o.Kind == OutcomeError
}

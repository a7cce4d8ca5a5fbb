package models

import "time"

// RenewalInfo is the portal's renewal-contract data for a server.
type RenewalInfo struct {
	NextRenewalDate string // ISO-8601, may be empty
}

// RenewResponse is what a single renewal attempt returned.
type RenewResponse struct {
	HTTPStatus      int
	Structured      bool   // body parsed as JSON
	Success         bool   // business success flag from the body
	Message         string // free-text portal message
	NextRenewalDate string
	Raw             string // body preview for diagnosis
	ParseError      string
}

// RenewalWindow tracks the remaining hours around a renewal attempt.
// AfterHours equals BeforeHours until an attempt has completed.
type RenewalWindow struct {
	BeforeHours  int
	AfterHours   int
	CooldownText string         // raw or extracted wait text, empty when not on cooldown
	Cooldown     *time.Duration // parsed wait, nil if absent or not parseable
}

// OnCooldown reports whether the renewal control is currently disallowed.
func (w RenewalWindow) OnCooldown() bool {
	return w.CooldownText != ""
}

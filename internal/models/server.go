package models

import "strings"

// ServerStatus is the lifecycle status reported by the portal.
type ServerStatus string

// Known server statuses.
const (
	StatusRunning   ServerStatus = "running"
	StatusStarting  ServerStatus = "starting"
	StatusStopped   ServerStatus = "stopped"
	StatusOffline   ServerStatus = "offline"
	StatusSuspended ServerStatus = "suspended"
	StatusUnknown   ServerStatus = "unknown"
)

// ParseServerStatus normalises a raw portal status string.
// Unrecognised values are kept verbatim so they can still be displayed.
func ParseServerStatus(raw string) ServerStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return StatusUnknown
	}
	return ServerStatus(s)
}

// NeedsStart reports whether the server is down and a start may be triggered.
func (s ServerStatus) NeedsStart() bool {
	return s == StatusStopped || s == StatusOffline
}

// StatusDisplay is the icon and label shown for a status.
type StatusDisplay struct {
	Icon  string
	Label string
}

func (d StatusDisplay) String() string {
	return d.Icon + " " + d.Label
}

var statusTable = map[ServerStatus]StatusDisplay{
	StatusRunning:   {Icon: "🟢", Label: "Running"},
	StatusStarting:  {Icon: "🟡", Label: "Starting"},
	StatusStopped:   {Icon: "🔴", Label: "Stopped"},
	StatusOffline:   {Icon: "⚪", Label: "Offline"},
	StatusSuspended: {Icon: "🚫", Label: "Suspended"},
}

// Display maps a status to its icon and label.
func (s ServerStatus) Display() StatusDisplay {
	if d, ok := statusTable[s]; ok {
		return d
	}
	if s == "" || s == StatusUnknown {
		return StatusDisplay{Icon: "❓", Label: "Unknown"}
	}
	return StatusDisplay{Icon: "❓", Label: string(s)}
}

// ServerHandle identifies the target server for the duration of a run.
type ServerHandle struct {
	ID     string
	Name   string
	Status ServerStatus
}

package runner

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fgeck/gorenew/internal/models"
)

// Classify decides the terminal outcome of an attempted renewal. Precedence:
// no response at all, unparseable body, a real increase, the limit heuristic,
// then no effect.
func Classify(resp *models.RenewResponse, window models.RenewalWindow, policy models.RenewPolicy) models.OutcomeKind {
	switch {
	case resp == nil:
		return models.OutcomeError
	case !resp.Structured:
		return models.OutcomeNoEffect
	case resp.Success && window.AfterHours > window.BeforeHours:
		return models.OutcomeSuccess
	case containsAny(resp.Message, policy.LimitMarkers),
		policy.MaxHoursCeiling > 0 && window.BeforeHours > policy.MaxHoursCeiling:
		return models.OutcomeMaxedOut
	default:
		return models.OutcomeNoEffect
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Cooldown is the wait condition read from the renewal control.
type Cooldown struct {
	Text     string         // extracted "45 minutes", or the raw label
	Duration *time.Duration // nil when the unit is not recognised
}

// ParseCooldown reports whether label carries the wait marker and extracts the
// remaining wait.
func ParseCooldown(label, marker string) (Cooldown, bool) {
	label = strings.TrimSpace(label)
	if marker == "" || !strings.Contains(label, marker) {
		return Cooldown{}, false
	}

	m := cooldownPattern(marker).FindStringSubmatch(label)
	if m == nil {
		return Cooldown{Text: label}, true
	}

	c := Cooldown{Text: m[1] + " " + m[2]}
	if d, ok := waitDuration(m[1], m[2]); ok {
		c.Duration = &d
	}
	return c, true
}

// Compiled wait patterns keyed by marker.
var cooldownPatterns sync.Map

func cooldownPattern(marker string) *regexp.Regexp {
	if re, ok := cooldownPatterns.Load(marker); ok {
		return re.(*regexp.Regexp)
	}
	re, _ := cooldownPatterns.LoadOrStore(marker, regexp.MustCompile(regexp.QuoteMeta(marker)+`\s+(\d+)\s+(\pL+)`))
	return re.(*regexp.Regexp)
}

var waitUnits = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
	"segundo": time.Second, "segundos": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"minuto": time.Minute, "minutos": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"hora": time.Hour, "horas": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"día": 24 * time.Hour, "días": 24 * time.Hour, "dia": 24 * time.Hour, "dias": 24 * time.Hour,
}

func waitDuration(amount, unit string) (time.Duration, bool) {
	n, err := strconv.Atoi(amount)
	if err != nil {
		return 0, false
	}
	u, ok := waitUnits[strings.ToLower(unit)]
	if !ok {
		return 0, false
	}
	return time.Duration(n) * u, true
}

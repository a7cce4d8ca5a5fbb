package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fgeck/gorenew/internal/models"
	"gopkg.in/yaml.v3"
)

// Scenario describes what a scripted portal answers. Timestamps may be
// absolute ISO-8601 values or offsets from load time such as "+48h".
type Scenario struct {
	EgressIP        string            `yaml:"egress_ip"`
	EgressError     string            `yaml:"egress_error"`
	LaunchError     string            `yaml:"launch_error"`
	LoginError      string            `yaml:"login_error"`
	ListError       string            `yaml:"list_error"`
	Servers         []ScenarioServer  `yaml:"servers"`
	Status          string            `yaml:"status"`
	StatusAfter     string            `yaml:"status_after_start"`
	NextRenewalDate string            `yaml:"next_renewal_date"`
	ControlLabel    string            `yaml:"control_label"`
	Attempts        []ScenarioAttempt `yaml:"attempts"`
	StartError      string            `yaml:"start_error"`
	Location        string            `yaml:"location"`
}

// ScenarioServer is one entry of the scripted server listing.
type ScenarioServer struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Status string `yaml:"status"`
}

// ScenarioAttempt is the scripted result of one renewal attempt. Exactly one
// of TransportError, Raw or the structured fields is used.
type ScenarioAttempt struct {
	TransportError  string `yaml:"transport_error"`
	Raw             string `yaml:"raw"`
	HTTPStatus      int    `yaml:"http_status"`
	Success         bool   `yaml:"success"`
	Message         string `yaml:"message"`
	NextRenewalDate string `yaml:"next_renewal_date"`
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	return ParseScenario(data, time.Now())
}

// ParseScenario decodes a scenario and resolves relative timestamps against now.
func ParseScenario(data []byte, now time.Time) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}

	var err error
	if sc.NextRenewalDate, err = resolveTimestamp(sc.NextRenewalDate, now); err != nil {
		return nil, fmt.Errorf("next_renewal_date: %w", err)
	}
	for i := range sc.Attempts {
		if sc.Attempts[i].NextRenewalDate, err = resolveTimestamp(sc.Attempts[i].NextRenewalDate, now); err != nil {
			return nil, fmt.Errorf("attempts[%d].next_renewal_date: %w", i, err)
		}
	}
	if sc.EgressIP == "" {
		sc.EgressIP = "Unknown"
	}
	return &sc, nil
}

func resolveTimestamp(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "+") && !strings.HasPrefix(s, "-") {
		return s, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return "", fmt.Errorf("invalid offset %q: %w", s, err)
	}
	return now.Add(d).UTC().Format(time.RFC3339), nil
}

// ScriptedLauncher opens Scripted sessions over a fixed scenario.
type ScriptedLauncher struct {
	Scenario *Scenario

	mu       sync.Mutex
	sessions []*Scripted
}

// NewScriptedLauncher creates a launcher replaying sc.
func NewScriptedLauncher(sc *Scenario) *ScriptedLauncher {
	return &ScriptedLauncher{Scenario: sc}
}

// Launch returns a fresh scripted session.
func (l *ScriptedLauncher) Launch(ctx context.Context, rc models.RunContext) (Actuator, error) {
	if l.Scenario.LaunchError != "" {
		return nil, fmt.Errorf("%w: %s", models.ErrTransport, l.Scenario.LaunchError)
	}
	s := &Scripted{scenario: l.Scenario, baseURL: strings.TrimRight(rc.Portal.BaseURL, "/")}
	l.mu.Lock()
	l.sessions = append(l.sessions, s)
	l.mu.Unlock()
	return s, nil
}

// Sessions returns every session launched so far.
func (l *ScriptedLauncher) Sessions() []*Scripted {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Scripted(nil), l.sessions...)
}

// Scripted is an Actuator answering from a Scenario. It records the calls made.
type Scripted struct {
	scenario *Scenario
	baseURL  string

	mu           sync.Mutex
	started      bool
	location     string
	AttemptCalls int
	StartCalls   int
	Closed       bool
}

func (s *Scripted) visit(path string) {
	s.mu.Lock()
	s.location = s.baseURL + path
	s.mu.Unlock()
}

func scriptedErr(kind error, msg string) error {
	return fmt.Errorf("%w: %s", kind, msg)
}

func (s *Scripted) EgressIP(ctx context.Context) (string, error) {
	if s.scenario.EgressError != "" {
		return "", scriptedErr(models.ErrTransport, s.scenario.EgressError)
	}
	return s.scenario.EgressIP, nil
}

func (s *Scripted) Login(ctx context.Context, creds models.Credentials) error {
	s.visit(loginPath)
	if s.scenario.LoginError != "" {
		return scriptedErr(models.ErrAuthentication, s.scenario.LoginError)
	}
	s.visit(dashboardPath)
	return nil
}

func (s *Scripted) ListServers(ctx context.Context) ([]models.ServerHandle, error) {
	if s.scenario.ListError != "" {
		return nil, scriptedErr(models.ErrTransport, s.scenario.ListError)
	}
	servers := make([]models.ServerHandle, 0, len(s.scenario.Servers))
	for _, sv := range s.scenario.Servers {
		servers = append(servers, models.ServerHandle{
			ID:     sv.ID,
			Name:   sv.Name,
			Status: models.ParseServerStatus(sv.Status),
		})
	}
	return servers, nil
}

func (s *Scripted) ReadStatus(ctx context.Context, serverID string) (models.ServerStatus, error) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started && s.scenario.StatusAfter != "" {
		return models.ParseServerStatus(s.scenario.StatusAfter), nil
	}
	return models.ParseServerStatus(s.scenario.Status), nil
}

func (s *Scripted) ReadRenewalInfo(ctx context.Context, serverID string) (*models.RenewalInfo, error) {
	return &models.RenewalInfo{NextRenewalDate: s.scenario.NextRenewalDate}, nil
}

func (s *Scripted) ReadRenewalControlLabel(ctx context.Context, serverID string) (string, error) {
	s.visit(fmt.Sprintf(contractPage, serverID))
	return s.scenario.ControlLabel, nil
}

func (s *Scripted) AttemptRenew(ctx context.Context, serverID string) (*models.RenewResponse, error) {
	s.mu.Lock()
	n := s.AttemptCalls
	s.AttemptCalls++
	s.mu.Unlock()

	if len(s.scenario.Attempts) == 0 {
		return nil, scriptedErr(models.ErrTransport, "no scripted attempts")
	}
	if n >= len(s.scenario.Attempts) {
		n = len(s.scenario.Attempts) - 1
	}
	a := s.scenario.Attempts[n]

	if a.TransportError != "" {
		return nil, scriptedErr(models.ErrTransport, a.TransportError)
	}

	status := a.HTTPStatus
	if status == 0 {
		status = 200
	}
	if a.Raw != "" {
		return parseRenewResponse(status, a.Raw), nil
	}

	body, err := json.Marshal(map[string]any{
		"success": a.Success,
		"message": a.Message,
		"details": map[string]string{"nextRenewalDate": a.NextRenewalDate},
	})
	if err != nil {
		return nil, err
	}
	return parseRenewResponse(status, string(body)), nil
}

func (s *Scripted) TriggerStart(ctx context.Context, serverID string) error {
	s.mu.Lock()
	s.StartCalls++
	s.mu.Unlock()
	s.visit(dashboardPath)
	if s.scenario.StartError != "" {
		return errors.New(s.scenario.StartError)
	}
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

func (s *Scripted) Location(ctx context.Context) string {
	if s.scenario.Location != "" {
		return s.scenario.Location
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

func (s *Scripted) Close() error {
	s.mu.Lock()
	s.Closed = true
	s.mu.Unlock()
	return nil
}

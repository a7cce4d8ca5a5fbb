package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/fgeck/gorenew/internal/models"
	"github.com/fgeck/gorenew/internal/services/portal"
	"github.com/fgeck/gorenew/internal/timemath"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func inHours(h float64) string {
	return fixedNow.Add(time.Duration(h * float64(time.Hour))).Format(time.RFC3339)
}

// Mock implementations.
type mockActuator struct {
	egressFunc      func(ctx context.Context) (string, error)
	loginFunc       func(ctx context.Context, creds models.Credentials) error
	listFunc        func(ctx context.Context) ([]models.ServerHandle, error)
	statusFunc      func(ctx context.Context, serverID string) (models.ServerStatus, error)
	renewalInfoFunc func(ctx context.Context, serverID string) (*models.RenewalInfo, error)
	labelFunc       func(ctx context.Context, serverID string) (string, error)
	attemptFunc     func(ctx context.Context, serverID string, call int) (*models.RenewResponse, error)
	startFunc       func(ctx context.Context, serverID string) error
	locationFunc    func(ctx context.Context) string

	mu           sync.Mutex
	attemptCalls int
	startCalls   int
	infoCalls    int
	closeCalls   int
}

func (m *mockActuator) EgressIP(ctx context.Context) (string, error) {
	if m.egressFunc != nil {
		return m.egressFunc(ctx)
	}
	return "203.0.113.7", nil
}

func (m *mockActuator) Login(ctx context.Context, creds models.Credentials) error {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, creds)
	}
	return nil
}

func (m *mockActuator) ListServers(ctx context.Context) ([]models.ServerHandle, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return []models.ServerHandle{
		{ID: "100", Name: "other-server", Status: models.StatusRunning},
		{ID: "4711", Name: "my-free-server", Status: models.StatusRunning},
	}, nil
}

func (m *mockActuator) ReadStatus(ctx context.Context, serverID string) (models.ServerStatus, error) {
	if m.statusFunc != nil {
		return m.statusFunc(ctx, serverID)
	}
	return models.StatusRunning, nil
}

func (m *mockActuator) ReadRenewalInfo(ctx context.Context, serverID string) (*models.RenewalInfo, error) {
	m.mu.Lock()
	m.infoCalls++
	m.mu.Unlock()
	if m.renewalInfoFunc != nil {
		return m.renewalInfoFunc(ctx, serverID)
	}
	return &models.RenewalInfo{NextRenewalDate: inHours(40)}, nil
}

func (m *mockActuator) ReadRenewalControlLabel(ctx context.Context, serverID string) (string, error) {
	if m.labelFunc != nil {
		return m.labelFunc(ctx, serverID)
	}
	return "Renovar servidor", nil
}

func (m *mockActuator) AttemptRenew(ctx context.Context, serverID string) (*models.RenewResponse, error) {
	m.mu.Lock()
	m.attemptCalls++
	call := m.attemptCalls
	m.mu.Unlock()
	if m.attemptFunc != nil {
		return m.attemptFunc(ctx, serverID, call)
	}
	return &models.RenewResponse{
		HTTPStatus:      200,
		Structured:      true,
		Success:         true,
		Message:         "renewed",
		NextRenewalDate: inHours(48),
	}, nil
}

func (m *mockActuator) TriggerStart(ctx context.Context, serverID string) error {
	m.mu.Lock()
	m.startCalls++
	m.mu.Unlock()
	if m.startFunc != nil {
		return m.startFunc(ctx, serverID)
	}
	return nil
}

func (m *mockActuator) Location(ctx context.Context) string {
	if m.locationFunc != nil {
		return m.locationFunc(ctx)
	}
	return "https://greathost.es/login"
}

func (m *mockActuator) Close() error {
	m.mu.Lock()
	m.closeCalls++
	m.mu.Unlock()
	return nil
}

type mockLauncher struct {
	act         *mockActuator
	launchErr   error
	launchCalls int
}

func (m *mockLauncher) Launch(_ context.Context, _ models.RunContext) (portal.Actuator, error) {
	m.launchCalls++
	if m.launchErr != nil {
		return nil, m.launchErr
	}
	return m.act, nil
}

type mockProxyService struct {
	verifyFunc func(ctx context.Context, cfg models.ProxyConfig) (*models.ProxyResult, error)
}

func (m *mockProxyService) Verify(ctx context.Context, cfg models.ProxyConfig) (*models.ProxyResult, error) {
	if m.verifyFunc != nil {
		return m.verifyFunc(ctx, cfg)
	}
	return &models.ProxyResult{Configured: cfg.Configured()}, nil
}

type mockNotifierService struct {
	outcomes []models.RenewalOutcome
	ctxErr   error
}

func (m *mockNotifierService) Send(ctx context.Context, _ models.RunContext, outcome models.RenewalOutcome) models.NotificationReport {
	m.ctxErr = ctx.Err()
	m.outcomes = append(m.outcomes, outcome)
	return models.NotificationReport{TelegramSent: true}
}

type recordingPacer struct {
	sleeps []time.Duration
}

func (p *recordingPacer) Sleep(d time.Duration) { p.sleeps = append(p.sleeps, d) }

func (p *recordingPacer) Between(_, _ time.Duration) time.Duration { return 0 }

type fixture struct {
	act      *mockActuator
	launcher *mockLauncher
	proxy    *mockProxyService
	notifier *mockNotifierService
	pacer    *recordingPacer
	svc      *Impl
}

func newFixture() *fixture {
	act := &mockActuator{}
	f := &fixture{
		act:      act,
		launcher: &mockLauncher{act: act},
		proxy:    &mockProxyService{},
		notifier: &mockNotifierService{},
		pacer:    &recordingPacer{},
	}
	logger := zerolog.New(io.Discard)
	f.svc = NewWithServices(
		logger,
		f.proxy,
		f.launcher,
		f.notifier,
		f.pacer,
		timemath.NewWithClock(logger, func() time.Time { return fixedNow }),
	)
	return f
}

func testRunContext() models.RunContext {
	return models.RunContext{
		Portal: models.PortalConfig{
			BaseURL:       "https://greathost.es",
			Email:         "user@example.com",
			Password:      "secret",
			TargetName:    "my-free-server",
			AutoStart:     true,
			RecheckStatus: true,
		},
		Renew: models.RenewPolicy{
			RetryDelay:      10 * time.Second,
			SettleDelay:     15 * time.Second,
			MaxHoursCeiling: 108,
			LimitMarkers:    []string{"5 d", "5 días"},
			WaitMarker:      "Wait",
		},
	}
}

func TestRun_Success(t *testing.T) {
	f := newFixture()

	outcome, err := f.svc.Run(context.Background(), testRunContext())

	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, models.OutcomeSuccess, outcome.Kind)
	assert.Equal(t, 40, outcome.Window.BeforeHours)
	assert.Equal(t, 48, outcome.Window.AfterHours)
	assert.Equal(t, "4711", outcome.ServerID)
	assert.Equal(t, "my-free-server", outcome.ServerName)
	assert.Equal(t, "renewed", outcome.PortalMessage)
	assert.Equal(t, "203.0.113.7", outcome.EgressIP)
	assert.Equal(t, "direct", outcome.ProxyMode)
	assert.Equal(t, "🟢 Running", outcome.Status.String())
	assert.Empty(t, outcome.ErrorKind)

	assert.Equal(t, 1, f.act.attemptCalls)
	assert.Equal(t, 1, f.act.closeCalls)
	assert.Equal(t, []time.Duration{15 * time.Second}, f.pacer.sleeps, "only the settle delay")
	require.Len(t, f.notifier.outcomes, 1)
	assert.Equal(t, models.OutcomeSuccess, f.notifier.outcomes[0].Kind)
}

func TestRun_Cooldown(t *testing.T) {
	f := newFixture()
	f.act.labelFunc = func(_ context.Context, _ string) (string, error) {
		return "Wait 45 minutes", nil
	}

	outcome, err := f.svc.Run(context.Background(), testRunContext())

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCooldown, outcome.Kind)
	assert.Equal(t, "45 minutes", outcome.Window.CooldownText)
	require.NotNil(t, outcome.Window.Cooldown)
	assert.Equal(t, 45*time.Minute, *outcome.Window.Cooldown)
	assert.Equal(t, 40, outcome.Window.BeforeHours)
	assert.Equal(t, 0, f.act.attemptCalls, "no renewal attempt while on cooldown")
	assert.Equal(t, 1, f.act.closeCalls)
	assert.Len(t, f.notifier.outcomes, 1)
}

func TestRun_MaxedOutByCeiling(t *testing.T) {
	f := newFixture()
	f.act.renewalInfoFunc = func(_ context.Context, _ string) (*models.RenewalInfo, error) {
		return &models.RenewalInfo{NextRenewalDate: inHours(110.5)}, nil
	}
	f.act.attemptFunc = func(_ context.Context, _ string, _ int) (*models.RenewResponse, error) {
		return &models.RenewResponse{HTTPStatus: 200, Structured: true, Success: false, Message: "No se puede renovar"}, nil
	}

	outcome, err := f.svc.Run(context.Background(), testRunContext())

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeMaxedOut, outcome.Kind)
	assert.Equal(t, 110, outcome.Window.BeforeHours)
	assert.Equal(t, 110, outcome.Window.AfterHours)
	assert.Equal(t, 1, f.act.attemptCalls, "a structured refusal is not retried")
	assert.Empty(t, f.pacer.sleeps)
}

func TestRun_MaxedOutWithSuccessfulButFlatResponse(t *testing.T) {
	f := newFixture()
	f.act.renewalInfoFunc = func(_ context.Context, _ string) (*models.RenewalInfo, error) {
		return &models.RenewalInfo{NextRenewalDate: inHours(110)}, nil
	}
	f.act.attemptFunc = func(_ context.Context, _ string, _ int) (*models.RenewResponse, error) {
		return &models.RenewResponse{HTTPStatus: 200, Structured: true, Success: true, NextRenewalDate: inHours(0)}, nil
	}

	outcome, err := f.svc.Run(context.Background(), testRunContext())

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeMaxedOut, outcome.Kind)
	assert.Equal(t, 110, outcome.Window.BeforeHours)
	assert.Equal(t, 1, f.act.attemptCalls)
}

func TestRun_MaxedOutByMessage(t *testing.T) {
	f := newFixture()
	f.act.attemptFunc = func(_ context.Context, _ string, _ int) (*models.RenewResponse, error) {
		return &models.RenewResponse{HTTPStatus: 200, Structured: true, Message: "Ya tienes el máximo de 5 días"}, nil
	}

	outcome, err := f.svc.Run(context.Background(), testRunContext())

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeMaxedOut, outcome.Kind)
	assert.Equal(t, "Ya tienes el máximo de 5 días", outcome.PortalMessage)
}

func TestRun_TransientFailuresThenSuccess(t *testing.T) {
	f := newFixture()
	f.act.attemptFunc = func(_ context.Context, _ string, call int) (*models.RenewResponse, error) {
		if call < 3 {
			return nil, models.ErrTransport
		}
		return &models.RenewResponse{HTTPStatus: 200, Structured: true, Success: true, NextRenewalDate: inHours(48)}, nil
	}

	outcome, err := f.svc.Run(context.Background(), testRunContext())

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, outcome.Kind)
	assert.Equal(t, 3, f.act.attemptCalls)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second, 15 * time.Second}, f.pacer.sleeps)
}

func TestRun_RetryBudgetExhausted(t *testing.T) {
	f := newFixture()
	f.act.attemptFunc = func(_ context.Context, _ string, _ int) (*models.RenewResponse, error) {
		return nil, errors.New("net::ERR_CONNECTION_RESET")
	}

	outcome, err := f.svc.Run(context.Background(), testRunContext())

	require.Error(t, err)
	assert.Equal(t, models.OutcomeError, outcome.Kind)
	assert.Equal(t, MaxRenewAttempts, f.act.attemptCalls)
	assert.Equal(t, "renew", outcome.FailedStep)
	assert.Equal(t, "unexpected", outcome.ErrorKind)
	assert.Contains(t, outcome.ErrorDetail, "after 3 attempts")
	assert.Equal(t, "https://greathost.es/login", outcome.Location)
	assert.Equal(t, 1, f.act.closeCalls)
	assert.Len(t, f.notifier.outcomes, 1)
}

func TestRun_MalformedBodyIsNoEffect(t *testing.T) {
	f := newFixture()
	f.act.attemptFunc = func(_ context.Context, _ string, _ int) (*models.RenewResponse, error) {
		return &models.RenewResponse{
			HTTPStatus: 502,
			Raw:        "<html>Bad Gateway</html>",
			ParseError: "invalid character '<' looking for beginning of value",
		}, nil
	}

	outcome, err := f.svc.Run(context.Background(), testRunContext())

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNoEffect, outcome.Kind)
	assert.Equal(t, "<html>Bad Gateway</html>", outcome.RawPreview)
	assert.Contains(t, outcome.ParseError, "invalid character")
	assert.Equal(t, MaxRenewAttempts, f.act.attemptCalls)
	assert.Equal(t, 40, outcome.Window.AfterHours)
}

func TestRun_SuccessFallsBackToPostStateRead(t *testing.T) {
	f := newFixture()
	f.act.renewalInfoFunc = func(_ context.Context, _ string) (*models.RenewalInfo, error) {
		if f.act.infoCalls == 1 {
			return &models.RenewalInfo{NextRenewalDate: inHours(40)}, nil
		}
		return &models.RenewalInfo{NextRenewalDate: inHours(64)}, nil
	}
	f.act.attemptFunc = func(_ context.Context, _ string, _ int) (*models.RenewResponse, error) {
		return &models.RenewResponse{HTTPStatus: 200, Structured: true, Success: true}, nil
	}

	outcome, err := f.svc.Run(context.Background(), testRunContext())

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, outcome.Kind)
	assert.Equal(t, 64, outcome.Window.AfterHours)
	assert.Equal(t, 2, f.act.infoCalls)
}

func TestRun_SuccessWithoutIncreaseIsNoEffect(t *testing.T) {
	f := newFixture()
	f.act.attemptFunc = func(_ context.Context, _ string, _ int) (*models.RenewResponse, error) {
		return &models.RenewResponse{HTTPStatus: 200, Structured: true, Success: true, NextRenewalDate: inHours(40)}, nil
	}

	outcome, err := f.svc.Run(context.Background(), testRunContext())

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNoEffect, outcome.Kind)
}

func TestRun_TargetNotFound(t *testing.T) {
	f := newFixture()
	rc := testRunContext()
	rc.Portal.TargetName = "missing"

	outcome, err := f.svc.Run(context.Background(), rc)

	require.Error(t, err)
	assert.Equal(t, models.OutcomeError, outcome.Kind)
	assert.Equal(t, "configuration", outcome.ErrorKind)
	assert.Equal(t, "locate_server", outcome.FailedStep)
	assert.Contains(t, outcome.ErrorDetail, `"missing"`)
	assert.Equal(t, 0, f.act.attemptCalls)
	assert.Equal(t, 1, f.act.closeCalls)
	assert.Len(t, f.notifier.outcomes, 1)
}

func TestRun_LoginFailure(t *testing.T) {
	f := newFixture()
	f.act.loginFunc = func(_ context.Context, _ models.Credentials) error {
		return errors.New("dashboard never loaded")
	}

	outcome, err := f.svc.Run(context.Background(), testRunContext())

	require.Error(t, err)
	assert.Equal(t, "authentication", outcome.ErrorKind)
	assert.Equal(t, "login", outcome.FailedStep)
	assert.Equal(t, "https://greathost.es/login", outcome.Location)
	assert.Equal(t, 0, f.act.attemptCalls)
	assert.Equal(t, 1, f.act.closeCalls)
}

func TestRun_ProxyFailure(t *testing.T) {
	f := newFixture()
	f.proxy.verifyFunc = func(_ context.Context, _ models.ProxyConfig) (*models.ProxyResult, error) {
		return &models.ProxyResult{
			Configured: true,
			ProxyHost:  "127.0.0.1:1080",
			Error:      errors.Join(models.ErrProxy, errors.New("connection refused")),
		}, nil
	}
	rc := testRunContext()
	rc.Proxy.URL = "socks5://127.0.0.1:1080"

	outcome, err := f.svc.Run(context.Background(), rc)

	require.Error(t, err)
	assert.Equal(t, "proxy", outcome.ErrorKind)
	assert.Equal(t, "proxy_check", outcome.FailedStep)
	assert.Equal(t, 0, f.launcher.launchCalls)
	assert.Len(t, f.notifier.outcomes, 1)
}

func TestRun_ProxyModeAndEgress(t *testing.T) {
	f := newFixture()
	f.proxy.verifyFunc = func(_ context.Context, _ models.ProxyConfig) (*models.ProxyResult, error) {
		return &models.ProxyResult{Configured: true, ProxyHost: "proxy.example:1080", EgressIP: "198.51.100.1"}, nil
	}
	rc := testRunContext()
	rc.Proxy.URL = "socks5://proxy.example:1080"

	outcome, err := f.svc.Run(context.Background(), rc)

	require.NoError(t, err)
	assert.Equal(t, "proxy.example:1080", outcome.ProxyMode)
	assert.Equal(t, "203.0.113.7", outcome.EgressIP, "browser egress overrides the probe")
}

func TestRun_BrowserEgressFailure(t *testing.T) {
	t.Run("fatal with proxy", func(t *testing.T) {
		f := newFixture()
		f.act.egressFunc = func(_ context.Context) (string, error) { return "", errors.New("timeout") }
		rc := testRunContext()
		rc.Proxy.URL = "socks5://proxy.example:1080"

		outcome, err := f.svc.Run(context.Background(), rc)

		require.Error(t, err)
		assert.Equal(t, "proxy", outcome.ErrorKind)
		assert.Equal(t, "egress_check", outcome.FailedStep)
		assert.Equal(t, 1, f.act.closeCalls)
	})

	t.Run("tolerated without proxy", func(t *testing.T) {
		f := newFixture()
		f.act.egressFunc = func(_ context.Context) (string, error) { return "", errors.New("timeout") }

		outcome, err := f.svc.Run(context.Background(), testRunContext())

		require.NoError(t, err)
		assert.Equal(t, models.OutcomeSuccess, outcome.Kind)
		assert.Equal(t, "Unknown", outcome.EgressIP)
	})
}

func TestRun_LaunchFailure(t *testing.T) {
	f := newFixture()
	f.launcher.launchErr = errors.New("chrome not found")

	outcome, err := f.svc.Run(context.Background(), testRunContext())

	require.Error(t, err)
	assert.Equal(t, "launch", outcome.FailedStep)
	assert.Empty(t, outcome.Location)
	assert.Len(t, f.notifier.outcomes, 1)
}

func TestRun_StartsStoppedServer(t *testing.T) {
	f := newFixture()
	started := false
	f.act.statusFunc = func(_ context.Context, _ string) (models.ServerStatus, error) {
		if started {
			return models.StatusStarting, nil
		}
		return models.StatusStopped, nil
	}
	f.act.startFunc = func(_ context.Context, _ string) error {
		started = true
		return nil
	}

	outcome, err := f.svc.Run(context.Background(), testRunContext())

	require.NoError(t, err)
	assert.True(t, outcome.ServerStarted)
	assert.Equal(t, 1, f.act.startCalls)
	assert.Equal(t, "🟡 Starting", outcome.Status.String())
}

func TestRun_StartFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.act.statusFunc = func(_ context.Context, _ string) (models.ServerStatus, error) {
		return models.StatusOffline, nil
	}
	f.act.startFunc = func(_ context.Context, _ string) error {
		return errors.New("no start button")
	}

	outcome, err := f.svc.Run(context.Background(), testRunContext())

	require.NoError(t, err)
	assert.False(t, outcome.ServerStarted)
	assert.Equal(t, "⚪ Offline", outcome.Status.String())
	assert.Equal(t, models.OutcomeSuccess, outcome.Kind)
}

func TestRun_AutoStartDisabled(t *testing.T) {
	f := newFixture()
	f.act.statusFunc = func(_ context.Context, _ string) (models.ServerStatus, error) {
		return models.StatusStopped, nil
	}
	rc := testRunContext()
	rc.Portal.AutoStart = false

	outcome, err := f.svc.Run(context.Background(), rc)

	require.NoError(t, err)
	assert.Equal(t, 0, f.act.startCalls)
	assert.False(t, outcome.ServerStarted)
}

func TestRun_UnreadableStateIsNoData(t *testing.T) {
	f := newFixture()
	f.act.statusFunc = func(_ context.Context, _ string) (models.ServerStatus, error) {
		return "", errors.New("timeout")
	}
	f.act.renewalInfoFunc = func(_ context.Context, _ string) (*models.RenewalInfo, error) {
		return nil, errors.New("timeout")
	}
	f.act.labelFunc = func(_ context.Context, _ string) (string, error) {
		return "", errors.New("timeout")
	}

	outcome, err := f.svc.Run(context.Background(), testRunContext())

	require.NoError(t, err)
	assert.Equal(t, "🟢 Running", outcome.Status.String(), "falls back to the listing status")
	assert.Equal(t, 0, outcome.Window.BeforeHours)
	assert.Equal(t, models.OutcomeSuccess, outcome.Kind)
}

func TestRun_PanicBecomesErrorOutcome(t *testing.T) {
	f := newFixture()
	f.act.statusFunc = func(_ context.Context, _ string) (models.ServerStatus, error) {
		panic("boom")
	}

	outcome, err := f.svc.Run(context.Background(), testRunContext())

	require.Error(t, err)
	assert.Equal(t, models.OutcomeError, outcome.Kind)
	assert.Equal(t, "unexpected", outcome.ErrorKind)
	assert.Equal(t, "read_status", outcome.FailedStep)
	assert.Contains(t, outcome.ErrorDetail, "boom")
	assert.Equal(t, 1, f.act.closeCalls)
	assert.Len(t, f.notifier.outcomes, 1)
}

func TestRun_CancelledContextStillNotifies(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := f.svc.Run(ctx, testRunContext())

	require.Error(t, err)
	assert.Equal(t, models.OutcomeError, outcome.Kind)
	assert.Equal(t, "startup", outcome.FailedStep)
	require.Len(t, f.notifier.outcomes, 1)
	assert.NoError(t, f.notifier.ctxErr, "notification gets its own context")
}

func TestRun_CancelledMidRunKeepsLocation(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.act.loginFunc = func(ctx context.Context, _ models.Credentials) error {
		cancel()
		return ctx.Err()
	}
	var locationCtxErr error
	f.act.locationFunc = func(ctx context.Context) string {
		locationCtxErr = ctx.Err()
		if locationCtxErr != nil {
			return ""
		}
		return "https://greathost.es/dashboard"
	}

	outcome, err := f.svc.Run(ctx, testRunContext())

	require.Error(t, err)
	assert.Equal(t, "login", outcome.FailedStep)
	assert.NoError(t, locationCtxErr)
	assert.Equal(t, "https://greathost.es/dashboard", outcome.Location)
	assert.Equal(t, 1, f.act.closeCalls)
	require.Len(t, f.notifier.outcomes, 1)
	assert.Equal(t, "https://greathost.es/dashboard", f.notifier.outcomes[0].Location)
}

func TestAbort(t *testing.T) {
	tests := []struct {
		name     string
		cause    error
		wantKind string
	}{
		{
			name:     "configuration",
			cause:    fmt.Errorf("%w: portal.password is required", models.ErrConfiguration),
			wantKind: "configuration",
		},
		{
			name:     "proxy url",
			cause:    fmt.Errorf("%w: proxy.url: %w", models.ErrConfiguration, models.ErrProxy),
			wantKind: "proxy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			rc := models.RunContext{Portal: models.PortalConfig{TargetName: "my-free-server"}}

			outcome, err := f.svc.Abort(context.Background(), rc, "config", tt.cause)

			require.Error(t, err)
			assert.Contains(t, err.Error(), "renewal failed at config")
			assert.Equal(t, models.OutcomeError, outcome.Kind)
			assert.Equal(t, tt.wantKind, outcome.ErrorKind)
			assert.Equal(t, "config", outcome.FailedStep)
			assert.Equal(t, "my-free-server", outcome.ServerName)
			require.Len(t, f.notifier.outcomes, 1)
			assert.Equal(t, *outcome, f.notifier.outcomes[0])
			assert.Zero(t, f.launcher.launchCalls)
		})
	}
}

func TestRun_LongErrorDetailIsTruncated(t *testing.T) {
	f := newFixture()
	long := make([]rune, 500)
	for i := range long {
		long[i] = 'x'
	}
	f.act.loginFunc = func(_ context.Context, _ models.Credentials) error {
		return errors.New(string(long))
	}

	outcome, err := f.svc.Run(context.Background(), testRunContext())

	require.Error(t, err)
	assert.Len(t, []rune(outcome.ErrorDetail), maxErrorDetail)
}

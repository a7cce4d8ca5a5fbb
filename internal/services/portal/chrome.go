package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/fgeck/gorenew/internal/models"
	"github.com/fgeck/gorenew/internal/services/jitter"
	"github.com/fgeck/gorenew/internal/services/proxy"
	"github.com/rs/zerolog"
)

const (
	pollInterval   = 500 * time.Millisecond
	renewButton    = "#renew-free-server-btn"
	startButton    = "button.btn-start"
	startSettle    = 3 * time.Second
	locationBudget = 3 * time.Second
)

const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', { get: () => false });`

// fetchScript runs a same-origin fetch inside the page so the request carries
// the session cookies.
const fetchScript = `(async () => {
  try {
    const r = await fetch(%s, {method: %s, credentials: "same-origin", headers: {"Accept": "application/json"}});
    return {status: r.status, text: await r.text(), error: ""};
  } catch (e) {
    return {status: 0, text: "", error: String(e)};
  }
})()`

type fetchResult struct {
	Status int    `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

// ChromeLauncher starts headless Chrome sessions via chromedp.
type ChromeLauncher struct {
	pacer  jitter.Service
	logger zerolog.Logger
}

// NewChromeLauncher creates a launcher that paces input through pacer.
func NewChromeLauncher(logger zerolog.Logger, pacer jitter.Service) *ChromeLauncher {
	return &ChromeLauncher{pacer: pacer, logger: logger}
}

// Launch starts a browser configured for rc and returns the session.
func (l *ChromeLauncher) Launch(ctx context.Context, rc models.RunContext) (Actuator, error) {
	opts, err := l.allocatorOptions(rc)
	if err != nil {
		return nil, err
	}

	// The browser lives until Close so a cancelled run can still be inspected.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			l.logger.Debug().Msgf("chromedp: "+format, args...)
		}),
	)

	stop := context.AfterFunc(ctx, browserCancel)
	err = chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
		return err
	}))
	if !stop() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: failed to start browser: %w", models.ErrTransport, err)
	}

	l.logger.Info().
		Bool("headless", rc.Browser.Headless).
		Bool("proxy", rc.Proxy.Configured()).
		Msg("browser session started")

	return &chromeSession{
		ctx:           browserCtx,
		cancelBrowser: browserCancel,
		cancelAlloc:   allocCancel,
		baseURL:       strings.TrimRight(rc.Portal.BaseURL, "/"),
		probeURL:      rc.Proxy.ProbeURL,
		timeout:       rc.Browser.WaitTimeout,
		timing:        rc.Timing,
		pacer:         l.pacer,
		logger:        l.logger,
	}, nil
}

func (l *ChromeLauncher) allocatorOptions(rc models.RunContext) ([]chromedp.ExecAllocatorOption, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", rc.Browser.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", rc.Browser.Locale),
		chromedp.NoSandbox,
		chromedp.WindowSize(rc.Browser.WindowWidth, rc.Browser.WindowHeight),
	)
	if rc.Browser.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(rc.Browser.UserAgent))
	}
	if rc.Browser.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(rc.Browser.ExecPath))
	}

	if rc.Proxy.Configured() {
		server, err := ProxyServerArg(rc.Proxy.URL)
		if err != nil {
			return nil, err
		}
		if u, _ := proxy.ParseURL(rc.Proxy.URL); u != nil && u.User != nil {
			l.logger.Warn().Msg("browser proxy credentials are not supported by Chrome and are ignored")
		}
		opts = append(opts, chromedp.ProxyServer(server))
	}

	return opts, nil
}

// ProxyServerArg converts a proxy URL into Chrome's --proxy-server value.
func ProxyServerArg(raw string) (string, error) {
	u, err := proxy.ParseURL(raw)
	if err != nil {
		return "", err
	}
	scheme := u.Scheme
	if scheme == "socks5h" {
		scheme = "socks5"
	}
	return scheme + "://" + u.Host, nil
}

type chromeSession struct {
	ctx           context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	baseURL       string
	probeURL      string
	timeout       time.Duration
	timing        models.TimingConfig
	pacer         jitter.Service
	logger        zerolog.Logger
}

// run executes actions on the tab, bounded by the wait timeout and by ctx.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(tctx, actions...); err != nil {
		return fmt.Errorf("%w: %w", models.ErrTransport, err)
	}
	return nil
}

func (s *chromeSession) fetch(ctx context.Context, method, target string) (*fetchResult, error) {
	u, _ := json.Marshal(target)
	m, _ := json.Marshal(method)
	script := fmt.Sprintf(fetchScript, u, m)

	s.logger.Debug().Str("method", method).Str("url", target).Msg("portal API call")

	var res fetchResult
	err := s.run(ctx, chromedp.Evaluate(script, &res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		return nil, err
	}
	if res.Error != "" {
		return nil, fmt.Errorf("%w: %s %s: %s", models.ErrTransport, method, target, res.Error)
	}
	return &res, nil
}

func (s *chromeSession) getJSON(ctx context.Context, target string) ([]byte, error) {
	res, err := s.fetch(ctx, http.MethodGet, target)
	if err != nil {
		return nil, err
	}
	if res.Status < 200 || res.Status >= 300 {
		return nil, fmt.Errorf("%w: GET %s returned status %d", models.ErrTransport, target, res.Status)
	}
	return []byte(res.Text), nil
}

func (s *chromeSession) EgressIP(ctx context.Context) (string, error) {
	var body string
	err := s.run(ctx,
		chromedp.Navigate(s.probeURL),
		chromedp.Text("body", &body, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	return proxy.ExtractIP([]byte(body)), nil
}

func (s *chromeSession) Login(ctx context.Context, creds models.Credentials) error {
	s.logger.Info().Str("email", creds.MaskedEmail()).Msg("logging in")

	err := s.run(ctx,
		chromedp.Navigate(s.baseURL+loginPath),
		chromedp.WaitVisible(`input[name="email"]`, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("%w: login page: %w", models.ErrAuthentication, err)
	}

	if err := s.typeText(ctx, `input[name="email"]`, creds.Email); err != nil {
		return fmt.Errorf("%w: typing email: %w", models.ErrAuthentication, err)
	}
	s.pacer.Between(s.timing.ActionDelayMin, s.timing.ActionDelayMax)
	if err := s.typeText(ctx, `input[name="password"]`, creds.Password); err != nil {
		return fmt.Errorf("%w: typing password: %w", models.ErrAuthentication, err)
	}
	s.pacer.Between(s.timing.ActionDelayMin, s.timing.ActionDelayMax)

	if err := s.run(ctx, chromedp.Click(`button[type="submit"]`, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%w: submit: %w", models.ErrAuthentication, err)
	}

	if err := s.waitForLocation(ctx, dashboardPath); err != nil {
		return fmt.Errorf("%w: %w", models.ErrAuthentication, err)
	}
	return nil
}

// typeText sends text one character at a time with randomized pauses.
func (s *chromeSession) typeText(ctx context.Context, sel, text string) error {
	if err := s.run(ctx, chromedp.Focus(sel, chromedp.ByQuery)); err != nil {
		return err
	}
	for _, r := range text {
		if err := s.run(ctx, chromedp.SendKeys(sel, string(r), chromedp.ByQuery)); err != nil {
			return err
		}
		s.pacer.Between(s.timing.KeystrokeDelayMin, s.timing.KeystrokeDelayMax)
	}
	return nil
}

func (s *chromeSession) waitForLocation(ctx context.Context, fragment string) error {
	deadline := time.Now().Add(s.timeout)
	var last string
	for {
		var loc string
		if err := s.run(ctx, chromedp.Location(&loc)); err == nil {
			last = loc
			if strings.Contains(loc, fragment) {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for %s (at %s)", fragment, last)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		time.Sleep(pollInterval)
	}
}

func (s *chromeSession) ListServers(ctx context.Context) ([]models.ServerHandle, error) {
	body, err := s.getJSON(ctx, s.baseURL+serversPath)
	if err != nil {
		return nil, err
	}
	return parseServers(body)
}

func (s *chromeSession) ReadStatus(ctx context.Context, serverID string) (models.ServerStatus, error) {
	body, err := s.getJSON(ctx, endpoint(s.baseURL, informationAPI, serverID))
	if err != nil {
		return models.StatusUnknown, err
	}
	return parseStatus(body)
}

func (s *chromeSession) ReadRenewalInfo(ctx context.Context, serverID string) (*models.RenewalInfo, error) {
	body, err := s.getJSON(ctx, endpoint(s.baseURL, contractAPI, serverID))
	if err != nil {
		return nil, err
	}
	return parseRenewalInfo(body)
}

func (s *chromeSession) ReadRenewalControlLabel(ctx context.Context, serverID string) (string, error) {
	err := s.run(ctx,
		chromedp.Navigate(endpoint(s.baseURL, contractPage, serverID)),
		chromedp.WaitVisible(renewButton, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}

	deadline := time.Now().Add(s.timeout)
	for {
		var text string
		if err := s.run(ctx, chromedp.Text(renewButton, &text, chromedp.ByQuery)); err != nil {
			return "", err
		}
		if text = strings.TrimSpace(text); text != "" {
			return text, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("%w: renewal control stayed empty", models.ErrTransport)
		}
		time.Sleep(pollInterval)
	}
}

func (s *chromeSession) AttemptRenew(ctx context.Context, serverID string) (*models.RenewResponse, error) {
	s.pacer.Between(s.timing.ActionDelayMin, s.timing.ActionDelayMax)

	res, err := s.fetch(ctx, http.MethodPost, endpoint(s.baseURL, renewAPI, serverID))
	if err != nil {
		return nil, err
	}
	return parseRenewResponse(res.Status, res.Text), nil
}

func (s *chromeSession) TriggerStart(ctx context.Context, serverID string) error {
	if err := s.run(ctx, chromedp.Navigate(s.baseURL+dashboardPath)); err != nil {
		return err
	}

	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(startButton, &nodes, chromedp.AtLeast(0), chromedp.ByQuery)); err != nil {
		return err
	}
	if len(nodes) == 0 {
		return errors.New("start control not found")
	}

	s.pacer.Between(s.timing.ActionDelayMin, s.timing.ActionDelayMax)
	if err := s.run(ctx,
		chromedp.ScrollIntoView(startButton, chromedp.ByQuery),
		chromedp.Click(startButton, chromedp.ByQuery, chromedp.NodeVisible),
	); err != nil {
		return err
	}

	s.logger.Info().Str("server_id", serverID).Msg("start action triggered")
	s.pacer.Sleep(startSettle)
	return nil
}

func (s *chromeSession) Location(ctx context.Context) string {
	if s.ctx.Err() != nil {
		return ""
	}
	tctx, cancel := context.WithTimeout(s.ctx, locationBudget)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var loc string
	if err := chromedp.Run(tctx, chromedp.Location(&loc)); err != nil {
		return ""
	}
	return redactLocation(loc)
}

// redactLocation drops query strings, which may carry tokens.
func redactLocation(loc string) string {
	u, err := url.Parse(loc)
	if err != nil {
		return loc
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func (s *chromeSession) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancelBrowser()
	s.cancelAlloc()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

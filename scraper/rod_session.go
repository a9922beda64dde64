package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"nba-stats-scraper/models"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
)

// Selectors locate the interactive elements of a stats page
type Selectors struct {
	Table          string
	FilterLabel    string
	CookieButton   string
	AdvancedToggle string
	SubmitButton   string
	SubmitText     string
}

// Options configure a RodSession
type Options struct {
	Headless        bool
	UserAgent       string
	PageLoadTimeout time.Duration
	ProbeURL        string
	ProbeTimeout    time.Duration
	Selectors       Selectors
}

// RodSession implements the Session interface using rod (headless browser)
type RodSession struct {
	opts        Options
	proxy       string
	browser     *rod.Browser
	page        *rod.Page
	userDataDir string
	cookiesDone bool
}

// NewRodSession launches a browser, routed through proxy when it is not empty
func NewRodSession(opts Options, proxy string) (*RodSession, error) {
	// Each session gets its own profile so shards can run side by side
	baseDir := os.Getenv("BOT_DATA_DIR")
	if baseDir == "" {
		baseDir = "/tmp/nba-data"
	}
	userDataDir := filepath.Join(baseDir, uuid.NewString())
	if err := os.MkdirAll(userDataDir, 0755); err != nil {
		log.Printf("Warning: Failed to create bot data directory %s: %v\n", userDataDir, err)
		userDataDir = ""
	}

	l := newLauncher(opts, userDataDir)
	if proxy != "" {
		l = l.Proxy(proxy)
	}

	browserURL, err := l.Launch()
	if err != nil {
		removeProfile(userDataDir)
		return nil, fmt.Errorf("%w: failed to launch browser: %v\n\nNote: On Linux, you may need to install Chromium dependencies:\n  apt-get update && apt-get install -y chromium chromium-sandbox || yum install -y chromium", ErrSessionUnavailable, err)
	}

	browser := rod.New().ControlURL(browserURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		removeProfile(userDataDir)
		return nil, fmt.Errorf("%w: failed to connect to browser: %v", ErrSessionUnavailable, err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		browser.Close()
		removeProfile(userDataDir)
		return nil, fmt.Errorf("%w: failed to open page: %v", ErrSessionUnavailable, err)
	}

	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			log.Printf("Warning: Failed to set user agent: %v\n", err)
		}
	}

	return &RodSession{
		opts:        opts,
		proxy:       proxy,
		browser:     browser,
		page:        page,
		userDataDir: userDataDir,
	}, nil
}

// Dial launches a session through endpoint and probes it with ProbeURL.
// It matches the dial function expected by the proxy pool.
func (o Options) Dial(ctx context.Context, endpoint string) (*RodSession, error) {
	session, err := NewRodSession(o, endpoint)
	if err != nil {
		return nil, err
	}
	if o.ProbeURL == "" {
		return session, nil
	}

	probeCtx := ctx
	if o.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, o.ProbeTimeout)
		defer cancel()
	}
	if err := session.page.Context(probeCtx).Navigate(o.ProbeURL); err != nil {
		session.Close()
		return nil, fmt.Errorf("%w: probe of %s via %s failed: %v", ErrSessionUnavailable, o.ProbeURL, endpoint, err)
	}
	log.Printf("Proxy %s passed probe of %s\n", session.Proxy(), o.ProbeURL)
	return session, nil
}

func newLauncher(opts Options, userDataDir string) *launcher.Launcher {
	l := launcher.New().
		Headless(opts.Headless).
		Set("disable-blink-features", "AutomationControlled").
		NoSandbox(true).
		Leakless(false).
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-background-timer-throttling").
		Set("disable-renderer-backgrounding").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-breakpad").
		Set("disable-default-apps").
		Set("disable-hang-monitor").
		Set("disable-popup-blocking").
		Set("disable-sync").
		Set("disable-translate").
		Set("mute-audio").
		Set("no-zygote").
		Set("use-mock-keychain").
		Set("disable-features", "TranslateUI,BlinkGenPropertyTrees")
	if userDataDir != "" {
		l = l.UserDataDir(userDataDir)
	}

	// Prefer a system Chrome/Chromium, otherwise rod downloads one
	paths := []string{
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/snap/bin/chromium",
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
	}
	if username := os.Getenv("USERNAME"); username != "" {
		paths = append(paths, `C:\Users\`+username+`\AppData\Local\Google\Chrome\Application\chrome.exe`)
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			l = l.Bin(path)
			break
		}
	}
	return l
}

// Proxy returns the endpoint the session is routed through, if any
func (rs *RodSession) Proxy() string {
	return rs.proxy
}

// Navigate opens url and waits for the page to load
func (rs *RodSession) Navigate(ctx context.Context, url string) error {
	page := rs.page.Context(ctx)
	if rs.opts.PageLoadTimeout > 0 {
		page = page.Timeout(rs.opts.PageLoadTimeout)
	}
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}
	return nil
}

// AcceptCookies dismisses the consent banner. The banner only shows on the
// first page of a browser session.
func (rs *RodSession) AcceptCookies(ctx context.Context) error {
	if rs.cookiesDone {
		return nil
	}
	if err := rs.click(ctx, rs.opts.Selectors.CookieButton, ""); err != nil {
		return fmt.Errorf("failed to accept cookies: %w", err)
	}
	rs.cookiesDone = true
	return nil
}

// OpenAdvancedFilters expands the panel holding the conference and position filters
func (rs *RodSession) OpenAdvancedFilters(ctx context.Context) error {
	if err := rs.click(ctx, rs.opts.Selectors.AdvancedToggle, ""); err != nil {
		return fmt.Errorf("failed to open advanced filters: %w", err)
	}
	return nil
}

// SelectOption implements the Driver interface
func (rs *RodSession) SelectOption(ctx context.Context, axis models.Axis, value string) error {
	page := rs.page.Context(ctx).Timeout(rs.elementTimeout())

	labels, err := page.Elements(rs.opts.Selectors.FilterLabel)
	if err != nil {
		return fmt.Errorf("failed to find filters: %w", err)
	}
	for _, label := range labels {
		p, err := label.Element("p")
		if err != nil {
			continue
		}
		text, err := p.Text()
		if err != nil || !strings.EqualFold(strings.TrimSpace(text), string(axis)) {
			continue
		}
		sel, err := label.Element("select")
		if err != nil {
			return fmt.Errorf("filter %s has no dropdown: %w", axis, err)
		}
		exact := "^\\s*" + regexp.QuoteMeta(value) + "\\s*$"
		if err := sel.Select([]string{exact}, true, rod.SelectorTypeRegex); err != nil {
			return fmt.Errorf("failed to select %s=%s: %w", axis, value, err)
		}
		return nil
	}
	return fmt.Errorf("filter %s not found on page", axis)
}

// Submit implements the Driver interface
func (rs *RodSession) Submit(ctx context.Context) error {
	if err := rs.click(ctx, rs.opts.Selectors.SubmitButton, rs.opts.Selectors.SubmitText); err != nil {
		return fmt.Errorf("failed to submit filters: %w", err)
	}
	return nil
}

// WaitForTableVisible implements the Driver interface
func (rs *RodSession) WaitForTableVisible(ctx context.Context, timeout time.Duration) error {
	page := rs.page.Context(ctx).Timeout(timeout)

	el, err := page.Element(rs.opts.Selectors.Table)
	if err == nil {
		err = el.WaitVisible()
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s not visible after %s: %v", ErrRenderTimeout, rs.opts.Selectors.Table, timeout, err)
	}

	// Give the table a moment to settle after the filter change
	if err := page.WaitStable(500 * time.Millisecond); err != nil && ctx.Err() == nil {
		log.Printf("Warning: Page did not stabilize within timeout, continuing anyway: %v\n", err)
	}
	return nil
}

// CurrentMarkup implements the Driver interface
func (rs *RodSession) CurrentMarkup(ctx context.Context) (string, error) {
	html, err := rs.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	return html, nil
}

// Close closes the browser and removes its profile directory
func (rs *RodSession) Close() error {
	var err error
	if rs.browser != nil {
		err = rs.browser.Close()
	}
	removeProfile(rs.userDataDir)
	return err
}

// removeProfile deletes a session's browser profile directory
func removeProfile(dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		log.Printf("Warning: Failed to remove %s: %v\n", dir, err)
	}
}

// click waits for the element matching selector (and text, when set) and clicks it
func (rs *RodSession) click(ctx context.Context, selector, text string) error {
	page := rs.page.Context(ctx).Timeout(rs.elementTimeout())

	var el *rod.Element
	var err error
	if text != "" {
		el, err = page.ElementR(selector, "(?i)"+regexp.QuoteMeta(text))
	} else {
		el, err = page.Element(selector)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s not found in time", selector)
		}
		return err
	}
	if err := el.WaitVisible(); err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (rs *RodSession) elementTimeout() time.Duration {
	if rs.opts.PageLoadTimeout > 0 {
		return rs.opts.PageLoadTimeout
	}
	return 30 * time.Second
}

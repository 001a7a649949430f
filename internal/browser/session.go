// Package browser drives the activity form through a Chrome instance using
// go-rod. A FormSession owns one page; the submission driver performs all
// field interaction through it.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Config holds browser configuration.
type Config struct {
	DebuggerURL         string `json:"debugger_url"`
	Headless            bool   `json:"headless"`
	ViewportWidth       int    `json:"viewport_width"`
	ViewportHeight      int    `json:"viewport_height"`
	NavigationTimeoutMs int    `json:"navigation_timeout_ms"`
	ActionTimeoutMs     int    `json:"action_timeout_ms"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            false,
		ViewportWidth:       1920,
		ViewportHeight:      1080,
		NavigationTimeoutMs: 30000,
		ActionTimeoutMs:     10000,
	}
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1920
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 1080
	}
	return c.ViewportHeight
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// ActionTimeout returns the per-element action timeout.
func (c Config) ActionTimeout() time.Duration {
	if c.ActionTimeoutMs == 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ActionTimeoutMs) * time.Millisecond
}

// FormSession owns the browser connection and the single form page.
type FormSession struct {
	cfg     Config
	browser *rod.Browser
	page    *rod.Page
	logger  *zap.Logger
}

// NewFormSession creates a session. Start must be called before use.
func NewFormSession(cfg Config, logger *zap.Logger) *FormSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormSession{cfg: cfg, logger: logger}
}

// Start connects to an existing Chrome via DebuggerURL or launches a new one,
// then opens the working page. Calling Start on a healthy session is a no-op;
// a stale connection is replaced.
func (s *FormSession) Start(ctx context.Context) error {
	if s.browser != nil {
		if _, err := s.browser.Version(); err == nil {
			return nil
		}
		s.logger.Warn("stale browser connection, reconnecting")
		_ = s.browser.Close()
		s.browser = nil
		s.page = nil
	}

	controlURL := s.cfg.DebuggerURL
	if controlURL == "" {
		url, err := launcher.New().Headless(s.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		return fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             s.cfg.GetViewportWidth(),
		Height:            s.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		s.logger.Warn("failed to set viewport", zap.Error(err))
	}

	s.browser = browser
	s.page = page
	s.logger.Info("browser session started", zap.Bool("headless", s.cfg.Headless))
	return nil
}

// Navigate loads url and waits for the page to settle.
func (s *FormSession) Navigate(ctx context.Context, url string) error {
	if s.page == nil {
		return fmt.Errorf("browser not started")
	}
	page := s.page.Context(ctx).Timeout(s.cfg.NavigationTimeout())
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for %s: %w", url, err)
	}
	return nil
}

// CurrentURL returns the page's current location.
func (s *FormSession) CurrentURL(ctx context.Context) (string, error) {
	if s.page == nil {
		return "", fmt.Errorf("browser not started")
	}
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.URL, nil
}

// HTML returns the rendered document, used for form snapshots.
func (s *FormSession) HTML(ctx context.Context) (string, error) {
	if s.page == nil {
		return "", fmt.Errorf("browser not started")
	}
	html, err := s.page.Context(ctx).Timeout(s.cfg.ActionTimeout()).HTML()
	if err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

// Fill replaces the content of a text control.
func (s *FormSession) Fill(ctx context.Context, selector, text string) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("select text in %s: %w", selector, err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("input into %s: %w", selector, err)
	}
	return nil
}

// SelectOption picks an option in a select control by visible text.
func (s *FormSession) SelectOption(ctx context.Context, selector, option string) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Select([]string{option}, true, rod.SelectorTypeText); err != nil {
		return fmt.Errorf("select %q in %s: %w", option, selector, err)
	}
	return nil
}

// Click clicks an element.
func (s *FormSession) Click(ctx context.Context, selector string) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// SetChecked drives a checkbox to the wanted state.
func (s *FormSession) SetChecked(ctx context.Context, selector string, checked bool) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	current, err := el.Property("checked")
	if err != nil {
		return fmt.Errorf("read checked state of %s: %w", selector, err)
	}
	if current.Bool() == checked {
		return nil
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("toggle %s: %w", selector, err)
	}
	return nil
}

// ReadValue returns the current value of a form control, used to verify
// constrained fields after writing them.
func (s *FormSession) ReadValue(ctx context.Context, selector string) (string, error) {
	el, err := s.element(ctx, selector)
	if err != nil {
		return "", err
	}
	val, err := el.Property("value")
	if err != nil {
		return "", fmt.Errorf("read value of %s: %w", selector, err)
	}
	return val.Str(), nil
}

// Shutdown closes the page and the browser.
func (s *FormSession) Shutdown(ctx context.Context) error {
	if s.page != nil {
		_ = s.page.Close()
		s.page = nil
	}
	var err error
	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
	}
	return err
}

func (s *FormSession) element(ctx context.Context, selector string) (*rod.Element, error) {
	if s.page == nil {
		return nil, fmt.Errorf("browser not started")
	}
	el, err := s.page.Context(ctx).Timeout(s.cfg.ActionTimeout()).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", selector, err)
	}
	return el, nil
}

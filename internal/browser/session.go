// -----------------------------------------------------------------------
// ChromeDP Browser Session
// Implements the interfaces.Automation capability over a headless Chrome
// instance. One session owns one allocator, one browser context, and any
// secondary views the remote system opens; Close releases all of them.
// -----------------------------------------------------------------------

package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/deedfetch/internal/common"
	"github.com/ternarybob/deedfetch/internal/interfaces"
	"github.com/ternarybob/deedfetch/internal/models"
)

// Session is a chromedp-backed interactive browser session.
type Session struct {
	config common.BrowserConfig
	logger arbor.ILogger

	allocatorCancel context.CancelFunc
	browserCancel   context.CancelFunc

	// view is the context of the currently focused tab. It starts as the
	// browser context and is swapped when ClickOpensView switches to a
	// secondary view.
	view        context.Context
	viewCancels []context.CancelFunc
}

// Compile-time assertion
var _ interfaces.Automation = (*Session)(nil)

// NewSession launches a Chrome instance and verifies it responds. The caller
// must Close the session on every exit path.
func NewSession(ctx context.Context, config common.BrowserConfig, logger arbor.ILogger) (*Session, error) {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.UserAgent(config.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, opts...)

	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx,
		chromedp.WithLogf(func(s string, i ...interface{}) {
			logger.Debug().Msgf("chromedp: "+s, i...)
		}),
	)

	s := &Session{
		config:          config,
		logger:          logger,
		allocatorCancel: allocatorCancel,
		browserCancel:   browserCancel,
		view:            browserCtx,
	}

	// Startup test
	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		s.Close()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	logger.Debug().Bool("headless", config.Headless).Msg("Browser session started")
	return s, nil
}

// opCtx derives a deadline-bounded chromedp context for one operation on the
// current view, cancelled early if the caller's ctx is done.
func (s *Session) opCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithTimeout(s.view, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

// Navigate loads the given URL in the current view.
func (s *Session) Navigate(ctx context.Context, url string) error {
	opCtx, cancel := s.opCtx(ctx, s.config.NavTimeout)
	defer cancel()

	s.logger.Debug().Str("url", url).Msg("Navigating")
	if err := chromedp.Run(opCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("%w: navigate to %s: %v", models.ErrNavigation, url, err)
	}
	return nil
}

// readyExpr returns a JS expression that is truthy once the selected element
// exists, is visible, and - for images - has finished loading real pixels.
func readyExpr(sel string) string {
	return fmt.Sprintf(`(function() {
		const el = document.querySelector(%q);
		if (!el) return false;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') return false;
		if (el.tagName === 'IMG') return el.complete && el.naturalWidth > 1;
		return true;
	})()`, sel)
}

// WaitReady polls the element until it is rendered and usable. This replaces
// the fixed settle pauses the remote system otherwise needs.
func (s *Session) WaitReady(ctx context.Context, sel string) error {
	opCtx, cancel := s.opCtx(ctx, s.config.ReadyTimeout)
	defer cancel()

	var ready bool
	err := chromedp.Run(opCtx,
		chromedp.Poll(readyExpr(sel), &ready, chromedp.WithPollingInterval(200*time.Millisecond)),
	)
	if err != nil {
		return fmt.Errorf("%w: control %s not ready within %s: %v", models.ErrNavigation, sel, s.config.ReadyTimeout, err)
	}
	return nil
}

// Hover dispatches a mouseover to the selected element. The registry's menu
// only reveals its search links on hover.
func (s *Session) Hover(ctx context.Context, sel string) error {
	opCtx, cancel := s.opCtx(ctx, s.config.ReadyTimeout)
	defer cancel()

	js := fmt.Sprintf(`(function() {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.dispatchEvent(new MouseEvent('mouseover', {bubbles: true}));
		return true;
	})()`, sel)

	var ok bool
	if err := chromedp.Run(opCtx, chromedp.Evaluate(js, &ok)); err != nil {
		return fmt.Errorf("%w: hover %s: %v", models.ErrNavigation, sel, err)
	}
	if !ok {
		return fmt.Errorf("%w: hover target %s missing", models.ErrNavigation, sel)
	}
	return nil
}

// Click activates the selected element in the current view.
func (s *Session) Click(ctx context.Context, sel string) error {
	opCtx, cancel := s.opCtx(ctx, s.config.ReadyTimeout)
	defer cancel()

	if err := chromedp.Run(opCtx, chromedp.Click(sel, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%w: click %s: %v", models.ErrNavigation, sel, err)
	}
	return nil
}

// ClickOpensView clicks an element that opens a secondary rendered view and
// switches the session to it once the new view has a body.
func (s *Session) ClickOpensView(ctx context.Context, sel string) error {
	ch := chromedp.WaitNewTarget(s.view, func(info *target.Info) bool {
		return info.Type == "page" && info.URL != ""
	})

	if err := s.Click(ctx, sel); err != nil {
		return err
	}

	select {
	case id := <-ch:
		viewCtx, cancel := chromedp.NewContext(s.view, chromedp.WithTargetID(id))
		s.viewCancels = append(s.viewCancels, cancel)
		s.view = viewCtx

		opCtx, opCancel := s.opCtx(ctx, s.config.NavTimeout)
		defer opCancel()
		if err := chromedp.Run(opCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
			return fmt.Errorf("%w: secondary view did not render: %v", models.ErrNavigation, err)
		}
		s.logger.Debug().Str("target_id", string(id)).Msg("Switched to secondary view")
		return nil
	case <-time.After(s.config.NavTimeout):
		return fmt.Errorf("%w: no secondary view opened after clicking %s", models.ErrNavigation, sel)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fill sets the value of the selected form field.
func (s *Session) Fill(ctx context.Context, sel, value string) error {
	opCtx, cancel := s.opCtx(ctx, s.config.ReadyTimeout)
	defer cancel()

	err := chromedp.Run(opCtx,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.SetValue(sel, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("%w: fill %s: %v", models.ErrNavigation, sel, err)
	}
	return nil
}

// Text returns the rendered text content of the selected element.
func (s *Session) Text(ctx context.Context, sel string) (string, error) {
	opCtx, cancel := s.opCtx(ctx, s.config.ReadyTimeout)
	defer cancel()

	var text string
	err := chromedp.Run(opCtx,
		chromedp.Text(sel, &text, chromedp.ByQuery, chromedp.NodeVisible),
	)
	if err != nil {
		return "", fmt.Errorf("%w: read text of %s: %v", models.ErrNavigation, sel, err)
	}
	return strings.TrimSpace(text), nil
}

// Attribute returns the named attribute of the selected element.
func (s *Session) Attribute(ctx context.Context, sel, name string) (string, error) {
	opCtx, cancel := s.opCtx(ctx, s.config.ReadyTimeout)
	defer cancel()

	var value string
	var ok bool
	err := chromedp.Run(opCtx,
		chromedp.AttributeValue(sel, name, &value, &ok, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("%w: read %s of %s: %v", models.ErrNavigation, name, sel, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: element %s has no %s attribute", models.ErrNavigation, sel, name)
	}
	return value, nil
}

// HTML returns the outer HTML of the selected element.
func (s *Session) HTML(ctx context.Context, sel string) (string, error) {
	opCtx, cancel := s.opCtx(ctx, s.config.ReadyTimeout)
	defer cancel()

	var html string
	err := chromedp.Run(opCtx, chromedp.OuterHTML(sel, &html, chromedp.ByQuery))
	if err != nil {
		return "", fmt.Errorf("%w: read html of %s: %v", models.ErrNavigation, sel, err)
	}
	return html, nil
}

// Cookies exports the current cookies from the browser.
func (s *Session) Cookies(ctx context.Context) ([]interfaces.Cookie, error) {
	opCtx, cancel := s.opCtx(ctx, s.config.ReadyTimeout)
	defer cancel()

	var exported []interfaces.Cookie
	err := chromedp.Run(opCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			cookies, err := network.GetCookies().Do(ctx)
			if err != nil {
				return err
			}
			for _, c := range cookies {
				exported = append(exported, interfaces.Cookie{
					Name:     c.Name,
					Value:    c.Value,
					Domain:   c.Domain,
					Path:     c.Path,
					Secure:   c.Secure,
					HTTPOnly: c.HTTPOnly,
					Expires:  int64(c.Expires),
				})
			}
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to export cookies: %w", err)
	}

	s.logger.Debug().Int("cookie_count", len(exported)).Msg("Exported browser cookies")
	return exported, nil
}

// Close releases every view, the browser, and the allocator.
func (s *Session) Close() error {
	for i := len(s.viewCancels) - 1; i >= 0; i-- {
		s.viewCancels[i]()
	}
	s.viewCancels = nil

	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocatorCancel != nil {
		s.allocatorCancel()
	}

	s.logger.Debug().Msg("Browser session closed")
	return nil
}

// -----------------------------------------------------------------------
// Transfer Session
// An independent HTTP download channel carrying a snapshot of the
// interactive session's cookies. The browser is poor at bulk downloads;
// page images are fetched over plain HTTP with the browser's identity.
// -----------------------------------------------------------------------

package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/deedfetch/internal/interfaces"
	"github.com/ternarybob/deedfetch/internal/models"
)

// Session is an HTTP channel authorized identically to the interactive
// session at the instant of derivation. Later cookie changes in the browser
// are not reflected here.
type Session struct {
	client *http.Client
	logger arbor.ILogger
}

// Derive snapshots the interactive session's cookies into a new independent
// transfer session. It must only be called after the record has been located,
// so the cookies carry the viewer's authorization.
func Derive(ctx context.Context, auto interfaces.Automation, baseURL string, timeout time.Duration, logger arbor.ILogger) (*Session, error) {
	cookies, err := auto.Cookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: cookie export: %v", models.ErrTransfer, err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse base url %s: %v", models.ErrTransfer, baseURL, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: cookie jar: %v", models.ErrTransfer, err)
	}

	httpCookies := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		cookie := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			cookie.Expires = time.Unix(c.Expires, 0)
		}
		httpCookies = append(httpCookies, cookie)
	}
	jar.SetCookies(base, httpCookies)

	logger.Debug().Int("cookie_count", len(httpCookies)).Str("base_url", baseURL).Msg("Derived transfer session")

	return &Session{
		client: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		logger: logger,
	}, nil
}

// Download fetches the resource at rawURL and returns its bytes. Any network
// failure or non-2xx status is a transfer error.
func (s *Session) Download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", models.ErrTransfer, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", models.ErrTransfer, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: get %s: unexpected status %d", models.ErrTransfer, rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body of %s: %v", models.ErrTransfer, rawURL, err)
	}

	s.logger.Debug().Str("url", rawURL).Int("bytes", len(body)).Msg("Downloaded resource")
	return body, nil
}

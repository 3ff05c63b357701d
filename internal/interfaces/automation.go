// -----------------------------------------------------------------------
// Automation Interface - interactive browser session capability
// Abstracts the browser driver so the navigation and fetch logic can be
// exercised against a scripted fake in tests.
// -----------------------------------------------------------------------

package interfaces

import "context"

// Cookie is a browser cookie exported from an interactive session. It carries
// enough of the browser's view of the cookie to reproduce the session's
// authorization on an independent HTTP channel.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Secure   bool   `json:"secure"`
	HTTPOnly bool   `json:"http_only"`
	Expires  int64  `json:"expires"`
}

// Automation drives a stateful interactive browser session. All methods block
// until the operation completes or ctx is done. Selectors are CSS selectors.
//
// WaitReady polls until the selected element exists, is visible, and - for
// images - has finished loading real content. It replaces fixed-duration
// settle pauses with a bounded readiness poll.
type Automation interface {
	// Navigate loads the given URL in the current view.
	Navigate(ctx context.Context, url string) error

	// WaitReady polls until the selected element is rendered and usable,
	// bounded by the session's ready timeout and ctx.
	WaitReady(ctx context.Context, sel string) error

	// Hover moves pointer focus onto the selected element.
	Hover(ctx context.Context, sel string) error

	// Click activates the selected element in the current view.
	Click(ctx context.Context, sel string) error

	// ClickOpensView clicks an element that the remote system opens as a
	// secondary rendered view, then switches the session to that view.
	ClickOpensView(ctx context.Context, sel string) error

	// Fill sets the value of the selected form field.
	Fill(ctx context.Context, sel, value string) error

	// Text returns the rendered text content of the selected element.
	Text(ctx context.Context, sel string) (string, error)

	// Attribute returns the named attribute of the selected element.
	Attribute(ctx context.Context, sel, name string) (string, error)

	// HTML returns the outer HTML of the selected element.
	HTML(ctx context.Context, sel string) (string, error)

	// Cookies exports the session's current cookies.
	Cookies(ctx context.Context) ([]Cookie, error)

	// Close releases the session and every view it opened.
	Close() error
}

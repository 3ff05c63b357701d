// -----------------------------------------------------------------------
// Navigation Controller
// Drives the interactive session from the registry landing page to the
// page-image viewer of one located record.
// -----------------------------------------------------------------------

package navigator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/deedfetch/internal/common"
	"github.com/ternarybob/deedfetch/internal/interfaces"
	"github.com/ternarybob/deedfetch/internal/models"
)

// DocumentHandle references the currently opened page viewer for a located
// record. It is scoped to the interactive session that opened it.
type DocumentHandle struct {
	Auto    interfaces.Automation
	Key     models.RecordKey
	Current int // 1-based index of the page the viewer displays
	Total   int // fixed once read from the viewer; 0 until then
}

// Controller locates records in the remote registry.
type Controller struct {
	config  common.RegistryConfig
	entries []searchEntry
	logger  arbor.ILogger
}

// New creates a navigation controller for the configured registry.
func New(config common.RegistryConfig, logger arbor.ILogger) *Controller {
	return &Controller{
		config:  config,
		entries: searchEntriesFor(config.BookThreshold),
		logger:  logger,
	}
}

// LocateRecord drives the session through the registry's search flow and
// opens the page-image viewer for the record addressed by key. The viewer
// opens as a secondary view; the session is switched to it on return.
func (c *Controller) LocateRecord(ctx context.Context, auto interfaces.Automation, key models.RecordKey) (*DocumentHandle, error) {
	c.logger.Info().Int("book", key.Book).Int("page", key.Page).Msg("Locating record")

	if err := auto.Navigate(ctx, c.config.BaseURL); err != nil {
		return nil, err
	}

	entry := entryFor(c.entries, key.Book)
	c.logger.Debug().Int("book", key.Book).Str("search_link", entry.LinkSelector).Msg("Selected search entry point")

	// The menu reveals its search links on hover.
	if err := auto.WaitReady(ctx, menuSelector); err != nil {
		return nil, err
	}
	if err := auto.Hover(ctx, menuSelector); err != nil {
		return nil, err
	}
	if err := auto.WaitReady(ctx, entry.LinkSelector); err != nil {
		return nil, err
	}
	if err := auto.Click(ctx, entry.LinkSelector); err != nil {
		return nil, err
	}

	if err := auto.WaitReady(ctx, searchBtnSelector); err != nil {
		return nil, err
	}
	if err := auto.Fill(ctx, bookInputSelector, strconv.Itoa(key.Book)); err != nil {
		return nil, err
	}
	if err := auto.Fill(ctx, pageInputSelector, strconv.Itoa(key.Page)); err != nil {
		return nil, err
	}
	if err := auto.Click(ctx, searchBtnSelector); err != nil {
		return nil, err
	}

	// The first result row is the record; if it never renders, decide
	// between "no match" and "search page broken" from the results grid.
	if err := auto.WaitReady(ctx, resultRowSelector); err != nil {
		if c.noResults(ctx, auto) {
			return nil, fmt.Errorf("%w: %s", models.ErrNotFound, key)
		}
		return nil, err
	}
	if err := auto.Click(ctx, resultRowSelector); err != nil {
		return nil, err
	}

	if err := auto.WaitReady(ctx, viewerTabSelector); err != nil {
		return nil, err
	}
	if err := auto.ClickOpensView(ctx, viewerTabSelector); err != nil {
		return nil, err
	}

	c.logger.Info().Int("book", key.Book).Int("page", key.Page).Msg("Record located, viewer open")
	return &DocumentHandle{Auto: auto, Key: key, Current: 1}, nil
}

// noResults reports whether the search results grid rendered with zero
// document rows.
func (c *Controller) noResults(ctx context.Context, auto interfaces.Automation) bool {
	html, err := auto.HTML(ctx, resultGridSelector)
	if err != nil {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return doc.Find(`a[id*="ButtonRow_Book"]`).Length() == 0
}

// -----------------------------------------------------------------------
// Retry Coordinator
// Runs the full pipeline (navigate -> bridge -> fetch loop -> assemble) as
// one unit per attempt, under a bounded-attempt policy. Every attempt owns
// a fresh browser session and a fresh transient arena, both released on
// every exit path.
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/deedfetch/internal/assembler"
	"github.com/ternarybob/deedfetch/internal/common"
	"github.com/ternarybob/deedfetch/internal/fetcher"
	"github.com/ternarybob/deedfetch/internal/interfaces"
	"github.com/ternarybob/deedfetch/internal/models"
	"github.com/ternarybob/deedfetch/internal/navigator"
	"github.com/ternarybob/deedfetch/internal/transfer"
)

// SessionFactory creates interactive browser sessions. The indirection keeps
// the pipeline testable without a real browser.
type SessionFactory interface {
	NewSession(ctx context.Context) (interfaces.Automation, error)
}

// Coordinator executes the acquisition-and-assembly pipeline with retries.
type Coordinator struct {
	config    *common.Config
	sessions  SessionFactory
	navigator *navigator.Controller
	fetcher   *fetcher.Service
	assembler *assembler.Service
	logger    arbor.ILogger
}

// New wires the pipeline stages for the given configuration.
func New(config *common.Config, sessions SessionFactory, logger arbor.ILogger) *Coordinator {
	return &Coordinator{
		config:    config,
		sessions:  sessions,
		navigator: navigator.New(config.Registry, logger),
		fetcher:   fetcher.New(config.Fetch, logger),
		assembler: assembler.New(logger),
		logger:    logger,
	}
}

// Run retrieves the document addressed by key into destDir, retrying the
// whole pipeline from scratch on any failure, up to maxAttempts+1 total
// attempts. Error kinds are not differentiated; cancellation stops retrying
// immediately. On success it returns the artifact path.
func (c *Coordinator) Run(ctx context.Context, key models.RecordKey, destDir string, maxAttempts int) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}

	totalAttempts := maxAttempts + 1
	var lastErr error

	for attempt := 1; attempt <= totalAttempts; attempt++ {
		c.logger.Info().Int("attempt", attempt).Int("of", totalAttempts).Str("key", key.String()).Msg("Starting pipeline attempt")

		path, err := c.runAttempt(ctx, key, destDir)
		if err == nil {
			c.logger.Info().Str("artifact", path).Msg("Document retrieved")
			return path, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.Warn().Err(err).Int("attempt", attempt).Msg("Pipeline attempt failed")
	}

	return "", fmt.Errorf("unable to obtain document for %s after %d attempts; confirm the book and page numbers are valid (last error: %v)",
		key, totalAttempts, lastErr)
}

// runAttempt executes one isolated pipeline attempt. The browser session and
// the transient arena are scoped to the attempt and released on every exit.
func (c *Coordinator) runAttempt(ctx context.Context, key models.RecordKey, destDir string) (string, error) {
	arena := filepath.Join(os.TempDir(), "deedfetch-"+uuid.NewString())
	if err := os.MkdirAll(arena, 0755); err != nil {
		return "", fmt.Errorf("create attempt arena: %w", err)
	}
	defer os.RemoveAll(arena)

	auto, err := c.sessions.NewSession(ctx)
	if err != nil {
		return "", fmt.Errorf("start browser session: %w", err)
	}
	defer auto.Close()

	handle, err := c.navigator.LocateRecord(ctx, auto, key)
	if err != nil {
		return "", err
	}

	// The transfer session must only exist once the viewer is open, so its
	// cookie snapshot carries the located record's authorization.
	ts, err := transfer.Derive(ctx, auto, c.config.Registry.BaseURL, c.config.Fetch.PageTimeout, c.logger)
	if err != nil {
		return "", err
	}

	if _, err := c.fetcher.FetchAll(ctx, handle, ts, arena); err != nil {
		return "", err
	}

	return c.assembler.Assemble(arena, destDir, key)
}

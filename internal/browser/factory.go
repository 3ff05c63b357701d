package browser

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/deedfetch/internal/common"
	"github.com/ternarybob/deedfetch/internal/interfaces"
)

// Factory creates chromedp sessions for the pipeline.
type Factory struct {
	config common.BrowserConfig
	logger arbor.ILogger
}

// NewFactory returns a session factory for the given browser configuration.
func NewFactory(config common.BrowserConfig, logger arbor.ILogger) *Factory {
	return &Factory{config: config, logger: logger}
}

// NewSession launches a fresh browser session.
func (f *Factory) NewSession(ctx context.Context) (interfaces.Automation, error) {
	return NewSession(ctx, f.config, f.logger)
}

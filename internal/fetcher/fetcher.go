// -----------------------------------------------------------------------
// Page Fetcher
// Reads page-count metadata from the viewer, resolves each page's image
// resource at high fidelity, downloads it over the transfer session, and
// advances the viewer. The loop is strictly sequential: each page's URL is
// only discoverable while the viewer displays that page.
// -----------------------------------------------------------------------

package fetcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/deedfetch/internal/common"
	"github.com/ternarybob/deedfetch/internal/models"
	"github.com/ternarybob/deedfetch/internal/navigator"
	"github.com/ternarybob/deedfetch/internal/transfer"
)

// Viewer control selectors.
const (
	pageLabelSelector = "#ImageViewer1_lblPageNum"
	imageSelector     = "#ImageViewer1_docImage"
	nextBtnSelector   = "#ImageViewer1_BtnNext"
)

// Service fetches page images from an open document viewer.
type Service struct {
	config  common.FetchConfig
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// New creates a page fetcher. RequestDelay paces successive downloads to
// avoid hammering the registry.
func New(config common.FetchConfig, logger arbor.ILogger) *Service {
	limit := rate.Inf
	if config.RequestDelay > 0 {
		limit = rate.Every(config.RequestDelay)
	}
	return &Service{
		config:  config,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// PageCount reads the viewer's "Page X of Y" label and returns Y.
func (s *Service) PageCount(ctx context.Context, h *navigator.DocumentHandle) (int, error) {
	if err := h.Auto.WaitReady(ctx, pageLabelSelector); err != nil {
		return 0, err
	}
	label, err := h.Auto.Text(ctx, pageLabelSelector)
	if err != nil {
		return 0, err
	}

	total, err := parsePageCount(label)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// parsePageCount extracts the total from a "Page X of Y" label.
func parsePageCount(label string) (int, error) {
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: empty page label", models.ErrParse)
	}
	total, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil || total <= 0 {
		return 0, fmt.Errorf("%w: page label %q", models.ErrParse, label)
	}
	return total, nil
}

// CurrentImageURL resolves the displayed page's image resource. The viewer
// serves a low-resolution default; the zoom parameter is rewritten to the
// high-fidelity tier before download.
func (s *Service) CurrentImageURL(ctx context.Context, h *navigator.DocumentHandle) (string, error) {
	// The image element first shows a loading placeholder; WaitReady polls
	// until the real scan has pixels.
	if err := h.Auto.WaitReady(ctx, imageSelector); err != nil {
		return "", err
	}
	src, err := h.Auto.Attribute(ctx, imageSelector, "src")
	if err != nil {
		return "", err
	}
	if src == "" {
		return "", fmt.Errorf("%w: viewer image has empty src", models.ErrNavigation)
	}
	return strings.Replace(src, s.config.ZoomFrom, s.config.ZoomTo, 1), nil
}

// AdvanceToNextPage transitions the viewer to the next page. Valid only while
// the viewer is not on the last page.
func (s *Service) AdvanceToNextPage(ctx context.Context, h *navigator.DocumentHandle) error {
	if h.Total > 0 && h.Current >= h.Total {
		return fmt.Errorf("%w: already on last page %d of %d", models.ErrNavigation, h.Current, h.Total)
	}
	if err := h.Auto.Click(ctx, nextBtnSelector); err != nil {
		return err
	}
	if err := h.Auto.WaitReady(ctx, imageSelector); err != nil {
		return err
	}
	h.Current++
	return nil
}

// FetchAll downloads every page of the document into arenaDir, in order.
// Filenames encode (book, page, index, total) so that lexicographic order
// equals page order.
func (s *Service) FetchAll(ctx context.Context, h *navigator.DocumentHandle, ts *transfer.Session, arenaDir string) ([]models.PageImage, error) {
	total, err := s.PageCount(ctx, h)
	if err != nil {
		return nil, err
	}
	h.Total = total

	if !models.PageOrderingSound(total) {
		// Two-digit index padding overflows here; filename sort order no
		// longer matches page order.
		s.logger.Warn().Int("total", total).Msg("Document exceeds 99 pages; transient filename ordering is unreliable")
	}

	s.logger.Info().Int("total", total).Msg("Fetching document pages")

	images := make([]models.PageImage, 0, total)
	for index := 1; index <= total; index++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		imageURL, err := s.CurrentImageURL(ctx, h)
		if err != nil {
			return nil, err
		}

		data, err := ts.Download(ctx, imageURL)
		if err != nil {
			return nil, err
		}

		path := filepath.Join(arenaDir, h.Key.PageImageName(index, total))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("%w: write page %d: %v", models.ErrTransfer, index, err)
		}
		images = append(images, models.PageImage{Index: index, Total: total, Path: path})

		s.logger.Info().Int("page", index).Int("of", total).Msg("Downloaded page")

		if index < total {
			if err := s.AdvanceToNextPage(ctx, h); err != nil {
				return nil, err
			}
		}
	}

	return images, nil
}

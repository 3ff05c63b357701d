// -----------------------------------------------------------------------
// Document Assembler
// Re-encodes the downloaded page scans into one paginated PDF. Assembly is
// atomic: the document is built in a temp file, verified, then moved into
// the destination; source images are only deleted once the artifact is
// durable.
// -----------------------------------------------------------------------

package assembler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/deedfetch/internal/models"
)

// Letter page geometry, in inches. Each scan fills one page.
const (
	pageWidth  = 8.5
	pageHeight = 11.0
)

// Service assembles downloaded page images into a single PDF artifact.
type Service struct {
	logger arbor.ILogger
}

// New creates a document assembler.
func New(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

// Assemble builds the artifact for key from the page images in imageDir and
// places it in outputDir, returning the artifact path. Page order is restored
// by sorting filenames; directory enumeration order is not meaningful.
func (s *Service) Assemble(imageDir, outputDir string, key models.RecordKey) (string, error) {
	entries, err := os.ReadDir(imageDir)
	if err != nil {
		return "", fmt.Errorf("%w: read image dir: %v", models.ErrAssembly, err)
	}

	var images []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jpg") {
			continue
		}
		images = append(images, filepath.Join(imageDir, entry.Name()))
	}
	if len(images) == 0 {
		return "", fmt.Errorf("%w: no page images in %s", models.ErrAssembly, imageDir)
	}
	sort.Strings(images)

	s.logger.Debug().Int("pages", len(images)).Str("output_dir", outputDir).Msg("Assembling document")

	pdf := fpdf.New("P", "in", "Letter", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	opts := fpdf.ImageOptions{ImageType: "JPG"}
	for _, image := range images {
		pdf.AddPage()
		pdf.ImageOptions(image, 0, 0, pageWidth, pageHeight, false, opts, 0, "")
	}
	if pdf.Err() {
		return "", fmt.Errorf("%w: %v", models.ErrAssembly, pdf.Error())
	}

	artifactPath := filepath.Join(outputDir, key.ArtifactName())
	tempPath := artifactPath + ".tmp"

	if err := pdf.OutputFileAndClose(tempPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("%w: write pdf: %v", models.ErrAssembly, err)
	}

	if err := s.verify(tempPath, len(images)); err != nil {
		os.Remove(tempPath)
		return "", err
	}

	if err := os.Rename(tempPath, artifactPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("%w: move artifact into place: %v", models.ErrAssembly, err)
	}

	// The artifact is durable; the intermediates can go. Failures here are
	// not fatal since the arena is removed with the attempt anyway.
	for _, image := range images {
		if err := os.Remove(image); err != nil {
			s.logger.Warn().Err(err).Str("path", image).Msg("Failed to remove source image")
		}
	}

	s.logger.Info().Str("artifact", artifactPath).Int("pages", len(images)).Msg("Document assembled")
	return artifactPath, nil
}

// verify checks that the written PDF is readable and has one page per image.
func (s *Service) verify(path string, expectedPages int) error {
	conf := model.NewDefaultConfiguration()
	if err := api.ValidateFile(path, conf); err != nil {
		return fmt.Errorf("%w: artifact failed validation: %v", models.ErrAssembly, err)
	}

	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return fmt.Errorf("%w: read artifact: %v", models.ErrAssembly, err)
	}
	if pdfCtx.PageCount != expectedPages {
		return fmt.Errorf("%w: artifact has %d pages, want %d", models.ErrAssembly, pdfCtx.PageCount, expectedPages)
	}
	return nil
}

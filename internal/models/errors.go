// -----------------------------------------------------------------------
// Pipeline error taxonomy
// Each stage raises its own kind; the retry coordinator only checks for
// presence of failure, never the kind.
// -----------------------------------------------------------------------

package models

import "errors"

var (
	// ErrNotFound means the registry returned no record for the requested
	// book and page.
	ErrNotFound = errors.New("registry: no matching record")

	// ErrParse means viewer metadata (such as the page-count label) did not
	// have the expected format.
	ErrParse = errors.New("registry: unexpected metadata format")

	// ErrNavigation means an expected interactive control was missing or did
	// not become ready within the bounded wait.
	ErrNavigation = errors.New("registry: navigation failed")

	// ErrTransfer means authentication state could not be extracted or a
	// page download did not succeed.
	ErrTransfer = errors.New("registry: transfer failed")

	// ErrAssembly means the output document could not be built from the
	// downloaded page images.
	ErrAssembly = errors.New("registry: assembly failed")
)

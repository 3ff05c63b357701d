package models

import "fmt"

// RecordKey identifies exactly one document in the registry. Book and page
// stem from the historic practice of appending pages to physical archive
// volumes; together they address a single recorded document.
type RecordKey struct {
	Book int
	Page int
}

// Validate checks that both parts of the key are positive.
func (k RecordKey) Validate() error {
	if k.Book <= 0 {
		return fmt.Errorf("book number must be positive, got %d", k.Book)
	}
	if k.Page <= 0 {
		return fmt.Errorf("page number must be positive, got %d", k.Page)
	}
	return nil
}

// String returns a short human-readable form used in logs and errors.
func (k RecordKey) String() string {
	return fmt.Sprintf("book %d page %d", k.Book, k.Page)
}

// ArtifactName returns the deterministic output PDF filename for this key.
func (k RecordKey) ArtifactName() string {
	return fmt.Sprintf("plymouth_cty_reg_deeds_book%06d_page%06d.pdf", k.Book, k.Page)
}

// PageImageName returns the transient filename for one downloaded page scan.
// Index and total are zero-padded to two digits so that lexicographic order
// of the filenames equals numeric page order for documents up to 99 pages.
func (k RecordKey) PageImageName(index, total int) string {
	return fmt.Sprintf("bk_%06d_pg_%06d_%02d_of_%02d.jpg", k.Book, k.Page, index, total)
}

// PageOrderingSound reports whether the two-digit padding in PageImageName
// preserves sort order for a document of the given length. Documents of 100
// pages or more overflow the padding and must be flagged by callers.
func PageOrderingSound(total int) bool {
	return total <= 99
}

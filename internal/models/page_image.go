package models

// PageImage is one downloaded page scan persisted to the attempt's transient
// storage area. Index is 1-based; Total is fixed once read from the viewer.
type PageImage struct {
	Index int
	Total int
	Path  string
}

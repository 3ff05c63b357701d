package navigator

// Control selectors for the registry's search UI. The registry is a legacy
// ASP.NET application; element IDs are stable generated control names.
const (
	menuSelector      = "#Navigator1_SearchCriteria1_menuLabel"
	bookInputSelector = `input[name="SearchFormEx1$ACSTextBox_Book"]`
	pageInputSelector = `input[name="SearchFormEx1$ACSTextBox_PageNumber"]`
	searchBtnSelector = "#SearchFormEx1_btnSearch"

	// A book/page pair addresses exactly one document, so the first result
	// row is always the requested record.
	resultRowSelector  = "#DocList1_GridView_Document_ctl02_ButtonRow_Book_0"
	resultGridSelector = "#DocList1_GridView_Document"

	viewerTabSelector = "#TabController1_ImageViewertabitem"
)

// searchEntry maps a range of archived volumes to the search link serving it.
// The registry splits its books across two search pages; the threshold
// separates the two generations of archived volumes.
type searchEntry struct {
	MaxBookExclusive int // 0 means no upper bound
	LinkSelector     string
}

// searchEntriesFor builds the entry-point table for the configured threshold.
func searchEntriesFor(threshold int) []searchEntry {
	return []searchEntry{
		{MaxBookExclusive: threshold, LinkSelector: "#Navigator1_SearchCriteria1_LinkButton02"},
		{LinkSelector: "#Navigator1_SearchCriteria1_LinkButton01"},
	}
}

// entryFor returns the table row serving the given book.
func entryFor(entries []searchEntry, book int) searchEntry {
	for _, e := range entries {
		if e.MaxBookExclusive == 0 || book < e.MaxBookExclusive {
			return e
		}
	}
	return entries[len(entries)-1]
}

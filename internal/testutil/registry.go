package testutil

import "fmt"

// SetText sets the rendered text of one element.
func (f *FakeAutomation) SetText(sel, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Texts[sel] = text
}

// ScriptRecordViewer configures f to emulate an open page viewer for a
// document with total pages. srcForPage returns the low-zoom image source the
// viewer exposes while displaying the given 1-based page; clicking the next
// button advances the viewer.
func ScriptRecordViewer(f *FakeAutomation, total int, srcForPage func(page int) string) {
	f.SetText(PageLabelSel, fmt.Sprintf("Page 1 of %d", total))
	f.SetAttr(ImageSel, "src", srcForPage(1))

	page := 1
	f.OnClick[NextBtnSel] = func(fa *FakeAutomation) {
		page++
		fa.SetText(PageLabelSel, fmt.Sprintf("Page %d of %d", page, total))
		fa.SetAttr(ImageSel, "src", srcForPage(page))
	}
}

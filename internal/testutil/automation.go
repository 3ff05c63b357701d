// Package testutil provides a scripted fake of the interactive automation
// capability plus image fixtures, so the navigation and fetch pipeline can be
// exercised without a real browser.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/deedfetch/internal/interfaces"
	"github.com/ternarybob/deedfetch/internal/models"
)

// Registry control selectors, as the remote system renders them. The fake
// emulates the remote UI, so it owns a copy of its stable control IDs.
const (
	MenuSel      = "#Navigator1_SearchCriteria1_menuLabel"
	LegacyLink   = "#Navigator1_SearchCriteria1_LinkButton02"
	CurrentLink  = "#Navigator1_SearchCriteria1_LinkButton01"
	BookInputSel = `input[name="SearchFormEx1$ACSTextBox_Book"]`
	PageInputSel = `input[name="SearchFormEx1$ACSTextBox_PageNumber"]`
	SearchBtnSel = "#SearchFormEx1_btnSearch"
	ResultRowSel = "#DocList1_GridView_Document_ctl02_ButtonRow_Book_0"
	ResultGrid   = "#DocList1_GridView_Document"
	ViewerTabSel = "#TabController1_ImageViewertabitem"
	PageLabelSel = "#ImageViewer1_lblPageNum"
	ImageSel     = "#ImageViewer1_docImage"
	NextBtnSel   = "#ImageViewer1_BtnNext"
)

// FakeAutomation is a scripted interfaces.Automation. Element state is
// plain maps; click hooks let a test emulate remote page transitions.
type FakeAutomation struct {
	mu sync.Mutex

	Texts     map[string]string            // selector -> rendered text
	Attrs     map[string]map[string]string // selector -> attribute -> value
	HTMLs     map[string]string            // selector -> outer HTML
	CookieSet []interfaces.Cookie

	Unready   map[string]bool            // WaitReady times out for these
	ClickErrs map[string]error           // Click fails for these
	OnClick   map[string]func(f *FakeAutomation)

	Navigated []string
	Clicks    []string
	Fills     map[string]string
	Views     int // number of secondary views opened
	Closed    bool
}

var _ interfaces.Automation = (*FakeAutomation)(nil)

// NewFakeAutomation returns an empty scripted session.
func NewFakeAutomation() *FakeAutomation {
	return &FakeAutomation{
		Texts:     make(map[string]string),
		Attrs:     make(map[string]map[string]string),
		HTMLs:     make(map[string]string),
		Unready:   make(map[string]bool),
		ClickErrs: make(map[string]error),
		OnClick:   make(map[string]func(f *FakeAutomation)),
		Fills:     make(map[string]string),
	}
}

// SetAttr sets one attribute of one element.
func (f *FakeAutomation) SetAttr(sel, name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Attrs[sel] == nil {
		f.Attrs[sel] = make(map[string]string)
	}
	f.Attrs[sel][name] = value
}

func (f *FakeAutomation) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Navigated = append(f.Navigated, url)
	return nil
}

func (f *FakeAutomation) WaitReady(ctx context.Context, sel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unready[sel] {
		return fmt.Errorf("%w: control %s not ready: timeout", models.ErrNavigation, sel)
	}
	return nil
}

func (f *FakeAutomation) Hover(ctx context.Context, sel string) error {
	return nil
}

func (f *FakeAutomation) Click(ctx context.Context, sel string) error {
	f.mu.Lock()
	if err := f.ClickErrs[sel]; err != nil {
		f.mu.Unlock()
		return err
	}
	f.Clicks = append(f.Clicks, sel)
	hook := f.OnClick[sel]
	f.mu.Unlock()

	if hook != nil {
		hook(f)
	}
	return nil
}

func (f *FakeAutomation) ClickOpensView(ctx context.Context, sel string) error {
	if err := f.Click(ctx, sel); err != nil {
		return err
	}
	f.mu.Lock()
	f.Views++
	f.mu.Unlock()
	return nil
}

func (f *FakeAutomation) Fill(ctx context.Context, sel, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fills[sel] = value
	return nil
}

func (f *FakeAutomation) Text(ctx context.Context, sel string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.Texts[sel]
	if !ok {
		return "", fmt.Errorf("%w: element %s missing", models.ErrNavigation, sel)
	}
	return text, nil
}

func (f *FakeAutomation) Attribute(ctx context.Context, sel, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	attrs, ok := f.Attrs[sel]
	if !ok {
		return "", fmt.Errorf("%w: element %s missing", models.ErrNavigation, sel)
	}
	value, ok := attrs[name]
	if !ok {
		return "", fmt.Errorf("%w: element %s has no %s attribute", models.ErrNavigation, sel, name)
	}
	return value, nil
}

func (f *FakeAutomation) HTML(ctx context.Context, sel string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	html, ok := f.HTMLs[sel]
	if !ok {
		return "", fmt.Errorf("%w: element %s missing", models.ErrNavigation, sel)
	}
	return html, nil
}

func (f *FakeAutomation) Cookies(ctx context.Context) ([]interfaces.Cookie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cookies := make([]interfaces.Cookie, len(f.CookieSet))
	copy(cookies, f.CookieSet)
	return cookies, nil
}

func (f *FakeAutomation) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

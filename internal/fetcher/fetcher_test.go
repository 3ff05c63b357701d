package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/deedfetch/internal/common"
	"github.com/ternarybob/deedfetch/internal/models"
	"github.com/ternarybob/deedfetch/internal/navigator"
	"github.com/ternarybob/deedfetch/internal/testutil"
	"github.com/ternarybob/deedfetch/internal/transfer"
)

func testFetchConfig() common.FetchConfig {
	config := common.DefaultConfig().Fetch
	config.RequestDelay = 0
	return config
}

func TestParsePageCount(t *testing.T) {
	tests := []struct {
		label   string
		want    int
		wantErr bool
	}{
		{"Page 1 of 12", 12, false},
		{"Page 3 of 3", 3, false},
		{"  Page 1 of 7  ", 7, false},
		{"", 0, true},
		{"Page 1 of x", 0, true},
		{"Page 1 of 0", 0, true},
		{"Page 1 of -2", 0, true},
	}

	for _, tt := range tests {
		got, err := parsePageCount(tt.label)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parsePageCount(%q) = %d, want error", tt.label, got)
			} else if !errors.Is(err, models.ErrParse) {
				t.Errorf("parsePageCount(%q) error = %v, want ErrParse", tt.label, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePageCount(%q) error: %v", tt.label, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePageCount(%q) = %d, want %d", tt.label, got, tt.want)
		}
	}
}

func TestCurrentImageURL_RewritesZoom(t *testing.T) {
	fake := testutil.NewFakeAutomation()
	fake.SetAttr(testutil.ImageSel, "src", "http://registry.example.com/ViewImage.aspx?ZOOM=1&ID=42")

	handle := &navigator.DocumentHandle{Auto: fake, Current: 1}
	service := New(testFetchConfig(), common.GetLogger())

	got, err := service.CurrentImageURL(context.Background(), handle)
	if err != nil {
		t.Fatalf("CurrentImageURL() error: %v", err)
	}
	want := "http://registry.example.com/ViewImage.aspx?ZOOM=6&ID=42"
	if got != want {
		t.Errorf("CurrentImageURL() = %q, want %q", got, want)
	}
}

func TestAdvanceToNextPage_LastPage(t *testing.T) {
	fake := testutil.NewFakeAutomation()
	handle := &navigator.DocumentHandle{Auto: fake, Current: 3, Total: 3}
	service := New(testFetchConfig(), common.GetLogger())

	err := service.AdvanceToNextPage(context.Background(), handle)
	if !errors.Is(err, models.ErrNavigation) {
		t.Fatalf("error = %v, want ErrNavigation on last page", err)
	}
	if len(fake.Clicks) != 0 {
		t.Errorf("Clicks = %v, want no click past the last page", fake.Clicks)
	}
}

// imageServer serves a distinct JPEG per page, rejecting any request that is
// not at the high-fidelity zoom tier.
func imageServer(t *testing.T) (*httptest.Server, func() []int) {
	t.Helper()

	var mu sync.Mutex
	var served []int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ZOOM") != "6" {
			http.Error(w, "low fidelity request", http.StatusBadRequest)
			return
		}
		page, err := strconv.Atoi(r.URL.Query().Get("pg"))
		if err != nil {
			http.Error(w, "bad page", http.StatusBadRequest)
			return
		}
		mu.Lock()
		served = append(served, page)
		mu.Unlock()
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(testutil.JPEGBytes(t, page))
	}))
	t.Cleanup(server.Close)

	return server, func() []int {
		mu.Lock()
		defer mu.Unlock()
		return append([]int{}, served...)
	}
}

func newTransferSession(t *testing.T, baseURL string) *transfer.Session {
	t.Helper()
	session, err := transfer.Derive(context.Background(), testutil.NewFakeAutomation(), baseURL+"/", 10*time.Second, common.GetLogger())
	if err != nil {
		t.Fatalf("Derive() error: %v", err)
	}
	return session
}

func TestFetchAll(t *testing.T) {
	server, servedPages := imageServer(t)

	fake := testutil.NewFakeAutomation()
	testutil.ScriptRecordViewer(fake, 3, func(page int) string {
		return fmt.Sprintf("%s/ViewImage.aspx?pg=%d&ZOOM=1", server.URL, page)
	})

	key := models.RecordKey{Book: 500, Page: 10}
	handle := &navigator.DocumentHandle{Auto: fake, Key: key, Current: 1}
	arena := t.TempDir()

	service := New(testFetchConfig(), common.GetLogger())
	images, err := service.FetchAll(context.Background(), handle, newTransferSession(t, server.URL), arena)
	if err != nil {
		t.Fatalf("FetchAll() error: %v", err)
	}

	if len(images) != 3 {
		t.Fatalf("got %d images, want 3", len(images))
	}
	if got := servedPages(); len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("served pages = %v, want [1 2 3] in order", got)
	}
	if handle.Total != 3 || handle.Current != 3 {
		t.Errorf("handle = current %d total %d, want current 3 total 3", handle.Current, handle.Total)
	}

	for i, img := range images {
		wantName := key.PageImageName(i+1, 3)
		if filepath.Base(img.Path) != wantName {
			t.Errorf("image %d path = %q, want basename %q", i, img.Path, wantName)
		}
		if _, err := os.Stat(img.Path); err != nil {
			t.Errorf("image %d not written: %v", i, err)
		}
	}
}

func TestFetchAll_DownloadFailureStopsLoop(t *testing.T) {
	var served int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pg") == "2" {
			http.Error(w, "registry hiccup", http.StatusInternalServerError)
			return
		}
		served++
		w.Write(testutil.JPEGBytes(t, served))
	}))
	defer server.Close()

	fake := testutil.NewFakeAutomation()
	testutil.ScriptRecordViewer(fake, 3, func(page int) string {
		return fmt.Sprintf("%s/ViewImage.aspx?pg=%d&ZOOM=1", server.URL, page)
	})

	handle := &navigator.DocumentHandle{Auto: fake, Key: models.RecordKey{Book: 500, Page: 10}, Current: 1}
	arena := t.TempDir()

	service := New(testFetchConfig(), common.GetLogger())
	_, err := service.FetchAll(context.Background(), handle, newTransferSession(t, server.URL), arena)
	if !errors.Is(err, models.ErrTransfer) {
		t.Fatalf("error = %v, want ErrTransfer", err)
	}

	entries, err := os.ReadDir(arena)
	if err != nil {
		t.Fatalf("read arena: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("arena holds %d files after failure on page 2, want 1", len(entries))
	}
}

func TestFetchAll_UnreadableLabel(t *testing.T) {
	fake := testutil.NewFakeAutomation()
	fake.SetText(testutil.PageLabelSel, "loading...")

	handle := &navigator.DocumentHandle{Auto: fake, Key: models.RecordKey{Book: 500, Page: 10}, Current: 1}
	service := New(testFetchConfig(), common.GetLogger())

	_, err := service.FetchAll(context.Background(), handle, nil, t.TempDir())
	if !errors.Is(err, models.ErrParse) {
		t.Fatalf("error = %v, want ErrParse", err)
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ternarybob/deedfetch/internal/common"
	"github.com/ternarybob/deedfetch/internal/interfaces"
	"github.com/ternarybob/deedfetch/internal/models"
	"github.com/ternarybob/deedfetch/internal/testutil"
)

// scriptedFactory hands out one scripted session per attempt.
type scriptedFactory struct {
	mu       sync.Mutex
	calls    int
	sessions []*testutil.FakeAutomation
	build    func(attempt int) (*testutil.FakeAutomation, error)
}

func (f *scriptedFactory) NewSession(ctx context.Context) (interfaces.Automation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	fake, err := f.build(f.calls)
	if err != nil {
		return nil, err
	}
	f.sessions = append(f.sessions, fake)
	return fake, nil
}

func testConfig() *common.Config {
	config := common.DefaultConfig()
	config.Fetch.RequestDelay = 0
	return config
}

// pageServer serves one JPEG per requested page index.
func pageServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("pg")
		if page == "" {
			http.Error(w, "bad page", http.StatusBadRequest)
			return
		}
		seed := len(page)
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(testutil.JPEGBytes(t, seed))
	}))
	t.Cleanup(server.Close)
	return server
}

// viewerSession returns a session scripted through the full search flow into
// an open viewer of total pages, with image sources pointing at server.
func viewerSession(server *httptest.Server, total int) *testutil.FakeAutomation {
	fake := testutil.NewFakeAutomation()
	testutil.ScriptRecordViewer(fake, total, func(page int) string {
		return fmt.Sprintf("%s/ViewImage.aspx?pg=%d&ZOOM=1", server.URL, page)
	})
	return fake
}

// brokenSession returns a session whose landing page never renders.
func brokenSession() *testutil.FakeAutomation {
	fake := testutil.NewFakeAutomation()
	fake.Unready[testutil.MenuSel] = true
	return fake
}

func arenaDirs(t *testing.T) map[string]bool {
	t.Helper()
	entries, err := os.ReadDir(os.TempDir())
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	dirs := make(map[string]bool)
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "deedfetch-") {
			dirs[entry.Name()] = true
		}
	}
	return dirs
}

func TestRun_FirstAttemptSucceeds(t *testing.T) {
	server := pageServer(t)
	factory := &scriptedFactory{build: func(attempt int) (*testutil.FakeAutomation, error) {
		return viewerSession(server, 3), nil
	}}

	dest := t.TempDir()
	key := models.RecordKey{Book: 500, Page: 10}

	path, err := New(testConfig(), factory, common.GetLogger()).Run(context.Background(), key, dest, 2)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if filepath.Dir(path) != dest || filepath.Base(path) != key.ArtifactName() {
		t.Errorf("artifact path = %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("artifact not written: %v", err)
	}
	if factory.calls != 1 {
		t.Errorf("sessions started = %d, want 1", factory.calls)
	}
	if !factory.sessions[0].Closed {
		t.Error("session not closed after success")
	}
}

func TestRun_RetriesUntilSuccess(t *testing.T) {
	server := pageServer(t)
	factory := &scriptedFactory{build: func(attempt int) (*testutil.FakeAutomation, error) {
		if attempt <= 2 {
			return brokenSession(), nil
		}
		return viewerSession(server, 2), nil
	}}

	key := models.RecordKey{Book: 500, Page: 10}
	path, err := New(testConfig(), factory, common.GetLogger()).Run(context.Background(), key, t.TempDir(), 2)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("artifact not written: %v", err)
	}

	if factory.calls != 3 {
		t.Errorf("sessions started = %d, want 3 (two failures then success)", factory.calls)
	}
	for i, session := range factory.sessions {
		if !session.Closed {
			t.Errorf("session %d not closed", i)
		}
	}
}

func TestRun_ExhaustsAttempts(t *testing.T) {
	factory := &scriptedFactory{build: func(attempt int) (*testutil.FakeAutomation, error) {
		return brokenSession(), nil
	}}

	key := models.RecordKey{Book: 500, Page: 10}
	_, err := New(testConfig(), factory, common.GetLogger()).Run(context.Background(), key, t.TempDir(), 2)
	if err == nil {
		t.Fatal("expected terminal error")
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("error = %v, want mention of 3 attempts", err)
	}
	if factory.calls != 3 {
		t.Errorf("sessions started = %d, want 3", factory.calls)
	}
	for i, session := range factory.sessions {
		if !session.Closed {
			t.Errorf("session %d not closed", i)
		}
	}
}

// A record that does not exist fails the same way as any other failure: all
// attempts are spent before the terminal error.
func TestRun_NotFoundStillRetries(t *testing.T) {
	factory := &scriptedFactory{build: func(attempt int) (*testutil.FakeAutomation, error) {
		fake := testutil.NewFakeAutomation()
		fake.Unready[testutil.ResultRowSel] = true
		fake.HTMLs[testutil.ResultGrid] = `<table id="DocList1_GridView_Document"><tr><td>No documents found.</td></tr></table>`
		return fake, nil
	}}

	_, err := New(testConfig(), factory, common.GetLogger()).Run(context.Background(), models.RecordKey{Book: 500, Page: 99999}, t.TempDir(), 1)
	if err == nil {
		t.Fatal("expected terminal error")
	}
	if factory.calls != 2 {
		t.Errorf("sessions started = %d, want 2", factory.calls)
	}
}

func TestRun_SessionStartFailure(t *testing.T) {
	factory := &scriptedFactory{build: func(attempt int) (*testutil.FakeAutomation, error) {
		return nil, errors.New("browser missing")
	}}

	_, err := New(testConfig(), factory, common.GetLogger()).Run(context.Background(), models.RecordKey{Book: 500, Page: 10}, t.TempDir(), 0)
	if err == nil {
		t.Fatal("expected terminal error")
	}
	if factory.calls != 1 {
		t.Errorf("sessions started = %d, want 1", factory.calls)
	}
}

func TestRun_InvalidKeyRunsNoAttempts(t *testing.T) {
	factory := &scriptedFactory{build: func(attempt int) (*testutil.FakeAutomation, error) {
		t.Error("no session should be started for an invalid key")
		return nil, errors.New("unreachable")
	}}

	_, err := New(testConfig(), factory, common.GetLogger()).Run(context.Background(), models.RecordKey{Book: 0, Page: 10}, t.TempDir(), 2)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if factory.calls != 0 {
		t.Errorf("sessions started = %d, want 0", factory.calls)
	}
}

// A failure partway through the fetch loop must release the attempt's browser
// session and its transient arena.
func TestRun_FailedAttemptReleasesResources(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pg") == "2" {
			http.Error(w, "registry hiccup", http.StatusInternalServerError)
			return
		}
		w.Write(testutil.JPEGBytes(t, 1))
	}))
	defer server.Close()

	factory := &scriptedFactory{build: func(attempt int) (*testutil.FakeAutomation, error) {
		fake := testutil.NewFakeAutomation()
		testutil.ScriptRecordViewer(fake, 3, func(page int) string {
			return fmt.Sprintf("%s/ViewImage.aspx?pg=%d&ZOOM=1", server.URL, page)
		})
		return fake, nil
	}}

	before := arenaDirs(t)

	_, err := New(testConfig(), factory, common.GetLogger()).Run(context.Background(), models.RecordKey{Book: 500, Page: 10}, t.TempDir(), 0)
	if err == nil {
		t.Fatal("expected terminal error")
	}

	if !factory.sessions[0].Closed {
		t.Error("session not closed after mid-fetch failure")
	}
	for name := range arenaDirs(t) {
		if !before[name] {
			t.Errorf("attempt arena %s left behind", name)
		}
	}
}

func TestRun_CancellationStopsRetrying(t *testing.T) {
	server := pageServer(t)
	factory := &scriptedFactory{build: func(attempt int) (*testutil.FakeAutomation, error) {
		return viewerSession(server, 2), nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testConfig(), factory, common.GetLogger()).Run(ctx, models.RecordKey{Book: 500, Page: 10}, t.TempDir(), 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if factory.calls != 1 {
		t.Errorf("sessions started = %d, want 1 (no retry after cancellation)", factory.calls)
	}
}

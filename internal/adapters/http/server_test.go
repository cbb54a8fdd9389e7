package httpadapter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"beacon/internal/domain"
	"beacon/internal/ports"
	"beacon/internal/services/analytics"
	"beacon/internal/services/scanner"
)

const scanID = "6f1c1a52-4c61-4b0b-9d55-0b4c9a1b9e20"

type fakeScanner struct {
	scans    map[string]domain.Scan
	enqueued []string
	plan     string
}

func (f *fakeScanner) Enqueue(_ context.Context, url string, form *domain.FormInput, plan string) (string, error) {
	if strings.HasPrefix(url, "ftp") {
		return "", scanner.ErrInvalidURL
	}
	f.enqueued = append(f.enqueued, url)
	f.plan = plan
	return scanID, nil
}

func (f *fakeScanner) Status(_ context.Context, id string) (string, float64, error) {
	s, err := f.Get(context.Background(), id)
	return s.Status, s.Progress, err
}

func (f *fakeScanner) Get(_ context.Context, id string) (domain.Scan, error) {
	s, ok := f.scans[id]
	if !ok {
		return domain.Scan{}, domain.ErrNotFound
	}
	return s, nil
}

type fakeProfiles struct{}

func (fakeProfiles) GetLatest(_ context.Context, name string) (domain.Scan, error) {
	if name != "acme.io" {
		return domain.Scan{}, domain.ErrNotFound
	}
	score := 48
	return domain.Scan{ID: scanID, Domain: "acme.io", Score: &score, Profile: &domain.Profile{BrandName: "Acme"}}, nil
}

type fakeCompetitors struct{}

func (fakeCompetitors) List(_ context.Context, name string) ([]domain.CompetitorRecord, error) {
	return []domain.CompetitorRecord{{Domain: name, Name: "Globex", Rank: 1}}, nil
}

type fakeAnalytics struct{}

func (fakeAnalytics) ShareOfVoice(context.Context, string) (analytics.ShareOfVoice, error) {
	return analytics.ShareOfVoice{Domain: "acme.io", TotalMentions: 4}, nil
}

func (fakeAnalytics) CompareProviders(context.Context, string) ([]analytics.ProviderComparison, error) {
	return []analytics.ProviderComparison{{Provider: "openai", Score: 60}}, nil
}

func (fakeAnalytics) ScoreDelta(context.Context, string) (analytics.ScoreDelta, error) {
	return analytics.ScoreDelta{}, analytics.ErrNoPreviousScan
}

type fakeJobs struct {
	ports.JobRepository
	started   []string
	completed []string
	startErr  error
}

func (f *fakeJobs) StartJobForScan(_ context.Context, id string) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, id)
	return "job-1", nil
}

func (f *fakeJobs) MarkCompleted(_ context.Context, jobID string) error {
	f.completed = append(f.completed, jobID)
	return nil
}

func (f *fakeJobs) MarkFailed(context.Context, string, string, string) error { return nil }

type fakeProcessor struct {
	sc *fakeScanner
}

func (p fakeProcessor) Process(_ context.Context, id string) error {
	score := 71
	p.sc.scans[id] = domain.Scan{ID: id, Status: "completed", Progress: 1, Score: &score}
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeScanner, *fakeJobs) {
	t.Helper()
	sc := &fakeScanner{scans: map[string]domain.Scan{
		scanID: {ID: scanID, Domain: "acme.io", Status: "running", Progress: 0.35, Phase: "execute"},
	}}
	jobs := &fakeJobs{}
	srv := New(sc, fakeProfiles{}, fakeCompetitors{}, fakeAnalytics{}, jobs, fakeProcessor{sc: sc},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, sc, jobs
}

func doJSON(t *testing.T, method, url, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("%s %s content-type = %q", method, url, ct)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestPostScanAsync(t *testing.T) {
	ts, sc, jobs := newTestServer(t)
	var got ScanAccepted
	code := doJSON(t, http.MethodPost, ts.URL+"/scans", `{"url":"https://acme.io","plan":"growth"}`, &got)
	if code != http.StatusAccepted || got.ScanID != scanID {
		t.Errorf("POST /scans = %d %+v", code, got)
	}
	if sc.plan != "growth" || len(jobs.started) != 0 {
		t.Errorf("plan = %q, started = %v", sc.plan, jobs.started)
	}
}

func TestPostScanWait(t *testing.T) {
	ts, _, jobs := newTestServer(t)
	var got ScanView
	code := doJSON(t, http.MethodPost, ts.URL+"/scans?wait=true&timeout=5", `{"url":"https://acme.io"}`, &got)
	if code != http.StatusOK {
		t.Fatalf("POST /scans?wait = %d", code)
	}
	if got.Status != "completed" || got.Score == nil || *got.Score != 71 {
		t.Errorf("scan = %+v", got)
	}
	if len(jobs.completed) != 1 {
		t.Errorf("completed = %v", jobs.completed)
	}
}

func TestPostScanWaitClaimedByWorker(t *testing.T) {
	ts, _, jobs := newTestServer(t)
	jobs.startErr = domain.ErrNotFound
	var got ScanAccepted
	if code := doJSON(t, http.MethodPost, ts.URL+"/scans?wait=true", `{"url":"https://acme.io"}`, &got); code != http.StatusAccepted {
		t.Errorf("POST /scans?wait with claimed job = %d, want 202", code)
	}
}

func TestPostScanBadRequests(t *testing.T) {
	ts, _, _ := newTestServer(t)
	tests := []struct {
		name string
		url  string
		body string
	}{
		{"bad json", "/scans", `{`},
		{"missing url", "/scans", `{}`},
		{"bad scheme", "/scans", `{"url":"ftp://acme.io"}`},
		{"bad wait", "/scans?wait=maybe", `{"url":"https://acme.io"}`},
		{"bad timeout", "/scans?wait=true&timeout=soon", `{"url":"https://acme.io"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e ErrorResponse
			if code := doJSON(t, http.MethodPost, ts.URL+tt.url, tt.body, &e); code != http.StatusBadRequest {
				t.Errorf("code = %d, want 400 (%s)", code, e.Error)
			}
			if e.Error == "" {
				t.Error("error body should carry a message")
			}
		})
	}
}

func TestGetScan(t *testing.T) {
	ts, _, _ := newTestServer(t)
	var got ScanView
	if code := doJSON(t, http.MethodGet, ts.URL+"/scans/"+scanID, "", &got); code != http.StatusOK {
		t.Fatalf("GET /scans/{id} = %d", code)
	}
	if got.Phase != "execute" || got.Progress != 0.35 {
		t.Errorf("scan = %+v", got)
	}
	if code := doJSON(t, http.MethodGet, ts.URL+"/scans/not-a-uuid", "", nil); code != http.StatusBadRequest {
		t.Errorf("GET /scans/not-a-uuid = %d, want 400", code)
	}
	if code := doJSON(t, http.MethodGet, ts.URL+"/scans/00000000-0000-0000-0000-000000000000", "", nil); code != http.StatusNotFound {
		t.Errorf("GET unknown scan = %d, want 404", code)
	}
}

func TestReadEndpoints(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var prof ProfileView
	if code := doJSON(t, http.MethodGet, ts.URL+"/profiles/acme.io", "", &prof); code != http.StatusOK || prof.Profile.BrandName != "Acme" {
		t.Errorf("GET /profiles = %d %+v", code, prof)
	}
	if code := doJSON(t, http.MethodGet, ts.URL+"/profiles/other.io", "", nil); code != http.StatusNotFound {
		t.Errorf("GET unknown profile = %d, want 404", code)
	}

	var comps CompetitorList
	if code := doJSON(t, http.MethodGet, ts.URL+"/competitors/www.acme.io", "", &comps); code != http.StatusOK ||
		comps.Domain != "acme.io" || len(comps.Competitors) != 1 {
		t.Errorf("GET /competitors = %d %+v", code, comps)
	}

	var sov analytics.ShareOfVoice
	if code := doJSON(t, http.MethodGet, ts.URL+"/analytics/acme.io/share-of-voice", "", &sov); code != http.StatusOK || sov.TotalMentions != 4 {
		t.Errorf("GET share-of-voice = %d %+v", code, sov)
	}
	var provs ProviderList
	if code := doJSON(t, http.MethodGet, ts.URL+"/analytics/acme.io/providers", "", &provs); code != http.StatusOK || len(provs.Providers) != 1 {
		t.Errorf("GET providers = %d %+v", code, provs)
	}
	if code := doJSON(t, http.MethodGet, ts.URL+"/analytics/acme.io/delta", "", nil); code != http.StatusNotFound {
		t.Errorf("GET delta without history = %d, want 404", code)
	}

	var health map[string]string
	if code := doJSON(t, http.MethodGet, ts.URL+"/healthz", "", &health); code != http.StatusOK || health["status"] != "ok" {
		t.Errorf("GET /healthz = %d %v", code, health)
	}
}

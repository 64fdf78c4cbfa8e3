package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	perr "storewatch/internal/platform/errors"
	phttp "storewatch/internal/platform/net/http"

	dom "storewatch/internal/services/reports/domain"

	"github.com/go-chi/chi/v5"
)

type fakeTrigger struct {
	res dom.TriggerResult
	err error
}

func (f fakeTrigger) Trigger(_ context.Context, _ dom.TriggerArgs) (dom.TriggerResult, error) {
	return f.res, f.err
}

type fakeStatus struct {
	res dom.StatusResult
	err error
}

func (f fakeStatus) Status(_ context.Context, reportID string) (dom.StatusResult, error) {
	if strings.TrimSpace(reportID) == "" {
		return dom.StatusResult{}, perr.InvalidArgf("report_id is required")
	}
	return f.res, f.err
}

type fakeArtifact struct{ dir string }

func (f fakeArtifact) ArtifactPath(name string) string { return filepath.Join(f.dir, name) }

func mount(t *testing.T, p Ports) http.Handler {
	t.Helper()
	mux := chi.NewRouter()
	Register(phttp.AdaptChi(mux), p)
	return mux
}

type envelope struct {
	StatusCode int             `json:"status_code"`
	Error      string          `json:"error"`
	Data       json.RawMessage `json:"data"`
}

func do(t *testing.T, h http.Handler, method, path string, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v\nbody=%s", err, rec.Body.String())
		}
	}
	return rec, env
}

func TestTriggerAcceptedWithRetryAfter(t *testing.T) {
	h := mount(t, Ports{
		Trigger: fakeTrigger{res: dom.TriggerResult{ReportID: "r-1", Status: dom.StatusPending}},
	})
	rec, env := do(t, h, http.MethodPost, "/trigger_report", "")

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("Retry-After = %q, want 60", got)
	}
	var out TriggerResponse
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if out.ReportID != "r-1" || out.Status != "PENDING" {
		t.Fatalf("unexpected trigger response: %+v", out)
	}
}

func TestTriggerReusesActiveRun(t *testing.T) {
	h := mount(t, Ports{
		Trigger: fakeTrigger{res: dom.TriggerResult{ReportID: "r-1", Status: dom.StatusRunning, Existing: true}},
	})
	_, env := do(t, h, http.MethodPost, "/trigger_report", "")

	var out TriggerResponse
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !strings.Contains(out.Message, "already in progress") {
		t.Fatalf("message = %q", out.Message)
	}
}

func TestTriggerWithMaxStoresBody(t *testing.T) {
	h := mount(t, Ports{
		Trigger: fakeTrigger{res: dom.TriggerResult{ReportID: "r-1", Status: dom.StatusPending}},
	})
	rec, _ := do(t, h, http.MethodPost, "/trigger_report", `{"max_stores": 100}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	// negative values fail validation
	rec, _ = do(t, h, http.MethodPost, "/trigger_report", `{"max_stores": -1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestGetReportRunning(t *testing.T) {
	h := mount(t, Ports{
		Status: fakeStatus{res: dom.StatusResult{ReportID: "r-1", Status: dom.StatusRunning}},
	})

	for _, path := range []string{"/get_report?report_id=r-1", "/get_report/r-1"} {
		rec, env := do(t, h, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d: %s", path, rec.Code, rec.Body.String())
		}
		if got := rec.Header().Get("Retry-After"); got != "15" {
			t.Fatalf("%s: Retry-After = %q, want 15", path, got)
		}
		var out StatusResponse
		if err := json.Unmarshal(env.Data, &out); err != nil {
			t.Fatalf("decode data: %v", err)
		}
		if out.Status != "Running" || out.URL != "" {
			t.Fatalf("%s: unexpected body: %+v", path, out)
		}
	}
}

func TestGetReportComplete(t *testing.T) {
	h := mount(t, Ports{
		Status: fakeStatus{res: dom.StatusResult{
			ReportID: "r-1",
			Status:   dom.StatusComplete,
			URL:      "/files/reports/r-1.csv",
		}},
	})
	rec, env := do(t, h, http.MethodGet, "/get_report/r-1", "")

	if got := rec.Header().Get("Retry-After"); got != "" {
		t.Fatalf("terminal report should not advertise Retry-After, got %q", got)
	}
	var out StatusResponse
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if out.Status != "Complete" || out.URL != "/files/reports/r-1.csv" {
		t.Fatalf("unexpected body: %+v", out)
	}
}

func TestGetReportErrors(t *testing.T) {
	h := mount(t, Ports{
		Status: fakeStatus{err: perr.NotFoundf("report %q not found", "nope")},
	})

	rec, _ := do(t, h, http.MethodGet, "/get_report?report_id=nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: status = %d, want 404", rec.Code)
	}

	rec, _ = do(t, h, http.MethodGet, "/get_report", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank id: status = %d, want 400", rec.Code)
	}
}

func TestDownloadArtifact(t *testing.T) {
	dir := t.TempDir()
	const body = "store_id,uptime_last_hour\n"
	if err := os.WriteFile(filepath.Join(dir, "r-1.csv"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	h := mount(t, Ports{Artifact: fakeArtifact{dir: dir}})

	rec, _ := do(t, h, http.MethodGet, "/files/reports/r-1.csv", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), `filename="r-1.csv"`) {
		t.Fatalf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	if rec.Body.String() != body {
		t.Fatalf("body = %q", rec.Body.String())
	}

	rec, _ = do(t, h, http.MethodGet, "/files/reports/missing.csv", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing artifact: status = %d, want 404", rec.Code)
	}

	rec, _ = do(t, h, http.MethodGet, "/files/reports/r-1.txt", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-csv name: status = %d, want 400", rec.Code)
	}
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"liverrisk/ml"
)

func newTestPipeline(t *testing.T) *ml.Pipeline {
	t.Helper()
	bundle, err := ml.LoadBundle(ml.DefaultArtifactPaths(filepath.Join("..", "ml", "testdata", "artifacts")))
	if err != nil {
		t.Fatalf("load fixture bundle: %v", err)
	}
	pipeline, err := ml.NewPipeline(bundle, ml.WithCache(16))
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return pipeline
}

func newTestMux(t *testing.T, deps Deps) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	NewHandlers(deps).Register(mux)
	return mux
}

type staleFlag bool

func (s staleFlag) Stale() bool { return bool(s) }

func TestHealthHandler(t *testing.T) {
	mux := newTestMux(t, Deps{Pipeline: newTestPipeline(t), Artifacts: staleFlag(true)})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	var payload healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload.Status != "ok" || payload.ModelType != ml.ModelLogisticRegression || payload.Threshold != 0.5 {
		t.Errorf("unexpected health payload: %+v", payload)
	}
	if len(payload.Fingerprint) != 64 {
		t.Errorf("expected sha256 fingerprint, got %q", payload.Fingerprint)
	}
	if !payload.Stale {
		t.Errorf("expected stale artifacts to be reported")
	}
}

func TestUnavailableWithoutArtifacts(t *testing.T) {
	loadErr := &ml.ArtifactLoadError{Artifact: ml.ArtifactModel, Path: "liver_disease_risk_model.json", Err: errors.New("no such file")}
	mux := newTestMux(t, Deps{LoadErr: loadErr})

	requests := []*http.Request{
		httptest.NewRequest(http.MethodGet, "/", nil),
		httptest.NewRequest(http.MethodPost, "/", strings.NewReader("Age=45")),
		httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader("{}")),
		httptest.NewRequest(http.MethodGet, "/api/schema", nil),
		httptest.NewRequest(http.MethodGet, "/api/health", nil),
	}
	for _, req := range requests {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s: expected 503, got %d", req.Method, req.URL.Path, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "no such file") {
			t.Errorf("%s %s: expected load error in body, got %s", req.Method, req.URL.Path, rr.Body.String())
		}
		if strings.Contains(rr.Body.String(), "<form") {
			t.Errorf("%s %s: form must not be offered", req.Method, req.URL.Path)
		}
	}
}

func TestSchemaHandler(t *testing.T) {
	mux := newTestMux(t, Deps{Pipeline: newTestPipeline(t)})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/schema", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var payload schemaResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(payload.Columns) != 10 || payload.Columns[0] != ml.FeatureAge {
		t.Fatalf("unexpected columns: %v", payload.Columns)
	}
	age := payload.Fields[0]
	if age.Name != ml.FeatureAge || age.Min != 1 || age.Max == nil || *age.Max != 120 || age.Default != 45 {
		t.Fatalf("unexpected Age schema: %+v", age)
	}
	if payload.Fields[2].Max != nil {
		t.Fatalf("expected Total_Bilirubin to be unbounded")
	}
}

func TestMetricsHandler(t *testing.T) {
	mux := newTestMux(t, Deps{Pipeline: newTestPipeline(t)})

	body := `{"Age":45,"Gender":"Male","Total_Bilirubin":1.0,"Direct_Bilirubin":0.5,"Alkaline_Phosphotase":200,
		"Alamine_Aminotransferase":30,"Aspartate_Aminotransferase":35,"Total_Protiens":6.5,"Albumin":3.5,
		"Albumin_and_Globulin_Ratio":1.0}`
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(body)))
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"Age":45}`)))

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	var payload struct {
		Predictions int64            `json:"predictions"`
		ByLabel     map[string]int64 `json:"by_label"`
		Errors      map[string]int64 `json:"errors"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload.Predictions != 1 || payload.ByLabel["disease"] != 1 {
		t.Fatalf("unexpected prediction counts: %+v", payload)
	}
	if payload.Errors["schema_mismatch"] != 1 {
		t.Fatalf("unexpected error counts: %+v", payload.Errors)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/metrics?format=prometheus", nil))
	if !strings.Contains(rr.Body.String(), `predictions_total{label="disease"} 1`) {
		t.Fatalf("unexpected prometheus output: %s", rr.Body.String())
	}
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"liverrisk/ml"
	"liverrisk/monitoring"
)

// StaleReporter reports whether the artifacts on disk no longer match the
// loaded bundle.
type StaleReporter interface {
	Stale() bool
}

// Deps are the collaborators of the handlers. Pipeline is nil when the
// artifacts failed to load; LoadErr then says why.
type Deps struct {
	Pipeline  *ml.Pipeline
	LoadErr   error
	Metrics   *monitoring.MetricsCollector
	Artifacts StaleReporter
	Logger    *zap.Logger
}

type Handlers struct {
	deps Deps
}

func NewHandlers(deps Deps) *Handlers {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = monitoring.NewMetricsCollector()
	}
	if deps.Pipeline == nil && deps.LoadErr == nil {
		deps.LoadErr = errors.New("artifacts are not loaded")
	}
	return &Handlers{deps: deps}
}

func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleForm)
	mux.HandleFunc("POST /{$}", h.handleSubmit)
	mux.HandleFunc("POST /api/predict", h.handlePredict)
	mux.HandleFunc("GET /api/schema", h.handleSchema)
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/metrics", h.handleMetrics)
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type predictResponse struct {
	Label       int     `json:"label"`
	LabelText   string  `json:"label_text"`
	Probability float64 `json:"probability"`
	RiskPercent float64 `json:"risk_percent"`
	RiskDisplay string  `json:"risk_display"`
}

type healthResponse struct {
	Status      string  `json:"status"`
	Error       string  `json:"error,omitempty"`
	Fingerprint string  `json:"fingerprint,omitempty"`
	ModelType   string  `json:"model_type,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
	Stale       bool    `json:"artifacts_stale"`
}

type fieldSchema struct {
	Name    string   `json:"name"`
	Min     float64  `json:"min"`
	Max     *float64 `json:"max,omitempty"`
	Step    float64  `json:"step"`
	Integer bool     `json:"integer"`
	Default float64  `json:"default"`
}

type schemaResponse struct {
	Columns []string      `json:"columns"`
	Fields  []fieldSchema `json:"fields"`
}

func (h *Handlers) ready(w http.ResponseWriter) bool {
	if h.deps.Pipeline != nil {
		return true
	}
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{
		Error:   "model artifacts unavailable",
		Details: h.deps.LoadErr.Error(),
	})
	return false
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.deps.Pipeline == nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: h.deps.LoadErr.Error()})
		return
	}
	bundle := h.deps.Pipeline.Bundle()
	resp := healthResponse{
		Status:      "ok",
		Fingerprint: bundle.Fingerprint(),
		ModelType:   bundle.Classifier.Type(),
		Threshold:   bundle.Classifier.Threshold(),
	}
	if h.deps.Artifacts != nil {
		resp.Stale = h.deps.Artifacts.Stale()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) handleSchema(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	resp := schemaResponse{Columns: h.deps.Pipeline.Bundle().Columns.Names()}
	for _, spec := range ml.FeatureSpecs() {
		field := fieldSchema{Name: spec.Name, Min: spec.Min, Step: spec.Step, Integer: spec.Integer, Default: spec.Default}
		if spec.Bounded() {
			upper := spec.Max
			field.Max = &upper
		}
		resp.Fields = append(resp.Fields, field)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "prometheus" {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprint(w, h.deps.Metrics.ExportPrometheus())
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Metrics.Summary())
}

func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	record, err := decodeRecord(r)
	if err != nil {
		h.observeError(err)
		status, kind := classifyError(err)
		writeJSON(w, status, errorResponse{Error: kind, Details: err.Error()})
		return
	}

	prediction, err := h.predict(r.Context(), func(ctx context.Context) (ml.Prediction, error) {
		return h.deps.Pipeline.PredictRecord(ctx, record)
	})
	if err != nil {
		status, kind := classifyError(err)
		writeJSON(w, status, errorResponse{Error: kind, Details: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, predictResponse{
		Label:       prediction.Label,
		LabelText:   prediction.LabelText(),
		Probability: prediction.Probability,
		RiskPercent: prediction.RiskPercent,
		RiskDisplay: formatRisk(prediction.RiskPercent),
	})
}

// predict runs one pipeline call and records its outcome.
func (h *Handlers) predict(ctx context.Context, run func(context.Context) (ml.Prediction, error)) (ml.Prediction, error) {
	start := time.Now()
	prediction, err := run(ctx)
	if err != nil {
		h.observeError(err)
		h.deps.Logger.Warn("prediction rejected",
			zap.String("request_id", GetRequestID(ctx)),
			zap.Error(err))
		return ml.Prediction{}, err
	}
	if arrived := GetStartTime(ctx); !arrived.IsZero() {
		start = arrived
	}
	h.deps.Metrics.ObservePrediction(metricLabel(prediction), time.Since(start))
	h.deps.Logger.Debug("prediction",
		zap.String("request_id", GetRequestID(ctx)),
		zap.Int("label", prediction.Label),
		zap.Float64("risk_percent", prediction.RiskPercent))
	return prediction, nil
}

func (h *Handlers) observeError(err error) {
	_, kind := classifyError(err)
	h.deps.Metrics.ObserveError(kind)
}

func metricLabel(p ml.Prediction) string {
	if p.HasDisease() {
		return "disease"
	}
	return "no_disease"
}

// classifyError maps pipeline errors to a status code and a stable kind.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, errMalformed):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, ml.ErrSchemaMismatch):
		return http.StatusUnprocessableEntity, "schema_mismatch"
	case errors.Is(err, ml.ErrOutOfRange), errors.Is(err, errInvalidInput):
		return http.StatusUnprocessableEntity, "invalid_input"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, "prediction_failed"
	}
}

// decodeRecord reads a JSON object of feature name to number. Gender may
// also be given as "Male" or "Female". A null value counts as a missing field.
func decodeRecord(r *http.Request) (map[string]float64, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	record := make(map[string]float64, len(raw))
	for name, value := range raw {
		var number *float64
		if err := json.Unmarshal(value, &number); err == nil {
			if number != nil {
				record[name] = *number
			}
			continue
		}
		var text string
		if name == ml.FeatureGender && json.Unmarshal(value, &text) == nil {
			gender, err := ml.ParseGender(text)
			if err != nil {
				return nil, err
			}
			record[name] = float64(gender)
			continue
		}
		return nil, fmt.Errorf("%w: %s must be a number", errInvalidInput, name)
	}
	return record, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

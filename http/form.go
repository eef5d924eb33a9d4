package http

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"liverrisk/ml"
)

const disclaimer = "This is a machine learning demo and not a medical diagnosis."

var (
	errInvalidInput = errors.New("invalid input")
	errMalformed    = errors.New("malformed request")
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var printer = message.NewPrinter(language.English)

// formatRisk renders a percentage with two decimals, e.g. "52.38%".
func formatRisk(percent float64) string {
	return printer.Sprintf("%.2f%%", percent)
}

func formatValue(x float64) string {
	return printer.Sprint(x)
}

type fieldView struct {
	Name    string
	Value   string
	Min     string
	Max     string
	Step    string
	Options []string
}

type summaryRow struct {
	Name  string
	Value string
}

type resultView struct {
	Label   string
	Disease bool
	Risk    string
}

type formView struct {
	Fields     []fieldView
	Error      string
	Summary    []summaryRow
	Result     *resultView
	Disclaimer string
}

// newFormView builds the form with the submitted values, or the defaults
// when values is nil.
func newFormView(values map[string]string) formView {
	view := formView{Disclaimer: disclaimer}
	defaults := ml.DefaultFeatureVector()
	for _, spec := range ml.FeatureSpecs() {
		field := fieldView{
			Name: spec.Name,
			Min:  strconv.FormatFloat(spec.Min, 'f', -1, 64),
			Step: "any",
		}
		if spec.Integer {
			field.Step = "1"
		}
		if spec.Bounded() {
			field.Max = strconv.FormatFloat(spec.Max, 'f', -1, 64)
		}
		if spec.Name == ml.FeatureGender {
			field.Options = []string{ml.Male.String(), ml.Female.String()}
			field.Value = defaults.Gender.String()
		} else {
			x, _ := defaults.Value(spec.Name)
			field.Value = strconv.FormatFloat(x, 'f', -1, 64)
		}
		if v, ok := values[spec.Name]; ok {
			field.Value = v
		}
		view.Fields = append(view.Fields, field)
	}
	return view
}

// parseForm reads the posted fields. Every feature must be present; any
// other posted field is rejected like an unexpected record key.
func parseForm(r *http.Request) (map[string]float64, map[string]string, error) {
	if err := r.ParseForm(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	raw := make(map[string]string, len(r.PostForm))
	record := make(map[string]float64, len(r.PostForm))
	for name, values := range r.PostForm {
		value := strings.TrimSpace(values[0])
		raw[name] = value
		if _, ok := ml.LookupFeature(name); !ok {
			// FromRecord reports it as unexpected.
			record[name] = 0
			continue
		}
		if name == ml.FeatureGender {
			gender, err := ml.ParseGender(value)
			if err != nil {
				return nil, raw, err
			}
			record[name] = float64(gender)
			continue
		}
		x, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, raw, fmt.Errorf("%w: %s must be a number", errInvalidInput, name)
		}
		record[name] = x
	}
	return record, raw, nil
}

func (h *Handlers) handleForm(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	view := newFormView(nil)
	columns := h.deps.Pipeline.Bundle().Columns
	view.Summary = newSummary(columns.Names(), columns.Row(ml.DefaultFeatureVector()))
	h.render(w, http.StatusOK, view)
}

// newSummary pairs each training column with its entered value.
func newSummary(names []string, row []float64) []summaryRow {
	summary := make([]summaryRow, 0, len(names))
	for i, name := range names {
		summary = append(summary, summaryRow{Name: name, Value: formatValue(row[i])})
	}
	return summary
}

func (h *Handlers) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	record, raw, err := parseForm(r)
	if err != nil {
		h.observeError(err)
		status, _ := classifyError(err)
		view := newFormView(raw)
		view.Error = err.Error()
		h.render(w, status, view)
		return
	}

	view := newFormView(raw)
	columns := h.deps.Pipeline.Bundle().Columns
	prediction, err := h.predict(r.Context(), func(ctx context.Context) (ml.Prediction, error) {
		return h.deps.Pipeline.PredictRecord(ctx, record)
	})
	if err != nil {
		status, kind := classifyError(err)
		if kind == "prediction_failed" {
			view.Error = "Prediction failed: " + err.Error()
		} else {
			view.Error = err.Error()
		}
		h.render(w, status, view)
		return
	}

	view.Summary = newSummary(columns.Names(), prediction.Row)
	view.Result = &resultView{
		Label:   prediction.LabelText(),
		Disease: prediction.HasDisease(),
		Risk:    formatRisk(prediction.RiskPercent),
	}
	h.render(w, http.StatusOK, view)
}

// render executes into a buffer first so a template error never leaves a
// half-written page.
func (h *Handlers) render(w http.ResponseWriter, status int, view formView) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "index.html", view); err != nil {
		h.deps.Logger.Error("template rendering failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "template rendering failed", Details: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

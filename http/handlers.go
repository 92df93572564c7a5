package http

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"trafficcast/monitoring"
	"trafficcast/predictor"
)

//go:embed web
var webFS embed.FS

type handlers struct {
	svc      *predictor.Service
	history  History
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	page     *template.Template
	static   http.Handler
	upgrader websocket.Upgrader
}

func newHandlers(deps Deps) (*handlers, error) {
	page, err := template.ParseFS(webFS, "web/templates/index.html")
	if err != nil {
		return nil, err
	}
	static, err := fs.Sub(webFS, "web/static")
	if err != nil {
		return nil, err
	}
	return &handlers{
		svc:     deps.Service,
		history: deps.History,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		page:    page,
		static:  http.StripPrefix("/static/", http.FileServerFS(static)),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}, nil
}

func (h *handlers) register(mux *http.ServeMux, gatherer prometheus.Gatherer) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("POST /predict", h.handlePredictForm)
	mux.Handle("GET /static/", h.static)

	mux.HandleFunc("POST /api/predict", h.handleAPIPredict)
	mux.HandleFunc("GET /api/domains", h.handleDomains)
	mux.HandleFunc("GET /api/predictions", h.handlePredictions)
	mux.HandleFunc("GET /api/trainings", h.handleTrainings)
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ============ form page ============

type controlView struct {
	Field  string
	Label  string
	Min    string
	Max    string
	Step   string
	Value  string
	Slider bool
}

type optionView struct {
	Value    string
	Selected bool
}

type selectView struct {
	Column  string
	Options []optionView
}

type pageData struct {
	Controls  []controlView
	Selects   []selectView
	Selected  [][2]string
	HasResult bool
	Failed    bool
	Result    string
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (h *handlers) pageFor(in predictor.Input) pageData {
	data := pageData{Selected: h.svc.Labels(in)}
	for _, c := range predictor.NumericControls {
		data.Controls = append(data.Controls, controlView{
			Field:  c.Field,
			Label:  c.Label,
			Min:    num(c.Min),
			Max:    num(c.Max),
			Step:   num(c.Step),
			Value:  num(in.Numeric[c.Field]),
			Slider: c.Slider,
		})
	}
	for _, d := range h.svc.Domains() {
		sel := selectView{Column: d.Column}
		current := in.Categorical[d.Column]
		for _, v := range d.Values {
			sel.Options = append(sel.Options, optionView{Value: v, Selected: v == current})
		}
		data.Selects = append(data.Selects, sel)
	}
	return data
}

func (h *handlers) render(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Execute(w, data); err != nil {
		h.logger.Error("render page", zap.Error(err))
	}
}

func (h *handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.render(w, h.pageFor(h.svc.Defaults()))
}

// handlePredictForm always answers 200 with the page; a failed prediction is
// shown in the result region and the form stays usable.
func (h *handlers) handlePredictForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	in, err := h.svc.ParseForm(r.PostForm)
	var res predictor.Result
	if err != nil {
		res = predictor.Result{Err: err}
	} else {
		res = h.svc.Predict(r.Context(), predictor.Request{
			ID:      GetRequestID(r.Context()),
			Channel: predictor.ChannelForm,
			Input:   in,
		})
	}
	data := h.pageFor(in)
	data.HasResult = true
	data.Failed = res.Err != nil
	data.Result = res.Message()
	h.render(w, data)
}

// ============ JSON API ============

type predictResponse struct {
	RequestID string   `json:"request_id,omitempty"`
	Value     *float64 `json:"value,omitempty"`
	Message   string   `json:"message"`
	Cached    bool     `json:"cached"`
	Error     string   `json:"error,omitempty"`
}

func newPredictResponse(id string, res predictor.Result) predictResponse {
	resp := predictResponse{RequestID: id, Message: res.Message(), Cached: res.Cached}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	} else {
		v := res.Value
		resp.Value = &v
	}
	return resp
}

// handleAPIPredict takes an Input document; omitted fields take the form
// defaults. A failed prediction is 422 with the same message the form shows.
func (h *handlers) handleAPIPredict(w http.ResponseWriter, r *http.Request) {
	var in predictor.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json: " + err.Error()})
		return
	}

	id := GetRequestID(r.Context())
	res := h.svc.Predict(r.Context(), predictor.Request{
		ID:      id,
		Channel: predictor.ChannelAPI,
		Input:   h.svc.Merge(in),
	})
	status := http.StatusOK
	if res.Err != nil {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, newPredictResponse(id, res))
}

type domainsResponse struct {
	Numeric     []numericControlJSON `json:"numeric"`
	Categorical []categoricalJSON    `json:"categorical"`
}

type numericControlJSON struct {
	Field   string  `json:"field"`
	Label   string  `json:"label"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
	Step    float64 `json:"step"`
	Slider  bool    `json:"slider"`
}

type categoricalJSON struct {
	Column  string   `json:"column"`
	Values  []string `json:"values"`
	Default string   `json:"default"`
}

func (h *handlers) handleDomains(w http.ResponseWriter, r *http.Request) {
	resp := domainsResponse{
		Numeric:     make([]numericControlJSON, 0, len(predictor.NumericControls)),
		Categorical: make([]categoricalJSON, 0, len(h.svc.Domains())),
	}
	for _, c := range predictor.NumericControls {
		resp.Numeric = append(resp.Numeric, numericControlJSON{
			Field: c.Field, Label: c.Label, Min: c.Min, Max: c.Max,
			Default: c.Default, Step: c.Step, Slider: c.Slider,
		})
	}
	for _, d := range h.svc.Domains() {
		resp.Categorical = append(resp.Categorical, categoricalJSON{Column: d.Column, Values: d.Values, Default: d.Default()})
	}
	writeJSON(w, http.StatusOK, resp)
}

func limitParam(r *http.Request) int {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if l, err := strconv.Atoi(s); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}
	return limit
}

func (h *handlers) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history is not enabled"})
		return
	}
	logs, err := h.history.RecentPredictions(r.Context(), limitParam(r))
	if err != nil {
		h.logger.Error("load prediction history", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": logs})
}

func (h *handlers) handleTrainings(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history is not enabled"})
		return
	}
	logs, err := h.history.RecentTrainings(r.Context(), limitParam(r))
	if err != nil {
		h.logger.Error("load training history", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": logs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

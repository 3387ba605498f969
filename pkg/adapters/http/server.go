// Package http exposes a thicket Engine as a JSON API.
//
// Requests are validated against the embedded OpenAPI document before they
// reach a handler. Prometheus metrics are served on /metrics.
package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/aretw0/thicket"
	"github.com/aretw0/thicket/internal/depgraph"
	"github.com/aretw0/thicket/internal/logging"
	"github.com/aretw0/thicket/internal/presentation/graph"
	"github.com/aretw0/thicket/internal/refactor"
	"github.com/aretw0/thicket/internal/runtime"
	"github.com/aretw0/thicket/internal/sanitize"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/cockroachdb/errors"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	oapi "github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed openapi.yaml
var specYAML []byte

// Engine defines the operations the API exposes.
type Engine interface {
	Resolve(ctx context.Context, req thicket.ResolveRequest) (*domain.ResolvedPrompt, error)
	SwapOptions(ctx context.Context, workflow domain.Workflow, name string, bindings map[string][]string) ([]domain.Choice, error)
	Snapshot(ctx context.Context, workflow domain.Workflow) (*domain.Corpus, error)
	Wildcard(ctx context.Context, workflow domain.Workflow, name string) (*domain.Wildcard, error)
	Validate(ctx context.Context, workflow domain.Workflow) ([]domain.Diagnostic, error)
	Graph(ctx context.Context, workflow domain.Workflow) (*depgraph.Graph, error)
	Rename(ctx context.Context, oldName, newName string) (*refactor.Report, error)
	ReplaceValue(ctx context.Context, scope domain.Scope, name, oldValue, newValue string) (*refactor.Report, error)
}

// Server holds the handlers of the API.
type Server struct {
	Engine   Engine
	spec     *openapi3.T
	registry *prometheus.Registry
	metrics  *Metrics
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegistry collects metrics into reg. A nil registry disables /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// LoadSpec parses and validates the embedded OpenAPI document.
func LoadSpec() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(specYAML)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid openapi spec: %w", err)
	}
	return doc, nil
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) (http.Handler, error) {
	spec, err := LoadSpec()
	if err != nil {
		return nil, err
	}
	s := &Server{
		Engine:   engine,
		spec:     spec,
		registry: prometheus.NewRegistry(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	if s.registry != nil {
		s.metrics = NewMetrics(s.registry)
		r.Use(s.instrument)
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(specYAML)
	})

	routes := []struct {
		method, path string
		handler      http.HandlerFunc
	}{
		{http.MethodGet, "/health", s.GetHealth},
		{http.MethodPost, "/resolve", s.Resolve},
		{http.MethodGet, "/wildcards", s.ListWildcards},
		{http.MethodGet, "/wildcards/{name}", s.GetWildcard},
		{http.MethodPost, "/wildcards/{name}/options", s.SwapOptions},
		{http.MethodGet, "/validate", s.Validate},
		{http.MethodGet, "/graph", s.GetGraph},
		{http.MethodPost, "/refactor/rename", s.Rename},
		{http.MethodPost, "/refactor/replace-value", s.ReplaceValue},
	}
	for _, rt := range routes {
		h, err := s.validated(rt.method, rt.path, rt.handler)
		if err != nil {
			return nil, err
		}
		r.Method(rt.method, rt.path, h)
	}

	return enableCORS(r), nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// validated checks each request against the operation the OpenAPI document declares for
// method and path before calling next.
func (s *Server) validated(method, path string, next http.HandlerFunc) (http.HandlerFunc, error) {
	item := s.spec.Paths.Find(path)
	if item == nil || item.GetOperation(method) == nil {
		return nil, fmt.Errorf("openapi spec has no operation %s %s", method, path)
	}
	route := &routers.Route{
		Spec:      s.spec,
		Path:      path,
		PathItem:  item,
		Method:    method,
		Operation: item.GetOperation(method),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		params := make(map[string]string)
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			for i, key := range rctx.URLParams.Keys {
				params[key] = rctx.URLParams.Values[i]
			}
		}
		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: params,
			Route:      route,
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			s.logger.Warn("request rejected", "method", method, "path", path, "err", err)
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		next(w, r)
	}, nil
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.duration.WithLabelValues(route, fmt.Sprint(status)).Observe(time.Since(start).Seconds())
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"app":         "thicket-http",
		"version":     thicket.Version,
		"api_version": apiVersion,
	})
}

// Resolve handles the POST /resolve request.
func (s *Server) Resolve(w http.ResponseWriter, r *http.Request) {
	var body thicket.ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		s.logger.Warn("Resolve: invalid request body", "err", err)
		return
	}
	if body.Text == "" && body.Template == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "one of text or template is required"})
		return
	}

	res, err := s.Engine.Resolve(r.Context(), body)
	if err != nil {
		s.writeError(w, "Resolve", err)
		return
	}
	if s.metrics != nil {
		s.metrics.observeResolution(res)
	}
	writeJSON(w, http.StatusOK, res)
}

// WildcardSummary is one entry of the wildcard listing.
type WildcardSummary struct {
	Name        string       `json:"name"`
	Scope       domain.Scope `json:"scope,omitempty"`
	Description string       `json:"description,omitempty"`
	Choices     int          `json:"choices"`
	Corrupt     bool         `json:"corrupt,omitempty"`
}

// ListWildcards handles the GET /wildcards request.
func (s *Server) ListWildcards(w http.ResponseWriter, r *http.Request) {
	workflow, ok := s.workflowParam(w, r)
	if !ok {
		return
	}
	corpus, err := s.Engine.Snapshot(r.Context(), workflow)
	if err != nil {
		s.writeError(w, "ListWildcards", err)
		return
	}

	out := make([]WildcardSummary, 0, len(corpus.Wildcards)+len(corpus.Corrupt))
	for _, name := range corpus.Names() {
		wc, _ := corpus.Get(name)
		out = append(out, WildcardSummary{Name: name, Scope: wc.Scope, Description: wc.Description, Choices: len(wc.Choices)})
	}
	for name, cerr := range corpus.Corrupt {
		out = append(out, WildcardSummary{Name: name, Scope: cerr.Scope, Corrupt: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, out)
}

// GetWildcard handles the GET /wildcards/{name} request.
func (s *Server) GetWildcard(w http.ResponseWriter, r *http.Request) {
	name, ok := s.nameParam(w, r)
	if !ok {
		return
	}
	workflow, ok := s.workflowParam(w, r)
	if !ok {
		return
	}
	wc, err := s.Engine.Wildcard(r.Context(), workflow, name)
	if err != nil {
		s.writeError(w, "GetWildcard", err)
		return
	}
	writeJSON(w, http.StatusOK, wc)
}

// SwapRequest is the body of POST /wildcards/{name}/options.
type SwapRequest struct {
	Workflow domain.Workflow     `json:"workflow,omitempty"`
	Bindings map[string][]string `json:"bindings,omitempty"`
}

// SwapOptions handles the POST /wildcards/{name}/options request.
func (s *Server) SwapOptions(w http.ResponseWriter, r *http.Request) {
	name, ok := s.nameParam(w, r)
	if !ok {
		return
	}
	var body SwapRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	workflow, err := domain.ParseWorkflow(string(body.Workflow))
	if err != nil {
		s.writeError(w, "SwapOptions", err)
		return
	}

	choices, err := s.Engine.SwapOptions(r.Context(), workflow, name, body.Bindings)
	if err != nil {
		s.writeError(w, "SwapOptions", err)
		return
	}
	if choices == nil {
		choices = []domain.Choice{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "choices": choices})
}

// Validate handles the GET /validate request.
func (s *Server) Validate(w http.ResponseWriter, r *http.Request) {
	workflow, ok := s.workflowParam(w, r)
	if !ok {
		return
	}
	diags, err := s.Engine.Validate(r.Context(), workflow)
	if err != nil {
		s.writeError(w, "Validate", err)
		return
	}
	if diags == nil {
		diags = []domain.Diagnostic{}
	}
	errs := len(domain.Errors(diags))
	writeJSON(w, http.StatusOK, map[string]any{
		"workflow":    workflow,
		"ok":          errs == 0,
		"errors":      errs,
		"diagnostics": diags,
	})
}

// GetGraph handles the GET /graph request.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	workflow, ok := s.workflowParam(w, r)
	if !ok {
		return
	}
	var format, focus *string
	if err := oapi.BindQueryParameter("form", true, false, "format", r.URL.Query(), &format); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if err := oapi.BindQueryParameter("form", true, false, "focus", r.URL.Query(), &focus); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	g, err := s.Engine.Graph(r.Context(), workflow)
	if err != nil {
		s.writeError(w, "GetGraph", err)
		return
	}

	f := "json"
	if format != nil {
		f = *format
	}
	var overlay *graph.Overlay
	if focus != nil {
		overlay = &graph.Overlay{Focus: *focus}
	}
	data, err := graph.Render(g, f, overlay)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	switch f {
	case "mermaid":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	case "yaml":
		w.Header().Set("Content-Type", "application/yaml")
	default:
		w.Header().Set("Content-Type", "application/json")
	}
	w.Write(data)
}

// RenameRequest is the body of POST /refactor/rename.
type RenameRequest struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// Rename handles the POST /refactor/rename request.
func (s *Server) Rename(w http.ResponseWriter, r *http.Request) {
	var body RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	report, err := s.Engine.Rename(r.Context(), body.Old, body.New)
	s.writeReport(w, "Rename", report, err)
}

// ReplaceValueRequest is the body of POST /refactor/replace-value.
type ReplaceValueRequest struct {
	Scope domain.Scope `json:"scope,omitempty"`
	Name  string       `json:"name"`
	Old   string       `json:"old"`
	New   string       `json:"new"`
}

// ReplaceValue handles the POST /refactor/replace-value request.
func (s *Server) ReplaceValue(w http.ResponseWriter, r *http.Request) {
	var body ReplaceValueRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	report, err := s.Engine.ReplaceValue(r.Context(), body.Scope, body.Name, body.Old, body.New)
	s.writeReport(w, "ReplaceValue", report, err)
}

// -- Helpers --

type errorBody struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func (s *Server) workflowParam(w http.ResponseWriter, r *http.Request) (domain.Workflow, bool) {
	var raw *string
	if err := oapi.BindQueryParameter("form", true, false, "workflow", r.URL.Query(), &raw); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return "", false
	}
	value := ""
	if raw != nil {
		value = *raw
	}
	workflow, err := domain.ParseWorkflow(value)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return "", false
	}
	return workflow, true
}

func (s *Server) nameParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	var name string
	err := oapi.BindStyledParameterWithOptions("simple", "name", chi.URLParam(r, "name"), &name, oapi.BindStyledParameterOptions{
		ParamLocation: oapi.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return "", false
	}
	return name, true
}

func (s *Server) writeReport(w http.ResponseWriter, op string, report *refactor.Report, err error) {
	if s.metrics != nil {
		s.metrics.observeReport(report)
	}
	if errors.Is(err, domain.ErrRefactorPartialFailure) && report != nil {
		s.logger.Warn(op+": partially applied", "err", err)
		writeJSON(w, http.StatusMultiStatus, report)
		return
	}
	if err != nil {
		s.writeError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrMissingWildcard),
		errors.Is(err, domain.ErrTemplateNotFound),
		errors.Is(err, domain.ErrValueNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNameConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCorruptWildcard):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidWorkflow),
		errors.Is(err, domain.ErrSyntax),
		errors.Is(err, runtime.ErrNilTemplate),
		errors.Is(err, sanitize.ErrInvalidUTF8):
		return http.StatusBadRequest
	case errors.Is(err, sanitize.ErrInputTooLarge),
		errors.Is(err, sanitize.ErrTooManyDirectives):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Debug(op+" rejected", "status", status, "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Hint: errors.FlattenHints(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

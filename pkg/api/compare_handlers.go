package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/apidelta/pkg/checker"
	"github.com/platinummonkey/apidelta/pkg/httputil"
	"github.com/platinummonkey/apidelta/pkg/report"
)

// CompareHandlers runs comparisons between stored baselines
type CompareHandlers struct {
	checker *checker.Checker
	tracer  trace.Tracer
}

// NewCompareHandlers creates compare handlers
func NewCompareHandlers(chk *checker.Checker, tracer trace.Tracer) *CompareHandlers {
	return &CompareHandlers{checker: chk, tracer: tracer}
}

// RegisterRoutes registers comparison routes
func (h *CompareHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/compare", h.compare).Methods(http.MethodPost)
	router.HandleFunc("/baselines/{name}/components/{component}/compare", h.compareComponent).Methods(http.MethodGet)
}

// compare handles POST /compare
func (h *CompareHandlers) compare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Before == "" || req.After == "" {
		httputil.WriteBadRequest(w, "before and after are required")
		return
	}
	opts, err := req.Options()
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "api.Compare", trace.WithAttributes(
		attribute.String("apidelta.before", req.Before),
		attribute.String("apidelta.after", req.After),
	))
	defer span.End()

	rep, err := h.checker.CompareByName(ctx, req.Before, req.After, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		writeFailure(w, r, err)
		return
	}
	writeReport(w, span, rep)
}

// compareComponent handles GET /baselines/{name}/components/{component}/compare
func (h *CompareHandlers) compareComponent(w http.ResponseWriter, r *http.Request) {
	name := httputil.PathString(r, "name")
	component := httputil.PathString(r, "component")
	against := httputil.ParseQueryString(r, "against", "")
	if against == "" {
		httputil.WriteBadRequest(w, "against is required")
		return
	}
	vis, err := parseVisibility(httputil.ParseQueryString(r, "visibility", ""))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	includeMinor, err := httputil.ParseQueryBool(r, "include_minor", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "api.CompareComponent", trace.WithAttributes(
		attribute.String("apidelta.baseline", name),
		attribute.String("apidelta.component", component),
		attribute.String("apidelta.against", against),
	))
	defer span.End()

	rep, err := h.checker.CompareComponentByName(ctx, name, component, against, report.Options{
		Visibility:   vis,
		IncludeMinor: includeMinor,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		writeFailure(w, r, err)
		return
	}
	writeReport(w, span, rep)
}

func writeReport(w http.ResponseWriter, span trace.Span, rep *report.Report) {
	span.SetAttributes(
		attribute.String("apidelta.report", rep.ID),
		attribute.Bool("apidelta.passed", rep.Passed()),
	)
	status := http.StatusOK
	if !rep.Passed() {
		status = http.StatusConflict
	}
	_ = httputil.WriteJSON(w, status, rep)
}

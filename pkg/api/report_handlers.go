package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/apidelta/pkg/checker"
	"github.com/platinummonkey/apidelta/pkg/httputil"
	"github.com/platinummonkey/apidelta/pkg/storage"
)

// ReportHandlers serves persisted reports
type ReportHandlers struct {
	checker *checker.Checker
}

// NewReportHandlers creates report handlers
func NewReportHandlers(chk *checker.Checker) *ReportHandlers {
	return &ReportHandlers{checker: chk}
}

// RegisterRoutes registers report routes
func (h *ReportHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/reports", h.listReports).Methods(http.MethodGet)
	router.HandleFunc("/reports/{id}", h.getReport).Methods(http.MethodGet)
}

// listReports handles GET /reports?baseline=&limit=
func (h *ReportHandlers) listReports(w http.ResponseWriter, r *http.Request) {
	store := h.checker.Store()
	if store == nil {
		writeFailure(w, r, checker.ErrNoStore)
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", storage.DefaultReportLimit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	summaries, err := store.ListReports(r.Context(), storage.ReportFilter{
		Baseline: httputil.ParseQueryString(r, "baseline", ""),
		Limit:    limit,
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, ReportListResponse{Reports: summaries, Total: len(summaries)})
}

// getReport handles GET /reports/{id}
func (h *ReportHandlers) getReport(w http.ResponseWriter, r *http.Request) {
	store := h.checker.Store()
	if store == nil {
		writeFailure(w, r, checker.ErrNoStore)
		return
	}
	rep, err := store.GetReport(r.Context(), httputil.PathString(r, "id"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, rep)
}

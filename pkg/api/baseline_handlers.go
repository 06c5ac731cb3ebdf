package api

import (
	"context"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/apidelta/pkg/checker"
	"github.com/platinummonkey/apidelta/pkg/descriptor"
	"github.com/platinummonkey/apidelta/pkg/httputil"
	"github.com/platinummonkey/apidelta/pkg/observability"
	"github.com/platinummonkey/apidelta/pkg/storage"
)

// BaselineNotifier is told about baseline changes made through the API
type BaselineNotifier interface {
	NotifyBaselinePushed(ctx context.Context, info storage.BaselineInfo)
	NotifyBaselineDeleted(ctx context.Context, name string)
}

// BaselineHandlers manages stored baselines
type BaselineHandlers struct {
	checker  *checker.Checker
	notifier BaselineNotifier
}

// NewBaselineHandlers creates baseline handlers. notifier may be nil.
func NewBaselineHandlers(chk *checker.Checker, notifier BaselineNotifier) *BaselineHandlers {
	return &BaselineHandlers{checker: chk, notifier: notifier}
}

// RegisterRoutes registers baseline routes
func (h *BaselineHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/baselines", h.putBaseline).Methods(http.MethodPost)
	router.HandleFunc("/baselines", h.listBaselines).Methods(http.MethodGet)
	router.HandleFunc("/baselines/{name}", h.getBaseline).Methods(http.MethodGet)
	router.HandleFunc("/baselines/{name}", h.deleteBaseline).Methods(http.MethodDelete)
}

func (h *BaselineHandlers) store(w http.ResponseWriter, r *http.Request) (storage.Store, bool) {
	store := h.checker.Store()
	if store == nil {
		writeFailure(w, r, checker.ErrNoStore)
		return nil, false
	}
	return store, true
}

func toResponse(info storage.BaselineInfo) BaselineResponse {
	return BaselineResponse{
		Name:        info.Name,
		Components:  info.Components,
		Fingerprint: info.Fingerprint,
		UpdatedAt:   info.UpdatedAt,
	}
}

// putBaseline handles POST /baselines. The body is a baseline document in YAML or JSON.
func (h *BaselineHandlers) putBaseline(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequest(w, "failed to read body: "+err.Error())
		return
	}
	doc, err := descriptor.Parse(body)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	info, err := store.PutBaseline(r.Context(), doc)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	observability.FromContext(r.Context()).
		WithFields(map[string]interface{}{"baseline": info.Name, "fingerprint": info.Fingerprint}).
		Info("Baseline stored")
	if h.notifier != nil {
		h.notifier.NotifyBaselinePushed(r.Context(), info)
	}
	_ = httputil.WriteCreated(w, toResponse(info))
}

// listBaselines handles GET /baselines
func (h *BaselineHandlers) listBaselines(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	infos, err := store.ListBaselines(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	resp := BaselineListResponse{Baselines: make([]BaselineResponse, 0, len(infos)), Total: len(infos)}
	for _, info := range infos {
		resp.Baselines = append(resp.Baselines, toResponse(info))
	}
	_ = httputil.WriteSuccess(w, resp)
}

// getBaseline handles GET /baselines/{name}. ?format=yaml answers with the stored YAML.
func (h *BaselineHandlers) getBaseline(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	doc, err := store.GetBaseline(r.Context(), httputil.PathString(r, "name"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	if httputil.ParseQueryString(r, "format", "json") == "yaml" {
		data, err := descriptor.Marshal(doc)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	_ = httputil.WriteSuccess(w, doc)
}

// deleteBaseline handles DELETE /baselines/{name}
func (h *BaselineHandlers) deleteBaseline(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	name := httputil.PathString(r, "name")
	if err := store.DeleteBaseline(r.Context(), name); err != nil {
		writeFailure(w, r, err)
		return
	}
	observability.FromContext(r.Context()).WithField("baseline", name).Info("Baseline deleted")
	if h.notifier != nil {
		h.notifier.NotifyBaselineDeleted(r.Context(), name)
	}
	httputil.WriteNoContent(w)
}

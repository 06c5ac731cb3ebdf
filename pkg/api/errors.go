package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/platinummonkey/apidelta/pkg/checker"
	"github.com/platinummonkey/apidelta/pkg/comparator"
	"github.com/platinummonkey/apidelta/pkg/descriptor"
	"github.com/platinummonkey/apidelta/pkg/httputil"
	"github.com/platinummonkey/apidelta/pkg/observability"
	"github.com/platinummonkey/apidelta/pkg/storage"
)

// writeFailure maps domain errors to status codes. Unexpected errors are logged and
// answered with a 500.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var verrs descriptor.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		details := make(map[string]string, len(verrs))
		for _, v := range verrs {
			details[v.Field] = v.Message
		}
		httputil.WriteDetailedError(w, http.StatusBadRequest, descriptor.ErrInvalidDocument, details)
	case errors.Is(err, storage.ErrNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, storage.ErrInvalidName),
		errors.Is(err, descriptor.ErrInvalidDocument),
		errors.Is(err, comparator.ErrInvalidArgument):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, checker.ErrNoStore):
		httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, comparator.ErrCanceled), errors.Is(err, context.Canceled):
		httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "request canceled")
	default:
		observability.FromContext(r.Context()).WithError(err).Error("Request failed")
		httputil.WriteInternalError(w, err)
	}
}

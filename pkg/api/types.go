package api

import (
	"time"

	"github.com/platinummonkey/apidelta/pkg/model"
	"github.com/platinummonkey/apidelta/pkg/report"
)

// CompareRequest is the body of POST /api/v1/compare
type CompareRequest struct {
	Before       string `json:"before"`
	After        string `json:"after"`
	Visibility   string `json:"visibility,omitempty"`
	IncludeMinor bool   `json:"include_minor,omitempty"`
}

// Options converts the request into report options
func (r CompareRequest) Options() (report.Options, error) {
	vis, err := parseVisibility(r.Visibility)
	if err != nil {
		return report.Options{}, err
	}
	return report.Options{Visibility: vis, IncludeMinor: r.IncludeMinor}, nil
}

func parseVisibility(s string) (model.Visibility, error) {
	if s == "" {
		return model.VisibilityAPI, nil
	}
	return model.ParseVisibility(s)
}

// BaselineResponse describes a stored baseline
type BaselineResponse struct {
	Name        string    `json:"name"`
	Components  int       `json:"components"`
	Fingerprint string    `json:"fingerprint"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BaselineListResponse is the body of GET /api/v1/baselines
type BaselineListResponse struct {
	Baselines []BaselineResponse `json:"baselines"`
	Total     int                `json:"total"`
}

// ReportListResponse is the body of GET /api/v1/reports
type ReportListResponse struct {
	Reports []report.Summary `json:"reports"`
	Total   int              `json:"total"`
}

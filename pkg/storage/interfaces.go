package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"lukechampine.com/blake3"

	"github.com/platinummonkey/apidelta/pkg/descriptor"
	"github.com/platinummonkey/apidelta/pkg/report"
)

var (
	// ErrNotFound is returned when a baseline or report does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidName is returned for baseline names that cannot be stored
	ErrInvalidName = errors.New("invalid name")
)

// BaselineReader reads stored baseline documents
type BaselineReader interface {
	GetBaseline(ctx context.Context, name string) (*descriptor.BaselineDocument, error)
	ListBaselines(ctx context.Context) ([]BaselineInfo, error)
}

// BaselineWriter stores and removes baseline documents. PutBaseline replaces an existing
// baseline of the same name.
type BaselineWriter interface {
	PutBaseline(ctx context.Context, doc *descriptor.BaselineDocument) (BaselineInfo, error)
	DeleteBaseline(ctx context.Context, name string) error
}

// ReportStore persists comparison reports
type ReportStore interface {
	SaveReport(ctx context.Context, r *report.Report) error
	GetReport(ctx context.Context, id string) (*report.Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]report.Summary, error)
}

// HealthChecker probes the backend
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Store is the full persistence surface used by the checker and the HTTP API
type Store interface {
	BaselineReader
	BaselineWriter
	ReportStore
	HealthChecker
}

// BaselineInfo is the listing form of a stored baseline
type BaselineInfo struct {
	Name        string    `json:"name"`
	Components  int       `json:"components"`
	Fingerprint string    `json:"fingerprint"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ReportFilter narrows ListReports. Baseline matches either side of a comparison. A zero
// Limit means DefaultReportLimit.
type ReportFilter struct {
	Baseline string
	Limit    int
}

// DefaultReportLimit bounds report listings
const DefaultReportLimit = 100

// EffectiveLimit returns the limit to apply
func (f ReportFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultReportLimit
	}
	return f.Limit
}

// Matches reports whether s passes the filter
func (f ReportFilter) Matches(s report.Summary) bool {
	return f.Baseline == "" || s.Before == f.Baseline || s.After == f.Baseline
}

// ValidateName checks that name can be used as a baseline key. Names become file names and
// object keys, so path separators and dot segments are rejected.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case len(name) > 255:
		return fmt.Errorf("%w: longer than 255 characters", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

// Encode validates doc and returns its canonical YAML encoding with the listing info
func Encode(doc *descriptor.BaselineDocument) ([]byte, BaselineInfo, error) {
	if doc == nil {
		return nil, BaselineInfo{}, fmt.Errorf("%w: nil document", descriptor.ErrInvalidDocument)
	}
	if err := ValidateName(doc.Name); err != nil {
		return nil, BaselineInfo{}, err
	}
	if err := doc.Validate(); err != nil {
		return nil, BaselineInfo{}, err
	}
	data, err := descriptor.Marshal(doc)
	if err != nil {
		return nil, BaselineInfo{}, err
	}
	sum := blake3.Sum256(data)
	return data, BaselineInfo{
		Name:        doc.Name,
		Components:  len(doc.Components),
		Fingerprint: hex.EncodeToString(sum[:]),
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

// Config for storage backend
type Config struct {
	Type string // "filesystem" or "postgres"

	// Filesystem config
	FilesystemRoot string

	// PostgreSQL config
	PostgresURL         string
	PostgresReplicaURLs []string
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration

	// S3 archive config
	S3Enabled      bool
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// Cache config
	CacheEnabled bool
	CacheTTL     map[string]time.Duration
	L1CacheSize  int // entries
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             "filesystem",
		FilesystemRoot:   "/tmp/apidelta",
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		S3Region:         "us-east-1",
		S3Bucket:         "apidelta",
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		CacheEnabled:     true,
		CacheTTL: map[string]time.Duration{
			"report":   24 * time.Hour,
			"baseline": 10 * time.Minute,
		},
		L1CacheSize: 512,
	}
}

// TTL returns the configured cache TTL for kind, or fallback
func (c Config) TTL(kind string, fallback time.Duration) time.Duration {
	if ttl, ok := c.CacheTTL[kind]; ok && ttl > 0 {
		return ttl
	}
	return fallback
}

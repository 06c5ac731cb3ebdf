package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/apidelta/pkg/descriptor"
	"github.com/platinummonkey/apidelta/pkg/observability"
	"github.com/platinummonkey/apidelta/pkg/report"
	"github.com/platinummonkey/apidelta/pkg/storage"
)

var tracer = otel.Tracer("github.com/platinummonkey/apidelta/pkg/storage/postgres")

// Schema creates the tables used by PostgresStorage. The statements are portable between
// PostgreSQL and SQLite.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS baselines (
		name        TEXT PRIMARY KEY,
		document    TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		components  INTEGER NOT NULL,
		created_at  TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id          TEXT PRIMARY KEY,
		before_name TEXT NOT NULL,
		after_name  TEXT NOT NULL,
		component   TEXT NOT NULL,
		compatible  BOOLEAN NOT NULL,
		passed      BOOLEAN NOT NULL,
		deltas      INTEGER NOT NULL,
		body        TEXT NOT NULL,
		created_at  TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS reports_created_at_idx ON reports (created_at)`,
}

func init() {
	storage.RegisterBackend("postgres", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return NewPostgresStorage(ctx, cfg, nil)
	})
}

// PostgresStorage implements storage.Store on a SQL database, with an optional Redis read
// cache and an optional S3 archive
type PostgresStorage struct {
	conns       *ConnectionManager
	s3Client    *S3Client
	redisClient *RedisClient
	logger      *observability.Logger
}

// Option configures a PostgresStorage
type Option func(*PostgresStorage)

// WithRedis caches baseline reads in redis
func WithRedis(c *RedisClient) Option {
	return func(s *PostgresStorage) { s.redisClient = c }
}

// WithS3 archives every stored baseline and report
func WithS3(c *S3Client) Option {
	return func(s *PostgresStorage) { s.s3Client = c }
}

// WithLogger sets the logger
func WithLogger(l *observability.Logger) Option {
	return func(s *PostgresStorage) { s.logger = l }
}

// NewPostgresStorage connects to the configured database and its replicas, applies the
// schema, and attaches Redis and S3 when configured
func NewPostgresStorage(ctx context.Context, config storage.Config, logger *observability.Logger) (*PostgresStorage, error) {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	conns, err := NewConnectionManager(ctx, ConnectionConfig{
		PrimaryURL:  config.PostgresURL,
		ReplicaURLs: config.PostgresReplicaURLs,
		MaxConns:    config.PostgresMaxConns,
		MinConns:    config.PostgresMinConns,
		Timeout:     config.PostgresTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithLogger(logger)}
	if config.S3Enabled {
		s3Client, err := NewS3Client(ctx, config)
		if err != nil {
			conns.Close()
			return nil, fmt.Errorf("failed to create s3 client: %w", err)
		}
		opts = append(opts, WithS3(s3Client))
	}
	if config.CacheEnabled && config.RedisURL != "" {
		redisClient, err := NewRedisClient(config)
		if err != nil {
			conns.Close()
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		opts = append(opts, WithRedis(redisClient))
	}

	s := New(conns, opts...)
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// New wraps existing connections
func New(conns *ConnectionManager, opts ...Option) *PostgresStorage {
	s := &PostgresStorage{conns: conns, logger: observability.NewNopLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate applies Schema
func (s *PostgresStorage) Migrate(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := s.conns.Primary().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// PutBaseline implements storage.Store
func (s *PostgresStorage) PutBaseline(ctx context.Context, doc *descriptor.BaselineDocument) (storage.BaselineInfo, error) {
	data, info, err := storage.Encode(doc)
	if err != nil {
		return storage.BaselineInfo{}, err
	}

	ctx, span := tracer.Start(ctx, "Postgres.PutBaseline", trace.WithAttributes(attribute.String("baseline.name", info.Name)))
	defer span.End()

	query := `
		INSERT INTO baselines (name, document, fingerprint, components, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			document = excluded.document,
			fingerprint = excluded.fingerprint,
			components = excluded.components,
			updated_at = excluded.updated_at
	`
	_, err = s.conns.Primary().ExecContext(ctx, query,
		info.Name,
		string(data),
		info.Fingerprint,
		info.Components,
		info.UpdatedAt,
		info.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		return storage.BaselineInfo{}, fmt.Errorf("failed to store baseline: %w", err)
	}

	if s.redisClient != nil {
		if err := s.redisClient.InvalidateBaseline(ctx, info.Name); err != nil {
			s.logger.WithError(err).WithField("baseline", info.Name).Warn("Failed to invalidate cached baseline")
		}
	}
	if s.s3Client != nil {
		if _, err := s.s3Client.ArchiveBaseline(ctx, info, data); err != nil {
			s.logger.WithError(err).WithField("baseline", info.Name).Warn("Failed to archive baseline")
		}
	}
	return info, nil
}

// GetBaseline implements storage.Store
func (s *PostgresStorage) GetBaseline(ctx context.Context, name string) (*descriptor.BaselineDocument, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, err
	}

	if s.redisClient != nil {
		if doc, err := s.redisClient.GetBaseline(ctx, name); err == nil && doc != nil {
			return doc, nil
		}
	}

	var document string
	err := s.conns.Replica().QueryRowContext(ctx, "SELECT document FROM baselines WHERE name = $1", name).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("baseline %s: %w", name, storage.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get baseline: %w", err)
	}

	doc, err := descriptor.Parse([]byte(document))
	if err != nil {
		return nil, err
	}
	if s.redisClient != nil {
		if err := s.redisClient.SetBaseline(ctx, name, []byte(document)); err != nil {
			s.logger.WithError(err).WithField("baseline", name).Debug("Failed to cache baseline")
		}
	}
	return doc, nil
}

// ListBaselines implements storage.Store
func (s *PostgresStorage) ListBaselines(ctx context.Context) ([]storage.BaselineInfo, error) {
	rows, err := s.conns.Replica().QueryContext(ctx,
		"SELECT name, components, fingerprint, updated_at FROM baselines ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list baselines: %w", err)
	}
	defer rows.Close()

	infos := []storage.BaselineInfo{}
	for rows.Next() {
		var info storage.BaselineInfo
		if err := rows.Scan(&info.Name, &info.Components, &info.Fingerprint, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan baseline: %w", err)
		}
		info.UpdatedAt = info.UpdatedAt.UTC()
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating baselines: %w", err)
	}
	return infos, nil
}

// DeleteBaseline implements storage.Store
func (s *PostgresStorage) DeleteBaseline(ctx context.Context, name string) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}

	result, err := s.conns.Primary().ExecContext(ctx, "DELETE FROM baselines WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("failed to delete baseline: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete baseline: %w", err)
	}
	if s.redisClient != nil {
		s.redisClient.InvalidateBaseline(ctx, name)
	}
	if affected == 0 {
		return fmt.Errorf("baseline %s: %w", name, storage.ErrNotFound)
	}
	return nil
}

// SaveReport implements storage.Store
func (s *PostgresStorage) SaveReport(ctx context.Context, r *report.Report) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("report must have an id")
	}

	ctx, span := tracer.Start(ctx, "Postgres.SaveReport", trace.WithAttributes(attribute.String("report.id", r.ID)))
	defer span.End()

	var body strings.Builder
	if err := report.RenderJSON(&body, r); err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	summary := r.Summarize()

	query := `
		INSERT INTO reports (id, before_name, after_name, component, compatible, passed, deltas, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.conns.Primary().ExecContext(ctx, query,
		summary.ID,
		summary.Before,
		summary.After,
		summary.Component,
		summary.Compatible,
		summary.Passed,
		summary.Deltas,
		body.String(),
		summary.CreatedAt.UTC(),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to store report: %w", err)
	}

	if s.s3Client != nil {
		if _, err := s.s3Client.ArchiveReport(ctx, r); err != nil {
			s.logger.WithError(err).WithField("report", r.ID).Warn("Failed to archive report")
		}
	}
	return nil
}

// GetReport implements storage.Store
func (s *PostgresStorage) GetReport(ctx context.Context, id string) (*report.Report, error) {
	var body string
	err := s.conns.Replica().QueryRowContext(ctx, "SELECT body FROM reports WHERE id = $1", id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", id, storage.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report.Decode([]byte(body))
}

// ListReports implements storage.Store, newest first
func (s *PostgresStorage) ListReports(ctx context.Context, filter storage.ReportFilter) ([]report.Summary, error) {
	query := "SELECT id, before_name, after_name, component, compatible, passed, deltas, created_at FROM reports"
	args := []interface{}{}
	if filter.Baseline != "" {
		query += " WHERE before_name = $1 OR after_name = $1"
		args = append(args, filter.Baseline)
	}
	args = append(args, filter.EffectiveLimit())
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d", len(args))

	rows, err := s.conns.Replica().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	summaries := []report.Summary{}
	for rows.Next() {
		var sm report.Summary
		if err := rows.Scan(&sm.ID, &sm.Before, &sm.After, &sm.Component, &sm.Compatible, &sm.Passed, &sm.Deltas, &sm.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		sm.CreatedAt = sm.CreatedAt.UTC()
		summaries = append(summaries, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return summaries, nil
}

// HealthCheck implements storage.Store
func (s *PostgresStorage) HealthCheck(ctx context.Context) error {
	if err := s.conns.HealthCheck(ctx); err != nil {
		return fmt.Errorf("postgres unhealthy: %w", err)
	}
	if s.s3Client != nil {
		if err := s.s3Client.HealthCheck(ctx); err != nil {
			return fmt.Errorf("s3 unhealthy: %w", err)
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(ctx); err != nil {
			return fmt.Errorf("redis unhealthy: %w", err)
		}
	}
	return nil
}

// Connections returns the connection manager
func (s *PostgresStorage) Connections() *ConnectionManager {
	return s.conns
}

// Redis returns the Redis client, nil when not configured
func (s *PostgresStorage) Redis() *RedisClient {
	return s.redisClient
}

// Close closes all connections
func (s *PostgresStorage) Close() error {
	var errs []error
	if s.conns != nil {
		errs = append(errs, s.conns.Close())
	}
	if s.redisClient != nil {
		errs = append(errs, s.redisClient.Close())
	}
	return errors.Join(errs...)
}

// compile-time check
var _ storage.Store = (*PostgresStorage)(nil)

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/apidelta/pkg/delta"
	"github.com/platinummonkey/apidelta/pkg/descriptor"
	"github.com/platinummonkey/apidelta/pkg/report"
	"github.com/platinummonkey/apidelta/pkg/storage"
)

func sampleDoc(name, version string) *descriptor.BaselineDocument {
	return &descriptor.BaselineDocument{
		Name: name,
		Components: []descriptor.ComponentDocument{{
			ID:       "a.b",
			Version:  version,
			Packages: []descriptor.PackageDocument{{Name: "a.b", Visibility: "api"}},
			Types: []descriptor.TypeDocument{{
				Name:      "a.b.Widget",
				Modifiers: []string{"public"},
				Methods:   []descriptor.MemberDocument{{Name: "run", Descriptor: "()V", Modifiers: []string{"public"}}},
			}},
		}},
	}
}

func sampleReport(before, after string, created time.Time) *report.Report {
	r := report.New(before, after, report.Options{}, delta.NoDelta, time.Millisecond)
	r.CreatedAt = created
	return r
}

// newSQLiteStorage runs the store against an in-memory SQLite database
func newSQLiteStorage(t *testing.T, opts ...Option) *PostgresStorage {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	s := New(NewConnectionManagerFromDB(db), opts...)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresStorage_Baselines(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStorage(t)

	info, err := s.PutBaseline(ctx, sampleDoc("release-1", "1.0.0"))
	require.NoError(t, err)
	assert.Equal(t, 1, info.Components)
	_, err = s.PutBaseline(ctx, sampleDoc("release-0", "0.9.0"))
	require.NoError(t, err)

	got, err := s.GetBaseline(ctx, "release-1")
	require.NoError(t, err)
	assert.Equal(t, sampleDoc("release-1", "1.0.0"), got)

	updated, err := s.PutBaseline(ctx, sampleDoc("release-1", "1.1.0"))
	require.NoError(t, err)
	assert.NotEqual(t, info.Fingerprint, updated.Fingerprint)

	infos, err := s.ListBaselines(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "release-0", infos[0].Name)
	assert.Equal(t, "release-1", infos[1].Name)
	assert.Equal(t, updated.Fingerprint, infos[1].Fingerprint)

	got, err = s.GetBaseline(ctx, "release-1")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", got.Components[0].Version)

	require.NoError(t, s.DeleteBaseline(ctx, "release-1"))
	_, err = s.GetBaseline(ctx, "release-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteBaseline(ctx, "release-1"), storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteBaseline(ctx, "a/b"), storage.ErrInvalidName)
}

func TestPostgresStorage_Reports(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStorage(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := sampleReport("r1", "r2", now.Add(-time.Hour))
	second := sampleReport("r2", "r3", now)
	third := sampleReport("x", "y", now.Add(-2*time.Hour))
	for _, r := range []*report.Report{first, second, third} {
		require.NoError(t, s.SaveReport(ctx, r))
	}
	assert.Error(t, s.SaveReport(ctx, first), "duplicate id")

	got, err := s.GetReport(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "r3", got.After)
	assert.True(t, got.Passed())

	_, err = s.GetReport(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	all, err := s.ListReports(ctx, storage.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{second.ID, first.ID, third.ID}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.True(t, all[0].CreatedAt.Equal(now))
	assert.True(t, all[0].Compatible)

	filtered, err := s.ListReports(ctx, storage.ReportFilter{Baseline: "r2", Limit: 1})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, second.ID, filtered[0].ID)
}

func TestPostgresStorage_SQLErrors(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := New(NewConnectionManagerFromDB(db))

	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO baselines").WillReturnError(boom)
	_, err = s.PutBaseline(ctx, sampleDoc("r", "1.0.0"))
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery("SELECT document FROM baselines").WithArgs("r").WillReturnError(boom)
	_, err = s.GetBaseline(ctx, "r")
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery("SELECT name, components").
		WillReturnRows(sqlmock.NewRows([]string{"name", "components", "fingerprint", "updated_at"}).
			AddRow("r", "not-a-number", "ff", time.Now()))
	_, err = s.ListBaselines(ctx)
	assert.Error(t, err)

	mock.ExpectExec("DELETE FROM baselines").WithArgs("r").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.DeleteBaseline(ctx, "r"), storage.ErrNotFound)

	mock.ExpectQuery("FROM reports WHERE before_name = \\$1 OR after_name = \\$1").
		WithArgs("r", storage.DefaultReportLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id", "before_name", "after_name", "component", "compatible", "passed", "deltas", "created_at"}))
	summaries, err := s.ListReports(ctx, storage.ReportFilter{Baseline: "r"})
	require.NoError(t, err)
	assert.Empty(t, summaries)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_RejectsInvalidDocuments(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := New(NewConnectionManagerFromDB(db))

	_, err = s.PutBaseline(context.Background(), &descriptor.BaselineDocument{Name: "r", Components: []descriptor.ComponentDocument{{}}})
	assert.ErrorIs(t, err, descriptor.ErrInvalidDocument)
	assert.Error(t, s.SaveReport(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_RegisteredBackend(t *testing.T) {
	assert.Contains(t, storage.Backends(), "postgres")
}

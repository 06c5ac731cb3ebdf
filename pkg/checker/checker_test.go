package checker

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/apidelta/pkg/cache"
	"github.com/platinummonkey/apidelta/pkg/comparator"
	"github.com/platinummonkey/apidelta/pkg/descriptor"
	"github.com/platinummonkey/apidelta/pkg/model"
	"github.com/platinummonkey/apidelta/pkg/observability"
	"github.com/platinummonkey/apidelta/pkg/report"
	"github.com/platinummonkey/apidelta/pkg/storage"
)

func doc(name, version string, methods ...string) *descriptor.BaselineDocument {
	var members []descriptor.MemberDocument
	for _, m := range methods {
		members = append(members, descriptor.MemberDocument{Name: m, Descriptor: "()V", Modifiers: []string{"public"}})
	}
	return &descriptor.BaselineDocument{
		Name: name,
		Components: []descriptor.ComponentDocument{{
			ID:       "a.b",
			Version:  version,
			Packages: []descriptor.PackageDocument{{Name: "a.b", Visibility: "api"}},
			Types: []descriptor.TypeDocument{{
				Name:      "a.b.Widget",
				Modifiers: []string{"public"},
				Methods:   members,
			}},
		}},
	}
}

func newStore(t *testing.T, docs ...*descriptor.BaselineDocument) storage.Store {
	t.Helper()
	store, err := storage.NewFileSystemStorage(t.TempDir())
	require.NoError(t, err)
	for _, d := range docs {
		_, err := store.PutBaseline(context.Background(), d)
		require.NoError(t, err)
	}
	return store
}

var apiOnly = report.Options{Visibility: model.VisibilityAPI}

func TestCompareByName(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, doc("r1", "1.0.0", "run", "stop"), doc("r2", "1.1.0", "run"))
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	chk, err := New(nil, WithStore(store), WithMetrics(metrics))
	require.NoError(t, err)

	r, err := chk.CompareByName(ctx, "r1", "r2", apiOnly)
	require.NoError(t, err)
	assert.Equal(t, "r1", r.Before)
	assert.Equal(t, "r2", r.After)
	assert.False(t, r.Result.Compatible)
	assert.False(t, r.Passed())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.VersionProblemsTotal.WithLabelValues("MAJOR_VERSION_REQUIRED")))

	stored, err := store.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, stored.ID)
	assert.False(t, stored.Result.Compatible)

	again, err := chk.CompareByName(ctx, "r1", "r2", apiOnly)
	require.NoError(t, err)
	assert.NotEqual(t, r.ID, again.ID)
}

func TestCompareByName_Errors(t *testing.T) {
	ctx := context.Background()

	chk, err := New(nil)
	require.NoError(t, err)
	_, err = chk.CompareByName(ctx, "r1", "r2", apiOnly)
	assert.ErrorIs(t, err, ErrNoStore)

	chk, err = New(nil, WithStore(newStore(t, doc("r1", "1.0.0", "run"))))
	require.NoError(t, err)
	_, err = chk.CompareByName(ctx, "r1", "missing", apiOnly)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = chk.CompareBaselines(ctx, nil, nil, apiOnly)
	assert.ErrorIs(t, err, comparator.ErrInvalidArgument)
}

func TestCompareByName_Cached(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, doc("r1", "1.0.0", "run"), doc("r2", "1.0.1", "run"))
	rc := cache.NewMemoryCache(cache.DefaultConfig())
	notes := &recordingNotifier{}

	chk, err := New(nil, WithStore(store), WithCache(rc), WithNotifier(notes))
	require.NoError(t, err)

	first, err := chk.CompareByName(ctx, "r1", "r2", apiOnly)
	require.NoError(t, err)
	assert.True(t, first.Passed())

	second, err := chk.CompareByName(ctx, "r1", "r2", apiOnly)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// different options miss the cache
	third, err := chk.CompareByName(ctx, "r1", "r2", report.Options{Visibility: model.VisibilityAll})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)

	summaries, err := store.ListReports(ctx, storage.ReportFilter{})
	require.NoError(t, err)
	assert.Len(t, summaries, 2)

	stats, err := rc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Hits)

	// cache hits are not announced again
	assert.Equal(t, []string{first.ID, third.ID}, notes.ids)
}

func TestCompareByName_CacheKeepsNames(t *testing.T) {
	ctx := context.Background()
	store := newStore(t,
		doc("r1", "1.0.0", "run", "stop"), doc("r2", "1.1.0", "run"),
		doc("release-a", "1.0.0", "run", "stop"), doc("release-b", "1.1.0", "run"),
	)
	rc := cache.NewMemoryCache(cache.DefaultConfig())
	chk, err := New(nil, WithStore(store), WithCache(rc))
	require.NoError(t, err)

	first, err := chk.CompareByName(ctx, "r1", "r2", apiOnly)
	require.NoError(t, err)

	// same content under other names is a separate comparison
	second, err := chk.CompareByName(ctx, "release-a", "release-b", apiOnly)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "release-a", second.Before)
	assert.Equal(t, "release-b", second.After)
	assert.Equal(t, first.Result.Compatible, second.Result.Compatible)

	stored, err := store.GetReport(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "release-a", stored.Before)

	summaries, err := store.ListReports(ctx, storage.ReportFilter{})
	require.NoError(t, err)
	assert.Len(t, summaries, 2)

	again, err := chk.CompareByName(ctx, "release-a", "release-b", apiOnly)
	require.NoError(t, err)
	assert.Equal(t, second.ID, again.ID)
}

type recordingNotifier struct {
	ids []string
}

func (n *recordingNotifier) NotifyReport(_ context.Context, r *report.Report) {
	n.ids = append(n.ids, r.ID)
}

func TestCompareComponentByName(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, doc("r1", "1.0.0", "run"), doc("r2", "1.0.0", "run", "start"))

	chk, err := New(nil, WithStore(store))
	require.NoError(t, err)

	r, err := chk.CompareComponentByName(ctx, "r2", "a.b", "r1", apiOnly)
	require.NoError(t, err)
	assert.Equal(t, "a.b", r.Component)
	assert.Equal(t, "r1", r.Before)
	assert.Equal(t, "r2", r.After)
	assert.True(t, r.Result.Compatible)
	assert.False(t, r.Delta.IsEmpty())
	require.NotEmpty(t, r.VersionProblems)
	assert.Equal(t, "MINOR_VERSION_REQUIRED", r.VersionProblems[0].Rule)

	_, err = chk.CompareComponentByName(ctx, "r2", "x.y", "r1", apiOnly)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestCompareDocuments(t *testing.T) {
	chk, err := New(comparator.New())
	require.NoError(t, err)

	r, err := chk.CompareDocuments(context.Background(), doc("r1", "1.0.0", "run"), doc("r2", "1.0.0", "run"), apiOnly)
	require.NoError(t, err)
	assert.True(t, r.Passed())
	assert.True(t, r.Delta.IsEmpty())
	assert.Empty(t, r.Component)

	_, err = chk.CompareDocuments(context.Background(), &descriptor.BaselineDocument{}, doc("r2", "1.0.0"), apiOnly)
	assert.ErrorIs(t, err, descriptor.ErrInvalidDocument)
}

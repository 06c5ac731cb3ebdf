package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReplicaURLs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: nil},
		{name: "single URL", input: "postgres://localhost:5432/db", expected: []string{"postgres://localhost:5432/db"}},
		{
			name:     "whitespace and empty entries",
			input:    " postgres://h1:5432/db ,, postgres://h2:5432/db ,",
			expected: []string{"postgres://h1:5432/db", "postgres://h2:5432/db"},
		},
		{name: "only separators", input: " , , ", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseReplicaURLs(tt.input))
		})
	}
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	return db, mock
}

func TestConnectionManager_ReplicaSelection(t *testing.T) {
	primary, _ := newMockDB(t)
	cm := NewConnectionManagerFromDB(primary)
	assert.Same(t, primary, cm.Replica())

	r1, _ := newMockDB(t)
	r2, _ := newMockDB(t)
	cm = NewConnectionManagerFromDB(primary, r1, r2)
	assert.Equal(t, 2, cm.ReplicaCount())
	assert.Same(t, primary, cm.Primary())

	seen := map[*sql.DB]int{}
	for i := 0; i < 4; i++ {
		seen[cm.Replica()]++
	}
	assert.Equal(t, 2, seen[r1])
	assert.Equal(t, 2, seen[r2])
	assert.Len(t, cm.Stats().Replicas, 2)
}

func TestConnectionManager_HealthCheck(t *testing.T) {
	ctx := context.Background()

	primary, pm := newMockDB(t)
	replica, rm := newMockDB(t)
	cm := NewConnectionManagerFromDB(primary, replica)

	pm.ExpectPing()
	rm.ExpectPing()
	assert.NoError(t, cm.HealthCheck(ctx))

	pm.ExpectPing()
	rm.ExpectPing().WillReturnError(errors.New("down"))
	assert.ErrorContains(t, cm.HealthCheck(ctx), "all replicas unhealthy")

	pm.ExpectPing().WillReturnError(errors.New("down"))
	assert.ErrorContains(t, cm.HealthCheck(ctx), "primary unhealthy")

	assert.NoError(t, pm.ExpectationsWereMet())
	assert.NoError(t, rm.ExpectationsWereMet())
}

func TestConnectionManager_RemoveUnhealthyReplicas(t *testing.T) {
	primary, _ := newMockDB(t)
	good, gm := newMockDB(t)
	bad, bm := newMockDB(t)
	cm := NewConnectionManagerFromDB(primary, good, bad)

	gm.ExpectPing()
	bm.ExpectPing().WillReturnError(errors.New("down"))
	bm.ExpectClose()

	assert.Equal(t, 1, cm.RemoveUnhealthyReplicas(context.Background()))
	assert.Equal(t, 1, cm.ReplicaCount())
	assert.Same(t, good, cm.Replica())
	assert.NoError(t, bm.ExpectationsWereMet())
}

func TestConnectionManager_Close(t *testing.T) {
	primary, pm := newMockDB(t)
	replica, rm := newMockDB(t)
	cm := NewConnectionManagerFromDB(primary, replica)

	pm.ExpectClose()
	rm.ExpectClose().WillReturnError(errors.New("busy"))
	err := cm.Close()
	assert.ErrorContains(t, err, "replica-0")
	assert.Equal(t, 0, cm.ReplicaCount())
}

func TestConnectionConfig_Defaults(t *testing.T) {
	cfg := ConnectionConfig{}.withDefaults()
	assert.Equal(t, 20, cfg.MaxConns)
	assert.Equal(t, 2, cfg.MinConns)
	assert.NotZero(t, cfg.Timeout)

	cfg = ConnectionConfig{MaxConns: 5}.withDefaults()
	assert.Equal(t, 5, cfg.MaxConns)
}

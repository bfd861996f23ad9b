package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/issue-tracker/internal/config"
)

func TestQueryTracerLogsFailuresOnly(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tracer := &queryTracer{logger: zap.New(core)}

	trace := func(sql string, err error) {
		ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: sql})
		tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: err})
	}

	trace("SELECT 1", nil)
	trace("SELECT id FROM issues WHERE id=$1", pgx.ErrNoRows)
	trace("SELECT\n    id\n  FROM licenses", errors.New("connection reset"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "query failed", entries[0].Message)
	assert.Equal(t, "SELECT id FROM licenses", entries[0].ContextMap()["sql"])
}

func TestPostgresWithoutDSN(t *testing.T) {
	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Nil(t, pg.PoolHandle())
	assert.Error(t, pg.Ping(context.Background()))
	pg.Close()
}

func TestRedisWithoutAddr(t *testing.T) {
	r := NewRedis(context.Background(), config.RedisConfig{}, zaptest.NewLogger(t))
	assert.False(t, r.Configured())
	assert.ErrorIs(t, r.Ping(context.Background()), ErrRedisNotConfigured)
	r.Close()
}

func TestRunMigrationsWithoutPool(t *testing.T) {
	require.NoError(t, RunMigrations(context.Background(), nil, "does-not-exist", zaptest.NewLogger(t)))
}

func TestMigrationFilesSortedSQLOnly(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_licenses.sql", "0001_init.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "0000_dir.sql"), 0o700))

	files, err := migrationFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql", "0002_licenses.sql"}, files)

	_, err = migrationFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

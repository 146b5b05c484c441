package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vehicle-quality/acd-registry/pkg/authz"
	"github.com/vehicle-quality/acd-registry/pkg/investigation"
)

func TestOpen_RejectsUnknownType(t *testing.T) {
	_, err := Open(Config{Type: "oracle", DSN: "x"})
	assert.ErrorContains(t, err, "unsupported database type")

	_, err = Open(Config{Type: TypeSQLite})
	assert.ErrorContains(t, err, "DSN is required")
}

func TestOpen_SQLiteSingleConnection(t *testing.T) {
	gdb, err := Open(Config{Type: TypeSQLite, DSN: ":memory:", MaxOpenConns: 8, LogLevel: "silent"})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	require.NoError(t, Ping(context.Background(), gdb))
}

func TestMigrate_CreatesSchemaUnderLock(t *testing.T) {
	ctx := context.Background()
	gdb, err := Open(Config{Type: TypeSQLite, DSN: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)

	svc := investigation.NewService(gdb)
	require.NoError(t, Migrate(ctx, gdb, svc))

	for _, table := range []string{"projects", "source_links", "audit_events", "migration_lock"} {
		assert.True(t, gdb.Migrator().HasTable(table), table)
	}

	p, err := svc.CreateProject(ctx, authz.RoleAdmin, investigation.CreateProjectInput{
		Title: "X", SymptomCode: "S1", Market: "UK", Model: "MG4",
	})
	require.NoError(t, err)
	assert.Equal(t, "ACD000001", p.ProjectID)

	// Migrating again is a no-op.
	require.NoError(t, Migrate(ctx, gdb, svc))
}

func TestGormLoggerLevels(t *testing.T) {
	for _, lvl := range []string{"silent", "error", "warn", "info", "bogus"} {
		assert.NotNil(t, newGormLogger(lvl))
	}
}

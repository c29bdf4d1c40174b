//go:build integration
// +build integration

package integration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tneupaney/dbAnalyzer"
	"github.com/tneupaney/dbAnalyzer/internal/analyze"
	"github.com/tneupaney/dbAnalyzer/internal/db"
)

var sampleTables = []string{"audit_log", "customers", "order_items", "orders", "products", "users"}

func TestSQLiteDiscovery(t *testing.T) {
	ctx := context.Background()
	descs := setupSampleShards(t, 2)

	provider := db.NewSQLiteProvider(slog.New(slog.NewTextHandler(io.Discard, nil)))
	cat := db.Discover(ctx, provider, descs, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, cat.Validate())

	require.Len(t, cat.Shards, 2)
	for _, shardName := range []string{"shard_1", "shard_2"} {
		shard, ok := cat.Shards[shardName]
		require.True(t, ok, "missing %s", shardName)

		for _, table := range sampleTables {
			assert.Contains(t, shard.Tables, table)
		}

		orders := shard.Tables["orders"]
		assert.Equal(t, []string{"order_id"}, orders.PrimaryKey)
		require.Len(t, orders.ForeignKeys, 1)
		assert.Equal(t, "customers", orders.ForeignKeys[0].ToTable)
		assert.Equal(t, []string{"customer_id"}, orders.ForeignKeys[0].FromColumns)

		items := shard.Tables["order_items"]
		assert.Len(t, items.ForeignKeys, 2)

		auditPK := shard.Tables["audit_log"].Column("log_id")
		require.NotNil(t, auditPK)
		assert.Contains(t, auditPK.DeclaredType, "AUTOINCREMENT")

		require.Len(t, shard.Triggers, 1)
		trigger := shard.Triggers[0]
		assert.Equal(t, "after_insert_orders_trigger", trigger.Name)
		assert.Equal(t, "orders", trigger.Table)
	}

	// 3 foreign keys and 1 trigger per shard.
	assert.Len(t, cat.Relationships, 6)
	assert.Len(t, cat.Triggers, 2)

	// Discovery reads without writing, so a second run over the same shards
	// produces an identical catalog.
	again := db.Discover(ctx, provider, descs, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, cat, again)
}

func TestSQLiteFullAnalysis(t *testing.T) {
	ctx := context.Background()
	descs := setupSampleShards(t, 2)

	rep, err := dbanalyzer.Analyze(ctx, dbanalyzer.DialectSQLite, descs, &dbanalyzer.Options{
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		TriggerBatchSize: 20,
	})
	require.NoError(t, err)
	require.Len(t, rep.Catalog.Shards, 2)
	assert.NotEmpty(t, rep.RunID)

	// Every table yields at least the sample select and row count probes.
	assert.GreaterOrEqual(t, len(rep.Queries), 2*len(sampleTables))
	for _, q := range rep.Queries {
		assert.False(t, q.Failed, "query %s failed: %s", q.Name, q.Status)
	}

	// orders.customer_id carries a foreign key but no index.
	fkWarnings := findingsContaining(rep.IndexIssues, "Missing index on foreign key")
	assert.NotEmpty(t, fkWarnings)
	assert.NotEmpty(t, rep.IndexSuggestions)

	// Shard 1 is seeded with an orphaned order and an orphaned order item.
	orphans := findingsContaining(rep.Integrity, "Foreign Key Violation")
	require.NotEmpty(t, orphans)
	for _, f := range orphans {
		assert.Equal(t, analyze.SeverityCritical, f.Severity)
		assert.Equal(t, "shard_1", f.Shard)
	}
	assert.NotEmpty(t, findingsContaining(rep.Integrity, "orphaned record(s) in 'orders'"))
	assert.NotEmpty(t, findingsContaining(rep.Integrity, "orphaned record(s) in 'order_items'"))

	// Unique columns hold distinct values per shard.
	assert.Empty(t, findingsContaining(rep.Integrity, "Duplicate Unique Constraint"))

	// password_hash and the email columns are classified.
	assert.NotEmpty(t, findingsContaining(rep.Security, "password"))
	assert.NotEmpty(t, findingsContaining(rep.Security, "email addresses"))

	// The orders trigger is timed on both shards, with the audit side signal.
	inserted := findingsContaining(rep.Triggers, "Inserted 20 records")
	assert.Len(t, inserted, 2)
	assert.NotEmpty(t, findingsContaining(rep.Triggers, "Audit log entries"))

	assert.NotEmpty(t, rep.Relationships)
}

func TestSQLiteAnalysisSurvivesMissingShard(t *testing.T) {
	ctx := context.Background()
	descs := setupSampleShards(t, 1)
	descs = append(descs, dbanalyzer.Descriptor{Path: filepath.Join(t.TempDir(), "missing.db")})

	rep, err := dbanalyzer.Analyze(ctx, dbanalyzer.DialectSQLite, descs, &dbanalyzer.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	assert.Len(t, rep.Catalog.Shards, 1, "unreachable shard must be skipped, not fatal")
}

func TestSQLiteReportOutput(t *testing.T) {
	ctx := context.Background()
	descs := setupSampleShards(t, 2)

	rep, err := dbanalyzer.Analyze(ctx, dbanalyzer.DialectSQLite, descs, &dbanalyzer.Options{
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		TriggerBatchSize: 5,
	})
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, dbanalyzer.WriteReport(rep, &dbanalyzer.OutputOptions{Writer: &buf}))
	assert.Contains(t, buf.String(), "DATABASE ANALYSIS REPORT")
	assert.Contains(t, buf.String(), "TABLE orders")

	outDir := t.TempDir()
	require.NoError(t, dbanalyzer.WriteReport(rep, &dbanalyzer.OutputOptions{OutputDir: outDir}))
	for _, name := range []string{"_overview.md", "queries.md", "indexes.md", "integrity.md", "security.md", "triggers.md", "relationships.md"} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, "expected %s", name)
	}
}

package analyze

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tneupaney/dbAnalyzer/internal/db"
	"github.com/tneupaney/dbAnalyzer/internal/schema"
)

func TestSynthesizeBatchSkipsAutoPrimaryKey(t *testing.T) {
	table := &schema.TableSchema{
		Columns: []schema.ColumnInfo{
			{Name: "log_id", DeclaredType: "INTEGER AUTOINCREMENT"},
			{Name: "action", DeclaredType: "TEXT"},
			{Name: "entity_id", DeclaredType: "INTEGER"},
		},
		PrimaryKey: []string{"log_id"},
	}

	cols, rows := synthesizeBatch(table, "audit_log", "AUTOINCREMENT", 3, 0)

	if len(cols) != 2 || cols[0] != "action" || cols[1] != "entity_id" {
		t.Fatalf("Expected [action entity_id], got %v", cols)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 value rows, got %d", len(rows))
	}
	for i, row := range rows {
		if len(row) != 2 {
			t.Fatalf("Row %d has %d values, want 2", i, len(row))
		}
	}
}

func TestSynthesizeBatchKeepsPlainPrimaryKey(t *testing.T) {
	// A non-generated primary key still needs an explicit value.
	table := &schema.TableSchema{
		Columns: []schema.ColumnInfo{
			{Name: "order_id", DeclaredType: "INTEGER"},
			{Name: "amount", DeclaredType: "REAL"},
		},
		PrimaryKey: []string{"order_id"},
	}

	cols, _ := synthesizeBatch(table, "orders", "AUTOINCREMENT", 1, 0)
	if len(cols) != 2 {
		t.Fatalf("Expected both columns insertable, got %v", cols)
	}
}

func TestSynthesizeBatchOffsetAdvancesPerBatch(t *testing.T) {
	table := &schema.TableSchema{
		Columns: []schema.ColumnInfo{
			{Name: "entity_id", DeclaredType: "INTEGER"},
		},
	}

	_, first := synthesizeBatch(table, "audit_log", "AUTOINCREMENT", 10, 0)
	_, second := synthesizeBatch(table, "audit_log", "AUTOINCREMENT", 10, 1)

	if first[0][0].(int) == second[0][0].(int) {
		t.Error("Expected distinct key ranges for consecutive batches")
	}
}

func TestSynthesizeValue(t *testing.T) {
	tests := []struct {
		name        string
		col         schema.ColumnInfo
		i           int
		ordersStyle bool
		want        any
	}{
		{
			name: "integer offsets from counter base",
			col:  schema.ColumnInfo{Name: "entity_id", DeclaredType: "INTEGER"},
			i:    3,
			want: 1_000_003,
		},
		{
			name: "float steps by half",
			col:  schema.ColumnInfo{Name: "amount", DeclaredType: "REAL"},
			i:    5,
			want: 102.5,
		},
		{
			name: "date-named text",
			col:  schema.ColumnInfo{Name: "order_date", DeclaredType: "TEXT"},
			i:    4,
			want: "2025-01-05",
		},
		{
			name: "email-named text",
			col:  schema.ColumnInfo{Name: "email", DeclaredType: "TEXT"},
			i:    2,
			want: "test2@example.com",
		},
		{
			name: "name-named text",
			col:  schema.ColumnInfo{Name: "username", DeclaredType: "TEXT"},
			i:    7,
			want: "TestName7",
		},
		{
			name: "plain text",
			col:  schema.ColumnInfo{Name: "notes", DeclaredType: "TEXT"},
			i:    1,
			want: "dummy_value_1",
		},
		{
			name: "unknown type",
			col:  schema.ColumnInfo{Name: "payload", DeclaredType: "BLOB"},
			want: nil,
		},
		{
			name:        "orders-style customer reference cycles",
			col:         schema.ColumnInfo{Name: "customer_id", DeclaredType: "INTEGER"},
			i:           7,
			ordersStyle: true,
			want:        2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := synthesizeValue(tt.col, tt.i, triggerCounterBase, tt.ordersStyle)
			if got != tt.want {
				t.Errorf("synthesizeValue(%s) = %v, want %v", tt.col.Name, got, tt.want)
			}
		})
	}
}

func TestSynthesizeValueCustomerCycleStaysInRange(t *testing.T) {
	col := schema.ColumnInfo{Name: "customer_id", DeclaredType: "INTEGER"}
	for i := 0; i < 20; i++ {
		v := synthesizeValue(col, i, 0, true).(int)
		if v < 1 || v > fkCycleRange {
			t.Fatalf("Cycle value %d out of [1,%d] at i=%d", v, fkCycleRange, i)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	if cfg.queryTimeout() != defaultQueryTimeout {
		t.Errorf("Expected default timeout %v, got %v", defaultQueryTimeout, cfg.queryTimeout())
	}
	if cfg.triggerBatchSize() != defaultTriggerBatchSize {
		t.Errorf("Expected default batch %d, got %d", defaultTriggerBatchSize, cfg.triggerBatchSize())
	}
	if cfg.workers(4) != 4 {
		t.Errorf("Expected workers to default to shard count")
	}
	if cfg.workers(0) != 1 {
		t.Errorf("Expected workers floor of 1")
	}
	cfg.Workers = 2
	if cfg.workers(8) != 2 {
		t.Errorf("Expected explicit workers to win")
	}
}

func TestTupleExpr(t *testing.T) {
	if got := tupleExpr([]string{"customer_id"}); got != "customer_id" {
		t.Errorf("Single column should stay bare, got %q", got)
	}
	if got := tupleExpr([]string{"a", "b"}); got != "(a, b)" {
		t.Errorf("Composite key should form a row value, got %q", got)
	}
}

func TestErrorFinding(t *testing.T) {
	f := errorFinding(KindTrigger, "shard_1", "orders", "boom")
	if f.Severity != SeverityWarning || f.Kind != KindTrigger {
		t.Errorf("Unexpected finding %+v", f)
	}
	if !strings.Contains(f.Message, "boom") {
		t.Errorf("Expected message preserved, got %q", f.Message)
	}
}

// The foreign-key toggle and the batch transaction must share one session.
// With enforcement on by default and multiple pooled connections in play,
// the synthetic batch (which references parents that do not exist) only
// succeeds when the toggle reaches the same connection the transaction uses.
func TestTriggerBatchRunsWithForeignKeysDisabled(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "events.db") + "?_foreign_keys=1"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer conn.Close()
	conn.SetMaxOpenConns(2)

	ddl := []string{
		`CREATE TABLE parents (parent_id INTEGER PRIMARY KEY, name TEXT)`,
		`CREATE TABLE events (
			event_id INTEGER PRIMARY KEY,
			kind TEXT,
			parent_id INTEGER NOT NULL,
			FOREIGN KEY (parent_id) REFERENCES parents(parent_id)
		)`,
		`CREATE TABLE audit_log (log_id INTEGER PRIMARY KEY AUTOINCREMENT, action TEXT)`,
		`CREATE TRIGGER after_insert_events AFTER INSERT ON events
			BEGIN INSERT INTO audit_log (action) VALUES ('insert'); END`,
	}
	for _, stmt := range ddl {
		if _, err := conn.Exec(stmt); err != nil {
			t.Fatalf("Failed to create fixture schema: %v", err)
		}
	}

	ctx := context.Background()

	// Warm two physical connections so the pool has more than one session
	// idle when the batch runs.
	c1, err := conn.Conn(ctx)
	if err != nil {
		t.Fatalf("Failed to warm connection: %v", err)
	}
	c2, err := conn.Conn(ctx)
	if err != nil {
		t.Fatalf("Failed to warm connection: %v", err)
	}
	c1.Close()
	c2.Close()

	eventsTable := &schema.TableSchema{
		Columns: []schema.ColumnInfo{
			{Name: "event_id", DeclaredType: "INTEGER"},
			{Name: "kind", DeclaredType: "TEXT"},
			{Name: "parent_id", DeclaredType: "INTEGER"},
		},
		PrimaryKey: []string{"event_id"},
		ForeignKeys: []schema.ForeignKeyEdge{
			{FromColumns: []string{"parent_id"}, ToTable: "parents", ToColumns: []string{"parent_id"}},
		},
	}
	shardSchema := schema.NewShardSchema()
	shardSchema.Tables["events"] = eventsTable
	shardSchema.Tables["audit_log"] = &schema.TableSchema{
		Columns: []schema.ColumnInfo{
			{Name: "log_id", DeclaredType: "INTEGER AUTOINCREMENT"},
			{Name: "action", DeclaredType: "TEXT"},
		},
		PrimaryKey: []string{"log_id"},
	}
	trigger := schema.TriggerInfo{
		Shard:         "shard_1",
		Name:          "after_insert_events",
		Table:         "events",
		DefinitionSQL: "CREATE TRIGGER after_insert_events AFTER INSERT ON events BEGIN INSERT INTO audit_log (action) VALUES ('insert'); END",
	}

	p := db.NewSQLiteProvider(slog.New(slog.NewTextHandler(io.Discard, nil)))
	sh := db.Shard{Name: "shard_1", DB: conn}
	cfg := Config{TriggerBatchSize: 5}

	findings := probeTrigger(ctx, p, sh, shardSchema, trigger, eventsTable, 0, cfg)

	if len(findings) == 0 {
		t.Fatal("Expected findings from trigger test")
	}
	for _, f := range findings {
		if f.Severity == SeverityWarning {
			t.Fatalf("Batch should succeed with enforcement suspended, got: %s", f.Message)
		}
	}
	if !strings.Contains(findings[0].Message, "Inserted 5 records") {
		t.Errorf("Expected batch success message, got %q", findings[0].Message)
	}

	var inserted int
	if err := conn.QueryRow("SELECT COUNT(*) FROM events").Scan(&inserted); err != nil {
		t.Fatalf("Failed to count events: %v", err)
	}
	if inserted != 5 {
		t.Errorf("Expected 5 inserted rows, got %d", inserted)
	}
	var audited int
	if err := conn.QueryRow("SELECT COUNT(*) FROM audit_log").Scan(&audited); err != nil {
		t.Fatalf("Failed to count audit rows: %v", err)
	}
	if audited != 5 {
		t.Errorf("Expected 5 audit rows from the trigger, got %d", audited)
	}

	// Enforcement still holds for ordinary sessions afterwards.
	if _, err := conn.Exec("INSERT INTO events (event_id, kind, parent_id) VALUES (1, 'x', 424242)"); err == nil {
		t.Error("Expected orphan insert to fail with foreign keys enforced")
	}
}

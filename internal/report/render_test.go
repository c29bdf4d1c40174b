package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tneupaney/dbAnalyzer/internal/analyze"
	"github.com/tneupaney/dbAnalyzer/internal/schema"
)

func sampleReport() *analyze.Report {
	cat := schema.NewCatalog()
	shard := schema.NewShardSchema()
	shard.Tables["orders"] = &schema.TableSchema{
		Columns: []schema.ColumnInfo{
			{Name: "order_id", DeclaredType: "INTEGER"},
			{Name: "customer_id", DeclaredType: "INTEGER", Nullable: true},
		},
		PrimaryKey: []string{"order_id"},
		ForeignKeys: []schema.ForeignKeyEdge{
			{Shard: "shard_1", FromTable: "orders", FromColumns: []string{"customer_id"}, ToTable: "customers", ToColumns: []string{"customer_id"}},
		},
		Indexes: []schema.IndexInfo{
			{Name: "idx_orders_date", Columns: []string{"order_date"}},
		},
	}
	cat.Shards["shard_1"] = shard

	return &analyze.Report{
		RunID:       "test-run",
		Dialect:     "sqlite",
		GeneratedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Catalog:     cat,
		Queries: []analyze.QueryResult{
			{Name: "Count Rows in orders (shard_1)", ExecutionSeconds: 0.0042, Status: "Success", Optimized: true, Suggestion: "Consider index on primary key for faster counts on large tables."},
			{Name: "Broken query", Failed: true, Status: "Error: no such table"},
		},
		IndexIssues: []analyze.Finding{
			{Kind: analyze.KindIndex, Severity: analyze.SeverityWarning, Shard: "shard_1", Table: "orders",
				Message:    "[shard_1] Missing index on foreign key column(s) [customer_id] in table 'orders'.",
				Suggestion: "CREATE INDEX idx_orders_customer_id_fk ON orders(customer_id); -- In shard_1"},
		},
		IndexSuggestions: []string{"CREATE INDEX idx_orders_customer_id_fk ON orders(customer_id); -- In shard_1"},
		Integrity: []analyze.Finding{
			{Kind: analyze.KindIntegrity, Severity: analyze.SeverityCritical, Shard: "shard_1", Table: "orders",
				Message: "[shard_1] Foreign Key Violation: 1 orphaned record(s) in 'orders'"},
		},
	}
}

func TestTextRender(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTextRenderer(&buf).Render(sampleReport()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"DATABASE ANALYSIS REPORT",
		"run: test-run  dialect: sqlite",
		"SHARD shard_1 (1 tables, 0 triggers)",
		"TABLE orders (PK: order_id)",
		"order_id: INTEGER NOT NULL",
		"customer_id: INTEGER",
		"FK (customer_id) -> customers(customer_id)",
		"INDEX idx_orders_date (order_date)",
		"Count Rows in orders (shard_1): 0.0042s optimized=true",
		"Broken query: Error: no such table optimized=false",
		"SUGGESTED DDL:",
		"CREATE INDEX idx_orders_customer_id_fk ON orders(customer_id); -- In shard_1",
		"[CRITICAL] [shard_1] Foreign Key Violation",
		"SECURITY",
		"(no findings)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q\n---\n%s", want, out)
		}
	}
}

func TestMarkdownRender(t *testing.T) {
	var buf bytes.Buffer
	if err := NewMarkdownRenderer(&buf).Render(sampleReport()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# Database Analysis Report",
		"- **Run:** test-run",
		"### shard_1",
		"#### orders",
		"- **order_id:** INTEGER, PK, NOT NULL",
		"| Query | Execution Time | Optimized | Suggested Optimization |",
		"| Count Rows in orders (shard_1) | 0.0042s | true |",
		"| Broken query | Error: no such table | false |",
		"### Suggested DDL",
		"```sql",
		"## Data Integrity",
		"## Security",
		"No findings.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q\n---\n%s", want, out)
		}
	}
}

func TestMultiFileRender(t *testing.T) {
	dir := t.TempDir()
	if err := NewMultiFileRenderer(dir).Render(sampleReport()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	for _, name := range []string{
		"_overview.md", "queries.md", "indexes.md", "integrity.md",
		"security.md", "triggers.md", "relationships.md",
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected %s to be created: %v", name, err)
		}
	}

	overview, err := os.ReadFile(filepath.Join(dir, "_overview.md"))
	if err != nil {
		t.Fatalf("Failed to read overview: %v", err)
	}
	if !strings.Contains(string(overview), "#### orders") {
		t.Error("Expected overview to list the orders table")
	}

	integrity, err := os.ReadFile(filepath.Join(dir, "integrity.md"))
	if err != nil {
		t.Fatalf("Failed to read integrity section: %v", err)
	}
	if !strings.Contains(string(integrity), "Foreign Key Violation") {
		t.Error("Expected integrity section to carry the violation finding")
	}
}

func TestMultiFileRenderCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	if err := NewMultiFileRenderer(dir).Render(sampleReport()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "_overview.md")); err != nil {
		t.Errorf("Expected nested directory to be created: %v", err)
	}
}

package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/tneupaney/dbAnalyzer/internal/analyze"
	"github.com/tneupaney/dbAnalyzer/internal/schema"
)

// MarkdownRenderer writes the report as markdown.
type MarkdownRenderer struct {
	writer io.Writer
}

// NewMarkdownRenderer creates a new markdown renderer.
func NewMarkdownRenderer(w io.Writer) *MarkdownRenderer {
	return &MarkdownRenderer{writer: w}
}

// Render writes the full report.
func (r *MarkdownRenderer) Render(rep *analyze.Report) error {
	r.RenderOverview(rep)
	r.RenderQueries(rep.Queries)
	r.RenderIndexSection(rep.IndexIssues, rep.IndexSuggestions)
	r.RenderFindings("Data Integrity", rep.Integrity)
	r.RenderFindings("Security", rep.Security)
	r.RenderFindings("Trigger Performance", rep.Triggers)
	r.RenderFindings("Relationship Performance", rep.Relationships)
	return nil
}

// RenderOverview writes the run header and the discovered schema summary.
func (r *MarkdownRenderer) RenderOverview(rep *analyze.Report) {
	fmt.Fprintln(r.writer, "# Database Analysis Report")
	fmt.Fprintln(r.writer)
	fmt.Fprintf(r.writer, "- **Run:** %s\n", rep.RunID)
	fmt.Fprintf(r.writer, "- **Dialect:** %s\n", rep.Dialect)
	fmt.Fprintf(r.writer, "- **Generated:** %s\n", rep.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintln(r.writer)

	fmt.Fprintln(r.writer, "## Discovered Schema")
	fmt.Fprintln(r.writer)
	for _, shardName := range sortedShards(rep.Catalog) {
		shard := rep.Catalog.Shards[shardName]
		fmt.Fprintf(r.writer, "### %s\n\n", shardName)
		for _, tableName := range sortedTables(shard) {
			r.renderTable(tableName, shard.Tables[tableName])
		}
	}
}

func (r *MarkdownRenderer) renderTable(name string, table *schema.TableSchema) {
	fmt.Fprintf(r.writer, "#### %s\n\n", name)
	for _, col := range table.Columns {
		constraints := ""
		if columnInList(col.Name, table.PrimaryKey) {
			constraints = ", PK"
		}
		if !col.Nullable {
			constraints += ", NOT NULL"
		}
		fmt.Fprintf(r.writer, "- **%s:** %s%s\n", col.Name, col.DeclaredType, constraints)
	}
	fmt.Fprintln(r.writer)

	if len(table.ForeignKeys) > 0 {
		fmt.Fprintln(r.writer, "References:")
		for _, fk := range table.ForeignKeys {
			fmt.Fprintf(r.writer, "- %s → %s.%s\n",
				strings.Join(fk.FromColumns, ", "), fk.ToTable, strings.Join(fk.ToColumns, ", "))
		}
		fmt.Fprintln(r.writer)
	}
	if len(table.Indexes) > 0 {
		fmt.Fprintln(r.writer, "Indexes:")
		for _, idx := range table.Indexes {
			if idx.Unique {
				fmt.Fprintf(r.writer, "- %s on (%s), unique\n", idx.Name, strings.Join(idx.Columns, ", "))
			} else {
				fmt.Fprintf(r.writer, "- %s on (%s)\n", idx.Name, strings.Join(idx.Columns, ", "))
			}
		}
		fmt.Fprintln(r.writer)
	}
}

// RenderQueries writes the synthetic query results as a table.
func (r *MarkdownRenderer) RenderQueries(queries []analyze.QueryResult) {
	fmt.Fprintln(r.writer, "## Query Performance")
	fmt.Fprintln(r.writer)
	if len(queries) == 0 {
		fmt.Fprintln(r.writer, "No queries executed.")
		fmt.Fprintln(r.writer)
		return
	}
	fmt.Fprintln(r.writer, "| Query | Execution Time | Optimized | Suggested Optimization |")
	fmt.Fprintln(r.writer, "|---|---|---|---|")
	for _, q := range queries {
		status := fmt.Sprintf("%.4fs", q.ExecutionSeconds)
		if q.Failed {
			status = q.Status
		}
		fmt.Fprintf(r.writer, "| %s | %s | %t | %s |\n", q.Name, status, q.Optimized, q.Suggestion)
	}
	fmt.Fprintln(r.writer)
}

// RenderIndexSection writes the advisor issues and the suggested DDL block.
func (r *MarkdownRenderer) RenderIndexSection(issues []analyze.Finding, suggestions []string) {
	r.RenderFindings("Index Advisor", issues)
	if len(suggestions) == 0 {
		return
	}
	fmt.Fprintln(r.writer, "### Suggested DDL")
	fmt.Fprintln(r.writer)
	fmt.Fprintln(r.writer, "```sql")
	for _, ddl := range suggestions {
		fmt.Fprintln(r.writer, ddl)
	}
	fmt.Fprintln(r.writer, "```")
	fmt.Fprintln(r.writer)
}

// RenderFindings writes one findings section.
func (r *MarkdownRenderer) RenderFindings(section string, findings []analyze.Finding) {
	fmt.Fprintf(r.writer, "## %s\n\n", section)
	if len(findings) == 0 {
		fmt.Fprintln(r.writer, "No findings.")
		fmt.Fprintln(r.writer)
		return
	}
	for _, f := range findings {
		fmt.Fprintf(r.writer, "- **%s** %s\n", f.Severity, f.Message)
		if f.Suggestion != "" {
			fmt.Fprintf(r.writer, "  - suggestion: `%s`\n", f.Suggestion)
		}
	}
	fmt.Fprintln(r.writer)
}

func columnInList(col string, cols []string) bool {
	for _, c := range cols {
		if c == col {
			return true
		}
	}
	return false
}

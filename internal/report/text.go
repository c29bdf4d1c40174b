// Package report renders an analysis report for its consumers. Renderers only
// read the report; they perform no database access.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/tneupaney/dbAnalyzer/internal/analyze"
	"github.com/tneupaney/dbAnalyzer/internal/schema"
)

// TextRenderer writes the report as compact text.
type TextRenderer struct {
	writer io.Writer
}

// NewTextRenderer creates a new text renderer.
func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{writer: w}
}

// Render writes the full report.
func (r *TextRenderer) Render(rep *analyze.Report) error {
	fmt.Fprintf(r.writer, "DATABASE ANALYSIS REPORT\n")
	fmt.Fprintf(r.writer, "run: %s  dialect: %s  generated: %s\n\n",
		rep.RunID, rep.Dialect, rep.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	r.renderCatalog(rep.Catalog)
	r.renderQueries(rep.Queries)
	r.renderFindings("INDEX ADVISOR", rep.IndexIssues)
	if len(rep.IndexSuggestions) > 0 {
		fmt.Fprintln(r.writer, "SUGGESTED DDL:")
		for _, ddl := range rep.IndexSuggestions {
			fmt.Fprintf(r.writer, "  %s\n", ddl)
		}
		fmt.Fprintln(r.writer)
	}
	r.renderFindings("DATA INTEGRITY", rep.Integrity)
	r.renderFindings("SECURITY", rep.Security)
	r.renderFindings("TRIGGER PERFORMANCE", rep.Triggers)
	r.renderFindings("RELATIONSHIP PERFORMANCE", rep.Relationships)
	return nil
}

func (r *TextRenderer) renderCatalog(cat *schema.Catalog) {
	fmt.Fprintln(r.writer, "DISCOVERED SCHEMA")
	for _, shardName := range sortedShards(cat) {
		shard := cat.Shards[shardName]
		fmt.Fprintf(r.writer, "  SHARD %s (%d tables, %d triggers)\n",
			shardName, len(shard.Tables), len(shard.Triggers))
		for _, tableName := range sortedTables(shard) {
			table := shard.Tables[tableName]
			pkStr := ""
			if len(table.PrimaryKey) > 0 {
				pkStr = fmt.Sprintf(" (PK: %s)", strings.Join(table.PrimaryKey, ", "))
			}
			fmt.Fprintf(r.writer, "    TABLE %s%s\n", tableName, pkStr)
			for _, col := range table.Columns {
				fmt.Fprintf(r.writer, "      %s\n", formatColumn(col))
			}
			for _, fk := range table.ForeignKeys {
				fmt.Fprintf(r.writer, "      FK (%s) -> %s(%s)\n",
					strings.Join(fk.FromColumns, ", "), fk.ToTable, strings.Join(fk.ToColumns, ", "))
			}
			for _, idx := range table.Indexes {
				unique := ""
				if idx.Unique {
					unique = " UNIQUE"
				}
				fmt.Fprintf(r.writer, "      INDEX %s (%s)%s\n", idx.Name, strings.Join(idx.Columns, ", "), unique)
			}
		}
	}
	fmt.Fprintln(r.writer)
}

func (r *TextRenderer) renderQueries(queries []analyze.QueryResult) {
	fmt.Fprintln(r.writer, "QUERY PERFORMANCE")
	if len(queries) == 0 {
		fmt.Fprintln(r.writer, "  (no queries executed)")
	}
	for _, q := range queries {
		status := fmt.Sprintf("%.4fs", q.ExecutionSeconds)
		if q.Failed {
			status = q.Status
		}
		fmt.Fprintf(r.writer, "  %s: %s optimized=%t\n", q.Name, status, q.Optimized)
		if q.Suggestion != "" {
			fmt.Fprintf(r.writer, "    hint: %s\n", q.Suggestion)
		}
	}
	fmt.Fprintln(r.writer)
}

func (r *TextRenderer) renderFindings(section string, findings []analyze.Finding) {
	fmt.Fprintln(r.writer, section)
	if len(findings) == 0 {
		fmt.Fprintln(r.writer, "  (no findings)")
	}
	for _, f := range findings {
		fmt.Fprintf(r.writer, "  [%s] %s\n", strings.ToUpper(string(f.Severity)), f.Message)
		if f.Suggestion != "" {
			fmt.Fprintf(r.writer, "    suggestion: %s\n", f.Suggestion)
		}
	}
	fmt.Fprintln(r.writer)
}

func formatColumn(col schema.ColumnInfo) string {
	parts := []string{col.Name + ":", col.DeclaredType}
	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}
	return strings.Join(parts, " ")
}

func sortedShards(cat *schema.Catalog) []string {
	names := make([]string, 0, len(cat.Shards))
	for name := range cat.Shards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedTables(shard *schema.ShardSchema) []string {
	names := make([]string, 0, len(shard.Tables))
	for name := range shard.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

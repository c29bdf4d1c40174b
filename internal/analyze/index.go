package analyze

import (
	"fmt"
	"strings"

	"github.com/tneupaney/dbAnalyzer/internal/schema"
)

// CheckIndexes statically analyzes the catalog for missing and redundant
// indexes. It is a pure function of the catalog: no live queries. Each
// distinct issue is emitted at most once, deduplicated by exact message text,
// and carries a generated DDL suggestion.
func CheckIndexes(cat *schema.Catalog) ([]Finding, []string) {
	adv := &indexAdvisor{seen: make(map[string]bool)}

	for _, shardName := range sortedShardNames(cat) {
		shard := cat.Shards[shardName]
		for _, tableName := range sortedTableNames(shard) {
			table := shard.Tables[tableName]
			adv.checkForeignKeys(shardName, tableName, table)
			adv.checkHeuristicColumns(shardName, tableName, table)
			adv.checkRedundant(shardName, tableName, table)
		}
	}
	return adv.issues, adv.suggestions
}

type indexAdvisor struct {
	issues      []Finding
	suggestions []string
	seen        map[string]bool
}

func (a *indexAdvisor) add(sev Severity, shard, table, message, suggestion string) {
	if a.seen[message] {
		return
	}
	a.seen[message] = true
	a.issues = append(a.issues, Finding{
		Kind:       KindIndex,
		Severity:   sev,
		Shard:      shard,
		Table:      table,
		Message:    message,
		Suggestion: suggestion,
	})
	a.suggestions = append(a.suggestions, suggestion)
}

// checkForeignKeys flags foreign keys whose constrained columns are not
// covered by any existing index.
func (a *indexAdvisor) checkForeignKeys(shard, table string, ts *schema.TableSchema) {
	for _, fk := range ts.ForeignKeys {
		if coveredByAnyIndex(fk.FromColumns, ts.Indexes, false) {
			continue
		}
		cols := strings.Join(fk.FromColumns, ", ")
		message := fmt.Sprintf("[%s] Missing index on foreign key column(s) [%s] in table '%s'.", shard, cols, table)
		suggestion := fmt.Sprintf("CREATE INDEX idx_%s_%s_fk ON %s(%s); -- In %s",
			table, strings.Join(fk.FromColumns, "_"), table, cols, shard)
		a.add(SeverityWarning, shard, table, message, suggestion)
	}
}

// checkHeuristicColumns flags unindexed non-primary-key columns whose name or
// type suggests they are identifiers, temporal values, or lookup text fields.
func (a *indexAdvisor) checkHeuristicColumns(shard, table string, ts *schema.TableSchema) {
	for _, col := range ts.Columns {
		if columnInAnyIndex(col.Name, ts.Indexes) || columnIn(col.Name, ts.PrimaryKey) {
			continue
		}
		upperName := strings.ToUpper(col.Name)

		switch {
		case strings.Contains(upperName, "ID"):
			message := fmt.Sprintf("[%s] Missing index on potential ID column '%s' in table '%s'.", shard, col.Name, table)
			suggestion := fmt.Sprintf("CREATE INDEX idx_%s_%s_id ON %s(%s); -- In %s", table, col.Name, table, col.Name, shard)
			a.add(SeverityInfo, shard, table, message, suggestion)
		case strings.Contains(col.DeclaredType, "DATE") || strings.Contains(col.DeclaredType, "TIME") || strings.Contains(upperName, "DATE"):
			message := fmt.Sprintf("[%s] Missing index on date/time column '%s' in table '%s' (often used for filtering/sorting).", shard, col.Name, table)
			suggestion := fmt.Sprintf("CREATE INDEX idx_%s_%s_date ON %s(%s); -- In %s", table, col.Name, table, col.Name, shard)
			a.add(SeverityInfo, shard, table, message, suggestion)
		case strings.Contains(upperName, "NAME") || strings.Contains(upperName, "EMAIL") || strings.Contains(upperName, "USERNAME"):
			message := fmt.Sprintf("[%s] Missing index on text column '%s' in table '%s' (often used for filtering/joining).", shard, col.Name, table)
			suggestion := fmt.Sprintf("CREATE INDEX idx_%s_%s_text ON %s(%s); -- In %s", table, col.Name, table, col.Name, shard)
			a.add(SeverityInfo, shard, table, message, suggestion)
		}
	}
}

// checkRedundant flags any index whose column set is a strict subset of
// another index's column set; the smaller index is the removable one.
func (a *indexAdvisor) checkRedundant(shard, table string, ts *schema.TableSchema) {
	for i, smaller := range ts.Indexes {
		for j, larger := range ts.Indexes {
			if i == j || len(smaller.Columns) >= len(larger.Columns) {
				continue
			}
			if !isSubset(smaller.Columns, larger.Columns) {
				continue
			}
			message := fmt.Sprintf("[%s] Potentially redundant index '%s' on columns [%s] in table '%s'. It's covered by '%s' on [%s].",
				shard, smaller.Name, strings.Join(smaller.Columns, ", "), table, larger.Name, strings.Join(larger.Columns, ", "))
			suggestion := fmt.Sprintf("DROP INDEX %s; -- In %s", smaller.Name, shard)
			a.add(SeverityInfo, shard, table, message, suggestion)
		}
	}
}

func isSubset(sub, super []string) bool {
	set := make(map[string]bool, len(super))
	for _, c := range super {
		set[c] = true
	}
	for _, c := range sub {
		if !set[c] {
			return false
		}
	}
	return true
}

// coveredByAnyIndex reports whether some index's column set contains every
// given column. With uniqueOnly set, only unique indexes qualify.
func coveredByAnyIndex(cols []string, indexes []schema.IndexInfo, uniqueOnly bool) bool {
	for _, idx := range indexes {
		if uniqueOnly && !idx.Unique {
			continue
		}
		if isSubset(cols, idx.Columns) {
			return true
		}
	}
	return false
}

func columnInAnyIndex(col string, indexes []schema.IndexInfo) bool {
	for _, idx := range indexes {
		if columnIn(col, idx.Columns) {
			return true
		}
	}
	return false
}

func columnIn(col string, cols []string) bool {
	for _, c := range cols {
		if c == col {
			return true
		}
	}
	return false
}

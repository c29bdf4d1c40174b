package analyze

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tneupaney/dbAnalyzer/internal/db"
	"github.com/tneupaney/dbAnalyzer/internal/schema"
)

// CheckIntegrity probes every shard for orphaned foreign-key rows and
// duplicate values under unique constraints. Each failed probe query becomes
// its own finding; no failure aborts the remaining checks.
func CheckIntegrity(ctx context.Context, p db.Provider, descs []db.Descriptor, cat *schema.Catalog, cfg Config) []Finding {
	logger := cfg.logger()

	shards := p.ListShards(ctx, descs)
	defer db.CloseShards(shards, logger)
	if len(shards) == 0 {
		logger.Warn("no database connections established for integrity analysis")
		return nil
	}

	var findings []Finding
	for _, sh := range shards {
		shardSchema, ok := cat.Shards[sh.Name]
		if !ok {
			continue
		}

		// Enforcement is session state, so the probes run on one pinned
		// connection with the toggle applied to that same session.
		conn, err := sh.DB.Conn(ctx)
		if err != nil {
			logger.Warn("could not acquire connection for integrity analysis", "shard", sh.Name, "error", err)
			continue
		}
		if _, err := conn.ExecContext(ctx, p.EnableForeignKeysSQL()); err != nil {
			logger.Warn("could not enable foreign key checks", "shard", sh.Name, "error", err)
		}

		findings = append(findings, checkOrphans(ctx, conn, sh.Name, shardSchema, cat.Relationships, cfg)...)
		findings = append(findings, checkDuplicates(ctx, conn, sh.Name, shardSchema, cfg)...)
		conn.Close()
	}
	return findings
}

// checkOrphans runs one anti-join probe per foreign-key edge local to the
// shard. Edges whose endpoint tables are absent are skipped silently:
// cross-shard or partial schemas are expected.
func checkOrphans(ctx context.Context, conn *sql.Conn, shardName string, shardSchema *schema.ShardSchema, relationships []schema.ForeignKeyEdge, cfg Config) []Finding {
	var findings []Finding
	for _, rel := range relationships {
		if rel.Shard != shardName {
			continue
		}
		if _, ok := shardSchema.Tables[rel.FromTable]; !ok {
			continue
		}
		if _, ok := shardSchema.Tables[rel.ToTable]; !ok {
			continue
		}

		fromCols := strings.Join(rel.FromColumns, ", ")
		toCols := strings.Join(rel.ToColumns, ", ")
		orphanSQL := fmt.Sprintf("SELECT %s FROM %s WHERE %s NOT IN (SELECT %s FROM %s)",
			fromCols, rel.FromTable, tupleExpr(rel.FromColumns), toCols, rel.ToTable)

		total, rows, err := countAndSample(ctx, conn, orphanSQL, cfg)
		if err != nil {
			findings = append(findings, Finding{
				Kind:     KindIntegrity,
				Severity: SeverityWarning,
				Shard:    shardName,
				Table:    rel.FromTable,
				Message: fmt.Sprintf("[%s] Error checking FK between %s and %s: %v",
					shardName, rel.FromTable, rel.ToTable, err),
			})
			continue
		}
		if total == 0 {
			continue
		}
		findings = append(findings, Finding{
			Kind:     KindIntegrity,
			Severity: SeverityCritical,
			Shard:    shardName,
			Table:    rel.FromTable,
			Message: fmt.Sprintf("[%s] Foreign Key Violation: %d orphaned record(s) in '%s' (columns: %s) referencing non-existent entries in '%s' (columns: %s). Sample: %s",
				shardName, total, rel.FromTable, fromCols, rel.ToTable, toCols, strings.Join(rows, "; ")),
		})
	}
	return findings
}

// checkDuplicates groups each unique constraint's columns and flags any group
// with more than one member.
func checkDuplicates(ctx context.Context, conn *sql.Conn, shardName string, shardSchema *schema.ShardSchema, cfg Config) []Finding {
	var findings []Finding
	for _, tableName := range sortedTableNames(shardSchema) {
		table := shardSchema.Tables[tableName]
		for _, uniqueCols := range table.UniqueConstraints {
			cols := strings.Join(uniqueCols, ", ")
			dupSQL := fmt.Sprintf("SELECT %s, COUNT(*) FROM %s GROUP BY %s HAVING COUNT(*) > 1",
				cols, tableName, cols)

			total, rows, err := countAndSample(ctx, conn, dupSQL, cfg)
			if err != nil {
				findings = append(findings, Finding{
					Kind:     KindIntegrity,
					Severity: SeverityWarning,
					Shard:    shardName,
					Table:    tableName,
					Message: fmt.Sprintf("[%s] Error checking unique constraint on %s.%s: %v",
						shardName, tableName, cols, err),
				})
				continue
			}
			if total == 0 {
				continue
			}
			findings = append(findings, Finding{
				Kind:     KindIntegrity,
				Severity: SeverityCritical,
				Shard:    shardName,
				Table:    tableName,
				Message: fmt.Sprintf("[%s] Duplicate Unique Constraint: %d duplicated value group(s) for unique column(s) '%s' in table '%s'. Sample: %s",
					shardName, total, cols, tableName, strings.Join(rows, "; ")),
			})
		}
	}
	return findings
}

// tupleExpr renders the left side of a NOT IN probe: a bare column for
// single-column keys, a row-value tuple for composite keys.
func tupleExpr(cols []string) string {
	if len(cols) == 1 {
		return cols[0]
	}
	return "(" + strings.Join(cols, ", ") + ")"
}

// countAndSample reports the true row count of the probe query plus a bounded
// sample of rows rendered as text. Very large violation sets stay cheap to
// present.
func countAndSample(ctx context.Context, conn *sql.Conn, query string, cfg Config) (int, []string, error) {
	qctx, cancel := context.WithTimeout(ctx, cfg.queryTimeout())
	defer cancel()

	var total int
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS violations", query)
	if err := conn.QueryRowContext(qctx, countSQL).Scan(&total); err != nil {
		return 0, nil, err
	}
	if total == 0 {
		return 0, nil, nil
	}

	rows, err := renderRows(qctx, conn, fmt.Sprintf("%s LIMIT %d", query, violationRowLimit))
	if err != nil {
		return 0, nil, err
	}
	return total, rows, nil
}

// renderRows executes a query and renders each row as "col=val" pairs.
func renderRows(ctx context.Context, conn *sql.Conn, query string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var rendered []string
	raw := make([]sql.RawBytes, len(cols))
	dest := make([]any, len(cols))
	for i := range raw {
		dest[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		parts := make([]string, len(cols))
		for i, col := range cols {
			parts[i] = col + "=" + string(raw[i])
		}
		rendered = append(rendered, "("+strings.Join(parts, ", ")+")")
	}
	return rendered, rows.Err()
}

package analyze

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tneupaney/dbAnalyzer/internal/db"
	"github.com/tneupaney/dbAnalyzer/internal/schema"
)

type syntheticQuery struct {
	name       string
	sql        string
	shard      string
	suggestion string
}

// AnalyzeQueries generates representative queries per table from the catalog
// shape, executes them with plan inspection and wall-clock timing, and
// classifies each plan with the dialect's marker vocabulary. A failed query is
// recorded with its error text and never aborts the remaining probes.
func AnalyzeQueries(ctx context.Context, p db.Provider, descs []db.Descriptor, cat *schema.Catalog, cfg Config) []QueryResult {
	logger := cfg.logger()

	shards := p.ListShards(ctx, descs)
	defer db.CloseShards(shards, logger)
	if len(shards) == 0 {
		logger.Warn("no database connections established for query analysis")
		return nil
	}

	shardsByName := make(map[string]db.Shard, len(shards))
	for _, sh := range shards {
		shardsByName[sh.Name] = sh
	}

	queries := generateQueries(cat)
	results := make([]QueryResult, len(queries))
	present := make([]bool, len(queries))

	// Queries targeting different shards are independent; run one task per
	// shard bounded by the worker pool.
	perShard := make(map[string][]int)
	for i, q := range queries {
		if _, ok := shardsByName[q.shard]; !ok {
			logger.Warn("shard not available for query", "shard", q.shard, "query", q.name)
			continue
		}
		perShard[q.shard] = append(perShard[q.shard], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers(len(shards)))
	for shard, idxs := range perShard {
		sh := shardsByName[shard]
		idxs := idxs
		g.Go(func() error {
			for _, i := range idxs {
				results[i] = runQueryProbe(gctx, p, sh, queries[i], cfg)
				present[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]QueryResult, 0, len(results))
	for i, r := range results {
		if present[i] {
			out = append(out, r)
		}
	}
	return out
}

// generateQueries derives the per-table probe set: a bounded sample select, a
// row count, and one LIKE filter / one range filter on the first text/numeric
// column in declaration order. First-match by declared type is a deliberate
// tie-break rule.
func generateQueries(cat *schema.Catalog) []syntheticQuery {
	var queries []syntheticQuery
	for _, shardName := range sortedShardNames(cat) {
		shard := cat.Shards[shardName]
		for _, tableName := range sortedTableNames(shard) {
			table := shard.Tables[tableName]

			queries = append(queries, syntheticQuery{
				name:       fmt.Sprintf("Select Top %d from %s (%s)", sampleRowLimit, tableName, shardName),
				sql:        fmt.Sprintf("SELECT * FROM %s LIMIT %d", tableName, sampleRowLimit),
				shard:      shardName,
				suggestion: "Basic select, usually optimized by default.",
			})
			queries = append(queries, syntheticQuery{
				name:       fmt.Sprintf("Count Rows in %s (%s)", tableName, shardName),
				sql:        fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName),
				shard:      shardName,
				suggestion: "Consider index on primary key for faster counts on large tables.",
			})

			if col, ok := firstColumnOfCategory(table, isTextType); ok {
				queries = append(queries, syntheticQuery{
					name:       fmt.Sprintf("Filter %s by %s (LIKE) (%s)", tableName, col, shardName),
					sql:        fmt.Sprintf("SELECT * FROM %s WHERE %s LIKE '%%test%%' LIMIT %d", tableName, col, filterRowLimit),
					shard:      shardName,
					suggestion: "Consider full-text search or leading wildcard optimization for LIKE queries.",
				})
			}
			if col, ok := firstColumnOfCategory(table, isNumericType); ok {
				queries = append(queries, syntheticQuery{
					name:       fmt.Sprintf("Filter %s by %s (Range) (%s)", tableName, col, shardName),
					sql:        fmt.Sprintf("SELECT * FROM %s WHERE %s > 100 LIMIT %d", tableName, col, filterRowLimit),
					shard:      shardName,
					suggestion: fmt.Sprintf("Ensure index on %s.%s for range queries.", tableName, col),
				})
			}
		}
	}
	return queries
}

func runQueryProbe(ctx context.Context, p db.Provider, sh db.Shard, q syntheticQuery, cfg Config) QueryResult {
	res := QueryResult{Name: q.name, SQL: q.sql, Shard: q.shard, Suggestion: q.suggestion}

	wireSQL := q.sql
	if p.EscapesPercent() {
		wireSQL = strings.ReplaceAll(wireSQL, "%", "%%")
	}

	plan, err := fetchPlanText(ctx, sh.DB, p.ExplainPrefix(), wireSQL, cfg)
	if err != nil {
		cfg.logger().Warn("could not obtain execution plan", "query", q.name, "error", err)
	}
	res.PlanText = plan

	elapsed, err := timeQuery(ctx, sh.DB, wireSQL, cfg)
	if err != nil {
		res.Failed = true
		res.Status = fmt.Sprintf("Error: %v", err)
		res.Optimized = false
		return res
	}
	res.ExecutionSeconds = elapsed.Seconds()
	res.Status = "Success"
	res.Optimized = classifyPlan(p.PlanMarkers(), plan)
	return res
}

// fetchPlanText runs the explain-prefixed query and flattens the tabular plan
// output into one text blob, one "column=value" row per line.
func fetchPlanText(ctx context.Context, conn *sql.DB, prefix, query string, cfg Config) (string, error) {
	qctx, cancel := context.WithTimeout(ctx, cfg.queryTimeout())
	defer cancel()

	rows, err := conn.QueryContext(qctx, prefix+" "+query)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	raw := make([]sql.RawBytes, len(cols))
	dest := make([]any, len(cols))
	for i := range raw {
		dest[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return "", err
		}
		parts := make([]string, len(cols))
		for i, col := range cols {
			parts[i] = col + "=" + string(raw[i])
		}
		b.WriteString(strings.Join(parts, " | "))
		b.WriteByte('\n')
	}
	return b.String(), rows.Err()
}

// timeQuery executes the query, draining all rows, and returns the wall-clock
// duration.
func timeQuery(ctx context.Context, conn *sql.DB, query string, cfg Config) (time.Duration, error) {
	qctx, cancel := context.WithTimeout(ctx, cfg.queryTimeout())
	defer cancel()

	start := time.Now()
	rows, err := conn.QueryContext(qctx, query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// classifyPlan applies the shared heuristic over dialect-specific markers: a
// plan is optimized unless it shows a full scan without index usage, and any
// temporary-table or file-sort materialization overrides to unoptimized. An
// empty plan cannot be classified and never counts as optimized.
func classifyPlan(markers db.PlanMarkers, plan string) bool {
	if strings.TrimSpace(plan) == "" {
		return false
	}
	upper := strings.ToUpper(plan)
	optimized := !containsAny(upper, markers.FullScan) || containsAny(upper, markers.UsesIndex)
	if containsAny(upper, markers.Materialize) {
		optimized = false
	}
	return optimized
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func firstColumnOfCategory(table *schema.TableSchema, match func(string) bool) (string, bool) {
	for _, col := range table.Columns {
		if match(col.DeclaredType) {
			return col.Name, true
		}
	}
	return "", false
}

func isTextType(declared string) bool {
	return strings.Contains(declared, "TEXT") || strings.Contains(declared, "CHAR")
}

func isIntegerType(declared string) bool {
	return strings.Contains(declared, "INT")
}

func isFloatType(declared string) bool {
	return strings.Contains(declared, "REAL") ||
		strings.Contains(declared, "DECIMAL") ||
		strings.Contains(declared, "NUMERIC") ||
		strings.Contains(declared, "FLOAT") ||
		strings.Contains(declared, "DOUBLE")
}

func isNumericType(declared string) bool {
	return isIntegerType(declared) || isFloatType(declared)
}

func sortedShardNames(cat *schema.Catalog) []string {
	names := make([]string, 0, len(cat.Shards))
	for name := range cat.Shards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedTableNames(shard *schema.ShardSchema) []string {
	names := make([]string, 0, len(shard.Tables))
	for name := range shard.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package analyze

import (
	"context"
	"fmt"
	"strings"

	"github.com/tneupaney/dbAnalyzer/internal/db"
	"github.com/tneupaney/dbAnalyzer/internal/schema"
)

// AnalyzeRelationships synthesizes a bounded inner join per foreign-key edge,
// checks index coverage on both sides, and classifies the join's execution
// plan with the dialect's marker vocabulary.
func AnalyzeRelationships(ctx context.Context, p db.Provider, descs []db.Descriptor, cat *schema.Catalog, cfg Config) []Finding {
	logger := cfg.logger()

	shards := p.ListShards(ctx, descs)
	defer db.CloseShards(shards, logger)
	if len(shards) == 0 {
		logger.Warn("no database connections established for relationship analysis")
		return nil
	}

	shardsByName := make(map[string]db.Shard, len(shards))
	for _, sh := range shards {
		shardsByName[sh.Name] = sh
	}

	var findings []Finding
	for _, rel := range cat.Relationships {
		sh, ok := shardsByName[rel.Shard]
		if !ok {
			findings = append(findings, Finding{
				Kind: KindRelationship, Severity: SeverityWarning, Shard: rel.Shard, Table: rel.FromTable,
				Message: fmt.Sprintf("[%s] Shard not available for relationship between '%s' and '%s'. Skipping.",
					rel.Shard, rel.FromTable, rel.ToTable),
			})
			continue
		}
		findings = append(findings, probeRelationship(ctx, p, sh, cat, rel, cfg))
	}
	return findings
}

func probeRelationship(ctx context.Context, p db.Provider, sh db.Shard, cat *schema.Catalog, rel schema.ForeignKeyEdge, cfg Config) Finding {
	shardSchema := cat.Shards[rel.Shard]
	fromTable, fromOK := shardSchema.Tables[rel.FromTable]
	toTable, toOK := shardSchema.Tables[rel.ToTable]
	if !fromOK || !toOK {
		return Finding{
			Kind: KindRelationship, Severity: SeverityInfo, Shard: rel.Shard, Table: rel.FromTable,
			Message: fmt.Sprintf("[%s] Tables '%s' or '%s' not found for relationship analysis. Skipping.",
				rel.Shard, rel.FromTable, rel.ToTable),
		}
	}

	joinSQL := fmt.Sprintf("SELECT T1.*, T2.* FROM %s AS T1 JOIN %s AS T2 ON T1.%s = T2.%s LIMIT %d",
		rel.FromTable, rel.ToTable, rel.FromColumns[0], rel.ToColumns[0], sampleRowLimit)
	if p.EscapesPercent() {
		joinSQL = strings.ReplaceAll(joinSQL, "%", "%%")
	}

	// Source side wants any covering index; the target side wants a unique
	// one, approximating primary-key coverage.
	hasSourceIndex := coveredByAnyIndex(rel.FromColumns, fromTable.Indexes, false)
	hasTargetIndex := coveredByAnyIndex(rel.ToColumns, toTable.Indexes, true)

	header := fmt.Sprintf("[%s] Relationship '%s' (%s) JOIN '%s' (%s): source index %s, target unique index %s.",
		rel.Shard, rel.FromTable, rel.FromColumns[0], rel.ToTable, rel.ToColumns[0],
		presence(hasSourceIndex), presence(hasTargetIndex))

	plan, err := fetchPlanText(ctx, sh.DB, p.ExplainPrefix(), joinSQL, cfg)
	if err != nil {
		return Finding{
			Kind: KindRelationship, Severity: SeverityWarning, Shard: rel.Shard, Table: rel.FromTable,
			Message: fmt.Sprintf("%s Error analyzing join performance: %v", header, err),
		}
	}

	markers := p.PlanMarkers()
	upper := strings.ToUpper(plan)
	switch {
	case containsAny(upper, markers.FullScan) && !containsAny(upper, markers.UsesIndex):
		return Finding{
			Kind: KindRelationship, Severity: SeverityWarning, Shard: rel.Shard, Table: rel.FromTable,
			Message: header + " WARNING: Join query involves full table scan without index. Consider adding indexes on join columns.",
		}
	case !hasSourceIndex:
		return Finding{
			Kind: KindRelationship, Severity: SeverityInfo, Shard: rel.Shard, Table: rel.FromTable,
			Message: header + fmt.Sprintf(" SUGGESTION: Add index on '%s.%s' to improve join performance.",
				rel.FromTable, rel.FromColumns[0]),
			Suggestion: fmt.Sprintf("CREATE INDEX idx_%s_%s_fk ON %s(%s); -- In %s",
				rel.FromTable, rel.FromColumns[0], rel.FromTable, rel.FromColumns[0], rel.Shard),
		}
	default:
		return Finding{
			Kind: KindRelationship, Severity: SeverityInfo, Shard: rel.Shard, Table: rel.FromTable,
			Message: header + " Performance appears reasonable for this synthetic join.",
		}
	}
}

func presence(ok bool) string {
	if ok {
		return "exists"
	}
	return "MISSING"
}

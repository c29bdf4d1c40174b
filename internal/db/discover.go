package db

import (
	"context"
	"log/slog"
	"regexp"

	"golang.org/x/sync/errgroup"

	"github.com/tneupaney/dbAnalyzer/internal/schema"
)

// UnknownTable is recorded for triggers whose owning table cannot be derived
// from the trigger body.
const UnknownTable = "UNKNOWN_TABLE"

var triggerTablePattern = regexp.MustCompile("(?i)\\bON\\s+[`\"]?([A-Za-z0-9_]+)")

// DeriveTriggerTable extracts the owning table from a trigger body by matching
// the first "ON <identifier>" clause. This is the named fallback for dialects
// whose trigger listing cannot supply the table directly.
func DeriveTriggerTable(triggerSQL string) string {
	m := triggerTablePattern.FindStringSubmatch(triggerSQL)
	if m == nil {
		return UnknownTable
	}
	return m[1]
}

type shardResult struct {
	name     string
	schema   *schema.ShardSchema
	edges    []schema.ForeignKeyEdge
	triggers []schema.TriggerInfo
}

// Discover connects to every shard, introspects tables, columns, keys,
// indexes, and triggers, and assembles the unified catalog. Shard failures and
// per-table introspection failures are logged and skipped; they never abort
// the run. Connections acquired here are released before returning. With zero
// reachable shards the catalog is simply empty.
func Discover(ctx context.Context, p Provider, descs []Descriptor, workers int, logger *slog.Logger) *schema.Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	catalog := schema.NewCatalog()

	shards := p.ListShards(ctx, descs)
	defer CloseShards(shards, logger)

	if len(shards) == 0 {
		logger.Warn("no database connections established for schema discovery")
		return catalog
	}

	if workers <= 0 {
		workers = len(shards)
	}
	results := make([]shardResult, len(shards))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, sh := range shards {
		i, sh := i, sh
		g.Go(func() error {
			results[i] = discoverShard(gctx, p, sh, logger)
			return nil
		})
	}
	// Workers only record per-shard results; failures are logged, not returned.
	_ = g.Wait()

	for _, res := range results {
		if res.schema == nil {
			continue
		}
		catalog.Shards[res.name] = res.schema
		catalog.Relationships = append(catalog.Relationships, res.edges...)
		catalog.Triggers = append(catalog.Triggers, res.triggers...)
	}
	return catalog
}

func discoverShard(ctx context.Context, p Provider, sh Shard, logger *slog.Logger) shardResult {
	res := shardResult{name: sh.Name, schema: schema.NewShardSchema()}
	inspector := p.Inspector(sh)

	tables, err := inspector.TableNames(ctx)
	if err != nil {
		logger.Warn("could not list tables", "shard", sh.Name, "error", err)
		tables = nil
	}

	for _, table := range tables {
		ts, edges, err := discoverTable(ctx, inspector, sh.Name, table)
		if err != nil {
			logger.Warn("skipping table after introspection failure",
				"shard", sh.Name, "table", table, "error", err)
			continue
		}
		res.schema.Tables[table] = ts
		res.edges = append(res.edges, edges...)
	}

	// Trigger metadata is best-effort: a failure leaves the shard with an
	// empty trigger list.
	triggerRows, err := p.Triggers(ctx, sh)
	if err != nil {
		logger.Warn("could not retrieve trigger information", "shard", sh.Name, "error", err)
		return res
	}
	for _, tr := range triggerRows {
		table := tr.Table
		if table == "" {
			table = DeriveTriggerTable(tr.SQL)
		}
		info := schema.TriggerInfo{
			Shard:         sh.Name,
			Name:          tr.Name,
			Table:         table,
			DefinitionSQL: tr.SQL,
		}
		res.schema.Triggers = append(res.schema.Triggers, info)
		res.triggers = append(res.triggers, info)
	}
	return res
}

func discoverTable(ctx context.Context, inspector Inspector, shardName, table string) (*schema.TableSchema, []schema.ForeignKeyEdge, error) {
	ts := &schema.TableSchema{}

	columns, err := inspector.Columns(ctx, table)
	if err != nil {
		return nil, nil, err
	}
	ts.Columns = columns

	pk, err := inspector.PrimaryKey(ctx, table)
	if err != nil {
		return nil, nil, err
	}
	ts.PrimaryKey = pk

	uniques, err := inspector.UniqueConstraints(ctx, table)
	if err != nil {
		return nil, nil, err
	}
	ts.UniqueConstraints = uniques

	fks, err := inspector.ForeignKeys(ctx, table)
	if err != nil {
		return nil, nil, err
	}
	edges := make([]schema.ForeignKeyEdge, 0, len(fks))
	for _, fk := range fks {
		fk.Shard = shardName
		fk.FromTable = table
		ts.ForeignKeys = append(ts.ForeignKeys, fk)
		edges = append(edges, fk)
	}

	indexes, err := inspector.Indexes(ctx, table)
	if err != nil {
		return nil, nil, err
	}
	ts.Indexes = indexes

	return ts, edges, nil
}

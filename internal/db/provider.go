package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/tneupaney/dbAnalyzer/internal/schema"
)

// Descriptor holds the connection parameters for one shard. Embedded-file
// dialects use Path; networked dialects use the host/port/credential fields.
// Descriptors are immutable values passed down at call time; there is no
// process-wide default connection state.
type Descriptor struct {
	Path     string
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// Shard is an open connection to one backend instance. The caller that
// acquired it owns it for the duration of one analysis pass and must release
// it on every exit path.
type Shard struct {
	Name string
	Desc Descriptor
	DB   *sql.DB
}

// Close releases the shard connection.
func (s Shard) Close() error {
	return s.DB.Close()
}

// TriggerRow is the normalized trigger shape every provider returns.
// Table is empty when the dialect cannot supply the owning table directly;
// the catalog builder then derives it from the body (see DeriveTriggerTable).
type TriggerRow struct {
	Name  string
	Table string
	SQL   string
}

// PlanMarkers is the dialect-specific vocabulary for classifying execution
// plan text. All matching is done against the uppercased plan.
type PlanMarkers struct {
	// FullScan markers indicate a full table scan.
	FullScan []string
	// UsesIndex markers indicate an index was used.
	UsesIndex []string
	// Materialize markers indicate temporary-table or file-sort
	// materialization; their presence always classifies the plan as
	// unoptimized.
	Materialize []string
}

// Inspector introspects one shard's schema. Implementations are
// dialect-specific; the catalog builder consumes them uniformly.
type Inspector interface {
	TableNames(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]schema.ColumnInfo, error)
	PrimaryKey(ctx context.Context, table string) ([]string, error)
	UniqueConstraints(ctx context.Context, table string) ([][]string, error)
	ForeignKeys(ctx context.Context, table string) ([]schema.ForeignKeyEdge, error)
	Indexes(ctx context.Context, table string) ([]schema.IndexInfo, error)
}

// Provider abstracts one SQL dialect behind a fixed capability set. The core
// never special-cases a dialect by name; every difference routes through this
// interface.
type Provider interface {
	// Name identifies the dialect, e.g. "sqlite" or "mysql".
	Name() string

	// ListShards opens a connection per descriptor. Descriptor order
	// determines shard numbering (shard_1, shard_2, ...). A connection
	// failure for one shard is logged and that shard is simply absent from
	// the returned set; zero reachable shards is "no data", not an error.
	ListShards(ctx context.Context, descs []Descriptor) []Shard

	// TriggerListingQuery returns the SQL text used to list triggers.
	TriggerListingQuery() string

	// Triggers executes the trigger listing query and maps the native row
	// shape into normalized TriggerRows.
	Triggers(ctx context.Context, sh Shard) ([]TriggerRow, error)

	// EnableForeignKeysSQL and DisableForeignKeysSQL return the statements
	// toggling foreign-key enforcement for the session.
	EnableForeignKeysSQL() string
	DisableForeignKeysSQL() string

	// AutoincrementKeyword is the token detected inside a declared column
	// type to recognize auto-generated primary keys.
	AutoincrementKeyword() string

	// ExplainPrefix is prepended to a query to obtain its execution plan as
	// tabular text.
	ExplainPrefix() string

	// PlanMarkers returns the dialect's plan classification vocabulary.
	PlanMarkers() PlanMarkers

	// EscapesPercent reports whether literal '%' characters in generated SQL
	// must be doubled because the driver treats them as format placeholders.
	EscapesPercent() bool

	// Placeholder returns the parameter placeholder for 1-based position n.
	Placeholder(n int) string

	// Inspector returns a schema inspector bound to the shard.
	Inspector(sh Shard) Inspector
}

// openShards opens one connection per descriptor using the provider-supplied
// open function and verifies each with a ping. Failed shards are logged and
// skipped so one unreachable instance never aborts acquisition of the others.
func openShards(ctx context.Context, dialect string, descs []Descriptor, logger *slog.Logger,
	open func(Descriptor) (*sql.DB, error), shardName func(i int, d Descriptor) string) []Shard {

	var shards []Shard
	for i, desc := range descs {
		conn, err := open(desc)
		if err == nil {
			err = conn.PingContext(ctx)
			if err != nil {
				_ = conn.Close()
			}
		}
		if err != nil {
			logger.Warn("skipping unreachable shard",
				"dialect", dialect, "shard", shardName(i, desc), "error", err)
			continue
		}
		shards = append(shards, Shard{Name: shardName(i, desc), Desc: desc, DB: conn})
	}
	return shards
}

// CloseShards releases every shard, logging close failures.
func CloseShards(shards []Shard, logger *slog.Logger) {
	for _, sh := range shards {
		if err := sh.Close(); err != nil {
			logger.Warn("failed to close shard connection", "shard", sh.Name, "error", err)
		}
	}
}

func numberedShardName(i int, _ Descriptor) string {
	return fmt.Sprintf("shard_%d", i+1)
}

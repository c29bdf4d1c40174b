package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tneupaney/dbAnalyzer/internal/schema"
)

// PostgresProvider is a second networked dialect, routed through the same
// capability interface with no core special-casing. Introspection targets the
// public schema.
type PostgresProvider struct {
	logger *slog.Logger
}

// NewPostgresProvider creates the PostgreSQL capability provider.
func NewPostgresProvider(logger *slog.Logger) *PostgresProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresProvider{logger: logger}
}

func (p *PostgresProvider) Name() string { return "postgres" }

func (p *PostgresProvider) ListShards(ctx context.Context, descs []Descriptor) []Shard {
	open := func(d Descriptor) (*sql.DB, error) {
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
			url.QueryEscape(d.User), url.QueryEscape(d.Password), d.Host, d.Port, d.Database)
		return sql.Open("pgx", dsn)
	}
	return openShards(ctx, p.Name(), descs, p.logger, open, numberedShardName)
}

func (p *PostgresProvider) TriggerListingQuery() string {
	return `
		SELECT t.tgname, c.relname, pg_get_triggerdef(t.oid)
		FROM pg_trigger t
		JOIN pg_class c ON c.oid = t.tgrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE NOT t.tgisinternal AND n.nspname = 'public'
	`
}

func (p *PostgresProvider) Triggers(ctx context.Context, sh Shard) ([]TriggerRow, error) {
	rows, err := sh.DB.QueryContext(ctx, p.TriggerListingQuery())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var triggers []TriggerRow
	for rows.Next() {
		var t TriggerRow
		if err := rows.Scan(&t.Name, &t.Table, &t.SQL); err != nil {
			return nil, err
		}
		triggers = append(triggers, t)
	}
	return triggers, rows.Err()
}

// Postgres has no statement-level foreign-key toggle; switching the session
// replication role suspends trigger-based constraint enforcement the same way.
func (p *PostgresProvider) EnableForeignKeysSQL() string {
	return "SET session_replication_role = DEFAULT"
}

func (p *PostgresProvider) DisableForeignKeysSQL() string {
	return "SET session_replication_role = replica"
}

// AutoincrementKeyword matches the NEXTVAL tag the inspector folds into the
// declared type of sequence-backed columns.
func (p *PostgresProvider) AutoincrementKeyword() string { return "NEXTVAL" }
func (p *PostgresProvider) ExplainPrefix() string { return "EXPLAIN" }

func (p *PostgresProvider) PlanMarkers() PlanMarkers {
	return PlanMarkers{
		FullScan:    []string{"SEQ SCAN"},
		UsesIndex:   []string{"INDEX SCAN", "INDEX ONLY SCAN", "BITMAP INDEX SCAN"},
		Materialize: []string{"MATERIALIZE", "EXTERNAL MERGE", "EXTERNAL SORT"},
	}
}

func (p *PostgresProvider) EscapesPercent() bool { return false }

func (p *PostgresProvider) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (p *PostgresProvider) Inspector(sh Shard) Inspector {
	return &postgresInspector{db: sh.DB, schemaName: "public"}
}

// postgresInspector introspects a PostgreSQL shard through information_schema
// and the pg_catalog tables.
type postgresInspector struct {
	db         *sql.DB
	schemaName string
}

func (in *postgresInspector) TableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	rows, err := in.db.QueryContext(ctx, query, in.schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (in *postgresInspector) Columns(ctx context.Context, table string) ([]schema.ColumnInfo, error) {
	query := `
		SELECT column_name, data_type, is_nullable, COALESCE(column_default, '')
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`
	rows, err := in.db.QueryContext(ctx, query, in.schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.ColumnInfo
	for rows.Next() {
		var name, dataType, nullable, columnDefault string
		if err := rows.Scan(&name, &dataType, &nullable, &columnDefault); err != nil {
			return nil, err
		}
		declared := strings.ToUpper(dataType)
		// Sequence-backed defaults are the Postgres autoincrement form; tag
		// the declared type so the shared keyword detection sees it.
		if strings.HasPrefix(strings.ToUpper(columnDefault), "NEXTVAL(") {
			declared += " NEXTVAL"
		}
		columns = append(columns, schema.ColumnInfo{
			Name:         name,
			DeclaredType: declared,
			Nullable:     nullable == "YES",
		})
	}
	return columns, rows.Err()
}

func (in *postgresInspector) PrimaryKey(ctx context.Context, table string) ([]string, error) {
	query := `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = $1 AND tc.table_name = $2
			AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position
	`
	rows, err := in.db.QueryContext(ctx, query, in.schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		pk = append(pk, col)
	}
	return pk, rows.Err()
}

func (in *postgresInspector) UniqueConstraints(ctx context.Context, table string) ([][]string, error) {
	query := `
		SELECT tc.constraint_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = $1 AND tc.table_name = $2
			AND tc.constraint_type = 'UNIQUE'
		ORDER BY tc.constraint_name, kcu.ordinal_position
	`
	rows, err := in.db.QueryContext(ctx, query, in.schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var constraints [][]string
	lastConstraint := ""
	for rows.Next() {
		var constraint, col string
		if err := rows.Scan(&constraint, &col); err != nil {
			return nil, err
		}
		if constraint != lastConstraint {
			constraints = append(constraints, nil)
			lastConstraint = constraint
		}
		constraints[len(constraints)-1] = append(constraints[len(constraints)-1], col)
	}
	return constraints, rows.Err()
}

func (in *postgresInspector) ForeignKeys(ctx context.Context, table string) ([]schema.ForeignKeyEdge, error) {
	query := `
		SELECT tc.constraint_name, kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY tc.constraint_name, kcu.ordinal_position
	`
	rows, err := in.db.QueryContext(ctx, query, in.schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []schema.ForeignKeyEdge
	lastConstraint := ""
	for rows.Next() {
		var constraint, fromCol, toTable, toCol string
		if err := rows.Scan(&constraint, &fromCol, &toTable, &toCol); err != nil {
			return nil, err
		}
		if constraint != lastConstraint {
			edges = append(edges, schema.ForeignKeyEdge{FromTable: table, ToTable: toTable})
			lastConstraint = constraint
		}
		edge := &edges[len(edges)-1]
		edge.FromColumns = append(edge.FromColumns, fromCol)
		edge.ToColumns = append(edge.ToColumns, toCol)
	}
	return edges, rows.Err()
}

func (in *postgresInspector) Indexes(ctx context.Context, table string) ([]schema.IndexInfo, error) {
	query := `
		SELECT
			i.relname AS index_name,
			ix.indisunique AS is_unique,
			a.attname AS column_name
		FROM pg_class t
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE t.relkind = 'r'
			AND n.nspname = $1
			AND t.relname = $2
			AND NOT ix.indisprimary
		ORDER BY i.relname, k.ord
	`
	rows, err := in.db.QueryContext(ctx, query, in.schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []schema.IndexInfo
	lastName := ""
	for rows.Next() {
		var name, col string
		var unique bool
		if err := rows.Scan(&name, &unique, &col); err != nil {
			return nil, err
		}
		if name != lastName {
			indexes = append(indexes, schema.IndexInfo{Name: name, Unique: unique})
			lastName = name
		}
		idx := &indexes[len(indexes)-1]
		idx.Columns = append(idx.Columns, col)
	}
	return indexes, rows.Err()
}

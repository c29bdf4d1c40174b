package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/tneupaney/dbAnalyzer/internal/schema"
)

// MySQLProvider is the networked server dialect.
type MySQLProvider struct {
	logger *slog.Logger
}

// NewMySQLProvider creates the MySQL capability provider.
func NewMySQLProvider(logger *slog.Logger) *MySQLProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &MySQLProvider{logger: logger}
}

func (p *MySQLProvider) Name() string { return "mysql" }

func (p *MySQLProvider) ListShards(ctx context.Context, descs []Descriptor) []Shard {
	open := func(d Descriptor) (*sql.DB, error) {
		cfg := mysql.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = fmt.Sprintf("%s:%d", d.Host, d.Port)
		cfg.DBName = d.Database
		return sql.Open("mysql", cfg.FormatDSN())
	}
	return openShards(ctx, p.Name(), descs, p.logger, open, numberedShardName)
}

func (p *MySQLProvider) TriggerListingQuery() string {
	return `SELECT TRIGGER_NAME, EVENT_OBJECT_TABLE,
		CONCAT(ACTION_TIMING, ' ', EVENT_MANIPULATION, ' ON ', EVENT_OBJECT_TABLE, ' ', ACTION_STATEMENT)
		FROM information_schema.TRIGGERS WHERE TRIGGER_SCHEMA = DATABASE()`
}

// Triggers returns normalized trigger rows. information_schema supplies the
// owning table directly, and the body is prefixed with its timing and event so
// downstream keyword matching sees the full declaration.
func (p *MySQLProvider) Triggers(ctx context.Context, sh Shard) ([]TriggerRow, error) {
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

func (p *MySQLProvider) EnableForeignKeysSQL() string { return "SET FOREIGN_KEY_CHECKS = 1" }
func (p *MySQLProvider) DisableForeignKeysSQL() string { return "SET FOREIGN_KEY_CHECKS = 0" }
func (p *MySQLProvider) AutoincrementKeyword() string { return "AUTO_INCREMENT" }
func (p *MySQLProvider) ExplainPrefix() string { return "EXPLAIN" }

func (p *MySQLProvider) PlanMarkers() PlanMarkers {
	return PlanMarkers{
		FullScan:    []string{"TYPE=ALL"},
		UsesIndex:   []string{"USING INDEX", "TYPE=REF", "TYPE=EQ_REF", "TYPE=RANGE"},
		Materialize: []string{"USING TEMPORARY", "USING FILESORT"},
	}
}

// EscapesPercent is false: the Go MySQL driver transmits statement text
// verbatim, unlike clients that run statements through printf-style
// substitution.
func (p *MySQLProvider) EscapesPercent() bool { return false }
func (p *MySQLProvider) Placeholder(n int) string { return "?" }

func (p *MySQLProvider) Inspector(sh Shard) Inspector {
	return &mysqlInspector{db: sh.DB, schemaName: sh.Desc.Database}
}

// mysqlInspector introspects a MySQL shard through information_schema.
type mysqlInspector struct {
	db         *sql.DB
	schemaName string
}

func (in *mysqlInspector) TableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
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

func (in *mysqlInspector) Columns(ctx context.Context, table string) ([]schema.ColumnInfo, error) {
	query := `
		SELECT column_name, column_type, is_nullable, extra
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`
	rows, err := in.db.QueryContext(ctx, query, in.schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.ColumnInfo
	for rows.Next() {
		var name, colType, nullable, extra string
		if err := rows.Scan(&name, &colType, &nullable, &extra); err != nil {
			return nil, err
		}
		declared := strings.ToUpper(colType)
		// MySQL keeps AUTO_INCREMENT in the EXTRA column; fold it into the
		// declared type so autoincrement detection works on one string.
		if strings.Contains(strings.ToUpper(extra), "AUTO_INCREMENT") {
			declared += " AUTO_INCREMENT"
		}
		columns = append(columns, schema.ColumnInfo{
			Name:         name,
			DeclaredType: declared,
			Nullable:     nullable == "YES",
		})
	}
	return columns, rows.Err()
}

func (in *mysqlInspector) PrimaryKey(ctx context.Context, table string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.statistics
		WHERE table_schema = ? AND table_name = ? AND index_name = 'PRIMARY'
		ORDER BY seq_in_index
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

func (in *mysqlInspector) UniqueConstraints(ctx context.Context, table string) ([][]string, error) {
	indexes, err := in.indexStatistics(ctx, table)
	if err != nil {
		return nil, err
	}

	var constraints [][]string
	for _, idx := range indexes {
		if idx.Unique && idx.Name != "PRIMARY" {
			constraints = append(constraints, idx.Columns)
		}
	}
	return constraints, nil
}

func (in *mysqlInspector) ForeignKeys(ctx context.Context, table string) ([]schema.ForeignKeyEdge, error) {
	query := `
		SELECT constraint_name, column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND table_name = ? AND referenced_table_name IS NOT NULL
		ORDER BY constraint_name, ordinal_position
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

func (in *mysqlInspector) Indexes(ctx context.Context, table string) ([]schema.IndexInfo, error) {
	indexes, err := in.indexStatistics(ctx, table)
	if err != nil {
		return nil, err
	}

	filtered := make([]schema.IndexInfo, 0, len(indexes))
	for _, idx := range indexes {
		if idx.Name == "PRIMARY" {
			continue
		}
		filtered = append(filtered, idx)
	}
	return filtered, nil
}

func (in *mysqlInspector) indexStatistics(ctx context.Context, table string) ([]schema.IndexInfo, error) {
	query := `
		SELECT index_name, column_name, non_unique
		FROM information_schema.statistics
		WHERE table_schema = ? AND table_name = ?
		ORDER BY index_name, seq_in_index
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
		var nonUnique int
		if err := rows.Scan(&name, &col, &nonUnique); err != nil {
			return nil, err
		}
		if name != lastName {
			indexes = append(indexes, schema.IndexInfo{Name: name, Unique: nonUnique == 0})
			lastName = name
		}
		idx := &indexes[len(indexes)-1]
		idx.Columns = append(idx.Columns, col)
	}
	return indexes, rows.Err()
}

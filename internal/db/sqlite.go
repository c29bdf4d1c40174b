package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tneupaney/dbAnalyzer/internal/schema"
)

// SQLiteProvider is the embedded-file dialect. Shard descriptors carry only a
// file path.
type SQLiteProvider struct {
	logger *slog.Logger
}

// NewSQLiteProvider creates the SQLite capability provider.
func NewSQLiteProvider(logger *slog.Logger) *SQLiteProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteProvider{logger: logger}
}

func (p *SQLiteProvider) Name() string { return "sqlite" }

func (p *SQLiteProvider) ListShards(ctx context.Context, descs []Descriptor) []Shard {
	open := func(d Descriptor) (*sql.DB, error) {
		if _, err := os.Stat(d.Path); err != nil {
			return nil, fmt.Errorf("database file %s: %w", d.Path, err)
		}
		return sql.Open("sqlite3", d.Path)
	}
	return openShards(ctx, p.Name(), descs, p.logger, open, numberedShardName)
}

func (p *SQLiteProvider) TriggerListingQuery() string {
	return "SELECT name, sql FROM sqlite_master WHERE type = 'trigger'"
}

// Triggers returns normalized trigger rows. sqlite_master does not expose the
// owning table for triggers, so Table is left empty for the caller's named
// fallback derivation.
func (p *SQLiteProvider) Triggers(ctx context.Context, sh Shard) ([]TriggerRow, error) {
	rows, err := sh.DB.QueryContext(ctx, p.TriggerListingQuery())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var triggers []TriggerRow
	for rows.Next() {
		var name string
		var body sql.NullString
		if err := rows.Scan(&name, &body); err != nil {
			return nil, err
		}
		triggers = append(triggers, TriggerRow{Name: name, SQL: body.String})
	}
	return triggers, rows.Err()
}

func (p *SQLiteProvider) EnableForeignKeysSQL() string { return "PRAGMA foreign_keys = ON" }
func (p *SQLiteProvider) DisableForeignKeysSQL() string { return "PRAGMA foreign_keys = OFF" }
func (p *SQLiteProvider) AutoincrementKeyword() string { return "AUTOINCREMENT" }
func (p *SQLiteProvider) ExplainPrefix() string { return "EXPLAIN QUERY PLAN" }

func (p *SQLiteProvider) PlanMarkers() PlanMarkers {
	return PlanMarkers{
		FullScan:    []string{"SCAN TABLE", "SCAN "},
		UsesIndex:   []string{"USING INDEX", "USING COVERING INDEX", "SEARCH "},
		Materialize: []string{"USE TEMP B-TREE"},
	}
}

func (p *SQLiteProvider) EscapesPercent() bool { return false }
func (p *SQLiteProvider) Placeholder(n int) string { return "?" }
func (p *SQLiteProvider) Inspector(sh Shard) Inspector {
	return &sqliteInspector{db: sh.DB}
}

// sqliteInspector introspects a SQLite shard through PRAGMA statements.
type sqliteInspector struct {
	db *sql.DB
}

func (in *sqliteInspector) TableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`
	rows, err := in.db.QueryContext(ctx, query)
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

func (in *sqliteInspector) Columns(ctx context.Context, table string) ([]schema.ColumnInfo, error) {
	rows, err := in.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.ColumnInfo
	pkCount := 0
	pkIdx := -1
	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}
		if pk > 0 {
			pkCount++
			pkIdx = len(columns)
		}
		columns = append(columns, schema.ColumnInfo{
			Name:         name,
			DeclaredType: strings.ToUpper(colType),
			Nullable:     notNull == 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// table_info strips column constraints from the type, so AUTOINCREMENT on
	// the rowid-aliased primary key has to come from the creation SQL.
	if pkCount == 1 && strings.Contains(columns[pkIdx].DeclaredType, "INT") {
		auto, err := in.hasAutoincrement(ctx, table)
		if err != nil {
			return nil, err
		}
		if auto {
			columns[pkIdx].DeclaredType += " AUTOINCREMENT"
		}
	}
	return columns, nil
}

func (in *sqliteInspector) hasAutoincrement(ctx context.Context, table string) (bool, error) {
	var createSQL sql.NullString
	err := in.db.QueryRowContext(ctx,
		"SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&createSQL)
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToUpper(createSQL.String), "AUTOINCREMENT"), nil
}

func (in *sqliteInspector) PrimaryKey(ctx context.Context, table string) ([]string, error) {
	rows, err := in.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type pkCol struct {
		pos  int
		name string
	}
	var pkCols []pkCol
	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}
		if pk > 0 {
			pkCols = append(pkCols, pkCol{pos: pk, name: name})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(pkCols, func(i, j int) bool { return pkCols[i].pos < pkCols[j].pos })
	pk := make([]string, 0, len(pkCols))
	for _, c := range pkCols {
		pk = append(pk, c.name)
	}
	return pk, nil
}

// UniqueConstraints returns the column sets of all unique indexes, including
// the sqlite_autoindex entries backing inline UNIQUE declarations.
func (in *sqliteInspector) UniqueConstraints(ctx context.Context, table string) ([][]string, error) {
	entries, err := in.indexList(ctx, table)
	if err != nil {
		return nil, err
	}

	var constraints [][]string
	for _, e := range entries {
		if !e.unique {
			continue
		}
		cols, err := in.indexColumns(ctx, e.name)
		if err != nil {
			return nil, err
		}
		if len(cols) > 0 {
			constraints = append(constraints, cols)
		}
	}
	return constraints, nil
}

func (in *sqliteInspector) ForeignKeys(ctx context.Context, table string) ([]schema.ForeignKeyEdge, error) {
	rows, err := in.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// foreign_key_list emits one row per column; rows sharing an id form one
	// multi-column foreign key, ordered by seq.
	type fkRow struct {
		id      int
		seq     int
		toTable string
		fromCol string
		toCol   string
	}
	var fkRows []fkRow
	for rows.Next() {
		var r fkRow
		var toCol sql.NullString
		var onUpdate, onDelete, match string
		if err := rows.Scan(&r.id, &r.seq, &r.toTable, &r.fromCol, &toCol, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		// A NULL target column means the FK references the target's implicit
		// primary key; SQLite resolves that to the same-named column.
		r.toCol = toCol.String
		if !toCol.Valid {
			r.toCol = r.fromCol
		}
		fkRows = append(fkRows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(fkRows, func(i, j int) bool {
		if fkRows[i].id != fkRows[j].id {
			return fkRows[i].id < fkRows[j].id
		}
		return fkRows[i].seq < fkRows[j].seq
	})

	var edges []schema.ForeignKeyEdge
	lastID := -1
	for _, r := range fkRows {
		if r.id != lastID {
			edges = append(edges, schema.ForeignKeyEdge{FromTable: table, ToTable: r.toTable})
			lastID = r.id
		}
		edge := &edges[len(edges)-1]
		edge.FromColumns = append(edge.FromColumns, r.fromCol)
		edge.ToColumns = append(edge.ToColumns, r.toCol)
	}
	return edges, nil
}

func (in *sqliteInspector) Indexes(ctx context.Context, table string) ([]schema.IndexInfo, error) {
	entries, err := in.indexList(ctx, table)
	if err != nil {
		return nil, err
	}

	var indexes []schema.IndexInfo
	for _, e := range entries {
		// Auto-generated primary key indexes are not reported as indexes.
		if strings.HasPrefix(e.name, "sqlite_autoindex") {
			continue
		}
		cols, err := in.indexColumns(ctx, e.name)
		if err != nil {
			return nil, err
		}
		if len(cols) > 0 {
			indexes = append(indexes, schema.IndexInfo{Name: e.name, Columns: cols, Unique: e.unique})
		}
	}
	return indexes, nil
}

type sqliteIndexEntry struct {
	name   string
	unique bool
}

func (in *sqliteInspector) indexList(ctx context.Context, table string) ([]sqliteIndexEntry, error) {
	rows, err := in.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []sqliteIndexEntry
	for rows.Next() {
		var seq, unique, partial int
		var name, origin string
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, err
		}
		entries = append(entries, sqliteIndexEntry{name: name, unique: unique == 1})
	}
	return entries, rows.Err()
}

func (in *sqliteInspector) indexColumns(ctx context.Context, index string) ([]string, error) {
	rows, err := in.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", index))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var seqno, cid int
		var colName sql.NullString
		if err := rows.Scan(&seqno, &cid, &colName); err != nil {
			return nil, err
		}
		if colName.Valid {
			columns = append(columns, colName.String)
		}
	}
	return columns, rows.Err()
}

package schema

import "fmt"

// Catalog is the unified metadata model built from introspecting every shard.
// It is built once per run and read-only afterward, so concurrent analyzers may
// share it without locking.
type Catalog struct {
	Shards map[string]*ShardSchema

	// Relationships aggregates every foreign key across all shards, tagged with
	// its originating shard. Duplicate declarations are kept as distinct edges.
	Relationships []ForeignKeyEdge

	// Triggers aggregates every trigger across all shards, mirroring the
	// per-shard lists.
	Triggers []TriggerInfo
}

// ShardSchema describes one database instance.
type ShardSchema struct {
	Tables   map[string]*TableSchema
	Triggers []TriggerInfo
}

// TableSchema describes a single table.
type TableSchema struct {
	Columns           []ColumnInfo
	PrimaryKey        []string
	UniqueConstraints [][]string
	ForeignKeys       []ForeignKeyEdge
	Indexes           []IndexInfo
}

// ColumnInfo describes a table column. DeclaredType is the raw backend type
// string, uppercased for matching.
type ColumnInfo struct {
	Name         string
	DeclaredType string
	Nullable     bool
}

// IndexInfo describes an index. Column order matters for prefix and covering
// checks.
type IndexInfo struct {
	Name    string
	Columns []string
	Unique  bool
}

// ForeignKeyEdge describes one foreign key declaration.
// FromColumns and ToColumns have matching lengths.
type ForeignKeyEdge struct {
	Shard       string
	FromTable   string
	FromColumns []string
	ToTable     string
	ToColumns   []string
}

// TriggerInfo describes a trigger. Table is "UNKNOWN_TABLE" when the owning
// table could not be derived from the trigger body.
type TriggerInfo struct {
	Shard         string
	Name          string
	Table         string
	DefinitionSQL string
}

// NewCatalog returns an empty catalog ready for the builder.
func NewCatalog() *Catalog {
	return &Catalog{Shards: make(map[string]*ShardSchema)}
}

// NewShardSchema returns an empty shard schema.
func NewShardSchema() *ShardSchema {
	return &ShardSchema{Tables: make(map[string]*TableSchema)}
}

// Column returns the column with the given name, or nil.
func (t *TableSchema) Column(name string) *ColumnInfo {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// HasColumn reports whether the table declares the named column.
func (t *TableSchema) HasColumn(name string) bool {
	return t.Column(name) != nil
}

// Validate checks the catalog invariant: every column referenced by a primary
// key, unique constraint, or foreign key exists in its table's column list.
func (c *Catalog) Validate() error {
	for shardName, shard := range c.Shards {
		for tableName, table := range shard.Tables {
			for _, col := range table.PrimaryKey {
				if !table.HasColumn(col) {
					return fmt.Errorf("%s.%s: primary key column %q not declared", shardName, tableName, col)
				}
			}
			for _, uc := range table.UniqueConstraints {
				for _, col := range uc {
					if !table.HasColumn(col) {
						return fmt.Errorf("%s.%s: unique constraint column %q not declared", shardName, tableName, col)
					}
				}
			}
			for _, fk := range table.ForeignKeys {
				if len(fk.FromColumns) != len(fk.ToColumns) {
					return fmt.Errorf("%s.%s: foreign key to %s has mismatched column counts", shardName, tableName, fk.ToTable)
				}
				for _, col := range fk.FromColumns {
					if !table.HasColumn(col) {
						return fmt.Errorf("%s.%s: foreign key column %q not declared", shardName, tableName, col)
					}
				}
			}
		}
	}
	return nil
}

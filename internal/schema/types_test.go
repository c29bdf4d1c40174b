package schema

import "testing"

func validTable() *TableSchema {
	return &TableSchema{
		Columns: []ColumnInfo{
			{Name: "order_id", DeclaredType: "INTEGER"},
			{Name: "customer_id", DeclaredType: "INTEGER", Nullable: true},
			{Name: "order_date", DeclaredType: "TEXT"},
		},
		PrimaryKey:        []string{"order_id"},
		UniqueConstraints: [][]string{{"order_id"}},
		ForeignKeys: []ForeignKeyEdge{
			{FromColumns: []string{"customer_id"}, ToTable: "customers", ToColumns: []string{"customer_id"}},
		},
	}
}

func catalogWith(table *TableSchema) *Catalog {
	cat := NewCatalog()
	shard := NewShardSchema()
	shard.Tables["orders"] = table
	cat.Shards["shard_1"] = shard
	return cat
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TableSchema)
		wantErr bool
	}{
		{
			name:   "valid table",
			mutate: func(ts *TableSchema) {},
		},
		{
			name: "primary key references missing column",
			mutate: func(ts *TableSchema) {
				ts.PrimaryKey = []string{"missing"}
			},
			wantErr: true,
		},
		{
			name: "unique constraint references missing column",
			mutate: func(ts *TableSchema) {
				ts.UniqueConstraints = [][]string{{"order_id", "missing"}}
			},
			wantErr: true,
		},
		{
			name: "foreign key references missing column",
			mutate: func(ts *TableSchema) {
				ts.ForeignKeys[0].FromColumns = []string{"missing"}
				ts.ForeignKeys[0].ToColumns = []string{"customer_id"}
			},
			wantErr: true,
		},
		{
			name: "foreign key column count mismatch",
			mutate: func(ts *TableSchema) {
				ts.ForeignKeys[0].ToColumns = []string{"a", "b"}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := validTable()
			tt.mutate(table)
			err := catalogWith(table).Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestColumnLookup(t *testing.T) {
	table := validTable()

	col := table.Column("customer_id")
	if col == nil {
		t.Fatal("Expected to find customer_id column")
	}
	if !col.Nullable {
		t.Error("Expected customer_id to be nullable")
	}

	if table.Column("missing") != nil {
		t.Error("Expected nil for unknown column")
	}
	if !table.HasColumn("order_date") {
		t.Error("Expected HasColumn to report order_date")
	}
	if table.HasColumn("") {
		t.Error("Expected HasColumn to reject empty name")
	}
}

func TestEmptyCatalogValidates(t *testing.T) {
	if err := NewCatalog().Validate(); err != nil {
		t.Errorf("Empty catalog should validate: %v", err)
	}
}

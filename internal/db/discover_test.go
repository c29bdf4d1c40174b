package db

import "testing"

func TestDeriveTriggerTable(t *testing.T) {
	tests := []struct {
		name       string
		triggerSQL string
		want       string
	}{
		{
			name:       "plain after insert",
			triggerSQL: "CREATE TRIGGER audit_trg AFTER INSERT ON orders BEGIN SELECT 1; END",
			want:       "orders",
		},
		{
			name:       "lowercase keyword",
			triggerSQL: "create trigger t after insert on order_items for each row begin select 1; end",
			want:       "order_items",
		},
		{
			name:       "backquoted identifier",
			triggerSQL: "CREATE TRIGGER t BEFORE UPDATE ON `users` FOR EACH ROW SET NEW.x = 1",
			want:       "users",
		},
		{
			name:       "double-quoted identifier",
			triggerSQL: `CREATE TRIGGER t AFTER DELETE ON "audit_log" BEGIN SELECT 1; END`,
			want:       "audit_log",
		},
		{
			name:       "extra whitespace",
			triggerSQL: "AFTER INSERT ON\n   customers",
			want:       "customers",
		},
		{
			name:       "no on clause",
			triggerSQL: "SELECT * FROM somewhere",
			want:       UnknownTable,
		},
		{
			name:       "empty body",
			triggerSQL: "",
			want:       UnknownTable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveTriggerTable(tt.triggerSQL); got != tt.want {
				t.Errorf("DeriveTriggerTable(%q) = %q, want %q", tt.triggerSQL, got, tt.want)
			}
		})
	}
}

func TestNumberedShardName(t *testing.T) {
	if got := numberedShardName(0, Descriptor{}); got != "shard_1" {
		t.Errorf("Expected shard_1, got %s", got)
	}
	if got := numberedShardName(4, Descriptor{Path: "x.db"}); got != "shard_5" {
		t.Errorf("Expected shard_5, got %s", got)
	}
}

package main

import (
	"testing"

	"github.com/tneupaney/dbAnalyzer"
)

func TestParseServerShard(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    dbanalyzer.Descriptor
		wantErr bool
	}{
		{
			name:  "full form",
			input: "root:secret@localhost:3306/app_shard_1",
			want:  dbanalyzer.Descriptor{User: "root", Password: "secret", Host: "localhost", Port: 3306, Database: "app_shard_1"},
		},
		{
			name:  "no password",
			input: "analyzer@db.internal:5432/shard",
			want:  dbanalyzer.Descriptor{User: "analyzer", Host: "db.internal", Port: 5432, Database: "shard"},
		},
		{
			name:  "no port",
			input: "root:secret@localhost/shard",
			want:  dbanalyzer.Descriptor{User: "root", Password: "secret", Host: "localhost", Database: "shard"},
		},
		{
			name:  "password containing at sign",
			input: "root:p@ss@localhost:3306/shard",
			want:  dbanalyzer.Descriptor{User: "root", Password: "p@ss", Host: "localhost", Port: 3306, Database: "shard"},
		},
		{
			name:    "missing at sign",
			input:   "localhost:3306/shard",
			wantErr: true,
		},
		{
			name:    "missing database",
			input:   "root:secret@localhost:3306",
			wantErr: true,
		},
		{
			name:    "empty database",
			input:   "root:secret@localhost:3306/",
			wantErr: true,
		},
		{
			name:    "bad port",
			input:   "root:secret@localhost:abc/shard",
			wantErr: true,
		},
		{
			name:    "missing host",
			input:   "root:secret@/shard",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseServerShard(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got.User != tt.want.User || got.Password != tt.want.Password ||
				got.Host != tt.want.Host || got.Port != tt.want.Port || got.Database != tt.want.Database {
				t.Errorf("parseServerShard(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

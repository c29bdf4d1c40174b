package dbanalyzer

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tneupaney/dbAnalyzer/internal/analyze"
	"github.com/tneupaney/dbAnalyzer/internal/schema"
)

func TestAnalyzeInputValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		dialect string
		descs   []Descriptor
		wantErr string
	}{
		{
			name:    "no descriptors",
			dialect: DialectSQLite,
			descs:   nil,
			wantErr: "no shard descriptors",
		},
		{
			name:    "unknown dialect",
			dialect: "oracle",
			descs:   []Descriptor{{Path: "x.db"}},
			wantErr: "unsupported dialect",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Analyze(ctx, tt.dialect, tt.descs, nil)
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestProviderFor(t *testing.T) {
	for _, dialect := range []string{DialectSQLite, DialectMySQL, DialectPostgres} {
		p, err := providerFor(dialect, nil)
		if err != nil {
			t.Errorf("providerFor(%s) failed: %v", dialect, err)
			continue
		}
		if p.Name() != dialect {
			t.Errorf("Expected provider name %s, got %s", dialect, p.Name())
		}
	}

	if _, err := providerFor("mssql", nil); err == nil {
		t.Error("Expected error for unsupported dialect")
	}
}

func TestWriteReportFormats(t *testing.T) {
	rep := &Report{
		RunID:       "run",
		Dialect:     "sqlite",
		GeneratedAt: time.Now(),
		Catalog:     schema.NewCatalog(),
	}

	var buf bytes.Buffer
	if err := WriteReport(rep, &OutputOptions{Writer: &buf}); err != nil {
		t.Fatalf("Text render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "DATABASE ANALYSIS REPORT") {
		t.Error("Expected text header")
	}

	buf.Reset()
	if err := WriteReport(rep, &OutputOptions{Writer: &buf, Format: "markdown"}); err != nil {
		t.Fatalf("Markdown render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "# Database Analysis Report") {
		t.Error("Expected markdown header")
	}

	if err := WriteReport(rep, &OutputOptions{Writer: &buf, Format: "html"}); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestReportTypeAliases(t *testing.T) {
	// The exported aliases must stay interchangeable with the internal types.
	var rep *Report = analyze.NewReport("sqlite", schema.NewCatalog())
	if rep.Dialect != "sqlite" {
		t.Errorf("Unexpected dialect %q", rep.Dialect)
	}
}

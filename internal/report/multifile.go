package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tneupaney/dbAnalyzer/internal/analyze"
)

// MultiFileRenderer writes the report as a directory: _overview.md with the
// run header and discovered schema, plus one markdown file per section.
type MultiFileRenderer struct {
	outputDir string
}

// NewMultiFileRenderer creates a new multi-file renderer.
func NewMultiFileRenderer(outputDir string) *MultiFileRenderer {
	return &MultiFileRenderer{outputDir: outputDir}
}

// Render writes all report files, creating the directory if needed.
func (r *MultiFileRenderer) Render(rep *analyze.Report) error {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	sections := []struct {
		file  string
		write func(m *MarkdownRenderer)
	}{
		{"_overview.md", func(m *MarkdownRenderer) { m.RenderOverview(rep) }},
		{"queries.md", func(m *MarkdownRenderer) { m.RenderQueries(rep.Queries) }},
		{"indexes.md", func(m *MarkdownRenderer) { m.RenderIndexSection(rep.IndexIssues, rep.IndexSuggestions) }},
		{"integrity.md", func(m *MarkdownRenderer) { m.RenderFindings("Data Integrity", rep.Integrity) }},
		{"security.md", func(m *MarkdownRenderer) { m.RenderFindings("Security", rep.Security) }},
		{"triggers.md", func(m *MarkdownRenderer) { m.RenderFindings("Trigger Performance", rep.Triggers) }},
		{"relationships.md", func(m *MarkdownRenderer) { m.RenderFindings("Relationship Performance", rep.Relationships) }},
	}

	for _, section := range sections {
		if err := r.writeFile(section.file, section.write); err != nil {
			return err
		}
	}
	return nil
}

func (r *MultiFileRenderer) writeFile(name string, write func(m *MarkdownRenderer)) error {
	path := filepath.Join(r.outputDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	write(NewMarkdownRenderer(f))
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

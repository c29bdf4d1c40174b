// Package dbanalyzer discovers the schema of a sharded relational database and
// runs a suite of heuristic health checks against it.
//
// The analyzer connects to every shard of a logical database, merges the
// per-shard schemas into a single catalog, and then probes the live data:
// synthetic query benchmarks with plan classification, index advice,
// referential-integrity and duplicate checks, a security scan of text columns,
// trigger exercise under bulk insert, and cross-table relationship probes.
// Results are collected into a Report that can be rendered as plain text or
// markdown, either as a single document or one file per section.
//
// # Quick Start
//
// The simplest way to use this package is with AnalyzeAndWrite:
//
//	err := dbanalyzer.AnalyzeAndWrite(
//		context.Background(),
//		dbanalyzer.DialectSQLite,
//		[]dbanalyzer.Descriptor{{Path: "shard_1.db"}, {Path: "shard_2.db"}},
//		nil,
//		&dbanalyzer.OutputOptions{OutputDir: "analysis"},
//	)
//
// # Dialects
//
// Supported dialects:
//   - sqlite: file-backed shards, each Descriptor carries a Path
//   - mysql: server shards, each Descriptor carries Host/Port/User/Password/Database
//   - postgres: server shards, same descriptor fields as mysql
//
// # Output
//
// Single-document output writes everything to one writer:
//
//	&OutputOptions{Writer: os.Stdout}                    // text
//	&OutputOptions{Writer: f, Format: "markdown"}        // markdown
//
// Multi-file output creates a directory with _overview.md plus one markdown
// file per analysis section:
//
//	&OutputOptions{OutputDir: "analysis"}
package dbanalyzer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/tneupaney/dbAnalyzer/internal/analyze"
	"github.com/tneupaney/dbAnalyzer/internal/db"
	"github.com/tneupaney/dbAnalyzer/internal/report"
	"github.com/tneupaney/dbAnalyzer/internal/sample"
	"github.com/tneupaney/dbAnalyzer/internal/schema"
)

// Supported dialect names, accepted by Analyze and AnalyzeAndWrite.
const (
	DialectSQLite   = "sqlite"
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
)

// Descriptor identifies one shard. SQLite shards use Path; server-backed
// shards use the connection fields.
type Descriptor = db.Descriptor

// Catalog is the unified schema discovered across all shards.
type Catalog = schema.Catalog

// Report is the aggregate result of one analysis run.
type Report = analyze.Report

// Options configures an analysis run. All fields are optional.
type Options struct {
	// Logger receives progress and per-shard failure diagnostics.
	// Defaults to a logger that discards everything.
	Logger *slog.Logger

	// QueryTimeout bounds each synthetic benchmark query. Defaults to 30s.
	QueryTimeout time.Duration

	// Workers bounds shard-level concurrency during discovery and
	// benchmarking. Defaults to the number of shards.
	Workers int

	// TriggerBatchSize is the number of rows inserted when exercising a
	// trigger. Defaults to 100.
	TriggerBatchSize int
}

// OutputOptions configures where and how the report is written.
//
// If OutputDir is set it takes precedence and the report is split into one
// markdown file per section. Otherwise the report is written to Writer
// (os.Stdout when nil) in the requested Format.
type OutputOptions struct {
	// Writer receives single-document output. Ignored if OutputDir is set.
	Writer io.Writer

	// OutputDir is the directory for multi-file markdown output.
	// It is created if it does not exist.
	OutputDir string

	// Format selects the single-document renderer: "text" (default) or
	// "markdown". Ignored in multi-file mode, which is always markdown.
	Format string
}

// AnalyzeAndWrite runs the full analysis and writes the report in one call.
func AnalyzeAndWrite(ctx context.Context, dialect string, descs []Descriptor, opts *Options, outOpts *OutputOptions) error {
	rep, err := Analyze(ctx, dialect, descs, opts)
	if err != nil {
		return err
	}
	return WriteReport(rep, outOpts)
}

// DiscoverCatalog connects to every shard and builds the unified catalog
// without running any analyzer. Use it to inspect the discovered schema
// directly; Analyze performs discovery itself.
func DiscoverCatalog(ctx context.Context, dialect string, descs []Descriptor, opts *Options) (*Catalog, error) {
	if len(descs) == 0 {
		return nil, fmt.Errorf("no shard descriptors provided")
	}
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	provider, err := providerFor(dialect, logger)
	if err != nil {
		return nil, err
	}
	return db.Discover(ctx, provider, descs, opts.Workers, logger), nil
}

// Analyze discovers the catalog across all shards and runs every analyzer,
// returning the aggregate report.
//
// Shard, table, and query level failures are recorded as findings in the
// report rather than aborting the run. An error is returned only when the
// inputs themselves are unusable: an unknown dialect or no descriptors.
func Analyze(ctx context.Context, dialect string, descs []Descriptor, opts *Options) (*Report, error) {
	if len(descs) == 0 {
		return nil, fmt.Errorf("no shard descriptors provided")
	}
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	provider, err := providerFor(dialect, logger)
	if err != nil {
		return nil, err
	}

	cfg := analyze.Config{
		Logger:           logger,
		QueryTimeout:     opts.QueryTimeout,
		Workers:          opts.Workers,
		TriggerBatchSize: opts.TriggerBatchSize,
	}

	logger.Info("starting discovery", "dialect", dialect, "shards", len(descs))
	cat := db.Discover(ctx, provider, descs, opts.Workers, logger)

	rep := analyze.NewReport(dialect, cat)
	if len(cat.Shards) == 0 {
		logger.Warn("no shards reachable, skipping analysis")
		return rep, nil
	}
	rep.Queries = analyze.AnalyzeQueries(ctx, provider, descs, cat, cfg)
	rep.IndexIssues, rep.IndexSuggestions = analyze.CheckIndexes(cat)
	rep.Integrity = analyze.CheckIntegrity(ctx, provider, descs, cat, cfg)
	rep.Security = analyze.ScanSecurity(ctx, provider, descs, cat, cfg)
	rep.Triggers = analyze.AnalyzeTriggers(ctx, provider, descs, cat, cfg)
	rep.Relationships = analyze.AnalyzeRelationships(ctx, provider, descs, cat, cfg)
	logger.Info("analysis complete", "run_id", rep.RunID)

	return rep, nil
}

// WriteReport renders a report to the configured output.
func WriteReport(rep *Report, opts *OutputOptions) error {
	if opts == nil {
		opts = &OutputOptions{Writer: os.Stdout}
	}

	if opts.OutputDir != "" {
		return report.NewMultiFileRenderer(opts.OutputDir).Render(rep)
	}

	writer := opts.Writer
	if writer == nil {
		writer = os.Stdout
	}
	switch opts.Format {
	case "", "text":
		return report.NewTextRenderer(writer).Render(rep)
	case "markdown":
		return report.NewMarkdownRenderer(writer).Render(rep)
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

// SetupSampleShards creates SQLite demo shards under dir and returns their
// descriptors. The seeded data contains known integrity and security issues
// so a fresh install can exercise every analyzer.
func SetupSampleShards(ctx context.Context, dir string, numShards int) ([]Descriptor, error) {
	return sample.Setup(ctx, dir, numShards)
}

func providerFor(dialect string, logger *slog.Logger) (db.Provider, error) {
	switch dialect {
	case DialectSQLite:
		return db.NewSQLiteProvider(logger), nil
	case DialectMySQL:
		return db.NewMySQLProvider(logger), nil
	case DialectPostgres:
		return db.NewPostgresProvider(logger), nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (must be sqlite, mysql, or postgres)", dialect)
	}
}

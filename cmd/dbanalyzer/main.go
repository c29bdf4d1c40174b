package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tneupaney/dbAnalyzer"
)

var (
	sqlitePaths  string
	mysqlShards  []string
	pgShards     []string
	useSample    bool
	sampleDir    string
	sampleShards int
	outputFile   string
	outputDir    string
	format       string
	queryTimeout time.Duration
	workers      int
	triggerBatch int
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "dbanalyzer",
	Short: "Analyze a sharded database for performance, integrity, and security issues",
	Long: `dbanalyzer connects to every shard of a SQLite, MySQL, or PostgreSQL database,
merges the per-shard schemas into one catalog, and runs heuristic checks:
query benchmarks, index advice, integrity and duplicate detection, a security
scan, trigger exercise, and relationship probes. Results are written as text
or markdown.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&sqlitePaths, "sqlite", "", "SQLite shard file paths (comma-separated)")
	rootCmd.Flags().StringArrayVar(&mysqlShards, "mysql", nil, "MySQL shard as user:pass@host:port/database (repeatable)")
	rootCmd.Flags().StringArrayVar(&pgShards, "postgres", nil, "PostgreSQL shard as user:pass@host:port/database (repeatable)")
	rootCmd.Flags().BoolVar(&useSample, "sample", false, "Create and analyze the built-in SQLite sample shards")
	rootCmd.Flags().StringVar(&sampleDir, "sample-dir", "sample_data", "Directory for sample shard files (with --sample)")
	rootCmd.Flags().IntVar(&sampleShards, "sample-shards", 2, "Number of sample shards to create (with --sample)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "Output directory for multi-file markdown output")
	rootCmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text or markdown")
	rootCmd.Flags().DurationVar(&queryTimeout, "timeout", 30*time.Second, "Per-query timeout for benchmark probes")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "Shard-level concurrency (default: number of shards)")
	rootCmd.Flags().IntVar(&triggerBatch, "trigger-batch", 100, "Rows inserted when exercising triggers")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	dialect, descs, err := resolveShards(ctx)
	if err != nil {
		return err
	}

	if outputDir != "" && outputFile != "" {
		return fmt.Errorf("cannot use both --output-dir and --output flags")
	}

	rep, err := dbanalyzer.Analyze(ctx, dialect, descs, &dbanalyzer.Options{
		Logger:           logger,
		QueryTimeout:     queryTimeout,
		Workers:          workers,
		TriggerBatchSize: triggerBatch,
	})
	if err != nil {
		return err
	}
	if len(rep.Catalog.Shards) == 0 {
		return fmt.Errorf("none of the %d configured shards could be reached", len(descs))
	}

	if outputDir != "" {
		if err := dbanalyzer.WriteReport(rep, &dbanalyzer.OutputOptions{OutputDir: outputDir}); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		return nil
	}

	var writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to close output file: %v\n", err)
			}
		}()
		writer = f
	}

	if err := dbanalyzer.WriteReport(rep, &dbanalyzer.OutputOptions{Writer: writer, Format: format}); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// resolveShards validates the dialect flags and turns them into descriptors.
func resolveShards(ctx context.Context) (string, []dbanalyzer.Descriptor, error) {
	modes := 0
	if sqlitePaths != "" {
		modes++
	}
	if len(mysqlShards) > 0 {
		modes++
	}
	if len(pgShards) > 0 {
		modes++
	}
	if useSample {
		modes++
	}
	if modes == 0 {
		return "", nil, fmt.Errorf("one of --sqlite, --mysql, --postgres, or --sample must be specified")
	}
	if modes > 1 {
		return "", nil, fmt.Errorf("only one of --sqlite, --mysql, --postgres, or --sample can be specified")
	}

	switch {
	case useSample:
		descs, err := dbanalyzer.SetupSampleShards(ctx, sampleDir, sampleShards)
		if err != nil {
			return "", nil, fmt.Errorf("failed to set up sample shards: %w", err)
		}
		return dbanalyzer.DialectSQLite, descs, nil
	case sqlitePaths != "":
		var descs []dbanalyzer.Descriptor
		for _, p := range strings.Split(sqlitePaths, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			descs = append(descs, dbanalyzer.Descriptor{Path: p})
		}
		if len(descs) == 0 {
			return "", nil, fmt.Errorf("--sqlite requires at least one file path")
		}
		return dbanalyzer.DialectSQLite, descs, nil
	case len(mysqlShards) > 0:
		descs, err := parseServerShards(mysqlShards)
		if err != nil {
			return "", nil, err
		}
		return dbanalyzer.DialectMySQL, descs, nil
	default:
		descs, err := parseServerShards(pgShards)
		if err != nil {
			return "", nil, err
		}
		return dbanalyzer.DialectPostgres, descs, nil
	}
}

func parseServerShards(specs []string) ([]dbanalyzer.Descriptor, error) {
	descs := make([]dbanalyzer.Descriptor, 0, len(specs))
	for _, s := range specs {
		d, err := parseServerShard(s)
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}
	return descs, nil
}

// parseServerShard parses "user:pass@host:port/database". Password and port
// may be omitted.
func parseServerShard(s string) (dbanalyzer.Descriptor, error) {
	var d dbanalyzer.Descriptor

	at := strings.LastIndex(s, "@")
	if at < 0 {
		return d, fmt.Errorf("invalid shard %q: expected user:pass@host:port/database", s)
	}
	cred, rest := s[:at], s[at+1:]

	if colon := strings.Index(cred, ":"); colon >= 0 {
		d.User, d.Password = cred[:colon], cred[colon+1:]
	} else {
		d.User = cred
	}

	slash := strings.Index(rest, "/")
	if slash < 0 || rest[slash+1:] == "" {
		return d, fmt.Errorf("invalid shard %q: missing database name", s)
	}
	hostPort, db := rest[:slash], rest[slash+1:]
	d.Database = db

	if colon := strings.LastIndex(hostPort, ":"); colon >= 0 {
		port, err := strconv.Atoi(hostPort[colon+1:])
		if err != nil {
			return d, fmt.Errorf("invalid shard %q: bad port: %w", s, err)
		}
		d.Host, d.Port = hostPort[:colon], port
	} else {
		d.Host = hostPort
	}
	if d.Host == "" {
		return d, fmt.Errorf("invalid shard %q: missing host", s)
	}
	return d, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

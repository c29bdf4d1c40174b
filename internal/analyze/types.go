// Package analyze runs the heuristic analyzers over a discovered catalog:
// synthetic query probes, index advice, integrity checks, sensitive-data
// scanning, and trigger/relationship cost probes. Analyzers read the catalog,
// open their own phase-scoped shard connections, and report every recoverable
// failure as part of the normal result stream.
package analyze

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tneupaney/dbAnalyzer/internal/schema"
)

// Severity grades a finding.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Kind tags the analyzer a finding came from.
type Kind string

const (
	KindIndex        Kind = "index"
	KindIntegrity    Kind = "integrity"
	KindSecurity     Kind = "security"
	KindTrigger      Kind = "trigger"
	KindRelationship Kind = "relationship"
)

// Finding is one diagnostic produced by an analyzer. Suggestion carries the
// proposed DDL for index issues and is empty otherwise.
type Finding struct {
	Kind       Kind
	Severity   Severity
	Shard      string
	Table      string
	Message    string
	Suggestion string
}

// QueryResult records one synthetic query execution. A failed execution keeps
// ExecutionSeconds at zero and carries the failure text in Status.
type QueryResult struct {
	Name             string
	SQL              string
	Shard            string
	ExecutionSeconds float64
	Status           string
	Failed           bool
	PlanText         string
	Optimized        bool
	Suggestion       string
}

// Report is the full output handed to the reporting collaborator. The
// collaborator only reads it; it performs no database access.
type Report struct {
	RunID       string
	Dialect     string
	GeneratedAt time.Time

	Catalog          *schema.Catalog
	Queries          []QueryResult
	IndexIssues      []Finding
	IndexSuggestions []string
	Integrity        []Finding
	Security         []Finding
	Triggers         []Finding
	Relationships    []Finding
}

// NewReport stamps a fresh report for one analysis run.
func NewReport(dialect string, catalog *schema.Catalog) *Report {
	return &Report{
		RunID:       uuid.NewString(),
		Dialect:     dialect,
		GeneratedAt: time.Now().UTC(),
		Catalog:     catalog,
	}
}

// Config carries the analyzer tuning knobs. The zero value is usable; absent
// fields fall back to the defaults below.
type Config struct {
	Logger *slog.Logger

	// QueryTimeout bounds each live probe query. A timed-out probe is
	// recorded as a failure, never fatal.
	QueryTimeout time.Duration

	// Workers bounds the per-shard worker pool.
	Workers int

	// TriggerBatchSize is the number of rows inserted per trigger probe.
	TriggerBatchSize int
}

const (
	defaultQueryTimeout     = 30 * time.Second
	defaultTriggerBatchSize = 100

	sampleRowLimit    = 10
	filterRowLimit    = 5
	violationRowLimit = 10
)

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c Config) queryTimeout() time.Duration {
	if c.QueryTimeout > 0 {
		return c.QueryTimeout
	}
	return defaultQueryTimeout
}

func (c Config) workers(n int) int {
	if c.Workers > 0 {
		return c.Workers
	}
	if n < 1 {
		return 1
	}
	return n
}

func (c Config) triggerBatchSize() int {
	if c.TriggerBatchSize > 0 {
		return c.TriggerBatchSize
	}
	return defaultTriggerBatchSize
}

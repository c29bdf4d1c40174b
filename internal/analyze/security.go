package analyze

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/tneupaney/dbAnalyzer/internal/db"
	"github.com/tneupaney/dbAnalyzer/internal/schema"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	ssnPattern   = regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)

	// Visa, Mastercard, Amex, Discover, JCB and Diners-style network prefixes.
	creditCardPattern = regexp.MustCompile(`^(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|6(?:011|5[0-9]{2})[0-9]{12}|3[47][0-9]{13}|(?:2131|1800|35\d{3})\d{11})$`)

	nonWordPattern = regexp.MustCompile(`\W`)
)

const passwordSampleLimit = 5

// ScanSecurity applies column-name heuristics over every text-typed column
// and samples live values to classify candidate sensitive data. Sampling is
// best-effort: a failed sample read silently drops that column's finding.
func ScanSecurity(ctx context.Context, p db.Provider, descs []db.Descriptor, cat *schema.Catalog, cfg Config) []Finding {
	logger := cfg.logger()

	shards := p.ListShards(ctx, descs)
	defer db.CloseShards(shards, logger)
	if len(shards) == 0 {
		logger.Warn("no database connections established for security analysis")
		return nil
	}

	var findings []Finding
	for _, sh := range shards {
		shardSchema, ok := cat.Shards[sh.Name]
		if !ok {
			continue
		}
		for _, tableName := range sortedTableNames(shardSchema) {
			table := shardSchema.Tables[tableName]
			for _, col := range table.Columns {
				if !isTextType(col.DeclaredType) {
					continue
				}
				f, err := scanColumn(ctx, sh, tableName, col.Name, cfg)
				if err != nil {
					logger.Debug("sampling failed", "shard", sh.Name, "table", tableName, "column", col.Name, "error", err)
					continue
				}
				if f != nil {
					findings = append(findings, *f)
				}
			}
		}
	}
	return findings
}

func scanColumn(ctx context.Context, sh db.Shard, table, column string, cfg Config) (*Finding, error) {
	name := strings.ToLower(column)
	switch {
	case strings.Contains(name, "password"):
		return scanPasswordColumn(ctx, sh, table, column, cfg)
	case strings.Contains(name, "email"):
		return scanPatternColumn(ctx, sh, table, column, cfg, emailPattern, false, SeverityInfo,
			"Contains email addresses (Sensitive PII).")
	case strings.Contains(name, "ssn"), strings.Contains(name, "social_security"):
		return scanPatternColumn(ctx, sh, table, column, cfg, ssnPattern, false, SeverityCritical,
			"Contains Social Security Numbers (Highly Sensitive PII).")
	case strings.Contains(name, "credit_card"), strings.Contains(name, "card_number"), strings.Contains(name, "cc_num"):
		return scanPatternColumn(ctx, sh, table, column, cfg, creditCardPattern, true, SeverityCritical,
			"Contains Credit Card Numbers (PCI Sensitive Data). Must be encrypted/tokenized.")
	}
	return nil, nil
}

// scanPasswordColumn samples up to five non-null values and grades the first
// one: 64 hex characters looks like a SHA-256 digest; a short bare word looks
// like plaintext; anything else is an unknown format.
func scanPasswordColumn(ctx context.Context, sh db.Shard, table, column string, cfg Config) (*Finding, error) {
	samples, err := sampleValues(ctx, sh.DB, table, column, passwordSampleLimit, cfg)
	if err != nil {
		return nil, err
	}

	f := &Finding{Kind: KindSecurity, Shard: sh.Name, Table: table}
	if len(samples) == 0 {
		f.Severity = SeverityInfo
		f.Message = fmt.Sprintf("[%s] Table '%s', Column '%s': Potential password field, but no data to analyze.",
			sh.Name, table, column)
		return f, nil
	}

	value := samples[0]
	switch {
	case len(value) == 64 && isHexString(value):
		f.Severity = SeverityInfo
		f.Message = fmt.Sprintf("[%s] Table '%s', Column '%s': Appears to be SHA256 hashed (Good practice).",
			sh.Name, table, column)
	case len(value) < 20 && !strings.Contains(value, " ") && !nonWordPattern.MatchString(value):
		f.Severity = SeverityCritical
		f.Message = fmt.Sprintf("[%s] Table '%s', Column '%s': Might contain plaintext or weakly hashed passwords (CRITICAL: Investigate immediately!). Sample: '%s...'",
			sh.Name, table, column, truncate(value, 10))
	default:
		f.Severity = SeverityWarning
		f.Message = fmt.Sprintf("[%s] Table '%s', Column '%s': Password field has an unknown format (WARNING: Verify hashing method). Sample: '%s...'",
			sh.Name, table, column, truncate(value, 10))
	}
	return f, nil
}

// scanPatternColumn samples one value and reports a finding when it matches
// the pattern. With stripSeparators set, spaces and dashes are removed before
// matching (card numbers are commonly formatted in groups).
func scanPatternColumn(ctx context.Context, sh db.Shard, table, column string, cfg Config,
	pattern *regexp.Regexp, stripSeparators bool, sev Severity, description string) (*Finding, error) {

	samples, err := sampleValues(ctx, sh.DB, table, column, 1, cfg)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}

	value := samples[0]
	if stripSeparators {
		value = strings.NewReplacer(" ", "", "-", "").Replace(value)
	}
	if !pattern.MatchString(value) {
		return nil, nil
	}
	return &Finding{
		Kind:     KindSecurity,
		Severity: sev,
		Shard:    sh.Name,
		Table:    table,
		Message:  fmt.Sprintf("[%s] Table '%s', Column '%s': %s", sh.Name, table, column, description),
	}, nil
}

func sampleValues(ctx context.Context, conn *sql.DB, table, column string, limit int, cfg Config) ([]string, error) {
	qctx, cancel := context.WithTimeout(ctx, cfg.queryTimeout())
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL LIMIT %d", column, table, column, limit)
	rows, err := conn.QueryContext(qctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func isHexString(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

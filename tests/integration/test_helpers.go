//go:build integration
// +build integration

package integration

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tneupaney/dbAnalyzer"
	"github.com/tneupaney/dbAnalyzer/internal/analyze"
)

// setupSampleShards bootstraps fresh demo shards under a per-test directory.
func setupSampleShards(t *testing.T, numShards int) []dbanalyzer.Descriptor {
	t.Helper()

	descs, err := dbanalyzer.SetupSampleShards(context.Background(), t.TempDir(), numShards)
	require.NoError(t, err, "sample shard setup failed")
	require.Len(t, descs, numShards)
	return descs
}

// findingsContaining returns the findings whose message contains substr,
// case-insensitively.
func findingsContaining(findings []analyze.Finding, substr string) []analyze.Finding {
	var out []analyze.Finding
	for _, f := range findings {
		if strings.Contains(strings.ToLower(f.Message), strings.ToLower(substr)) {
			out = append(out, f)
		}
	}
	return out
}

package observability

import (
	"context"
	"strings"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func familyNames(t *testing.T, reg *promclient.Registry) []string {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	return names
}

func hasPrefix(names []string, prefix string) bool {
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			return true
		}
	}
	return false
}

func TestObservability_RecordsToRegistry(t *testing.T) {
	reg := promclient.NewRegistry()
	obs, err := New("test-service", reg)
	require.NoError(t, err)
	defer obs.Shutdown(context.Background())

	ctx := context.Background()
	obs.RecordJobProcessed(ctx, "process-text", "success")
	obs.RecordJobDuration(ctx, "process-text", 120*time.Millisecond, "success")
	obs.RecordFlow(ctx, "ANALYTICS")

	names := familyNames(t, reg)
	assert.True(t, hasPrefix(names, "jobs_processed"), names)
	assert.True(t, hasPrefix(names, "jobs_duration"), names)
	assert.True(t, hasPrefix(names, "commands_flow"), names)
}

func TestObservability_NilSafe(t *testing.T) {
	var obs *Observability
	ctx := context.Background()

	assert.NotPanics(t, func() {
		obs.RecordJobProcessed(ctx, "x", "success")
		obs.RecordJobDuration(ctx, "x", time.Second, "error")
		obs.RecordFlow(ctx, "TRANSFER")
	})
	assert.NoError(t, obs.Shutdown(ctx))
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itinerary-workers/internal/common/config"
	"itinerary-workers/pkg/registry"
)

var (
	shippedRegistry = filepath.Join("..", "..", "..", "configs", "registry.json")
	shippedConfig   = filepath.Join("..", "..", "..", "configs", "config.yaml")
)

func testRegistry() *registry.ActivityRegistry {
	return &registry.ActivityRegistry{
		Version: "1.0.0",
		Activities: []registry.Activity{
			{ID: "generate-itinerary", DisplayName: "Generate", Category: "itinerary", TaskType: "generate-itinerary", Enabled: true, Timeout: "10m", Retries: 1},
			{ID: "export-itinerary", DisplayName: "Export", Category: "itinerary", TaskType: "export-itinerary", Enabled: true, Timeout: "45s", Retries: 2},
			{ID: "legacy-report", DisplayName: "Legacy", Category: "itinerary", TaskType: "legacy-report", Enabled: false, Timeout: "1m", Retries: 0},
		},
	}
}

func testWorkers() map[string]config.WorkerConfig {
	return map[string]config.WorkerConfig{
		"generate-itinerary": {Enabled: true, Timeout: 600000, MaxRetries: 1},
		"export-itinerary":   {Enabled: false, Timeout: 30000, MaxRetries: 2},
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	cmd := newRootCmd()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// ==========================
// Reconcile
// ==========================

func TestReconcile_ShippedFilesAgree(t *testing.T) {
	reg, err := registry.LoadRegistry(shippedRegistry)
	require.NoError(t, err)
	workers, err := loadWorkers(shippedConfig)
	require.NoError(t, err)

	assert.Empty(t, Reconcile(reg, handlerTaskTypes, workers))
}

func TestReconcile_ReportsDrift(t *testing.T) {
	drifts := Reconcile(testRegistry(), []string{"generate-itinerary", "export-itinerary", "notify-itinerary"}, testWorkers())

	assert.ElementsMatch(t, []Drift{
		{TaskType: "export-itinerary", Field: "enabled", Registry: "true", Expected: "false"},
		{TaskType: "export-itinerary", Field: "timeout", Registry: "45s", Expected: "30s"},
		{TaskType: "legacy-report", Field: "handler", Registry: "registered", Expected: "none"},
		{TaskType: "notify-itinerary", Field: "entry", Registry: "missing", Expected: "present"},
	}, drifts)
}

func TestReconcile_UnconfiguredWorkerUsesManagerDefaults(t *testing.T) {
	reg := &registry.ActivityRegistry{Activities: []registry.Activity{
		{ID: "notify-itinerary", TaskType: "notify-itinerary", Enabled: true, Timeout: "5m", Retries: 3},
	}}

	assert.Empty(t, Reconcile(reg, []string{"notify-itinerary"}, nil))
}

// ==========================
// Sync
// ==========================

func TestSync_CopiesWorkerSettings(t *testing.T) {
	reg := testRegistry()
	applied := Sync(reg, []string{"generate-itinerary", "export-itinerary", "notify-itinerary"}, testWorkers())

	assert.Len(t, applied, 2)
	export, ok := reg.Find("export-itinerary")
	require.True(t, ok)
	assert.False(t, export.Enabled)
	assert.Equal(t, "30s", export.Timeout)
	assert.NotEmpty(t, reg.LastUpdated)
	_, ok = reg.Find("notify-itinerary")
	assert.False(t, ok)

	assert.Empty(t, Sync(reg, []string{"generate-itinerary", "export-itinerary"}, testWorkers()))
}

func TestFormatTimeout(t *testing.T) {
	assert.Equal(t, "10m", formatTimeout(10*time.Minute))
	assert.Equal(t, "30s", formatTimeout(30*time.Second))
	assert.Equal(t, "1m30s", formatTimeout(90*time.Second))
	assert.Equal(t, "2h", formatTimeout(2*time.Hour))
	assert.Equal(t, "10s", formatTimeout(10*time.Second))
}

// ==========================
// Commands
// ==========================

func TestValidateCmd_Shipped(t *testing.T) {
	out, err := run(t, "validate", "--registry", shippedRegistry, "--config", shippedConfig)
	require.NoError(t, err)
	assert.Contains(t, out, "Registry matches 4 workers.")
}

func TestSyncCmd_WritesOnlyWithFlag(t *testing.T) {
	dir := t.TempDir()
	regPath := filepath.Join(dir, "registry.json")
	require.NoError(t, saveRegistry(testRegistry(), regPath))
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`workers:
  export-itinerary:
    enabled: false
    timeout: 30000
    max_retries: 2
`), 0644))

	out, err := run(t, "sync", "--registry", regPath, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "export-itinerary: timeout 45s -> 30s")
	assert.Contains(t, out, "Dry run")
	reg, err := registry.LoadRegistry(regPath)
	require.NoError(t, err)
	export, _ := reg.Find("export-itinerary")
	assert.Equal(t, "45s", export.Timeout)

	_, err = run(t, "sync", "--write", "--registry", regPath, "--config", cfgPath)
	require.NoError(t, err)
	reg, err = registry.LoadRegistry(regPath)
	require.NoError(t, err)
	export, _ = reg.Find("export-itinerary")
	assert.Equal(t, "30s", export.Timeout)
	assert.False(t, export.Enabled)
}

func TestCheckCmd(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"userInput": "Goa for 4, 3 days"}`), 0644))
	require.NoError(t, os.WriteFile(bad, []byte(`{}`), 0644))

	out, err := run(t, "check", "generate-itinerary", good, "--registry", shippedRegistry)
	require.NoError(t, err)
	assert.Contains(t, out, "Variables accepted by generate-itinerary.")

	_, err = run(t, "check", "generate-itinerary", bad, "--registry", shippedRegistry)
	assert.ErrorIs(t, err, registry.ErrInvalidVariables)

	_, err = run(t, "check", "unknown-task", good, "--registry", shippedRegistry)
	assert.ErrorIs(t, err, registry.ErrUnknownTask)
}

func TestListCmd(t *testing.T) {
	out, err := run(t, "list", "--registry", shippedRegistry)
	require.NoError(t, err)
	for _, tt := range handlerTaskTypes {
		assert.Contains(t, out, tt)
	}
}

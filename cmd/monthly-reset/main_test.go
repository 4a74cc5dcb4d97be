package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/shared/config"
)

func TestRunPrintsReport(t *testing.T) {
	cfg := &config.Config{
		StoreDriver:      config.DriverSQLite,
		SQLitePath:       filepath.Join(t.TempDir(), "credits.db"),
		TxMaxRetries:     3,
		ResetMaxAttempts: 2,
	}
	var out bytes.Buffer
	require.NoError(t, run(cfg, time.Minute, &out))

	var report map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.EqualValues(t, 0, report["accounts"])
	assert.EqualValues(t, 0, report["failed"])
}

func TestRunReturnsStoreErrors(t *testing.T) {
	var out bytes.Buffer
	err := run(&config.Config{StoreDriver: "mongo"}, time.Minute, &out)
	assert.ErrorContains(t, err, "open store")
	assert.Zero(t, out.Len())
}

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisabledBundleHasWorkingNoopCounters(t *testing.T) {
	b, err := New(Config{Enabled: false}, LogConfig{Level: "info", Format: "json", OutputFile: "stdout"})
	require.NoError(t, err)
	require.NotNil(t, b.Logger)
	require.NotNil(t, b.Counters.PagePoolGrabs)

	// No-op instruments must not panic when recorded against.
	b.Counters.PagePoolGrabs.Add(context.Background(), 1)
	require.NoError(t, b.Shutdown(context.Background()))
}

func TestNewLoggerDefaultsLevelOnBadInput(t *testing.T) {
	logger, err := newLogger(LogConfig{Level: "not-a-level", Format: "console", OutputFile: "stdout"})
	require.NoError(t, err)
	require.NotNil(t, logger)
}

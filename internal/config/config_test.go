package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdouB/adaptive/internal/models"
)

func TestDefaultManifestParses(t *testing.T) {
	m, err := DefaultManifest()
	require.NoError(t, err)
	require.Len(t, m.Components, 4)

	upload := m.Components[0]
	assert.Equal(t, "upload-panel", upload.ID)
	assert.True(t, upload.AutoSurface)
	assert.Equal(t, 300*time.Millisecond, upload.AutoSurfaceDelay)

	grid := m.Components[2]
	assert.Equal(t, models.DurationSlow, grid.Duration)
	require.Len(t, grid.SurfaceWhen, 2)
	assert.Equal(t, 2.0, grid.SurfaceWhen[0].EffectiveWeight())
	assert.Equal(t, 1.0, grid.SurfaceWhen[1].EffectiveWeight())
	assert.Equal(t, models.ConditionExpression, grid.ForceShowWhen[0].Type)
}

func TestParseManifestRejectsBadInput(t *testing.T) {
	_, err := ParseManifest(strings.NewReader("components:\n  - id: a\n    colour: red\n"))
	assert.Error(t, err, "unknown keys are rejected")

	_, err = ParseManifest(strings.NewReader("components:\n  - id: a\n  - id: a\n"))
	assert.ErrorContains(t, err, "duplicate")

	_, err = ParseManifest(strings.NewReader("components:\n  - display_name: nameless\n"))
	assert.ErrorContains(t, err, "no id")

	m, err := ParseManifest(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, m.Components)
}

func TestLoadManifestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "components.yaml")
	require.NoError(t, os.WriteFile(path, []byte("components:\n  - id: card-1\n    category: card\n"), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Components, 1)
	assert.Equal(t, "card", m.Components[0].Category)

	_, err = LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadUsesFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  duration: slow\n  max_events: 10\nlogging:\n  level: debug\n"), 0o644))
	t.Setenv("ADAPTIVE_CONFIG", path)
	t.Setenv("ADAPTIVE_ENGINE_MAX_EVENTS", "25")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "slow", c.Engine.Duration)
	assert.Equal(t, 25, c.Engine.MaxEvents)
	assert.Equal(t, "debug", c.Logging.Level)
	assert.Equal(t, 0.5, c.Engine.SurfaceThreshold)

	oc := c.Orchestrator("session-1")
	assert.Equal(t, models.DurationSlow, oc.Duration)
	assert.Equal(t, "session-1", oc.SessionID)
}

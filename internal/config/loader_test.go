package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_Defaults(t *testing.T) {
	l := NewLoader()
	require.NoError(t, l.Load())
	c, err := l.Config()
	require.NoError(t, err)

	assert.Equal(t, uint64(2024), c.Seed)
	assert.Equal(t, PolicyEveryN, c.Checkpoint.Policy)
	assert.Equal(t, 2, c.Checkpoint.Every)
	assert.True(t, c.Checkpoint.SaveRNG)
	assert.False(t, c.Checkpoint.EvictLeaves)
	assert.Equal(t, 4, c.Model.Layers)
	assert.InDelta(t, 0.1, c.Model.Dropout, 1e-12)
	assert.Equal(t, 1, c.Train.Steps)
	assert.Equal(t, OptimizerSGD, c.Train.Optimizer)
}

func TestLoader_FileThenEnvThenMap(t *testing.T) {
	path := writeFile(t, `
seed: 7
checkpoint:
  policy: depth
  depth: 3
  save_rng: false
model:
  width: 32
`)
	t.Setenv("AGRAPH_CHECKPOINT_DEPTH", "5")
	t.Setenv("AGRAPH_CHECKPOINT_STRICT_VERSIONS", "true")
	t.Setenv("AGRAPH_MODEL_DROPOUT", "0.5")
	t.Setenv("AGRAPH_SEED", "11")
	t.Setenv("AGRAPH_TRAIN_OPTIMIZER", "adam")

	l := NewLoader(WithConfigFile(path))
	require.NoError(t, l.Load())
	require.NoError(t, l.LoadMap(map[string]any{"model.layers": 2}))
	c, err := l.Config()
	require.NoError(t, err)

	assert.Equal(t, uint64(11), c.Seed, "env overrides file")
	assert.Equal(t, PolicyDepth, c.Checkpoint.Policy)
	assert.Equal(t, 5, c.Checkpoint.Depth, "env overrides file")
	assert.False(t, c.Checkpoint.SaveRNG, "file overrides default")
	assert.True(t, c.Checkpoint.StrictVersions)
	assert.Equal(t, 32, c.Model.Width)
	assert.Equal(t, 2, c.Model.Layers, "map overrides everything")
	assert.InDelta(t, 0.5, c.Model.Dropout, 1e-12)
	assert.Equal(t, OptimizerAdam, c.Train.Optimizer)
}

func TestLoader_EnvKeyMapping(t *testing.T) {
	l := NewLoader(WithEnvPrefix("TEST_"))
	assert.Equal(t, "checkpoint.save_rng", l.envKey("TEST_CHECKPOINT_SAVE_RNG"))
	assert.Equal(t, "model.batch", l.envKey("TEST_MODEL_BATCH"))
	assert.Equal(t, "seed", l.envKey("TEST_SEED"))
}

func TestLoader_MissingFile(t *testing.T) {
	l := NewLoader(WithConfigFile("/nonexistent/agraph.yaml"))
	assert.Error(t, l.Load())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]any
		wantErr   string
	}{
		{"unknown policy", map[string]any{"checkpoint.policy": "always"}, "unknown checkpoint.policy"},
		{"every zero", map[string]any{"checkpoint.every": 0}, "checkpoint.every"},
		{"depth negative", map[string]any{"checkpoint.policy": PolicyDepth, "checkpoint.depth": -1}, "checkpoint.depth"},
		{"no layers", map[string]any{"model.layers": 0}, "model sizes"},
		{"dropout one", map[string]any{"model.dropout": 1.0}, "model.dropout"},
		{"no steps", map[string]any{"train.steps": 0}, "train.steps"},
		{"unknown optimizer", map[string]any{"train.optimizer": "lbfgs"}, "unknown train.optimizer"},
		{"zero lr", map[string]any{"train.lr": 0}, "train.lr"},
		{"none ignores every", map[string]any{"checkpoint.policy": PolicyNone, "checkpoint.every": 0}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader()
			require.NoError(t, l.LoadMap(tt.overrides))
			_, err := l.Config()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoader_DottedMapKeysNest(t *testing.T) {
	l := NewLoader()
	c, err := l.Config()
	require.NoError(t, err, "defaults alone unmarshal into a valid config")
	assert.Equal(t, PolicyEveryN, c.Checkpoint.Policy)
	assert.Equal(t, 16, c.Model.Width)
	assert.IsType(t, map[string]any{}, l.Get("checkpoint"), "dotted default keys form a section")

	require.NoError(t, l.LoadMap(map[string]any{"checkpoint.policy": PolicyDepth}))
	c, err = l.Config()
	require.NoError(t, err)
	assert.Equal(t, PolicyDepth, c.Checkpoint.Policy)
	assert.Equal(t, 2, c.Checkpoint.Every, "sibling keys survive a partial override")
	assert.NotContains(t, l.Keys(), "checkpoint")
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew_NilData returns a usable empty config.
func TestNew_NilData(t *testing.T) {
	cfg := New(nil)
	assert.False(t, cfg.Has("anything"))
	assert.Equal(t, "fallback", cfg.String("anything", "fallback"))
}

// TestConfig_TypedAccessors covers hits, misses, and wrong types.
func TestConfig_TypedAccessors(t *testing.T) {
	cfg := New(map[string]any{
		"name":    "plus_one",
		"count":   3,
		"big":     int64(9),
		"ratio":   0.5,
		"whole":   float64(4),
		"frac":    4.5,
		"enabled": true,
		"names":   []any{"a", "b"},
		"typed":   []string{"c"},
		"mixed":   []any{"a", 1},
	})

	assert.Equal(t, "plus_one", cfg.String("name", ""))
	assert.Equal(t, "dflt", cfg.String("count", "dflt"), "wrong type falls back")

	assert.Equal(t, 3, cfg.Int("count", -1))
	assert.Equal(t, 9, cfg.Int("big", -1))
	assert.Equal(t, 4, cfg.Int("whole", -1), "whole float converts")
	assert.Equal(t, -1, cfg.Int("frac", -1), "fractional float does not")

	assert.Equal(t, 0.5, cfg.Float("ratio", 0))
	assert.Equal(t, 3.0, cfg.Float("count", 0), "int converts to float")

	assert.True(t, cfg.Bool("enabled", false))
	assert.False(t, cfg.Bool("name", false))

	assert.Equal(t, []string{"a", "b"}, cfg.StringSlice("names", nil))
	assert.Equal(t, []string{"c"}, cfg.StringSlice("typed", nil))
	assert.Nil(t, cfg.StringSlice("mixed", nil), "non-string element falls back")

	assert.True(t, cfg.Has("name"))
	assert.False(t, cfg.Has("missing"))
	assert.Equal(t, 3, cfg.Any("count", nil))
}

// TestConfig_Duration accepts strings, numbers, and durations.
func TestConfig_Duration(t *testing.T) {
	cfg := New(map[string]any{
		"str":  "150ms",
		"secs": 2,
		"f":    0.5,
		"d":    3 * time.Second,
		"bad":  "nope",
	})

	assert.Equal(t, 150*time.Millisecond, cfg.Duration("str", 0))
	assert.Equal(t, 2*time.Second, cfg.Duration("secs", 0))
	assert.Equal(t, 500*time.Millisecond, cfg.Duration("f", 0))
	assert.Equal(t, 3*time.Second, cfg.Duration("d", 0))
	assert.Equal(t, time.Minute, cfg.Duration("bad", time.Minute))
	assert.Equal(t, time.Minute, cfg.Duration("missing", time.Minute))
}

// TestConfig_Sub addresses nested sections; missing keys yield an
// empty section, never nil.
func TestConfig_Sub(t *testing.T) {
	cfg := New(map[string]any{
		"plus_one": map[string]any{
			"concurrency": "unlimited",
		},
		"scalar": 5,
	})

	sub := cfg.Sub("plus_one")
	assert.Equal(t, "unlimited", sub.String("concurrency", ""))

	assert.False(t, cfg.Sub("missing").Has("anything"))
	assert.False(t, cfg.Sub("scalar").Has("anything"), "non-mapping yields empty section")
}

// TestFromYAML parses nested mappings.
func TestFromYAML(t *testing.T) {
	cfg, err := FromYAML([]byte(`
module_name: demo
plugins:
  - demo
demo:
  events: 20
`))
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.String("module_name", ""))
	assert.Equal(t, []string{"demo"}, cfg.StringSlice("plugins", nil))
	assert.Equal(t, 20, cfg.Sub("demo").Int("events", 0))
}

// TestFromYAML_Invalid reports a parse error.
func TestFromYAML_Invalid(t *testing.T) {
	_, err := FromYAML([]byte("{not yaml"))
	assert.Error(t, err)
}

// TestFromJSON parses nested mappings.
func TestFromJSON(t *testing.T) {
	cfg, err := FromJSON([]byte(`{"demo": {"events": 20}}`))
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Sub("demo").Int("events", 0))
}

// TestFromFile dispatches on extension.
func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("events: 7"), 0o644))
	cfg, err := FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Int("events", 0))

	jsonPath := filepath.Join(dir, "job.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"events": 8}`), 0o644))
	cfg, err = FromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Int("events", 0))

	_, err = FromFile(filepath.Join(dir, "job.toml"))
	assert.Error(t, err, "unsupported extension")

	_, err = FromFile(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)
}

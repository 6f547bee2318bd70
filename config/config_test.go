package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.Validate())
	assert.Equal(t, 2, cfg.WorldSize())
	assert.Equal(t, "all[]", cfg.Mesh.Predicate)
}

func TestValidationErrors_Error(t *testing.T) {
	var errs ValidationErrors
	assert.Equal(t, "", errs.Error())

	errs = ValidationErrors{{Field: "run.steps", Value: 0, Message: "must be at least 1"}}
	assert.Equal(t, "run.steps: must be at least 1 (got: 0)", errs.Error())

	errs = append(errs, ValidationError{Field: "log.format", Value: "xml", Message: "is invalid"})
	assert.True(t, strings.Contains(errs.Error(), "2 validation errors"))
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"empty name", func(c *Config) { c.Coupling.Name = "" }, "coupling.name"},
		{"empty group", func(c *Config) { c.Coupling.Group1 = nil; c.Coupling.Group2 = []int{0} }, "coupling.group1"},
		{"rank gap", func(c *Config) { c.Coupling.Group2 = []int{2} }, "coupling.group2"},
		{"overlap", func(c *Config) { c.Coupling.Group2 = []int{0} }, "coupling.group2"},
		{"k nearest", func(c *Config) { c.Coupling.KNearest = 0 }, "coupling.k_nearest"},
		{"tolerance", func(c *Config) { c.Coupling.Tolerance = -1 }, "coupling.tolerance"},
		{"max distance", func(c *Config) { c.Coupling.MaxDistance = -1 }, "coupling.max_distance"},
		{"nx", func(c *Config) { c.Mesh.Nx = 0 }, "mesh.nx"},
		{"nz without ny", func(c *Config) { c.Mesh.Ny = 0; c.Mesh.Nz = 2 }, "mesh.nz"},
		{"predicate", func(c *Config) { c.Mesh.Predicate = "x <" }, "mesh.predicate"},
		{"strategy", func(c *Config) { c.Mesh.Strategy = "metis" }, "mesh.strategy"},
		{"transport", func(c *Config) { c.Transport.Kind = "mpi" }, "transport.kind"},
		{"peers", func(c *Config) { c.Transport.Kind = "websocket"; c.Transport.RunID = "r" }, "transport.peers"},
		{"run id", func(c *Config) {
			c.Transport.Kind = "websocket"
			c.Transport.Peers = []string{"a:1", "b:2"}
		}, "transport.run_id"},
		{"steps", func(c *Config) { c.Run.Steps = 0 }, "run.steps"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)
			errs := cfg.Validate()
			require.NotEmpty(t, errs)
			fields := make([]string, len(errs))
			for i, e := range errs {
				fields[i] = e.Field
			}
			assert.Contains(t, fields, tc.field)
		})
	}

	t.Run("mesh file skips box checks", func(t *testing.T) {
		cfg := Default()
		cfg.Mesh.File = "mesh.neu"
		cfg.Mesh.Nx = 0
		assert.Empty(t, cfg.Validate())
	})
}

func TestLoadFrom(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dgcouple.yaml")
	content := `
coupling:
  name: wing
  group1: [0, 1]
  group2: [2]
  k_nearest: 4
mesh:
  nx: 8
  ny: 4
  predicate: "x < 0.5"
  strategy: sfc
run:
  steps: 3
log:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	SetDefaultsOn(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "wing", cfg.Coupling.Name)
	assert.Equal(t, []int{0, 1}, cfg.Coupling.Group1)
	assert.Equal(t, []int{2}, cfg.Coupling.Group2)
	assert.Equal(t, 4, cfg.Coupling.KNearest)
	assert.Equal(t, 1e-10, cfg.Coupling.Tolerance)
	assert.Equal(t, 8, cfg.Mesh.Nx)
	assert.Equal(t, "sfc", cfg.Mesh.Strategy)
	assert.Equal(t, 3, cfg.Run.Steps)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "local", cfg.Transport.Kind)

	v.Set("run.steps", 0)
	_, err = LoadFrom(v)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "run.steps", verrs[0].Field)
}

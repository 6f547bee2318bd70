package config

import (
	"github.com/spf13/viper"
)

// Config holds the settings of a coupled run
type Config struct {
	Coupling  CouplingConfig  `mapstructure:"coupling"`
	Mesh      MeshConfig      `mapstructure:"mesh"`
	Transport TransportConfig `mapstructure:"transport"`
	Run       RunConfig       `mapstructure:"run"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// CouplingConfig names the session and its two process groups, and tunes
// the interpolation built at synchronization.
type CouplingConfig struct {
	Name   string `mapstructure:"name"`
	Group1 []int  `mapstructure:"group1"` // World ranks of the first solver
	Group2 []int  `mapstructure:"group2"`

	KNearest     int     `mapstructure:"k_nearest"`
	Tolerance    float64 `mapstructure:"tolerance"`
	MaxDistance  float64 `mapstructure:"max_distance"` // 0 disables the cutoff
	DefaultValue float64 `mapstructure:"default_value"`
}

// MeshConfig selects the native mesh. File takes precedence over the box
// resolution.
type MeshConfig struct {
	File      string `mapstructure:"file"`
	Nx        int    `mapstructure:"nx"`
	Ny        int    `mapstructure:"ny"`
	Nz        int    `mapstructure:"nz"`
	Predicate string `mapstructure:"predicate"`
	Strategy  string `mapstructure:"strategy"` // Partitioning within each group
}

type TransportConfig struct {
	Kind   string   `mapstructure:"kind"`
	Peers  []string `mapstructure:"peers"` // Listen address of each rank, websocket only
	Rank   int      `mapstructure:"rank"`
	RunID  string   `mapstructure:"run_id"`
	Listen string   `mapstructure:"listen"` // Overrides Peers[Rank] for binding
}

type RunConfig struct {
	Steps int `mapstructure:"steps"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // Empty disables the endpoint
}

// WorldSize is the number of ranks both groups span
func (c *Config) WorldSize() int {
	return len(c.Coupling.Group1) + len(c.Coupling.Group2)
}

// Default returns the configuration of a two rank run on a 16x16 box
func Default() *Config {
	return &Config{
		Coupling: CouplingConfig{
			Name:      "dgcouple",
			Group1:    []int{0},
			Group2:    []int{1},
			KNearest:  1,
			Tolerance: 1e-10,
		},
		Mesh: MeshConfig{
			Nx:        16,
			Ny:        16,
			Predicate: "all[]",
			Strategy:  "block",
		},
		Transport: TransportConfig{
			Kind: "local",
		},
		Run: RunConfig{
			Steps: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers the defaults with viper
func SetDefaults() {
	SetDefaultsOn(viper.GetViper())
}

func SetDefaultsOn(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("coupling.name", defaults.Coupling.Name)
	v.SetDefault("coupling.group1", defaults.Coupling.Group1)
	v.SetDefault("coupling.group2", defaults.Coupling.Group2)
	v.SetDefault("coupling.k_nearest", defaults.Coupling.KNearest)
	v.SetDefault("coupling.tolerance", defaults.Coupling.Tolerance)
	v.SetDefault("coupling.max_distance", defaults.Coupling.MaxDistance)
	v.SetDefault("coupling.default_value", defaults.Coupling.DefaultValue)

	v.SetDefault("mesh.file", defaults.Mesh.File)
	v.SetDefault("mesh.nx", defaults.Mesh.Nx)
	v.SetDefault("mesh.ny", defaults.Mesh.Ny)
	v.SetDefault("mesh.nz", defaults.Mesh.Nz)
	v.SetDefault("mesh.predicate", defaults.Mesh.Predicate)
	v.SetDefault("mesh.strategy", defaults.Mesh.Strategy)

	v.SetDefault("transport.kind", defaults.Transport.Kind)
	v.SetDefault("transport.peers", defaults.Transport.Peers)
	v.SetDefault("transport.rank", defaults.Transport.Rank)
	v.SetDefault("transport.run_id", defaults.Transport.RunID)
	v.SetDefault("transport.listen", defaults.Transport.Listen)

	v.SetDefault("run.steps", defaults.Run.Steps)

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)

	v.SetDefault("metrics.addr", defaults.Metrics.Addr)
}

// Load reads the configuration from viper into a Config and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load on a specific viper instance
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

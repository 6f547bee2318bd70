package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/notargets/DGCoupling/config"
	"github.com/notargets/DGCoupling/coupling"
	"github.com/notargets/DGCoupling/mesh"
	"github.com/notargets/DGCoupling/metrics"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "dgcouple",
	Short: "Couple two groups of solver ranks over a shared mesh",
	Long: `dgcouple runs a field exchange between two disjoint groups of ranks.
Each group partitions the same mesh, group1 sends a cell field to group2
and group2 answers with a node field.

Settings come from a YAML config file, DGCOUPLE_* environment variables
(e.g. DGCOUPLE_RUN_STEPS for run.steps) and flags.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./dgcouple.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("metrics.addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))
}

func initConfig() {
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("dgcouple")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/dgcouple")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("DGCOUPLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = viper.ReadInConfig()
}

// newLogger builds the process logger from the log settings
func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(level)
	}
	if cfg.Log.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

// serveMetrics exposes the metrics endpoint until the process exits
func serveMetrics(addr string, log *logrus.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	log.WithField("addr", addr).Info("serving metrics")
}

// loadMesh reads the mesh file, or builds the unit box when none is set
func loadMesh(cfg *config.Config) (*mesh.Mesh, error) {
	if cfg.Mesh.File != "" {
		return mesh.Load(cfg.Mesh.File)
	}
	return mesh.NewBox(cfg.Mesh.Nx, cfg.Mesh.Ny, cfg.Mesh.Nz, [3]float64{}, [3]float64{1, 1, 1})
}

// fatal ends the process on errors that mean the coupling was set up or
// driven wrongly. Other errors are returned to cobra.
func fatal(log *logrus.Entry, err error) error {
	if errors.Is(err, coupling.ErrConfiguration) || errors.Is(err, coupling.ErrOrdering) {
		log.WithError(err).Fatal("coupling aborted")
	}
	return err
}

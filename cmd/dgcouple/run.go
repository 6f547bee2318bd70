package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/notargets/DGCoupling/comm"
	"github.com/notargets/DGCoupling/config"
	"github.com/notargets/DGCoupling/driver"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every rank of the coupling in this process",
	Long: `Run starts one goroutine per rank of coupling.group1 and coupling.group2,
connected by in-process queues, and reports the largest difference between
received and analytic values on each rank.`,
	RunE: runLocal,
}

func init() {
	runCmd.Flags().Int("steps", 0, "number of exchange steps")
	runCmd.Flags().IntSlice("group1", nil, "world ranks of the first group")
	runCmd.Flags().IntSlice("group2", nil, "world ranks of the second group")
	_ = viper.BindPFlag("run.steps", runCmd.Flags().Lookup("steps"))
	_ = viper.BindPFlag("coupling.group1", runCmd.Flags().Lookup("group1"))
	_ = viper.BindPFlag("coupling.group2", runCmd.Flags().Lookup("group2"))
	rootCmd.AddCommand(runCmd)
}

func runLocal(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	serveMetrics(cfg.Metrics.Addr, log)

	global, err := loadMesh(cfg)
	if err != nil {
		return fmt.Errorf("load mesh: %w", err)
	}
	log.WithFields(logrus.Fields{
		"cells":    global.NumCells(),
		"vertices": global.NumVertices(),
		"ranks":    cfg.WorldSize(),
	}).Info("starting local coupling")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	comms := comm.NewLocalWorld(cfg.WorldSize())
	defer comms[0].Close()

	results := make([]*driver.Result, len(comms))
	errs := make([]error, len(comms))
	var wg sync.WaitGroup
	for i, c := range comms {
		wg.Add(1)
		go func(i int, c comm.Communicator) {
			defer wg.Done()
			results[i], errs[i] = driver.Run(ctx, c, cfg, global, logrus.NewEntry(log))
		}(i, c)
	}
	wg.Wait()

	entry := logrus.NewEntry(log)
	for i, err := range errs {
		if err != nil {
			return fatal(entry.WithField("rank", i), err)
		}
	}
	for _, r := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "rank %d group %d: %d cells, %d coupled, %d steps, %d values, max error %.3e (%v)\n",
			r.Rank, r.Group, r.Cells, r.Selected, r.Steps, r.Received, r.MaxError, r.Elapsed)
	}
	return nil
}

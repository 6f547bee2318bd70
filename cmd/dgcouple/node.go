package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/notargets/DGCoupling/comm"
	"github.com/notargets/DGCoupling/config"
	"github.com/notargets/DGCoupling/driver"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run one rank of a networked coupling",
	Long: `Node runs the rank given by transport.rank. Ranks reach each other over
websockets at transport.peers; every rank of one run must be given the same
transport.run_id (see "dgcouple node --new-run-id").`,
	RunE: runNode,
}

var newRunID bool

func init() {
	nodeCmd.Flags().Int("rank", 0, "world rank of this process")
	nodeCmd.Flags().StringSlice("peers", nil, "listen address of every rank, in rank order")
	nodeCmd.Flags().String("run-id", "", "identifier shared by all ranks of the run")
	nodeCmd.Flags().String("listen", "", "bind address, defaults to this rank's peer address")
	nodeCmd.Flags().BoolVar(&newRunID, "new-run-id", false, "print a fresh run id and exit")
	_ = viper.BindPFlag("transport.rank", nodeCmd.Flags().Lookup("rank"))
	_ = viper.BindPFlag("transport.peers", nodeCmd.Flags().Lookup("peers"))
	_ = viper.BindPFlag("transport.run_id", nodeCmd.Flags().Lookup("run-id"))
	_ = viper.BindPFlag("transport.listen", nodeCmd.Flags().Lookup("listen"))
	rootCmd.AddCommand(nodeCmd)
}

func runNode(cmd *cobra.Command, args []string) error {
	if newRunID {
		fmt.Fprintln(cmd.OutOrStdout(), uuid.NewString())
		return nil
	}
	viper.Set("transport.kind", "websocket")
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	entry := log.WithFields(logrus.Fields{"rank": cfg.Transport.Rank, "run": cfg.Transport.RunID})
	serveMetrics(cfg.Metrics.Addr, log)

	global, err := loadMesh(cfg)
	if err != nil {
		return fmt.Errorf("load mesh: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := cfg.Transport.Listen
	if addr == "" {
		addr = cfg.Transport.Peers[cfg.Transport.Rank]
	}
	l, err := comm.Listen(addr)
	if err != nil {
		return err
	}
	entry.WithField("addr", l.Addr()).Info("waiting for peers")
	world, err := l.Connect(ctx, cfg.Transport.Rank, cfg.Transport.Peers, cfg.Transport.RunID)
	if err != nil {
		l.Close()
		return err
	}
	defer world.Close()
	entry.Info("world connected")

	res, err := driver.Run(ctx, world, cfg, global, entry)
	if err != nil {
		return fatal(entry, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rank %d group %d: %d cells, %d coupled, %d steps, %d values, max error %.3e (%v)\n",
		res.Rank, res.Group, res.Cells, res.Selected, res.Steps, res.Received, res.MaxError, res.Elapsed)
	return nil
}

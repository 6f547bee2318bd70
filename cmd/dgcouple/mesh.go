package main

import (
	"fmt"

	"github.com/notargets/DGCoupling/config"
	"github.com/notargets/DGCoupling/mesh"
	"github.com/notargets/DGCoupling/partitions"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var meshCmd = &cobra.Command{
	Use:   "mesh [file]",
	Short: "Summarize a mesh and its partitioning",
	Long: `Mesh loads the given mesh file (or the configured mesh), prints its
element counts, the elements the configured predicate selects, and the load
balance of splitting it over --parts ranks.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMesh,
}

var meshParts int

func init() {
	meshCmd.Flags().IntVar(&meshParts, "parts", 1, "number of partitions to report")
	meshCmd.Flags().String("strategy", "", "partition strategy (block, roundrobin, sfc, mesh)")
	meshCmd.Flags().String("predicate", "", "element selection, e.g. \"x < 0.5\"")
	_ = viper.BindPFlag("mesh.strategy", meshCmd.Flags().Lookup("strategy"))
	_ = viper.BindPFlag("mesh.predicate", meshCmd.Flags().Lookup("predicate"))
	rootCmd.AddCommand(meshCmd)
}

func runMesh(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		viper.Set("mesh.file", args[0])
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	m, err := loadMesh(cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprint(out, m.String())

	for _, eltDim := range []int{m.Dim, m.Dim - 1} {
		a, err := mesh.NewAdapter(m, cfg.Mesh.Predicate, eltDim)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Selection %q, dimension %d: %d elements, %d nodes\n",
			a.Predicate, eltDim, a.NumElements(), a.NumPoints(mesh.OnNodes))
	}

	strategy, err := partitions.ParseStrategy(cfg.Mesh.Strategy)
	if err != nil {
		return err
	}
	pb := &partitions.PartitionBuilder{Mesh: m, NumPartitions: meshParts, Strategy: strategy}
	layout, err := pb.BuildPartitions()
	if err != nil {
		return err
	}
	stats := layout.PartitionStatistics()
	fmt.Fprintf(out, "Partitions (%s): %d, elements min %d max %d avg %.1f, imbalance %.3f\n",
		strategy, stats.NumPartitions, stats.MinElements, stats.MaxElements, stats.AvgElements, stats.Imbalance)
	return nil
}

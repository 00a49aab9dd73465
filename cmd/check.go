package cmd

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osmjoin/internal/join"
	"github.com/wegman-software/osmjoin/internal/logger"
	"github.com/wegman-software/osmjoin/internal/osmio"
	"github.com/wegman-software/osmjoin/internal/proj"
)

var checkCmd = &cobra.Command{
	Use:   "check <input.osm.pbf|input.osm>",
	Short: "Report whether the selection has anything to join, without editing",
	Long: `Check runs the same selection and intersection analysis as join but
commits nothing and writes nothing. The exit status is zero either way;
the result is reported in the log.`,
	Args: cobra.ExactArgs(1),
	Run:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML config file (filters, conflict policy)")
	checkCmd.Flags().StringVar(&wayIDsStr, "way-ids", "", "Comma-separated way IDs to check")
	checkCmd.Flags().StringVarP(&bboxStr, "bbox", "b", "", "Bounding box filter: minlon,minlat,maxlon,maxlat")
	checkCmd.Flags().StringVarP(&projectionStr, "projection", "E", "3857", "Projection SRID the geometry runs in (4326 or 3857)")
}

func runCheck(cmd *cobra.Command, args []string) {
	cfg.InputFile = args[0]
	log := logger.Get()

	if err := bindJoinFlags(); err != nil {
		exitWithError("invalid configuration", err)
	}

	ctx := context.Background()

	tr, err := proj.NewTransformer(cfg.Projection)
	if err != nil {
		exitWithError("invalid projection", err)
	}

	start := time.Now()
	ds, err := osmio.LoadFile(ctx, cfg.InputFile, cfg.Workers, tr, log)
	if err != nil {
		exitWithError("load failed", err)
	}

	selection := selectWays(ds, cfg)
	if len(selection) == 0 {
		log.Info("no closed ways match the selection")
		return
	}

	joiner := join.NewJoiner(ds, join.Options{Transformer: tr, Logger: log})
	joinable, err := joiner.TestJoin(selection)
	if err != nil {
		exitWithError("check failed", err)
	}

	log.Info("Check complete",
		zap.Int("ways", len(selection)),
		zap.Bool("joinable", joinable),
		zap.Duration("total_time", time.Since(start).Round(time.Millisecond)),
	)
}

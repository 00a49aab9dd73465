package cmd

import (
	"context"
	"errors"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osmjoin/internal/config"
	"github.com/wegman-software/osmjoin/internal/join"
	"github.com/wegman-software/osmjoin/internal/logger"
	"github.com/wegman-software/osmjoin/internal/metrics"
	"github.com/wegman-software/osmjoin/internal/osmdata"
	"github.com/wegman-software/osmjoin/internal/osmio"
	"github.com/wegman-software/osmjoin/internal/proj"
)

var (
	configFile     string
	wayIDsStr      string
	bboxStr        string
	projectionStr  string
	conflictPolicy string
	outputFile     string
	geojsonOutput  string
)

var joinCmd = &cobra.Command{
	Use:   "join <input.osm.pbf|input.osm>",
	Short: "Join overlapping closed ways into merged polygons",
	Long: `Join merges the selected closed ways and multipolygon areas:

  1. Unify duplicate nodes and insert nodes at every boundary crossing
  2. Split the ways at the crossings and drop duplicated fragments
  3. Walk the outermost boundary, nest holes, rebuild relations
  4. Write the edited data back out

Select ways explicitly with --way-ids, or let tag filters and the bounding
box pick all matching closed ways. Without a selection flag, every closed
way in the input is considered.`,
	Args: cobra.ExactArgs(1),
	Run:  runJoin,
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML config file (filters, conflict policy)")
	joinCmd.Flags().StringVar(&wayIDsStr, "way-ids", "", "Comma-separated way IDs to join")
	joinCmd.Flags().StringVarP(&bboxStr, "bbox", "b", "", "Bounding box filter: minlon,minlat,maxlon,maxlat")
	joinCmd.Flags().StringVarP(&projectionStr, "projection", "E", "3857", "Projection SRID the geometry runs in (4326 or 3857)")
	joinCmd.Flags().StringVar(&conflictPolicy, "conflict-policy", "", "Tag conflict policy: fail, first or union")
	joinCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output OSM XML file (default: <input>.joined.osm)")
	joinCmd.Flags().StringVar(&geojsonOutput, "geojson-output", "", "Also write merged polygons as GeoJSON")
}

func runJoin(cmd *cobra.Command, args []string) {
	cfg.InputFile = args[0]
	log := logger.Get()

	if err := bindJoinFlags(); err != nil {
		exitWithError("invalid configuration", err)
	}
	if cfg.OutputFile == "" {
		cfg.OutputFile = cfg.InputFile + ".joined.osm"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsInterval > 0 {
		collector := metrics.NewCollector(time.Duration(cfg.MetricsInterval), log)
		go collector.Start(ctx)
	}

	tr, err := proj.NewTransformer(cfg.Projection)
	if err != nil {
		exitWithError("invalid projection", err)
	}

	totalStart := time.Now()
	log.Info("Starting osmjoin",
		zap.String("input", cfg.InputFile),
		zap.String("output", cfg.OutputFile),
		zap.Int("projection", cfg.Projection),
		zap.Int("workers", cfg.Workers),
	)

	ds, err := osmio.LoadFile(ctx, cfg.InputFile, cfg.Workers, tr, log)
	if err != nil {
		exitWithError("load failed", err)
	}

	selection := selectWays(ds, cfg)
	if len(selection) == 0 {
		exitWithError("no closed ways match the selection", nil)
	}
	log.Info("selection resolved", zap.Int("ways", len(selection)))

	joiner := join.NewJoiner(ds, join.Options{
		Resolver:    &join.PolicyResolver{Policy: cfg.ConflictPolicy},
		Transformer: tr,
		Logger:      log,
	})

	result, err := joiner.Join(ctx, selection)
	if err != nil {
		if errors.Is(err, join.ErrTagConflict) {
			exitWithError("tag conflict between joined ways (use --conflict-policy first or union)", err)
		}
		exitWithError("join failed", err)
	}

	if !result.HasChanges {
		log.Info("nothing to join, output not written",
			zap.Duration("total_time", time.Since(totalStart).Round(time.Millisecond)))
		return
	}

	if err := osmio.WriteXML(cfg.OutputFile, ds); err != nil {
		exitWithError("writing output failed", err)
	}
	if cfg.GeoJSONOutput != "" {
		if err := osmio.WriteGeoJSON(cfg.GeoJSONOutput, ds, result.Polygons); err != nil {
			exitWithError("writing geojson failed", err)
		}
	}

	for _, w := range result.Warnings {
		log.Warn(w)
	}
	log.Info("Join complete",
		zap.Duration("total_time", time.Since(totalStart).Round(time.Millisecond)),
		zap.Int("polygons", len(result.Polygons)),
		zap.Int("new_relations", len(result.CreatedRelations)),
		zap.Int("edits", joiner.EditCount()),
		zap.String("output", cfg.OutputFile),
	)
}

func bindJoinFlags() error {
	if configFile != "" {
		if err := cfg.LoadFile(configFile); err != nil {
			return err
		}
	}

	if bboxStr != "" {
		bbox, err := config.ParseBBox(bboxStr)
		if err != nil {
			return err
		}
		cfg.BBox = bbox
	}

	srid, err := proj.ParseSRID(projectionStr)
	if err != nil {
		return err
	}
	cfg.Projection = srid

	if conflictPolicy != "" {
		cfg.ConflictPolicy = conflictPolicy
	}
	if outputFile != "" {
		cfg.OutputFile = outputFile
	}
	if geojsonOutput != "" {
		cfg.GeoJSONOutput = geojsonOutput
	}

	if wayIDsStr != "" {
		ids, err := parseWayIDs(wayIDsStr)
		if err != nil {
			return err
		}
		cfg.WayIDs = ids
	}

	return cfg.Validate()
}

func parseWayIDs(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// selectWays resolves the selection: explicit IDs win, otherwise every
// closed way passing the tag filter and bounding box.
func selectWays(ds *osmdata.DataSet, cfg *config.Config) []int64 {
	if len(cfg.WayIDs) > 0 {
		return cfg.WayIDs
	}

	var selection []int64
	for _, wid := range ds.WayIDs() {
		w := ds.Way(wid)
		if !w.Closed() {
			continue
		}
		if !cfg.Filter.Match(w.Tags) {
			continue
		}
		if cfg.BBox != nil && cfg.BBox.IsSet && !wayInBBox(ds, w, cfg.BBox) {
			continue
		}
		selection = append(selection, wid)
	}
	return selection
}

func wayInBBox(ds *osmdata.DataSet, w *osmdata.Way, bbox *config.BBox) bool {
	for _, nid := range w.Nodes {
		n := ds.Node(nid)
		if n == nil || !bbox.Contains(n.Lat, n.Lon) {
			return false
		}
	}
	return true
}

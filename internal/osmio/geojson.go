package osmio

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/wegman-software/osmjoin/internal/join"
	"github.com/wegman-software/osmjoin/internal/osmdata"
)

// WriteGeoJSON writes the merged polygons as a GeoJSON feature collection,
// one feature per result polygon with the outer way's tags as properties.
func WriteGeoJSON(path string, ds *osmdata.DataSet, polygons []join.Multipolygon) error {
	fc := geojson.NewFeatureCollection()

	for _, pol := range polygons {
		rings := make(orb.Polygon, 0, 1+len(pol.InnerWays))

		outer, err := wayRing(ds, pol.OuterWay)
		if err != nil {
			return err
		}
		rings = append(rings, outer)

		for _, wid := range pol.InnerWays {
			ring, err := wayRing(ds, wid)
			if err != nil {
				return err
			}
			rings = append(rings, ring)
		}

		feature := geojson.NewFeature(rings)
		feature.Properties["way_id"] = pol.OuterWay
		for k, v := range ds.Way(pol.OuterWay).Tags {
			feature.Properties[k] = v
		}
		fc.Append(feature)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding geojson: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func wayRing(ds *osmdata.DataSet, wayID int64) (orb.Ring, error) {
	w := ds.Way(wayID)
	if w == nil {
		return nil, fmt.Errorf("way %d: not found", wayID)
	}
	ring := make(orb.Ring, 0, len(w.Nodes))
	for _, nid := range w.Nodes {
		n := ds.Node(nid)
		if n == nil {
			return nil, fmt.Errorf("way %d: node %d not found", wayID, nid)
		}
		ring = append(ring, orb.Point{n.Lon, n.Lat})
	}
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring, nil
}

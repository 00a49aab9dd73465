// Package proj converts between WGS84 lat/lon and the planar east/north
// space the join geometry runs in. Supported targets are 4326 (degrees used
// directly as planar coordinates) and 3857 (Web Mercator meters).
package proj

import (
	"fmt"
	"math"
)

// SRID constants for the supported projections.
const (
	SRID4326 = 4326 // WGS84 (lat/lon)
	SRID3857 = 3857 // Web Mercator
)

// Transformer projects lon/lat into east/north and back. The inverse
// direction is needed because the join inserts new nodes at intersection
// points, which only exist in projected space until written out.
type Transformer struct {
	SRID int
}

// NewTransformer creates a transformer targeting the given SRID.
func NewTransformer(srid int) (*Transformer, error) {
	if srid != SRID4326 && srid != SRID3857 {
		return nil, fmt.Errorf("unsupported SRID: %d (supported: 4326, 3857)", srid)
	}
	return &Transformer{SRID: srid}, nil
}

// Forward converts lon/lat to east/north.
func (t *Transformer) Forward(lon, lat float64) (east, north float64) {
	if t.SRID == SRID4326 {
		return lon, lat
	}
	return lonLatToWebMercator(lon, lat)
}

// Inverse converts east/north back to lon/lat.
func (t *Transformer) Inverse(east, north float64) (lon, lat float64) {
	if t.SRID == SRID4326 {
		return east, north
	}
	return webMercatorToLonLat(east, north)
}

// Web Mercator constants.
const (
	earthRadius = 6378137.0
	maxExtent   = 20037508.342789244
	maxLatitude = 85.06
)

func lonLatToWebMercator(lon, lat float64) (x, y float64) {
	// Clamp latitude to avoid infinity at the poles.
	if lat > maxLatitude {
		lat = maxLatitude
	} else if lat < -maxLatitude {
		lat = -maxLatitude
	}

	x = lon * maxExtent / 180.0
	latRad := lat * math.Pi / 180.0
	y = math.Log(math.Tan(math.Pi/4.0+latRad/2.0)) * earthRadius
	return x, y
}

func webMercatorToLonLat(x, y float64) (lon, lat float64) {
	lon = x / maxExtent * 180.0
	lat = (2.0*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2.0) * 180.0 / math.Pi
	return lon, lat
}

// ParseSRID parses a projection string to an SRID.
// Accepts: "4326", "3857", "EPSG:4326", "EPSG:3857".
func ParseSRID(s string) (int, error) {
	switch s {
	case "4326", "EPSG:4326":
		return SRID4326, nil
	case "3857", "EPSG:3857":
		return SRID3857, nil
	default:
		return 0, fmt.Errorf("unsupported projection: %s (supported: 4326, 3857)", s)
	}
}

// Package config holds the runtime configuration for the join tool. Flags
// bind onto a Config in cmd/; a YAML file can supply the parts that are
// awkward on the command line (tag filters, conflict policy).
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that decodes from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Conflict policies for tags that differ between joined ways.
const (
	ConflictFail  = "fail"  // abort the join, nothing committed
	ConflictFirst = "first" // keep the value of the first way that has the key
	ConflictUnion = "union" // join differing values with a semicolon
)

// BBox represents a geographic bounding box used to limit which closed ways
// are considered for the join.
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
	IsSet                          bool
}

// Contains checks if a point is within the bounding box.
func (b *BBox) Contains(lat, lon float64) bool {
	if !b.IsSet {
		return true
	}
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// ParseBBox parses a bbox string in format "minlon,minlat,maxlon,maxlat".
func ParseBBox(s string) (*BBox, error) {
	if s == "" {
		return &BBox{IsSet: false}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must have 4 values: minlon,minlat,maxlon,maxlat")
	}

	var coords [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bbox coordinate %q: %w", p, err)
		}
		coords[i] = v
	}

	bbox := &BBox{
		MinLon: coords[0],
		MinLat: coords[1],
		MaxLon: coords[2],
		MaxLat: coords[3],
		IsSet:  true,
	}

	if bbox.MinLon > bbox.MaxLon {
		return nil, fmt.Errorf("minlon (%f) must be <= maxlon (%f)", bbox.MinLon, bbox.MaxLon)
	}
	if bbox.MinLat > bbox.MaxLat {
		return nil, fmt.Errorf("minlat (%f) must be <= maxlat (%f)", bbox.MinLat, bbox.MaxLat)
	}

	return bbox, nil
}

// SelectionFilter restricts which closed ways get joined, by tags.
type SelectionFilter struct {
	// Include specifies tag keys/values a way must match.
	// If empty, all ways pass.
	Include map[string][]string `yaml:"include,omitempty"`
	// Exclude specifies tag keys/values that reject a way.
	// Applied after include rules.
	Exclude map[string][]string `yaml:"exclude,omitempty"`
	// RequireAny lists keys of which at least one must be present.
	RequireAny []string `yaml:"require_any,omitempty"`
}

// Match reports whether a tag map passes the filter.
func (f *SelectionFilter) Match(tags map[string]string) bool {
	if f == nil {
		return true
	}

	if len(f.RequireAny) > 0 {
		found := false
		for _, key := range f.RequireAny {
			if _, ok := tags[key]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(f.Include) > 0 {
		matched := false
		for key, values := range f.Include {
			v, ok := tags[key]
			if !ok {
				continue
			}
			if len(values) == 0 || containsString(values, v) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for key, values := range f.Exclude {
		v, ok := tags[key]
		if !ok {
			continue
		}
		if len(values) == 0 || containsString(values, v) {
			return false
		}
	}

	return true
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// Config holds the global configuration for a join run.
type Config struct {
	// Input / output
	InputFile     string `yaml:"-"`
	OutputFile    string `yaml:"output,omitempty"`
	GeoJSONOutput string `yaml:"geojson_output,omitempty"`

	// Selection
	WayIDs []int64          `yaml:"way_ids,omitempty"` // explicit selection; empty selects all matching closed ways
	Filter *SelectionFilter `yaml:"filter,omitempty"`
	BBox   *BBox            `yaml:"-"`

	// Geometry
	Projection int `yaml:"projection,omitempty"` // SRID the join geometry runs in

	// Join behavior
	ConflictPolicy string `yaml:"conflict_policy,omitempty"`

	// Processing
	Workers int `yaml:"workers,omitempty"` // PBF decode parallelism only

	// Logging and metrics
	Verbose         bool     `yaml:"-"`
	LogFile         string   `yaml:"log_file,omitempty"`
	MetricsInterval Duration `yaml:"metrics_interval,omitempty"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Projection:      3857, // join in meters, not degrees
		ConflictPolicy:  ConflictFail,
		Workers:         runtime.NumCPU(),
		BBox:            &BBox{},
		MetricsInterval: Duration(30 * time.Second),
	}
}

// LoadFile merges settings from a YAML file into the config. Flag values
// bound before the call win over file values for scalar fields left at their
// zero value in the file.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if file.OutputFile != "" {
		c.OutputFile = file.OutputFile
	}
	if file.GeoJSONOutput != "" {
		c.GeoJSONOutput = file.GeoJSONOutput
	}
	if len(file.WayIDs) > 0 {
		c.WayIDs = file.WayIDs
	}
	if file.Filter != nil {
		c.Filter = file.Filter
	}
	if file.Projection != 0 {
		c.Projection = file.Projection
	}
	if file.ConflictPolicy != "" {
		c.ConflictPolicy = file.ConflictPolicy
	}
	if file.Workers != 0 {
		c.Workers = file.Workers
	}
	if file.LogFile != "" {
		c.LogFile = file.LogFile
	}
	if file.MetricsInterval != 0 {
		c.MetricsInterval = file.MetricsInterval
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("input file is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	switch c.ConflictPolicy {
	case ConflictFail, ConflictFirst, ConflictUnion:
	default:
		return fmt.Errorf("unknown conflict policy %q (supported: fail, first, union)", c.ConflictPolicy)
	}
	if c.Projection != 4326 && c.Projection != 3857 {
		return fmt.Errorf("unsupported projection SRID %d", c.Projection)
	}
	return nil
}

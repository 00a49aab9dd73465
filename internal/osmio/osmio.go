// Package osmio loads OSM data files into the in-memory dataset and writes
// results back out. PBF and XML inputs are supported, with transparent
// gzip for XML.
package osmio

import (
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osmjoin/internal/geom"
	"github.com/wegman-software/osmjoin/internal/osmdata"
	"github.com/wegman-software/osmjoin/internal/proj"
)

const progressInterval = 5 * time.Second

// LoadFile reads an .osm.pbf, .osm, .osm.gz, .xml or .xml.gz file into a
// fresh dataset. Node coordinates are projected with tr and stored next to
// the raw lat/lon.
func LoadFile(ctx context.Context, path string, workers int, tr *proj.Transformer, logger *zap.Logger) (*osmdata.DataSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	var scanner osm.Scanner
	switch {
	case strings.HasSuffix(path, ".pbf"):
		s := osmpbf.New(ctx, f, workers)
		defer s.Close()
		scanner = s
	default:
		var r io.Reader = f
		if strings.HasSuffix(path, ".gz") {
			gz, err := gzip.NewReader(f)
			if err != nil {
				return nil, fmt.Errorf("opening gzip input: %w", err)
			}
			defer gz.Close()
			r = gz
		}
		s := osmxml.New(ctx, r)
		defer s.Close()
		scanner = s
	}

	ds := osmdata.NewDataSet()
	var nodes, ways, relations atomic.Int64

	g, ctx := errgroup.WithContext(ctx)

	done := make(chan struct{})
	g.Go(func() error {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				logger.Info("loading",
					zap.Int64("nodes", nodes.Load()),
					zap.Int64("ways", ways.Load()),
					zap.Int64("relations", relations.Load()))
			case <-done:
				return nil
			case <-ctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		defer close(done)
		for scanner.Scan() {
			switch o := scanner.Object().(type) {
			case *osm.Node:
				east, north := tr.Forward(o.Lon, o.Lat)
				ds.PutNode(&osmdata.Node{
					ID:   int64(o.ID),
					Pos:  geom.Point{East: east, North: north},
					Lat:  o.Lat,
					Lon:  o.Lon,
					Tags: tagMap(o.Tags),
				})
				nodes.Add(1)
			case *osm.Way:
				refs := make([]int64, len(o.Nodes))
				for i, wn := range o.Nodes {
					refs[i] = int64(wn.ID)
				}
				ds.PutWay(&osmdata.Way{
					ID:    int64(o.ID),
					Nodes: refs,
					Tags:  tagMap(o.Tags),
				})
				ways.Add(1)
			case *osm.Relation:
				members := make([]osmdata.Member, 0, len(o.Members))
				for _, m := range o.Members {
					k, ok := memberKind(m.Type)
					if !ok {
						continue
					}
					members = append(members, osmdata.Member{Kind: k, Ref: m.Ref, Role: m.Role})
				}
				ds.PutRelation(&osmdata.Relation{
					ID:      int64(o.ID),
					Members: members,
					Tags:    tagMap(o.Tags),
				})
				relations.Add(1)
			}
		}
		return scanner.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	logger.Info("input loaded",
		zap.String("file", path),
		zap.Int64("nodes", nodes.Load()),
		zap.Int64("ways", ways.Load()),
		zap.Int64("relations", relations.Load()))

	return ds, nil
}

// WriteXML writes the dataset as an OSM XML document. Entities appear in
// ascending ID order within each type; new (negative-ID) entities carry
// their negative IDs so editors recognize them as uncommitted.
func WriteXML(path string, ds *osmdata.DataSet) error {
	doc := &osm.OSM{Version: "0.6"}

	for _, nid := range ds.NodeIDs() {
		n := ds.Node(nid)
		doc.Nodes = append(doc.Nodes, &osm.Node{
			ID:      osm.NodeID(n.ID),
			Lat:     n.Lat,
			Lon:     n.Lon,
			Tags:    osmTags(n.Tags),
			Visible: true,
		})
	}
	for _, wid := range ds.WayIDs() {
		w := ds.Way(wid)
		wayNodes := make(osm.WayNodes, len(w.Nodes))
		for i, ref := range w.Nodes {
			wayNodes[i] = osm.WayNode{ID: osm.NodeID(ref)}
		}
		doc.Ways = append(doc.Ways, &osm.Way{
			ID:      osm.WayID(w.ID),
			Nodes:   wayNodes,
			Tags:    osmTags(w.Tags),
			Visible: true,
		})
	}
	for _, rid := range ds.RelationIDs() {
		r := ds.Relation(rid)
		members := make(osm.Members, len(r.Members))
		for i, m := range r.Members {
			members[i] = osm.Member{Type: memberType(m.Kind), Ref: m.Ref, Role: m.Role}
		}
		doc.Relations = append(doc.Relations, &osm.Relation{
			ID:      osm.RelationID(r.ID),
			Members: members,
			Tags:    osmTags(r.Tags),
			Visible: true,
		})
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding xml: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer out.Close()

	if _, err := out.WriteString(xml.Header); err != nil {
		return err
	}
	if _, err := out.Write(data); err != nil {
		return err
	}
	if _, err := out.WriteString("\n"); err != nil {
		return err
	}
	return out.Close()
}

func tagMap(tags osm.Tags) osmdata.Tags {
	if len(tags) == 0 {
		return nil
	}
	m := make(osmdata.Tags, len(tags))
	for _, t := range tags {
		m[t.Key] = t.Value
	}
	return m
}

func osmTags(tags osmdata.Tags) osm.Tags {
	if len(tags) == 0 {
		return nil
	}
	out := make(osm.Tags, 0, len(tags))
	for _, k := range sortedKeys(tags) {
		out = append(out, osm.Tag{Key: k, Value: tags[k]})
	}
	return out
}

func sortedKeys(tags osmdata.Tags) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func memberKind(t osm.Type) (osmdata.Kind, bool) {
	switch t {
	case osm.TypeNode:
		return osmdata.KindNode, true
	case osm.TypeWay:
		return osmdata.KindWay, true
	case osm.TypeRelation:
		return osmdata.KindRelation, true
	default:
		return 0, false
	}
}

func memberType(k osmdata.Kind) osm.Type {
	switch k {
	case osmdata.KindNode:
		return osm.TypeNode
	case osmdata.KindWay:
		return osm.TypeWay
	default:
		return osm.TypeRelation
	}
}

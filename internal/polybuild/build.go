// Package polybuild reconstructs TIGER/Line polygons. It loads the chain,
// link and attribute layers of a datasource, joins them by module and
// polygon id, assembles each polygon from its bounding chains and writes
// the result to a shapefile.
package polybuild

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/tigerpoly/internal/polygonize"
	"github.com/sells-group/tigerpoly/internal/shapefile"
	"github.com/sells-group/tigerpoly/internal/tiger"
)

// DefaultOutput is written when no output path is given.
const DefaultOutput = "poly.shp"

// Options configures a build.
type Options struct {
	Input   string
	Output  string
	TempDir string

	// Concurrency bounds parallel module file reads.
	Concurrency int

	Polygonize polygonize.Options

	// Progress receives the per-stage summary lines. Nil discards them.
	Progress io.Writer
}

// Stats counts what a build read and wrote.
type Stats struct {
	Modules       int
	Lines         int
	Links         int
	PIPs          int
	AreaLandmarks int
	Landmarks     int
	Polygons      int
	Built         int
	Skipped       int
}

// inputLayers are read from the datasource.
var inputLayers = []string{
	tiger.LayerCompleteChain,
	tiger.LayerPolyChainLink,
	tiger.LayerPolygon,
	tiger.LayerPIP,
	tiger.LayerAreaLandmarks,
	tiger.LayerLandmarks,
}

// Run executes the build. Input and output failures abort it; a polygon
// that cannot be joined or assembled is logged and skipped.
func Run(ctx context.Context, opts Options) (*Stats, error) {
	if opts.Output == "" {
		opts.Output = DefaultOutput
	}
	out := opts.Progress
	if out == nil {
		out = io.Discard
	}
	log := zap.L().With(zap.String("component", "polybuild"), zap.String("input", opts.Input))

	ds, err := tiger.Open(opts.Input, opts.TempDir)
	if err != nil {
		return nil, eris.Wrap(err, "polybuild: open input")
	}
	defer func() { _ = ds.Close() }()

	layers, err := ds.ReadLayers(ctx, inputLayers, opts.Concurrency)
	if err != nil {
		return nil, eris.Wrap(err, "polybuild: read layers")
	}

	stats := &Stats{}

	// Load.
	modules, lines, err := indexLines(layers[tiger.LayerCompleteChain], log)
	if err != nil {
		return nil, err
	}
	stats.Lines, stats.Modules = lines, len(modules)
	fmt.Fprintf(out, "Got %d lines in %d modules.\n", stats.Lines, stats.Modules)

	if stats.Links, err = indexLinks(layers[tiger.LayerPolyChainLink], modules, log); err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Processed %d links.\n", stats.Links)

	pips, err := indexPolygons(layers[tiger.LayerPIP])
	if err != nil {
		return nil, err
	}
	stats.PIPs = len(pips)
	fmt.Fprintf(out, "Processed %d PIP records.\n", stats.PIPs)

	areaLandmarks, err := indexPolygons(layers[tiger.LayerAreaLandmarks])
	if err != nil {
		return nil, err
	}
	stats.AreaLandmarks = len(areaLandmarks)
	fmt.Fprintf(out, "Processed %d AreaLandmarks records.\n", stats.AreaLandmarks)

	landmarks, err := indexLandmarks(layers[tiger.LayerLandmarks])
	if err != nil {
		return nil, err
	}
	stats.Landmarks = len(landmarks)
	fmt.Fprintf(out, "Processed %d Landmarks records.\n", stats.Landmarks)

	// Join and emit.
	schema := NewSchema(layers)
	w, err := shapefile.Create(opts.Output, schema.Defns())
	if err != nil {
		return nil, eris.Wrap(err, "polybuild: create output")
	}

	polys := layers[tiger.LayerPolygon]
	idx, err := fieldIndexes(polys, "MODULE", "CENID", "POLYID")
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	landIdx, err := fieldIndexes(layers[tiger.LayerAreaLandmarks], "LAND")
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	j := &joiner{
		modules:       modules,
		pips:          pips,
		areaLandmarks: areaLandmarks,
		landmarks:     landmarks,
		areaLand:      landIdx[0],
		opts:          opts.Polygonize,
		log:           log,
	}

	for _, feat := range polys.Features {
		if err := ctx.Err(); err != nil {
			_ = w.Close()
			return stats, eris.Wrap(err, "polybuild: cancelled")
		}
		stats.Polygons++

		poly, src, ok := j.join(feat, idx)
		if !ok {
			stats.Skipped++
			continue
		}
		if err := w.Write(poly, schema.Values(src)); err != nil {
			_ = w.Close()
			return stats, eris.Wrap(err, "polybuild: write polygon")
		}
		stats.Built++
	}

	if err := w.Close(); err != nil {
		return stats, eris.Wrap(err, "polybuild: close output")
	}

	fmt.Fprintf(out, "Built %d polygons.\n", stats.Built)
	if stats.Skipped > 0 {
		fmt.Fprintf(out, "Skipped %d polygons.\n", stats.Skipped)
	}
	log.Info("build complete",
		zap.String("output", w.Path()),
		zap.Int("written", w.Count()),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

// joiner resolves the geometry and attribute records of one polygon.
type joiner struct {
	modules       map[string]*module
	pips          map[polyRef]*tiger.Feature
	areaLandmarks map[polyRef]*tiger.Feature
	landmarks     map[landRef]*tiger.Feature
	areaLand      int // LAND field of AreaLandmarks
	opts          polygonize.Options
	log           *zap.Logger
}

// join assembles the polygon of feat and collects its attribute records by
// layer. ok is false when the polygon has to be skipped.
func (j *joiner) join(feat *tiger.Feature, idx []int) (*geom.Polygon, map[string]*tiger.Feature, bool) {
	name := feat.String(idx[0])
	key, ok := polyKey(feat, idx[1], idx[2])
	log := j.log.With(zap.String("module", name), zap.String("cenid", key.CENID), zap.Int64("polyid", key.POLYID))
	if !ok {
		log.Warn("skipping polygon without POLYID")
		return nil, nil, false
	}

	m, ok := j.modules[name]
	if !ok {
		log.Warn("skipping polygon of unknown module")
		return nil, nil, false
	}
	tlids := m.links[key]
	if len(tlids) == 0 {
		log.Warn("skipping polygon without chain links")
		return nil, nil, false
	}

	edges := make([]*geom.LineString, 0, len(tlids))
	for _, tlid := range tlids {
		ls, ok := m.lines[tlid]
		if !ok {
			log.Warn("skipping polygon with missing chain", zap.Int64("tlid", tlid))
			return nil, nil, false
		}
		edges = append(edges, ls)
	}

	poly, err := polygonize.BuildFromEdges(edges, j.opts)
	if err != nil {
		log.Warn("polygon assembly failed", zap.Int("edges", len(edges)), zap.Error(err))
		if ce := log.Check(zapcore.DebugLevel, "failed edge set"); ce != nil {
			ce.Write(zap.String("wkt", edgesWKT(edges)))
		}
		return nil, nil, false
	}

	ref := polyRef{Module: name, PolyKey: key}
	pip, ok := j.pips[ref]
	if !ok {
		log.Warn("skipping polygon without PIP record")
		return nil, nil, false
	}

	src := map[string]*tiger.Feature{
		tiger.LayerPolygon: feat,
		tiger.LayerPIP:     pip,
	}
	if area, ok := j.areaLandmarks[ref]; ok {
		src[tiger.LayerAreaLandmarks] = area
		if land, ok := area.Int(j.areaLand); ok {
			src[tiger.LayerLandmarks] = j.landmarks[landRef{Module: name, Land: land}]
		}
	}
	return poly, src, true
}

// edgesWKT renders an edge set for debugging.
func edgesWKT(edges []*geom.LineString) string {
	mls := geom.NewMultiLineString(geom.XY)
	for _, e := range edges {
		if err := mls.Push(e); err != nil {
			return err.Error()
		}
	}
	s, err := wkt.Marshal(mls)
	if err != nil {
		return err.Error()
	}
	return s
}

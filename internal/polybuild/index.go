package polybuild

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/tigerpoly/internal/tiger"
)

// PolyKey identifies a polygon within a module.
type PolyKey struct {
	CENID  string
	POLYID int64
}

// polyRef identifies a polygon across modules.
type polyRef struct {
	Module string
	PolyKey
}

// landRef identifies a landmark across modules.
type landRef struct {
	Module string
	Land   int64
}

// module holds the chains of one TIGER/Line module and the chains bounding
// each of its polygons.
type module struct {
	lines map[int64]*geom.LineString
	links map[PolyKey][]int64
}

// fieldIndexes resolves field names of a layer.
func fieldIndexes(layer *tiger.Layer, names ...string) ([]int, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		idx[i] = layer.FieldIndex(name)
		if idx[i] < 0 {
			return nil, eris.Errorf("polybuild: layer %s has no %s field", layer.Name, name)
		}
	}
	return idx, nil
}

// indexLines keys CompleteChain geometries by module and TLID.
func indexLines(layer *tiger.Layer, log *zap.Logger) (map[string]*module, int, error) {
	idx, err := fieldIndexes(layer, "MODULE", "TLID")
	if err != nil {
		return nil, 0, err
	}

	modules := make(map[string]*module)
	var count int
	for _, f := range layer.Features {
		tlid, ok := f.Int(idx[1])
		ls, isLine := f.Geometry.(*geom.LineString)
		if !ok || !isLine {
			log.Warn("skipping chain without TLID or geometry", zap.String("module", f.String(idx[0])))
			continue
		}

		name := f.String(idx[0])
		m, ok := modules[name]
		if !ok {
			m = &module{lines: make(map[int64]*geom.LineString), links: make(map[PolyKey][]int64)}
			modules[name] = m
		}
		m.lines[tlid] = ls
		count++
	}
	return modules, count, nil
}

// indexLinks attaches each chain to the polygons on its left and right. A
// chain with the same polygon on both sides lies inside it and bounds
// neither side.
func indexLinks(layer *tiger.Layer, modules map[string]*module, log *zap.Logger) (int, error) {
	idx, err := fieldIndexes(layer, "MODULE", "TLID", "CENIDL", "POLYIDL", "CENIDR", "POLYIDR")
	if err != nil {
		return 0, err
	}

	var count int
	for _, f := range layer.Features {
		name := f.String(idx[0])
		m, ok := modules[name]
		if !ok {
			log.Warn("skipping link of unknown module", zap.String("module", name))
			continue
		}
		tlid, ok := f.Int(idx[1])
		if !ok {
			log.Warn("skipping link without TLID", zap.String("module", name))
			continue
		}

		left, hasLeft := polyKey(f, idx[2], idx[3])
		right, hasRight := polyKey(f, idx[4], idx[5])
		if hasLeft && hasRight && left == right {
			count++
			continue
		}
		if hasLeft {
			m.links[left] = append(m.links[left], tlid)
		}
		if hasRight {
			m.links[right] = append(m.links[right], tlid)
		}
		count++
	}
	return count, nil
}

func polyKey(f *tiger.Feature, cenidIdx, polyidIdx int) (PolyKey, bool) {
	id, ok := f.Int(polyidIdx)
	if !ok {
		return PolyKey{}, false
	}
	return PolyKey{CENID: f.String(cenidIdx), POLYID: id}, true
}

// indexPolygons keys a polygon attribute layer (PIP, AreaLandmarks) by
// module and polygon. A later duplicate replaces an earlier record.
func indexPolygons(layer *tiger.Layer) (map[polyRef]*tiger.Feature, error) {
	idx, err := fieldIndexes(layer, "MODULE", "CENID", "POLYID")
	if err != nil {
		return nil, err
	}

	out := make(map[polyRef]*tiger.Feature, len(layer.Features))
	for _, f := range layer.Features {
		key, ok := polyKey(f, idx[1], idx[2])
		if !ok {
			continue
		}
		out[polyRef{Module: f.String(idx[0]), PolyKey: key}] = f
	}
	return out, nil
}

// indexLandmarks keys Landmarks by module and LAND.
func indexLandmarks(layer *tiger.Layer) (map[landRef]*tiger.Feature, error) {
	idx, err := fieldIndexes(layer, "MODULE", "LAND")
	if err != nil {
		return nil, err
	}

	out := make(map[landRef]*tiger.Feature, len(layer.Features))
	for _, f := range layer.Features {
		land, ok := f.Int(idx[1])
		if !ok {
			continue
		}
		out[landRef{Module: f.String(idx[0]), Land: land}] = f
	}
	return out, nil
}

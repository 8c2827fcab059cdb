package shapefile

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// Feature is one record read back from a shapefile. Attribute values are the
// trimmed DBF text; empty values are unset and absent from the map.
type Feature struct {
	Geometry   geom.T
	Attributes map[string]string
}

// Dataset is the content of a shapefile.
type Dataset struct {
	Fields   []shp.Field
	Features []Feature
}

// FieldNames returns the attribute names in table order.
func (d *Dataset) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = fieldName(f)
	}
	return names
}

func fieldName(f shp.Field) string {
	return strings.TrimRight(f.String(), "\x00")
}

// Read loads every feature of the shapefile at path.
func Read(path string) (*Dataset, error) {
	reader, err := shp.Open(Path(path))
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	ds := &Dataset{Fields: reader.Fields()}
	names := ds.FieldNames()

	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		attrs := make(map[string]string, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				attrs[name] = val
			}
		}

		g := toGeom(shape)
		if g == nil {
			skipped++
		}
		ds.Features = append(ds.Features, Feature{Geometry: g, Attributes: attrs})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "shapefile: read %s", path)
	}

	if skipped > 0 {
		zap.L().Debug("shapefile: records without usable geometry",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return ds, nil
}

// toGeom converts a go-shp shape to go-geom. Unsupported or empty shapes
// yield nil.
func toGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PolyLine:
		return polyLineToMultiLineString(s)
	case *shp.Polygon:
		return polygonFromShape(s)
	}
	return nil
}

// partBounds returns the point range of part i.
func partBounds(parts []int32, numParts int32, numPoints int, i int32) (int32, int32) {
	start := parts[i]
	end := int32(numPoints)
	if i+1 < numParts {
		end = parts[i+1]
	}
	return start, end
}

// polygonFromShape converts a shapefile Polygon to a single geom.Polygon,
// one linear ring per part, the first being the exterior.
func polygonFromShape(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	poly := geom.NewPolygon(geom.XY)
	for i := int32(0); i < p.NumParts; i++ {
		start, end := partBounds(p.Parts, p.NumParts, len(p.Points), i)
		ring := geom.NewLinearRingFlat(geom.XY, flatPoints(p.Points[start:end]))
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("shapefile: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}
	if poly.NumLinearRings() == 0 {
		return nil
	}
	return poly
}

// polyLineToMultiLineString converts a shapefile PolyLine to a geom.MultiLineString.
func polyLineToMultiLineString(pl *shp.PolyLine) geom.T {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY)
	for i := int32(0); i < pl.NumParts; i++ {
		start, end := partBounds(pl.Parts, pl.NumParts, len(pl.Points), i)
		ls := geom.NewLineStringFlat(geom.XY, flatPoints(pl.Points[start:end]))
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("shapefile: skipping malformed linestring part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}
	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

func flatPoints(pts []shp.Point) []float64 {
	flat := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}

package polybuild

import (
	"github.com/sells-group/tigerpoly/internal/tiger"
)

// schemaLayers are the attribute sources of an output polygon, in the order
// their fields are unioned.
var schemaLayers = []string{
	tiger.LayerPolygon,
	tiger.LayerPIP,
	tiger.LayerAreaLandmarks,
	tiger.LayerLandmarks,
}

// SourceField is one output field and where its value comes from.
type SourceField struct {
	Layer string
	Index int
	Defn  tiger.FieldDefn
}

// Schema is the unioned attribute table of the output shapefile.
type Schema struct {
	Fields []SourceField
}

// NewSchema unions the fields of the attribute layers. A field whose name was
// already taken by an earlier layer is dropped; those are the join keys.
func NewSchema(layers map[string]*tiger.Layer) *Schema {
	s := &Schema{}
	seen := make(map[string]bool)
	for _, name := range schemaLayers {
		layer, ok := layers[name]
		if !ok {
			continue
		}
		for i, f := range layer.Fields {
			if seen[f.Name] {
				continue
			}
			seen[f.Name] = true
			s.Fields = append(s.Fields, SourceField{Layer: name, Index: i, Defn: f})
		}
	}
	return s
}

// Defns returns the output field definitions.
func (s *Schema) Defns() []tiger.FieldDefn {
	defns := make([]tiger.FieldDefn, len(s.Fields))
	for i, f := range s.Fields {
		defns[i] = f.Defn
	}
	return defns
}

// Values gathers the output values from the joined features, keyed by layer
// name. Fields of a missing feature stay unset.
func (s *Schema) Values(src map[string]*tiger.Feature) []any {
	vals := make([]any, len(s.Fields))
	for i, f := range s.Fields {
		feat := src[f.Layer]
		if feat == nil || !feat.IsSet(f.Index) {
			continue
		}
		vals[i] = feat.Values[f.Index]
	}
	return vals
}

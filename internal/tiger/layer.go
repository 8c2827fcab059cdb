package tiger

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// SRID of TIGER/Line coordinates (NAD83 geographic).
const SRID = 4269

// Feature is one record of a layer. Values line up with the layer's Fields;
// a nil value is unset.
type Feature struct {
	Values   []any
	Geometry geom.T
}

// String returns field i as text, or "" when unset.
func (f *Feature) String(i int) string {
	if i < 0 || i >= len(f.Values) || f.Values[i] == nil {
		return ""
	}
	switch v := f.Values[i].(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// Int returns field i as an integer. ok is false when the field is unset or
// not an integer.
func (f *Feature) Int(i int) (int64, bool) {
	if i < 0 || i >= len(f.Values) {
		return 0, false
	}
	v, ok := f.Values[i].(int64)
	return v, ok
}

// IsSet reports whether field i holds a value.
func (f *Feature) IsSet(i int) bool {
	return i >= 0 && i < len(f.Values) && f.Values[i] != nil
}

// Layer is a fully loaded layer.
type Layer struct {
	Name     string
	Fields   []FieldDefn
	Features []*Feature

	index map[string]int
}

// NewLayer returns an empty layer with the fields of spec.
func NewLayer(spec LayerSpec) *Layer {
	fields := spec.Fields()
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		idx[f.Name] = i
	}
	return &Layer{Name: spec.Name, Fields: fields, index: idx}
}

// FieldIndex returns the position of the named field, or -1.
func (l *Layer) FieldIndex(name string) int {
	if i, ok := l.index[name]; ok {
		return i
	}
	return -1
}

// recordParser turns raw record lines into feature values for one layer.
type recordParser struct {
	spec LayerSpec
	dec  *encoding.Decoder

	// fieldCol maps layer field index to record column index; -1 for MODULE
	// and the fields derived from FILE.
	fieldCol []int
}

func newRecordParser(spec LayerSpec) *recordParser {
	p := &recordParser{spec: spec, dec: charmap.ISO8859_1.NewDecoder()}
	p.fieldCol = append(p.fieldCol, -1) // MODULE
	for ci, c := range spec.Record.Columns {
		if c.GeomOnly {
			continue
		}
		p.fieldCol = append(p.fieldCol, ci)
		if spec.SplitFile && c.Name == "FILE" {
			p.fieldCol = append(p.fieldCol, -1, -1)
		}
	}
	return p
}

// values parses a record line into field values. The first value is the
// module name.
func (p *recordParser) values(module string, line []byte) ([]any, error) {
	vals := make([]any, len(p.fieldCol))
	vals[0] = module
	for fi, ci := range p.fieldCol {
		if ci < 0 {
			continue
		}
		c := p.spec.Record.Columns[ci]
		v, err := p.column(line, c)
		if err != nil {
			return nil, err
		}
		vals[fi] = v
		if p.spec.SplitFile && c.Name == "FILE" {
			state, county := splitFile(v)
			vals[fi+1], vals[fi+2] = state, county
		}
	}
	return vals, nil
}

// column extracts and converts one column of a record line. Blank columns
// yield nil.
func (p *recordParser) column(line []byte, c Column) (any, error) {
	raw := strings.TrimSpace(string(slice(line, c)))
	if raw == "" {
		return nil, nil
	}
	switch c.Type {
	case FieldInteger:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "tiger: column %s", c.Name)
		}
		return v, nil
	case FieldReal:
		if c.Implied > 0 {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "tiger: column %s", c.Name)
			}
			return float64(v) / math.Pow10(c.Implied), nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "tiger: column %s", c.Name)
		}
		return v, nil
	default:
		s, err := p.dec.String(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "tiger: decode column %s", c.Name)
		}
		return s, nil
	}
}

// coordinate reads an implied-decimal coordinate column by name.
func (p *recordParser) coordinate(line []byte, name string) (float64, bool, error) {
	c, ok := p.spec.Record.Column(name)
	if !ok {
		return 0, false, eris.Errorf("tiger: no column %s in RT%s", name, p.spec.Record.Type)
	}
	v, err := p.column(line, c)
	if err != nil || v == nil {
		return 0, false, err
	}
	return v.(float64), true, nil
}

// point builds the layer's point geometry from its Lon/Lat columns.
func (p *recordParser) point(line []byte) (geom.T, error) {
	lon, okLon, err := p.coordinate(line, p.spec.Lon)
	if err != nil {
		return nil, err
	}
	lat, okLat, err := p.coordinate(line, p.spec.Lat)
	if err != nil {
		return nil, err
	}
	if !okLon || !okLat || (lon == 0 && lat == 0) {
		return nil, nil
	}
	return geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(SRID), nil
}

// slice returns the bytes of column c, tolerating short lines.
func slice(line []byte, c Column) []byte {
	if len(line) < c.Start {
		return nil
	}
	end := c.End
	if end > len(line) {
		end = len(line)
	}
	return line[c.Start-1 : end]
}

// splitFile derives the state and county FIPS codes from a FILE value.
func splitFile(v any) (any, any) {
	file, ok := v.(int64)
	if !ok {
		return nil, nil
	}
	return file / 1000, file % 1000
}

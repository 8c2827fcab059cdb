// Package tiger reads Census TIGER/Line fixed-width record files and exposes
// them as layers named after the record groups they hold (CompleteChain,
// PolyChainLink, Polygon, PIP, AreaLandmarks, Landmarks).
package tiger

import (
	"fmt"
	"strings"
)

// FieldType is the value type of a layer field.
type FieldType int

// Field types carried by TIGER/Line records.
const (
	FieldString FieldType = iota
	FieldInteger
	FieldReal
)

func (t FieldType) String() string {
	switch t {
	case FieldInteger:
		return "Integer"
	case FieldReal:
		return "Real"
	default:
		return "String"
	}
}

// FieldDefn describes one attribute of a layer.
type FieldDefn struct {
	Name      string
	Type      FieldType
	Width     int
	Precision int
}

// Column is one fixed-width field of a record. Start and End are 1-based
// inclusive positions, as printed in the Census record layouts.
type Column struct {
	Name  string
	Type  FieldType
	Start int
	End   int

	// Implied is the number of implied decimal places of a FieldReal column.
	Implied int

	// GeomOnly columns feed the feature geometry and are not exposed as fields.
	GeomOnly bool
}

// Width returns the number of characters the column occupies.
func (c Column) Width() int { return c.End - c.Start + 1 }

// Defn returns the field definition the column is exposed as.
func (c Column) Defn() FieldDefn {
	d := FieldDefn{Name: c.Name, Type: c.Type, Width: c.Width()}
	if c.Type == FieldReal && c.Implied > 0 {
		// Room for the decimal point once the implied places are restored.
		d.Width++
		d.Precision = c.Implied
	}
	return d
}

// RecordLayout describes one TIGER/Line record type.
type RecordLayout struct {
	Type    string // record type character, e.g. "1", "I", "P"
	Length  int
	Columns []Column
}

// Suffix returns the file extension holding records of this type, e.g. "RT1".
func (r *RecordLayout) Suffix() string { return "RT" + r.Type }

// Column returns the named column.
func (r *RecordLayout) Column(name string) (Column, bool) {
	for _, c := range r.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Format renders values as a record line of this layout. Numeric columns are
// right-aligned, text columns left-aligned; values wider than their column are
// cut. Unknown names are ignored.
func (r *RecordLayout) Format(values map[string]string) string {
	line := []rune(strings.Repeat(" ", r.Length))
	line[0] = rune(r.Type[0])
	for _, c := range r.Columns {
		v, ok := values[c.Name]
		if !ok {
			continue
		}
		val := []rune(v)
		if len(val) > c.Width() {
			val = val[:c.Width()]
		}
		offset := c.Start - 1
		if c.Type != FieldString {
			offset += c.Width() - len(val)
		}
		copy(line[offset:], val)
	}
	return string(line)
}

const coordDecimals = 6

func str(name string, start, end int) Column {
	return Column{Name: name, Type: FieldString, Start: start, End: end}
}

func num(name string, start, end int) Column {
	return Column{Name: name, Type: FieldInteger, Start: start, End: end}
}

func coord(name string, start, end int) Column {
	return Column{Name: name, Type: FieldReal, Start: start, End: end, Implied: coordDecimals}
}

func geomCoord(name string, start, end int) Column {
	c := coord(name, start, end)
	c.GeomOnly = true
	return c
}

// Record layouts of TIGER/Line 2006 Second Edition.
var (
	// RT1: complete chain basic data.
	RT1 = &RecordLayout{
		Type:   "1",
		Length: 228,
		Columns: []Column{
			num("VERSION", 2, 5),
			num("TLID", 6, 15),
			num("SIDE1", 16, 16),
			str("SOURCE", 17, 17),
			str("FEDIRP", 18, 19),
			str("FENAME", 20, 49),
			str("FETYPE", 50, 53),
			str("FEDIRS", 54, 55),
			str("CFCC", 56, 58),
			str("FRADDL", 59, 69),
			str("TOADDL", 70, 80),
			str("FRADDR", 81, 91),
			str("TOADDR", 92, 102),
			str("FRIADDL", 103, 103),
			str("TOIADDL", 104, 104),
			str("FRIADDR", 105, 105),
			str("TOIADDR", 106, 106),
			str("ZIPL", 107, 111),
			str("ZIPR", 112, 116),
			num("AIANHHFPL", 117, 121),
			num("AIANHHFPR", 122, 126),
			str("AIHHTLIL", 127, 127),
			str("AIHHTLIR", 128, 128),
			str("CENSUS1", 129, 129),
			str("CENSUS2", 130, 130),
			num("STATEL", 131, 132),
			num("STATER", 133, 134),
			num("COUNTYL", 135, 137),
			num("COUNTYR", 138, 140),
			num("COUSUBL", 141, 145),
			num("COUSUBR", 146, 150),
			num("SUBMCDL", 151, 155),
			num("SUBMCDR", 156, 160),
			num("PLACEL", 161, 165),
			num("PLACER", 166, 170),
			num("TRACTL", 171, 176),
			num("TRACTR", 177, 182),
			num("BLOCKL", 183, 186),
			num("BLOCKR", 187, 190),
			geomCoord("FRLONG", 191, 200),
			geomCoord("FRLAT", 201, 209),
			geomCoord("TOLONG", 210, 219),
			geomCoord("TOLAT", 220, 228),
		},
	}

	// RT2: complete chain shape coordinates, ten points per record.
	RT2 = &RecordLayout{
		Type:    "2",
		Length:  208,
		Columns: shapePointColumns(),
	}

	// RTI: links between complete chains and polygons.
	RTI = &RecordLayout{
		Type:   "I",
		Length: 127,
		Columns: []Column{
			num("VERSION", 2, 5),
			num("FILE", 6, 10),
			num("TLID", 11, 20),
			num("TZIDS", 21, 30),
			num("TZIDE", 31, 40),
			str("CENIDL", 41, 45),
			num("POLYIDL", 46, 55),
			str("CENIDR", 56, 60),
			num("POLYIDR", 61, 70),
			str("SOURCE", 71, 80),
			str("FTSEG", 81, 97),
		},
	}

	// RTA: polygon geographic entity codes, current geography.
	RTA = &RecordLayout{
		Type:   "A",
		Length: 177,
		Columns: []Column{
			num("VERSION", 2, 5),
			num("FILE", 6, 10),
			str("CENID", 11, 15),
			num("POLYID", 16, 25),
			num("STATECU", 26, 27),
			num("COUNTYCU", 28, 30),
			num("TRACT", 31, 36),
			num("BLOCK", 37, 40),
			str("BLOCKSUFCU", 41, 41),
			num("AIANHHFPCU", 43, 47),
			num("AIANHHCU", 48, 51),
			str("AIHHTLICU", 52, 52),
			num("ANRCCU", 53, 57),
			num("AITSCECU", 58, 60),
			num("AITSCU", 61, 65),
			num("CONCITCU", 66, 70),
			num("COUSUBCU", 71, 75),
			num("SUBMCDCU", 76, 80),
			num("PLACECU", 81, 85),
			str("SDELMCU", 86, 90),
			str("SDSECCU", 91, 95),
			str("SDUNICU", 96, 100),
			num("CDCU", 113, 114),
			str("ZCTA5CU", 115, 119),
			str("ZCTA3CU", 120, 122),
			num("CBSACU", 152, 156),
			num("CSACU", 157, 159),
			num("NECTACU", 160, 164),
			num("CNECTACU", 165, 167),
			num("METDIVCU", 168, 172),
			num("NECTADIVCU", 173, 177),
		},
	}

	// RTP: polygon internal point.
	RTP = &RecordLayout{
		Type:   "P",
		Length: 45,
		Columns: []Column{
			num("VERSION", 2, 5),
			num("FILE", 6, 10),
			str("CENID", 11, 15),
			num("POLYID", 16, 25),
			coord("POLYLONG", 26, 35),
			coord("POLYLAT", 36, 44),
			num("WATER", 45, 45),
		},
	}

	// RT7: landmark features.
	RT7 = &RecordLayout{
		Type:   "7",
		Length: 74,
		Columns: []Column{
			num("VERSION", 2, 5),
			num("FILE", 6, 10),
			num("LAND", 11, 20),
			str("SOURCE", 21, 21),
			str("CFCC", 22, 24),
			str("LANAME", 25, 54),
			geomCoord("LALONG", 55, 64),
			geomCoord("LALAT", 65, 73),
		},
	}

	// RT8: polygons linked to area landmarks.
	RT8 = &RecordLayout{
		Type:   "8",
		Length: 36,
		Columns: []Column{
			num("VERSION", 2, 5),
			num("FILE", 6, 10),
			str("CENID", 11, 15),
			num("POLYID", 16, 25),
			num("LAND", 26, 35),
		},
	}
)

// shapePointsPerRecord is the number of coordinate pairs an RT2 record holds.
const shapePointsPerRecord = 10

func shapePointColumns() []Column {
	cols := []Column{
		num("VERSION", 2, 5),
		num("TLID", 6, 15),
		num("RTSQ", 16, 18),
	}
	for i := 1; i <= shapePointsPerRecord; i++ {
		start := 19 + (i-1)*19
		cols = append(cols,
			geomCoord(fmt.Sprintf("LONG%d", i), start, start+9),
			geomCoord(fmt.Sprintf("LAT%d", i), start+10, start+18),
		)
	}
	return cols
}

// RecordLayouts lists every layout the reader understands.
var RecordLayouts = []*RecordLayout{RT1, RT2, RTI, RTA, RTP, RT7, RT8}

// LayoutFor returns the layout for a record type character ("1", "I", ...).
func LayoutFor(recordType string) (*RecordLayout, bool) {
	for _, l := range RecordLayouts {
		if strings.EqualFold(l.Type, recordType) {
			return l, true
		}
	}
	return nil, false
}

// Layer names.
const (
	LayerCompleteChain = "CompleteChain"
	LayerPolyChainLink = "PolyChainLink"
	LayerPolygon       = "Polygon"
	LayerPIP           = "PIP"
	LayerAreaLandmarks = "AreaLandmarks"
	LayerLandmarks     = "Landmarks"
)

// LayerSpec binds a layer name to the record type it is read from.
type LayerSpec struct {
	Name   string
	Record *RecordLayout

	// SplitFile exposes STATE and COUNTY fields derived from the FILE column.
	SplitFile bool

	// Lon and Lat name the columns holding a point geometry, if any.
	Lon, Lat string

	// Chain layers take line geometry from the record's end points and the
	// RT2 shape points of the same TLID.
	Chain bool
}

// Layers lists the layers a datasource exposes.
var Layers = []LayerSpec{
	{Name: LayerCompleteChain, Record: RT1, Chain: true},
	{Name: LayerPolyChainLink, Record: RTI, SplitFile: true},
	{Name: LayerPolygon, Record: RTA, SplitFile: true},
	{Name: LayerPIP, Record: RTP, SplitFile: true, Lon: "POLYLONG", Lat: "POLYLAT"},
	{Name: LayerAreaLandmarks, Record: RT8, SplitFile: true},
	{Name: LayerLandmarks, Record: RT7, SplitFile: true, Lon: "LALONG", Lat: "LALAT"},
}

// LayerByName looks up a layer spec by its name (case-sensitive).
func LayerByName(name string) (LayerSpec, bool) {
	for _, l := range Layers {
		if l.Name == name {
			return l, true
		}
	}
	return LayerSpec{}, false
}

// moduleFieldWidth fits the TGRssccc module basenames.
const moduleFieldWidth = 8

// Fields returns the field definitions of the layer, in record order,
// starting with MODULE.
func (s LayerSpec) Fields() []FieldDefn {
	fields := []FieldDefn{{Name: "MODULE", Type: FieldString, Width: moduleFieldWidth}}
	for _, c := range s.Record.Columns {
		if c.GeomOnly {
			continue
		}
		fields = append(fields, c.Defn())
		if s.SplitFile && c.Name == "FILE" {
			fields = append(fields,
				FieldDefn{Name: "STATE", Type: FieldInteger, Width: 2},
				FieldDefn{Name: "COUNTY", Type: FieldInteger, Width: 3},
			)
		}
	}
	return fields
}

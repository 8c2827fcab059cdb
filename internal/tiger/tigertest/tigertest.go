// Package tigertest writes small TIGER/Line modules for tests.
package tigertest

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/tigerpoly/internal/tiger"
)

// Module collects the records of one county module.
type Module struct {
	Name    string
	records map[*tiger.RecordLayout][]map[string]string
	order   []*tiger.RecordLayout
}

// NewModule starts an empty module, e.g. NewModule("TGR35001").
func NewModule(name string) *Module {
	return &Module{Name: name, records: make(map[*tiger.RecordLayout][]map[string]string)}
}

// Add appends one record of the given layout.
func (m *Module) Add(layout *tiger.RecordLayout, values map[string]string) *Module {
	if _, ok := m.records[layout]; !ok {
		m.order = append(m.order, layout)
	}
	m.records[layout] = append(m.records[layout], values)
	return m
}

// Chain adds an RT1 record running from one point to another.
func (m *Module) Chain(tlid int, from, to [2]float64) *Module {
	return m.Add(tiger.RT1, map[string]string{
		"VERSION": "1000",
		"TLID":    strconv.Itoa(tlid),
		"CFCC":    "A41",
		"FRLONG":  Coord(from[0]),
		"FRLAT":   Coord(from[1]),
		"TOLONG":  Coord(to[0]),
		"TOLAT":   Coord(to[1]),
	})
}

// Shape adds an RT2 record holding up to ten shape points of a chain.
func (m *Module) Shape(tlid, seq int, points ...[2]float64) *Module {
	vals := map[string]string{
		"VERSION": "1000",
		"TLID":    strconv.Itoa(tlid),
		"RTSQ":    strconv.Itoa(seq),
	}
	for i, p := range points {
		vals["LONG"+strconv.Itoa(i+1)] = Coord(p[0])
		vals["LAT"+strconv.Itoa(i+1)] = Coord(p[1])
	}
	return m.Add(tiger.RT2, vals)
}

// Link adds an RTI record. A zero polygon id leaves that side blank.
func (m *Module) Link(tlid int, cenid string, left, right int) *Module {
	vals := map[string]string{
		"VERSION": "1000",
		"FILE":    m.file(),
		"TLID":    strconv.Itoa(tlid),
	}
	if left != 0 {
		vals["CENIDL"] = cenid
		vals["POLYIDL"] = strconv.Itoa(left)
	}
	if right != 0 {
		vals["CENIDR"] = cenid
		vals["POLYIDR"] = strconv.Itoa(right)
	}
	return m.Add(tiger.RTI, vals)
}

// Polygon adds an RTA record with extra column values.
func (m *Module) Polygon(cenid string, polyid int, extra map[string]string) *Module {
	vals := map[string]string{
		"VERSION": "1000",
		"FILE":    m.file(),
		"CENID":   cenid,
		"POLYID":  strconv.Itoa(polyid),
	}
	for k, v := range extra {
		vals[k] = v
	}
	return m.Add(tiger.RTA, vals)
}

// PIP adds an RTP record placing the polygon's internal point.
func (m *Module) PIP(cenid string, polyid int, at [2]float64, water bool) *Module {
	w := "0"
	if water {
		w = "1"
	}
	return m.Add(tiger.RTP, map[string]string{
		"VERSION":  "1000",
		"FILE":     m.file(),
		"CENID":    cenid,
		"POLYID":   strconv.Itoa(polyid),
		"POLYLONG": Coord(at[0]),
		"POLYLAT":  Coord(at[1]),
		"WATER":    w,
	})
}

// AreaLandmark adds an RT8 record tying a polygon to a landmark.
func (m *Module) AreaLandmark(cenid string, polyid, land int) *Module {
	return m.Add(tiger.RT8, map[string]string{
		"VERSION": "1000",
		"FILE":    m.file(),
		"CENID":   cenid,
		"POLYID":  strconv.Itoa(polyid),
		"LAND":    strconv.Itoa(land),
	})
}

// Landmark adds an RT7 record. A nil point leaves the location blank.
func (m *Module) Landmark(land int, cfcc, name string, at *[2]float64) *Module {
	vals := map[string]string{
		"VERSION": "1000",
		"FILE":    m.file(),
		"LAND":    strconv.Itoa(land),
		"SOURCE":  "B",
		"CFCC":    cfcc,
		"LANAME":  name,
	}
	if at != nil {
		vals["LALONG"] = Coord(at[0])
		vals["LALAT"] = Coord(at[1])
	}
	return m.Add(tiger.RT7, vals)
}

// file is the FIPS code embedded in the module name.
func (m *Module) file() string {
	return strings.TrimPrefix(strings.ToUpper(m.Name), "TGR")
}

// Write renders every record type to dir as NAME.RTx, Latin-1 encoded, and
// returns the written paths.
func (m *Module) Write(t testing.TB, dir string) []string {
	t.Helper()

	enc := charmap.ISO8859_1.NewEncoder()
	var paths []string
	for _, layout := range m.order {
		var sb strings.Builder
		for _, vals := range m.records[layout] {
			sb.WriteString(layout.Format(vals))
			sb.WriteString("\r\n")
		}
		data, err := enc.String(sb.String())
		require.NoError(t, err)

		path := filepath.Join(dir, m.Name+"."+layout.Suffix())
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
		paths = append(paths, path)
	}
	return paths
}

// Coord renders degrees as a TIGER/Line coordinate with six implied decimals.
func Coord(deg float64) string {
	v := deg * 1e6
	if v < 0 {
		v -= 0.5
	} else {
		v += 0.5
	}
	s := strconv.FormatInt(int64(v), 10)
	if deg >= 0 {
		s = "+" + s
	}
	return s
}

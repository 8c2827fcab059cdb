// Package shapefile writes assembled polygons and their attributes to an
// ESRI Shapefile and reads such files back.
package shapefile

import (
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/tigerpoly/internal/polygonize"
	"github.com/sells-group/tigerpoly/internal/tiger"
)

// NAD83 geographic coordinate system, the datum of TIGER/Line coordinates.
const nad83PRJ = `GEOGCS["GCS_North_American_1983",DATUM["D_North_American_1983",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// DBF field widths are stored in one byte.
const maxFieldWidth = 254

// datasetExts are the files making up one shapefile dataset.
var datasetExts = []string{".shp", ".shx", ".dbf", ".prj", ".cpg"}

// Writer writes polygon features to a shapefile.
type Writer struct {
	path   string
	shp    *shp.Writer
	fields []tiger.FieldDefn
	rows   int
	log    *zap.Logger
}

// Path returns p with a .shp extension, appending one when missing.
func Path(p string) string {
	if strings.EqualFold(extOf(p), ".shp") {
		return p
	}
	return p + ".shp"
}

func extOf(p string) string {
	if i := strings.LastIndexByte(p, '.'); i >= 0 && !strings.ContainsAny(p[i:], `/\`) {
		return p[i:]
	}
	return ""
}

// Remove deletes every file of the dataset at path. Missing files are ignored.
func Remove(path string) error {
	base := basename(path)
	names := []string{misnamedDBF(base)}
	for _, ext := range datasetExts {
		names = append(names, base+ext, base+strings.ToUpper(ext))
	}
	for _, name := range names {
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			return eris.Wrapf(err, "shapefile: remove %s", name)
		}
	}
	return nil
}

// basename returns the dataset path without its .shp extension.
func basename(path string) string {
	p := Path(path)
	return strings.TrimSuffix(p, extOf(p))
}

// misnamedDBF is where go-shp v0.1.1 puts the attribute table: it appends
// "dbf" to the basename without the dot.
func misnamedDBF(base string) string {
	return base + "dbf"
}

// Create replaces any dataset at path with an empty polygon shapefile whose
// attribute table has the given fields.
func Create(path string, fields []tiger.FieldDefn) (*Writer, error) {
	path = Path(path)
	if err := Remove(path); err != nil {
		return nil, err
	}

	dbfFields := make([]shp.Field, len(fields))
	for i, f := range fields {
		dbfFields[i] = dbfField(f)
	}

	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: create %s", path)
	}
	if err := w.SetFields(dbfFields); err != nil {
		w.Close()
		return nil, eris.Wrap(err, "shapefile: set fields")
	}

	base := basename(path)
	if err := os.WriteFile(base+".prj", []byte(nad83PRJ), 0o644); err != nil {
		w.Close()
		return nil, eris.Wrap(err, "shapefile: write projection")
	}
	if err := os.WriteFile(base+".cpg", []byte("UTF-8"), 0o644); err != nil {
		w.Close()
		return nil, eris.Wrap(err, "shapefile: write code page")
	}

	return &Writer{
		path:   path,
		shp:    w,
		fields: fields,
		log:    zap.L().With(zap.String("component", "shapefile"), zap.String("path", path)),
	}, nil
}

func dbfField(f tiger.FieldDefn) shp.Field {
	width := uint8(min(max(f.Width, 1), maxFieldWidth))
	switch f.Type {
	case tiger.FieldInteger:
		return shp.NumberField(f.Name, width)
	case tiger.FieldReal:
		return shp.FloatField(f.Name, width, uint8(f.Precision))
	default:
		return shp.StringField(f.Name, width)
	}
}

// Path returns the .shp file being written.
func (w *Writer) Path() string { return w.path }

// Count returns the number of features written so far.
func (w *Writer) Count() int { return w.rows }

// Write appends one polygon feature. values line up with the writer's
// fields; nil values stay unset.
func (w *Writer) Write(poly *geom.Polygon, values []any) error {
	if poly == nil || poly.NumLinearRings() == 0 {
		return eris.New("shapefile: empty polygon")
	}
	if len(values) != len(w.fields) {
		return eris.Errorf("shapefile: got %d values for %d fields", len(values), len(w.fields))
	}

	row := int(w.shp.Write(toShape(poly)))
	w.rows++

	for i, v := range values {
		val, ok := w.fit(w.fields[i], v)
		if !ok {
			continue
		}
		if err := w.shp.WriteAttribute(row, i, val); err != nil {
			return eris.Wrapf(err, "shapefile: write %s of row %d", w.fields[i].Name, row)
		}
	}
	return nil
}

// fit converts v to a value the DBF column can hold. ok is false when the
// field should stay unset.
func (w *Writer) fit(f tiger.FieldDefn, v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	width := min(f.Width, maxFieldWidth)

	switch f.Type {
	case tiger.FieldInteger:
		n, ok := v.(int64)
		if !ok {
			return nil, false
		}
		if len(strconv.FormatInt(n, 10)) > width {
			w.log.Debug("value too wide for field", zap.String("field", f.Name), zap.Int64("value", n))
			return nil, false
		}
		return int(n), true

	case tiger.FieldReal:
		x, ok := v.(float64)
		if !ok {
			return nil, false
		}
		if len(strconv.FormatFloat(x, 'f', f.Precision, 64)) > width {
			w.log.Debug("value too wide for field", zap.String("field", f.Name), zap.Float64("value", x))
			return nil, false
		}
		return x, true

	default:
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		return truncate(s, width), true
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// Close flushes the headers, closes the dataset files and moves the
// attribute table to <base>.dbf.
func (w *Writer) Close() error {
	if w.shp == nil {
		return nil
	}
	w.shp.Close()
	w.shp = nil

	base := basename(w.path)
	if _, err := os.Stat(misnamedDBF(base)); err == nil {
		if err := os.Rename(misnamedDBF(base), base+".dbf"); err != nil {
			return eris.Wrap(err, "shapefile: move attribute table")
		}
	}
	w.log.Debug("shapefile closed", zap.Int("features", w.rows))
	return nil
}

// toShape converts a polygon to ESRI ring order: the exterior clockwise,
// holes counter-clockwise.
func toShape(poly *geom.Polygon) *shp.Polygon {
	parts := make([][]shp.Point, 0, poly.NumLinearRings())
	for i := 0; i < poly.NumLinearRings(); i++ {
		ring := poly.LinearRing(i).Coords()
		area := polygonize.SignedArea(ring)
		reverse := (i == 0 && area > 0) || (i > 0 && area < 0)

		pts := make([]shp.Point, len(ring))
		for j, c := range ring {
			k := j
			if reverse {
				k = len(ring) - 1 - j
			}
			pts[k] = shp.Point{X: c[0], Y: c[1]}
		}
		parts = append(parts, pts)
	}
	p := shp.Polygon(*shp.NewPolyLine(parts))
	return &p
}

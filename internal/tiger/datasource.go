package tiger

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/tigerpoly/internal/fetcher"
)

// DataSource is a set of TIGER/Line modules (county files) opened for reading.
type DataSource struct {
	Path    string
	Modules []string // module basenames, sorted

	files   map[string]map[string]string // module → record suffix ("RT1") → path
	tempDir string                       // extraction directory removed by Close
}

// Open opens a TIGER/Line datasource. path may be a directory of record
// files, a single record file or module basename (…/TGR35001.RT1 or
// …/TGR35001), or a .zip archive as published by the Census Bureau. Archives
// are extracted below tempDir (the OS temp dir when empty).
func Open(path, tempDir string) (*DataSource, error) {
	ds := &DataSource{Path: path, files: make(map[string]map[string]string)}

	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, eris.Wrapf(err, "tiger: read directory %s", path)
		}
		var paths []string
		for _, e := range entries {
			if !e.IsDir() {
				paths = append(paths, filepath.Join(path, e.Name()))
			}
		}
		ds.addFiles(paths, "")

	case err == nil && strings.EqualFold(filepath.Ext(path), ".zip"):
		dir, err := os.MkdirTemp(tempDir, "tigerpoly-*")
		if err != nil {
			return nil, eris.Wrap(err, "tiger: create extract dir")
		}
		ds.tempDir = dir
		paths, err := fetcher.ExtractZIP(path, dir, IsRecordFile)
		if err != nil {
			_ = ds.Close()
			return nil, eris.Wrapf(err, "tiger: extract %s", path)
		}
		ds.addFiles(paths, "")

	case err == nil:
		module, _ := splitRecordFile(filepath.Base(path))
		if module == "" {
			return nil, eris.Errorf("tiger: %s is not a TIGER/Line record file", path)
		}
		if err := ds.addDir(filepath.Dir(path), module); err != nil {
			return nil, err
		}

	case os.IsNotExist(err):
		// A module basename without extension.
		if err := ds.addDir(filepath.Dir(path), filepath.Base(path)); err != nil {
			return nil, err
		}

	default:
		return nil, eris.Wrapf(err, "tiger: stat %s", path)
	}

	for module, files := range ds.files {
		if _, ok := files[RT1.Suffix()]; ok {
			ds.Modules = append(ds.Modules, module)
		}
	}
	sort.Strings(ds.Modules)

	if len(ds.Modules) == 0 {
		_ = ds.Close()
		return nil, eris.Errorf("tiger: no TIGER/Line modules found in %s", path)
	}

	zap.L().Debug("tiger: datasource opened",
		zap.String("path", path),
		zap.Strings("modules", ds.Modules),
	)
	return ds, nil
}

// Close removes any directory an archive was extracted to.
func (ds *DataSource) Close() error {
	if ds.tempDir == "" {
		return nil
	}
	dir := ds.tempDir
	ds.tempDir = ""
	if err := os.RemoveAll(dir); err != nil {
		return eris.Wrapf(err, "tiger: remove %s", dir)
	}
	return nil
}

func (ds *DataSource) addDir(dir, module string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return eris.Wrapf(err, "tiger: read directory %s", dir)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	ds.addFiles(paths, module)
	return nil
}

// addFiles registers record files, keeping only the given module when one is
// named. Module names compare case-insensitively.
func (ds *DataSource) addFiles(paths []string, only string) {
	for _, p := range paths {
		module, suffix := splitRecordFile(filepath.Base(p))
		if module == "" {
			continue
		}
		if only != "" && !strings.EqualFold(module, only) {
			continue
		}
		module = strings.ToUpper(module)
		if ds.files[module] == nil {
			ds.files[module] = make(map[string]string)
		}
		ds.files[module][suffix] = p
	}
}

// IsRecordFile reports whether name is a TIGER/Line record file of a known
// type, such as TGR35001.RT1.
func IsRecordFile(name string) bool {
	module, _ := splitRecordFile(filepath.Base(name))
	return module != ""
}

// splitRecordFile splits "TGR35001.RT1" into ("TGR35001", "RT1"). It returns
// empty strings for names that are not record files.
func splitRecordFile(name string) (module, suffix string) {
	ext := filepath.Ext(name)
	if len(ext) != 4 || !strings.EqualFold(ext[1:3], "RT") {
		return "", ""
	}
	if _, ok := LayoutFor(ext[3:]); !ok {
		return "", ""
	}
	return strings.TrimSuffix(name, ext), strings.ToUpper(ext[1:])
}

// ReadLayer loads every feature of the named layer from all modules.
func (ds *DataSource) ReadLayer(ctx context.Context, name string) (*Layer, error) {
	layers, err := ds.ReadLayers(ctx, []string{name}, 1)
	if err != nil {
		return nil, err
	}
	return layers[name], nil
}

// ReadLayers loads the named layers, reading up to concurrency module files
// at a time. Features keep module order, then file order.
func (ds *DataSource) ReadLayers(ctx context.Context, names []string, concurrency int) (map[string]*Layer, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	specs := make([]LayerSpec, len(names))
	for i, name := range names {
		spec, ok := LayerByName(name)
		if !ok {
			return nil, eris.Errorf("tiger: unknown layer %q", name)
		}
		specs[i] = spec
	}

	results := make([][][]*Feature, len(specs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for li, spec := range specs {
		results[li] = make([][]*Feature, len(ds.Modules))
		for mi, module := range ds.Modules {
			g.Go(func() error {
				feats, err := ds.readModule(gCtx, spec, module)
				if err != nil {
					return eris.Wrapf(err, "tiger: read %s from %s", spec.Name, module)
				}
				results[li][mi] = feats
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	layers := make(map[string]*Layer, len(specs))
	for li, spec := range specs {
		layer := NewLayer(spec)
		for _, feats := range results[li] {
			layer.Features = append(layer.Features, feats...)
		}
		layers[spec.Name] = layer
		zap.L().Debug("tiger: layer loaded",
			zap.String("layer", spec.Name),
			zap.Int("features", len(layer.Features)),
		)
	}
	return layers, nil
}

// readModule reads one layer from one module. A module without the layer's
// record file yields no features; malformed records are logged and skipped.
func (ds *DataSource) readModule(ctx context.Context, spec LayerSpec, module string) ([]*Feature, error) {
	path, ok := ds.files[module][spec.Record.Suffix()]
	if !ok {
		return nil, nil
	}

	var shapes map[int64][]shapeRecord
	if spec.Chain {
		var err error
		if shapes, err = ds.readShapePoints(ctx, module); err != nil {
			return nil, err
		}
	}

	log := zap.L().With(
		zap.String("component", "tiger.reader"),
		zap.String("layer", spec.Name),
		zap.String("module", module),
	)
	parser := newRecordParser(spec)
	var feats []*Feature
	var skipped int
	err := scanRecords(ctx, path, spec.Record, func(line []byte) error {
		vals, err := parser.values(module, line)
		if err == nil {
			f := &Feature{Values: vals}
			switch {
			case spec.Chain:
				f.Geometry, err = chainGeometry(parser, line, shapes)
			case spec.Lon != "":
				f.Geometry, err = parser.point(line)
			}
			if err == nil {
				feats = append(feats, f)
				return nil
			}
		}
		skipped++
		log.Warn("skipping malformed record", zap.Error(err))
		return nil
	})
	if skipped > 0 {
		log.Warn("malformed records skipped", zap.Int("skipped", skipped))
	}
	return feats, err
}

// shapeRecord is the point list of one RT2 record.
type shapeRecord struct {
	seq    int64
	coords []float64
}

// readShapePoints loads RT2 shape points keyed by TLID. Malformed records are
// logged and skipped; their chains keep only the end nodes.
func (ds *DataSource) readShapePoints(ctx context.Context, module string) (map[int64][]shapeRecord, error) {
	shapes := make(map[int64][]shapeRecord)
	path, ok := ds.files[module][RT2.Suffix()]
	if !ok {
		return shapes, nil
	}

	log := zap.L().With(
		zap.String("component", "tiger.reader"),
		zap.String("layer", "ShapePoints"),
		zap.String("module", module),
	)
	parser := newRecordParser(LayerSpec{Name: "ShapePoints", Record: RT2})
	var skipped int
	err := scanRecords(ctx, path, RT2, func(line []byte) error {
		tlid, rec, err := parseShapeRecord(parser, line)
		if err != nil {
			skipped++
			log.Warn("skipping malformed shape record", zap.Error(err))
			return nil
		}
		shapes[tlid] = append(shapes[tlid], rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		log.Warn("malformed shape records skipped", zap.Int("skipped", skipped))
	}

	for id := range shapes {
		recs := shapes[id]
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	}
	return shapes, nil
}

// parseShapeRecord reads the TLID, sequence and point list of an RT2 line.
// A 0,0 pair ends the point list.
func parseShapeRecord(parser *recordParser, line []byte) (int64, shapeRecord, error) {
	tlidCol, _ := RT2.Column("TLID")
	seqCol, _ := RT2.Column("RTSQ")

	tlid, err := parser.column(line, tlidCol)
	if err != nil {
		return 0, shapeRecord{}, err
	}
	id, ok := tlid.(int64)
	if !ok {
		return 0, shapeRecord{}, eris.New("tiger: shape record without TLID")
	}
	seq, err := parser.column(line, seqCol)
	if err != nil {
		return 0, shapeRecord{}, err
	}

	rec := shapeRecord{}
	if s, ok := seq.(int64); ok {
		rec.seq = s
	}
	for i := 1; i <= shapePointsPerRecord; i++ {
		lon, okLon, err := parser.coordinate(line, "LONG"+strconv.Itoa(i))
		if err != nil {
			return 0, shapeRecord{}, err
		}
		lat, okLat, err := parser.coordinate(line, "LAT"+strconv.Itoa(i))
		if err != nil {
			return 0, shapeRecord{}, err
		}
		if !okLon || !okLat || (lon == 0 && lat == 0) {
			break
		}
		rec.coords = append(rec.coords, lon, lat)
	}
	return id, rec, nil
}

// chainGeometry builds a complete chain line: from-node, shape points, to-node.
func chainGeometry(parser *recordParser, line []byte, shapes map[int64][]shapeRecord) (geom.T, error) {
	frLon, ok1, err := parser.coordinate(line, "FRLONG")
	if err != nil {
		return nil, err
	}
	frLat, ok2, err := parser.coordinate(line, "FRLAT")
	if err != nil {
		return nil, err
	}
	toLon, ok3, err := parser.coordinate(line, "TOLONG")
	if err != nil {
		return nil, err
	}
	toLat, ok4, err := parser.coordinate(line, "TOLAT")
	if err != nil {
		return nil, err
	}
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, nil
	}

	flat := []float64{frLon, frLat}
	tlidCol, _ := RT1.Column("TLID")
	if tlid, err := parser.column(line, tlidCol); err == nil && tlid != nil {
		for _, rec := range shapes[tlid.(int64)] {
			flat = append(flat, rec.coords...)
		}
	}
	flat = append(flat, toLon, toLat)

	return geom.NewLineStringFlat(geom.XY, flat).SetSRID(SRID), nil
}

// scanRecords calls fn for every record line of the given type in path.
// Lines of another record type and blank lines are skipped.
func scanRecords(ctx context.Context, path string, layout *RecordLayout, fn func(line []byte) error) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "tiger: context cancelled")
	}
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "tiger: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	var lineNo, foreign int
	for scanner.Scan() {
		lineNo++
		if lineNo%4096 == 0 && ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "tiger: context cancelled")
		}

		line := bytes.TrimRight(scanner.Bytes(), "\r\n")
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if !strings.EqualFold(string(line[0]), layout.Type) {
			foreign++
			continue
		}
		if err := fn(line); err != nil {
			return eris.Wrapf(err, "tiger: %s line %d", filepath.Base(path), lineNo)
		}
	}
	if err := scanner.Err(); err != nil {
		return eris.Wrapf(err, "tiger: scan %s", path)
	}

	if foreign > 0 {
		zap.L().Debug("tiger: skipped records of another type",
			zap.String("file", path),
			zap.Int("skipped", foreign),
		)
	}
	return nil
}

package polybuild

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/tigerpoly/internal/polygonize"
	"github.com/sells-group/tigerpoly/internal/shapefile"
	"github.com/sells-group/tigerpoly/internal/tiger"
	"github.com/sells-group/tigerpoly/internal/tiger/tigertest"
)

func gridInput(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	tigertest.Grid(t, dir)
	return dir
}

func byPolyID(t *testing.T, ds *shapefile.Dataset) map[string]shapefile.Feature {
	t.Helper()
	out := make(map[string]shapefile.Feature, len(ds.Features))
	for _, f := range ds.Features {
		out[f.Attributes["POLYID"]] = f
	}
	return out
}

func TestRun_Grid(t *testing.T) {
	output := filepath.Join(t.TempDir(), "poly.shp")
	var progress bytes.Buffer

	stats, err := Run(context.Background(), Options{
		Input:       gridInput(t),
		Output:      output,
		Concurrency: 2,
		Progress:    &progress,
	})
	require.NoError(t, err)

	assert.Equal(t, &Stats{
		Modules:       1,
		Lines:         9,
		Links:         9,
		PIPs:          3,
		AreaLandmarks: 1,
		Landmarks:     2,
		Polygons:      4,
		Built:         2,
		Skipped:       2,
	}, stats)

	assert.Equal(t, "Got 9 lines in 1 modules.\n"+
		"Processed 9 links.\n"+
		"Processed 3 PIP records.\n"+
		"Processed 1 AreaLandmarks records.\n"+
		"Processed 2 Landmarks records.\n"+
		"Built 2 polygons.\n"+
		"Skipped 2 polygons.\n", progress.String())

	ds, err := shapefile.Read(output)
	require.NoError(t, err)
	require.Len(t, ds.Features, 2)

	polys := byPolyID(t, ds)
	require.Contains(t, polys, "1")
	require.Contains(t, polys, "2")
	assert.NotContains(t, polys, "3", "chain 8 never closes")
	assert.NotContains(t, polys, "4", "polygon 4 has no links")

	west := polys["1"].Attributes
	assert.Equal(t, tigertest.GridModule, west["MODULE"])
	assert.Equal(t, "35", west["STATE"])
	assert.Equal(t, "1", west["COUNTY"])
	assert.Equal(t, tigertest.GridCENID, west["CENID"])
	assert.Equal(t, "1001", west["BLOCK"])
	assert.Equal(t, "-105.500000", west["POLYLONG"])
	assert.Equal(t, "0", west["WATER"])
	assert.Equal(t, "100", west["LAND"])
	assert.Equal(t, tigertest.LandmarkName, west["LANAME"])
	assert.Equal(t, "D85", west["CFCC"])

	east := polys["2"].Attributes
	assert.Equal(t, "1", east["WATER"])
	assert.Equal(t, "1002", east["BLOCK"])
	assert.NotContains(t, east, "LAND", "no area landmark")
	assert.NotContains(t, east, "LANAME")
}

func TestRun_GridGeometry(t *testing.T) {
	output := filepath.Join(t.TempDir(), "poly.shp")
	_, err := Run(context.Background(), Options{Input: gridInput(t), Output: output})
	require.NoError(t, err)

	ds, err := shapefile.Read(output)
	require.NoError(t, err)
	polys := byPolyID(t, ds)

	west, ok := polys["1"].Geometry.(*geom.Polygon)
	require.True(t, ok)
	require.Equal(t, 1, west.NumLinearRings())
	ring := west.LinearRing(0).Coords()
	assert.Len(t, ring, 5)
	assert.InDelta(t, -1.0, polygonize.SignedArea(ring), 1e-9, "unit square, clockwise")

	// The east square is bent north by the shape point of chain 4.
	east, ok := polys["2"].Geometry.(*geom.Polygon)
	require.True(t, ok)
	ring = east.LinearRing(0).Coords()
	assert.Len(t, ring, 6)
	assert.InDelta(t, 1.125, math.Abs(polygonize.SignedArea(ring)), 1e-9)
	assert.Contains(t, ring, geom.Coord{tigertest.ShapePoint[0], tigertest.ShapePoint[1]})
}

func TestRun_MissingPIP(t *testing.T) {
	m := tigertest.NewModule("TGR35001").
		Chain(1, tigertest.PointA, tigertest.PointB).
		Chain(2, tigertest.PointB, tigertest.PointE).
		Chain(3, tigertest.PointE, tigertest.PointF).
		Chain(4, tigertest.PointF, tigertest.PointA).
		Link(1, "35001", 1, 0).
		Link(2, "35001", 1, 0).
		Link(3, "35001", 1, 0).
		Link(4, "35001", 1, 0).
		Polygon("35001", 1, nil)
	dir := t.TempDir()
	m.Write(t, dir)

	output := filepath.Join(t.TempDir(), "poly.shp")
	stats, err := Run(context.Background(), Options{Input: dir, Output: output})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Polygons)
	assert.Zero(t, stats.Built)
	assert.Equal(t, 1, stats.Skipped)

	ds, err := shapefile.Read(output)
	require.NoError(t, err)
	assert.Empty(t, ds.Features)
}

func TestRun_BestEffort(t *testing.T) {
	m := tigertest.NewModule("TGR35001").
		Chain(1, tigertest.PointA, tigertest.PointB).
		Chain(2, tigertest.PointB, tigertest.PointE).
		Chain(3, tigertest.PointE, tigertest.PointF).
		Link(1, "35001", 1, 0).
		Link(2, "35001", 1, 0).
		Link(3, "35001", 1, 0).
		Polygon("35001", 1, nil).
		PIP("35001", 1, [2]float64{-105.5, 35.5}, false)
	dir := t.TempDir()
	m.Write(t, dir)

	strict, err := Run(context.Background(), Options{Input: dir, Output: filepath.Join(t.TempDir(), "a.shp")})
	require.NoError(t, err)
	assert.Zero(t, strict.Built)

	lenient, err := Run(context.Background(), Options{
		Input:      dir,
		Output:     filepath.Join(t.TempDir(), "b.shp"),
		Polygonize: polygonize.Options{BestEffort: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, lenient.Built)
}

func TestRun_DefaultOutputExtension(t *testing.T) {
	output := filepath.Join(t.TempDir(), "polys")
	_, err := Run(context.Background(), Options{Input: gridInput(t), Output: output})
	require.NoError(t, err)
	assert.FileExists(t, output+".shp")
	assert.FileExists(t, output+".prj")
}

func TestRun_BadInput(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Input:  filepath.Join(t.TempDir(), "nothing"),
		Output: filepath.Join(t.TempDir(), "poly.shp"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "polybuild: open input")
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Options{Input: gridInput(t), Output: filepath.Join(t.TempDir(), "poly.shp")})
	require.Error(t, err)
}

// addRectangle adds four chains around the rectangle lo-hi, linked to the polygons
// on their left and right.
func addRectangle(m *tigertest.Module, firstTLID int, cenid string, lo, hi [2]float64, left, right int) *tigertest.Module {
	corners := [][2]float64{lo, {hi[0], lo[1]}, hi, {lo[0], hi[1]}}
	for i := range corners {
		tlid := firstTLID + i
		m.Chain(tlid, corners[i], corners[(i+1)%len(corners)]).
			Link(tlid, cenid, left, right)
	}
	return m
}

func TestRun_ModulesAndIsland(t *testing.T) {
	// TGR35001: polygon 1 with polygon 2 as an island inside it.
	first := tigertest.NewModule("TGR35001")
	addRectangle(first, 1, "35001", [2]float64{-106, 35}, [2]float64{-102, 39}, 1, 0)
	addRectangle(first, 5, "35001", [2]float64{-105, 36}, [2]float64{-104, 37}, 2, 1)
	first.Polygon("35001", 1, nil).
		Polygon("35001", 2, nil).
		PIP("35001", 1, [2]float64{-103, 38}, false).
		PIP("35001", 2, [2]float64{-104.5, 36.5}, true).
		AreaLandmark("35001", 1, 100).
		AreaLandmark("35001", 2, 200).
		Landmark(100, "D85", "Park One", nil)

	// TGR35003 reuses TLIDs, POLYID 1 and LAND 100, and holds the only
	// landmark 200.
	third := tigertest.NewModule("TGR35003")
	addRectangle(third, 1, "35003", [2]float64{-101, 35}, [2]float64{-100, 36}, 1, 0)
	third.Polygon("35003", 1, nil).
		PIP("35003", 1, [2]float64{-100.5, 35.5}, false).
		AreaLandmark("35003", 1, 100).
		Landmark(100, "D85", "Park Three", nil).
		Landmark(200, "D61", "Only In Three", nil)

	dir := t.TempDir()
	first.Write(t, dir)
	third.Write(t, dir)

	output := filepath.Join(t.TempDir(), "poly.shp")
	stats, err := Run(context.Background(), Options{Input: dir, Output: output, Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, &Stats{
		Modules:       2,
		Lines:         12,
		Links:         12,
		PIPs:          3,
		AreaLandmarks: 3,
		Landmarks:     3,
		Polygons:      3,
		Built:         3,
		Skipped:       0,
	}, stats)

	ds, err := shapefile.Read(output)
	require.NoError(t, err)
	require.Len(t, ds.Features, 3)

	got := make(map[string]shapefile.Feature, len(ds.Features))
	for _, f := range ds.Features {
		got[f.Attributes["MODULE"]+"/"+f.Attributes["POLYID"]] = f
	}

	assert.Equal(t, "Park One", got["TGR35001/1"].Attributes["LANAME"])
	assert.Equal(t, "Park Three", got["TGR35003/1"].Attributes["LANAME"])
	assert.Equal(t, "200", got["TGR35001/2"].Attributes["LAND"])
	assert.NotContains(t, got["TGR35001/2"].Attributes, "LANAME", "landmarks resolve within their module")

	outer, ok := got["TGR35001/1"].Geometry.(*geom.Polygon)
	require.True(t, ok)
	require.Equal(t, 2, outer.NumLinearRings())
	assert.InDelta(t, -16.0, polygonize.SignedArea(outer.LinearRing(0).Coords()), 1e-9, "exterior is clockwise")
	assert.InDelta(t, 1.0, polygonize.SignedArea(outer.LinearRing(1).Coords()), 1e-9, "hole is counter-clockwise")

	island, ok := got["TGR35001/2"].Geometry.(*geom.Polygon)
	require.True(t, ok)
	assert.Equal(t, 1, island.NumLinearRings())
	assert.InDelta(t, -1.0, polygonize.SignedArea(island.LinearRing(0).Coords()), 1e-9)

	other, ok := got["TGR35003/1"].Geometry.(*geom.Polygon)
	require.True(t, ok)
	assert.Equal(t, 1, other.NumLinearRings())
	assert.InDelta(t, -1.0, polygonize.SignedArea(other.LinearRing(0).Coords()), 1e-9)
}

func TestRun_MalformedShapeRecord(t *testing.T) {
	dir := gridInput(t)
	bad := tiger.RT2.Format(map[string]string{"VERSION": "1000", "TLID": "4", "RTSQ": "X1"}) + "\r\n"
	f, err := os.OpenFile(filepath.Join(dir, "TGR35001.RT2"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(bad)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	stats, err := Run(context.Background(), Options{Input: dir, Output: filepath.Join(t.TempDir(), "poly.shp")})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Built)
}

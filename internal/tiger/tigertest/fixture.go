package tigertest

import (
	"testing"
)

// Grid fixture: two unit squares side by side in Bernalillo County, NM.
//
//	F(-106,36) --6-- E(-105,36) --4~~ D(-104,36)
//	    |               |               |
//	    5   poly 1      7    poly 2     3
//	    |               |               |
//	A(-106,35) --1-- B(-105,35) --2-- C(-104,35)
//
// Chain 4 bends through one RT2 shape point, chain 9 is a spur inside
// polygon 2 and chain 8 is the lone edge of polygon 3, which cannot close.
const (
	GridModule = "TGR35001"
	GridCENID  = "35001"

	// LandmarkName carries a non-ASCII rune to exercise the Latin-1 codec.
	LandmarkName = "Parque Peñasco"
)

// Grid corner points.
var (
	PointA = [2]float64{-106, 35}
	PointB = [2]float64{-105, 35}
	PointC = [2]float64{-104, 35}
	PointD = [2]float64{-104, 36}
	PointE = [2]float64{-105, 36}
	PointF = [2]float64{-106, 36}

	// ShapePoint bends chain 4 north of the D-E line.
	ShapePoint = [2]float64{-104.5, 36.25}
)

// GridModuleRecords builds the grid fixture module.
func GridModuleRecords() *Module {
	m := NewModule(GridModule)

	m.Chain(1, PointA, PointB).
		Chain(2, PointB, PointC).
		Chain(3, PointC, PointD).
		Chain(4, PointD, PointE).
		Chain(5, PointA, PointF).
		Chain(6, PointF, PointE).
		Chain(7, PointB, PointE).
		Chain(8, [2]float64{-103, 35}, [2]float64{-102, 35}).
		Chain(9, PointB, [2]float64{-104.5, 35.5})

	m.Shape(4, 1, ShapePoint)

	m.Link(1, GridCENID, 0, 1).
		Link(5, GridCENID, 1, 0).
		Link(6, GridCENID, 0, 1).
		Link(7, GridCENID, 1, 2).
		Link(2, GridCENID, 0, 2).
		Link(3, GridCENID, 0, 2).
		Link(4, GridCENID, 0, 2).
		Link(9, GridCENID, 2, 2).
		Link(8, GridCENID, 3, 0)

	m.Polygon(GridCENID, 1, map[string]string{"STATECU": "35", "COUNTYCU": "1", "TRACT": "100", "BLOCK": "1001"}).
		Polygon(GridCENID, 2, map[string]string{"STATECU": "35", "COUNTYCU": "1", "TRACT": "100", "BLOCK": "1002"}).
		Polygon(GridCENID, 3, map[string]string{"STATECU": "35", "COUNTYCU": "1"}).
		Polygon(GridCENID, 4, nil)

	m.PIP(GridCENID, 1, [2]float64{-105.5, 35.5}, false).
		PIP(GridCENID, 2, [2]float64{-104.5, 35.25}, true).
		PIP(GridCENID, 3, [2]float64{-102.5, 35.1}, false)

	m.AreaLandmark(GridCENID, 1, 100)

	park := [2]float64{-105.5, 35.5}
	m.Landmark(100, "D85", LandmarkName, &park).
		Landmark(200, "D61", "Unrelated Tower", nil)

	return m
}

// Grid writes the grid fixture module to dir and returns the written paths.
func Grid(t testing.TB, dir string) []string {
	t.Helper()
	return GridModuleRecords().Write(t, dir)
}

package tiger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func pipSpec(t *testing.T) LayerSpec {
	t.Helper()
	spec, ok := LayerByName(LayerPIP)
	require.True(t, ok)
	return spec
}

func TestRecordParser_Values(t *testing.T) {
	spec := pipSpec(t)
	layer := NewLayer(spec)
	p := newRecordParser(spec)

	line := RTP.Format(map[string]string{
		"VERSION":  "1000",
		"FILE":     "35001",
		"CENID":    "35001",
		"POLYID":   "12",
		"POLYLONG": "-105500000",
		"POLYLAT":  "+35250000",
	})

	vals, err := p.values("TGR35001", []byte(line))
	require.NoError(t, err)
	require.Len(t, vals, len(layer.Fields))

	f := &Feature{Values: vals}
	assert.Equal(t, "TGR35001", f.String(layer.FieldIndex("MODULE")))
	assert.Equal(t, int64(35001), vals[layer.FieldIndex("FILE")])
	assert.Equal(t, int64(35), vals[layer.FieldIndex("STATE")])
	assert.Equal(t, int64(1), vals[layer.FieldIndex("COUNTY")])
	assert.Equal(t, "35001", vals[layer.FieldIndex("CENID")])
	assert.InDelta(t, -105.5, vals[layer.FieldIndex("POLYLONG")], 1e-9)
	assert.InDelta(t, 35.25, vals[layer.FieldIndex("POLYLAT")], 1e-9)

	id, ok := f.Int(layer.FieldIndex("POLYID"))
	assert.True(t, ok)
	assert.Equal(t, int64(12), id)

	// WATER was left blank.
	assert.False(t, f.IsSet(layer.FieldIndex("WATER")))
	assert.Equal(t, "", f.String(layer.FieldIndex("WATER")))
}

func TestRecordParser_BadNumber(t *testing.T) {
	p := newRecordParser(pipSpec(t))
	line := RTP.Format(map[string]string{"POLYID": "12x"})

	_, err := p.values("TGR35001", []byte(line))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POLYID")
}

func TestRecordParser_Latin1(t *testing.T) {
	spec, ok := LayerByName(LayerLandmarks)
	require.True(t, ok)
	layer := NewLayer(spec)
	p := newRecordParser(spec)

	line := []byte(RT7.Format(map[string]string{"LAND": "100", "LANAME": "Parque Pe"}))
	// ñ is a single 0xF1 byte on disk.
	line[33] = 0xF1

	vals, err := p.values("TGR35001", line)
	require.NoError(t, err)
	assert.Equal(t, "Parque Peñ", vals[layer.FieldIndex("LANAME")])
}

func TestRecordParser_Point(t *testing.T) {
	p := newRecordParser(pipSpec(t))

	g, err := p.point([]byte(RTP.Format(map[string]string{"POLYLONG": "-105500000", "POLYLAT": "+35250000"})))
	require.NoError(t, err)
	pt, ok := g.(*geom.Point)
	require.True(t, ok)
	assert.InDelta(t, -105.5, pt.X(), 1e-9)
	assert.InDelta(t, 35.25, pt.Y(), 1e-9)
	assert.Equal(t, SRID, pt.SRID())

	g, err = p.point([]byte(RTP.Format(map[string]string{"POLYID": "1"})))
	require.NoError(t, err)
	assert.Nil(t, g, "blank coordinates")

	g, err = p.point([]byte(RTP.Format(map[string]string{"POLYLONG": "0", "POLYLAT": "0"})))
	require.NoError(t, err)
	assert.Nil(t, g, "0,0 is the TIGER/Line null point")
}

func TestSlice_ShortLine(t *testing.T) {
	c := Column{Name: "X", Start: 4, End: 8}
	assert.Nil(t, slice([]byte("ab"), c))
	assert.Equal(t, []byte("de"), slice([]byte("abcde"), c))
	assert.Equal(t, []byte("defgh"), slice([]byte("abcdefghij"), c))
}

func TestSplitFile(t *testing.T) {
	state, county := splitFile(int64(6037))
	assert.Equal(t, int64(6), state)
	assert.Equal(t, int64(37), county)

	state, county = splitFile(nil)
	assert.Nil(t, state)
	assert.Nil(t, county)
}

func TestFeature_Accessors(t *testing.T) {
	f := &Feature{Values: []any{"TGR35001", int64(7), 1.5, nil}}

	assert.Equal(t, "TGR35001", f.String(0))
	assert.Equal(t, "7", f.String(1))
	assert.Equal(t, "1.5", f.String(2))
	assert.Equal(t, "", f.String(3))
	assert.Equal(t, "", f.String(9))

	_, ok := f.Int(0)
	assert.False(t, ok)
	_, ok = f.Int(-1)
	assert.False(t, ok)

	assert.True(t, f.IsSet(2))
	assert.False(t, f.IsSet(3))
}

func TestLayer_FieldIndex(t *testing.T) {
	layer := NewLayer(pipSpec(t))
	assert.Equal(t, 0, layer.FieldIndex("MODULE"))
	assert.Equal(t, -1, layer.FieldIndex("NOPE"))
}

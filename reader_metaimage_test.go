package readers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestMetaImageUpdateLocal(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "volume.mha", `ObjectType = Image
NDims = 3
DimSize = 11 21 5
ElementSpacing = 0.5 0.5 2
Offset = -1 0 10
ElementType = MET_UCHAR
BinaryData = True
ElementDataFile = LOCAL
`+"\x00\x01\x02")

	gr := MetaImageReader{}.CreateGeometryReader(path)
	mesh, bbox, err := gr.Update()
	require.NoError(t, err)
	require.NotNil(t, mesh)

	assert.Equal(t, [6]float64{-1, 0, 10, 4, 10, 18}, *bbox)
	require.Len(t, mesh.Nodes, 1)
	assert.Len(t, mesh.Nodes[0].Vertices, 8)
	require.Len(t, mesh.Nodes[0].FaceGroup, 1)
	assert.Len(t, mesh.Nodes[0].FaceGroup[0].Faces, 12)

	h := gr.(*MetaImageGeometryReader).Header()
	require.NotNil(t, h)
	assert.Equal(t, 3, h.NDims)
	assert.Equal(t, []int{11, 21, 5}, h.DimSize)
	assert.Equal(t, "MET_UCHAR", h.ElementType)
	assert.True(t, h.Local())
	assert.True(t, h.Binary)
	assert.False(t, h.Compressed)
}

func TestMetaImageUpdateDetachedData(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "slice.mhd", `NDims = 2
DimSize = 3 3
ElementType = MET_SHORT
ElementDataFile = slice.raw
`)

	gr := MetaImageReader{}.CreateGeometryReader(path)
	_, _, err := gr.Update()
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	writeFile(t, dir, "slice.raw", "012345678901234567")
	_, bbox, err := gr.Update()
	require.NoError(t, err)
	assert.Equal(t, [6]float64{0, 0, 0, 2, 2, 0}, *bbox)
}

func TestMetaImageInvalidHeaders(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing NDims", "DimSize = 2 2\nElementType = MET_UCHAR\nElementDataFile = LOCAL\n"},
		{"bad NDims", "NDims = 7\nDimSize = 2 2\nElementType = MET_UCHAR\nElementDataFile = LOCAL\n"},
		{"short DimSize", "NDims = 3\nDimSize = 2 2\nElementType = MET_UCHAR\nElementDataFile = LOCAL\n"},
		{"zero DimSize", "NDims = 2\nDimSize = 0 2\nElementType = MET_UCHAR\nElementDataFile = LOCAL\n"},
		{"bad spacing", "NDims = 2\nDimSize = 2 2\nElementSpacing = a b\nElementType = MET_UCHAR\nElementDataFile = LOCAL\n"},
		{"missing ElementType", "NDims = 2\nDimSize = 2 2\nElementDataFile = LOCAL\n"},
		{"missing ElementDataFile", "NDims = 2\nDimSize = 2 2\nElementType = MET_UCHAR\n"},
		{"not a header", "this is not metaimage\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "bad.mha", tt.header)
			gr := MetaImageReader{}.CreateGeometryReader(path)
			_, _, err := gr.Update()
			assert.ErrorIs(t, err, ErrInvalidHeader)
			assert.Nil(t, gr.(*MetaImageGeometryReader).Header())
		})
	}
}

func TestMetaImageMissingFile(t *testing.T) {
	gr := MetaImageReader{}.CreateGeometryReader(filepath.Join(t.TempDir(), "none.mha"))
	_, _, err := gr.Update()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestImageHeaderExtentNegativeSpacing(t *testing.T) {
	h := &ImageHeader{
		NDims:   3,
		DimSize: []int{5, 5, 5},
		Spacing: []float64{-1, 1, 1},
		Offset:  []float64{0, 0, 0},
	}
	assert.Equal(t, [6]float64{-4, 0, 0, 0, 4, 4}, *h.Extent().Array())
}

package readers

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	mst "github.com/flywave/go-mst"
	dmat "github.com/flywave/go3d/float64/mat4"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreeDSImportMissingFile(t *testing.T) {
	sr := ThreeDSReader{}.CreateSceneReader("testdata/does-not-exist.3ds")
	mesh, bbox, err := sr.Import()
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Nil(t, mesh)
	assert.Nil(t, bbox)
}

func chunkHeader(id uint16, length uint32) []byte {
	b := make([]byte, 6)
	binary.LittleEndian.PutUint16(b[0:2], id)
	binary.LittleEndian.PutUint32(b[2:6], length)
	return b
}

func TestThreeDSImportRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content []byte
	}{
		{"text", []byte("this is not a 3ds file")},
		{"empty", nil},
		{"short", []byte{0x4D, 0x4D, 0x10}},
		{"wrong chunk", append(chunkHeader(0x3D3D, 16), make([]byte, 10)...)},
		{"length past end", append(chunkHeader(mainChunkID, 4096), make([]byte, 10)...)},
		{"length below header", append(chunkHeader(mainChunkID, 2), make([]byte, 10)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".3ds")
			require.NoError(t, os.WriteFile(path, tt.content, 0o644))

			mesh, bbox, err := ThreeDSReader{}.CreateSceneReader(path).Import()
			assert.ErrorIs(t, err, ErrInvalid3DS)
			assert.Nil(t, mesh)
			assert.Nil(t, bbox)
		})
	}
}

func TestThreeDSImportRejectsDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scene.3ds")
	require.NoError(t, os.Mkdir(dir, 0o755))

	_, _, err := ThreeDSReader{}.CreateSceneReader(dir).Import()
	assert.ErrorIs(t, err, ErrInvalid3DS)
}

func TestCheck3DSHeaderAcceptsFixture(t *testing.T) {
	assert.NoError(t, check3DSHeader("testdata/bieshu.3ds"))
}

func TestThreeDSImportFixture(t *testing.T) {
	mesh, bbox, err := ThreeDSReader{}.CreateSceneReader("testdata/bieshu.3ds").Import()
	require.NoError(t, err)
	require.NotNil(t, mesh)
	require.NotNil(t, bbox)

	assert.NotEmpty(t, mesh.Nodes)
	assert.NotEmpty(t, mesh.Materials)
	for i, v := range bbox {
		assert.False(t, math.IsInf(v, 0) || math.IsNaN(v), "bbox[%d] = %v", i, v)
	}
	for i := 0; i < 3; i++ {
		assert.LessOrEqual(t, bbox[i], bbox[i+3])
	}

	for _, node := range mesh.Nodes {
		require.NotEmpty(t, node.Vertices)
		for _, g := range node.FaceGroup {
			require.Less(t, int(g.Batchid), len(mesh.Materials))
			for _, f := range g.Faces {
				for _, idx := range f.Vertex {
					require.Less(t, int(idx), len(node.Vertices))
				}
			}
		}
	}
	for _, m := range mesh.Materials {
		_, ok := m.(*mst.PhongMaterial)
		assert.True(t, ok, "fixture materials convert to Phong, got %T", m)
	}
}

func TestThreeDSImportIsDeterministic(t *testing.T) {
	first, bbox1, err := ThreeDSReader{}.CreateSceneReader("testdata/bieshu.3ds").Import()
	require.NoError(t, err)
	second, bbox2, err := ThreeDSReader{}.CreateSceneReader("testdata/bieshu.3ds").Import()
	require.NoError(t, err)

	assert.Equal(t, *bbox1, *bbox2)
	require.Len(t, second.Nodes, len(first.Nodes))
	for i := range first.Nodes {
		assert.Equal(t, first.Nodes[i].Vertices, second.Nodes[i].Vertices)
	}
	require.Len(t, second.InstanceNode, len(first.InstanceNode))
	for i, inst := range first.InstanceNode {
		other := second.InstanceNode[i]
		assert.Equal(t, *inst.BBox, *other.BBox)
		require.Len(t, other.Transfors, len(inst.Transfors))
		for j := range inst.Transfors {
			assert.Equal(t, *inst.Transfors[j], *other.Transfors[j])
		}
	}
}

func TestTransformBox(t *testing.T) {
	m := dmat.Ident
	m.Translate(&dvec3.T{10, 0, -1})
	m.ScaleVec3(&dvec3.T{2, 2, 2})

	bx := transformBox(&[6]float64{-1, 0, 0, 1, 1, 1}, &m)
	assert.Equal(t, &[6]float64{8, 0, -1, 12, 2, 1}, bx.Array())
}

func TestCString(t *testing.T) {
	assert.Equal(t, "wood.png", cString([]byte{'w', 'o', 'o', 'd', '.', 'p', 'n', 'g', 0, 'x'}))
	assert.Equal(t, "", cString([]byte{0, 'a'}))
	assert.Equal(t, "abc", cString([]byte("abc")))
}

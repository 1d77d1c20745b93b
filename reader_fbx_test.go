package readers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/flywave/go3d/vec3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFBXImportMissingFile(t *testing.T) {
	sr := FBXReader{}.CreateSceneReader(filepath.Join(t.TempDir(), "rig.fbx"))
	_, _, err := sr.Import()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTriangulatePolygon(t *testing.T) {
	// a quad that is longer along the 0-2 diagonal than along 1-3
	vertices := []vec3.T{{0, 0, 0}, {4, 0, 0}, {5, 1, 0}, {1, 1, 0}}

	tris := triangulatePolygon([]int{0, 1, 2, 3}, vertices)
	require.Len(t, tris, 2)
	assert.Equal(t, [3]int{0, 1, 3}, tris[0])
	assert.Equal(t, [3]int{1, 2, 3}, tris[1])

	square := []vec3.T{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}}
	tris = triangulatePolygon([]int{0, 1, 2, 3}, square)
	assert.Equal(t, [][3]int{{0, 1, 2}, {0, 2, 3}}, tris)

	// corner positions, not vertex indices
	assert.Equal(t, [][3]int{{0, 1, 2}}, triangulatePolygon([]int{2, 1, 0}, square))
	assert.Equal(t, [][3]int{{0, 1, 2}, {0, 2, 3}}, triangulatePolygon([]int{3, 2, 1, 0}, square))
	assert.Equal(t, [][3]int{{0, 1, 2}, {0, 2, 3}, {0, 3, 4}}, triangulatePolygon([]int{0, 1, 2, 3, 0}, square))
	assert.Empty(t, triangulatePolygon([]int{0, 1}, square))
}

func TestFBXImportFixtures(t *testing.T) {
	for _, name := range []string{"cube.fbx", "fbxcs.fbx", "fbxcs2.fbx"} {
		t.Run(name, func(t *testing.T) {
			mesh, bbox, err := FBXReader{}.CreateSceneReader(filepath.Join("testdata", name)).Import()
			require.NoError(t, err)
			require.NotEmpty(t, mesh.Nodes)
			require.NotEmpty(t, mesh.Materials)
			for i := 0; i < 3; i++ {
				assert.LessOrEqual(t, bbox[i], bbox[i+3])
			}

			for _, node := range mesh.Nodes {
				require.NotEmpty(t, node.Vertices)
				if len(node.TexCoords) > 0 {
					assert.Len(t, node.TexCoords, len(node.Vertices))
				}
				assert.Len(t, node.Normals, len(node.Vertices))
				for _, g := range node.FaceGroup {
					require.Less(t, int(g.Batchid), len(mesh.Materials))
					for _, f := range g.Faces {
						for _, idx := range f.Vertex {
							require.Less(t, int(idx), len(node.Vertices))
						}
					}
				}
			}
		})
	}
}

func TestFBXImportTexCoordsFollowVertices(t *testing.T) {
	// both fixtures carry one uv per polygon corner
	for _, name := range []string{"fbxcs.fbx", "fbxcs2.fbx"} {
		mesh, _, err := FBXReader{}.CreateSceneReader(filepath.Join("testdata", name)).Import()
		require.NoError(t, err, name)

		textured := 0
		for _, node := range mesh.Nodes {
			if len(node.TexCoords) == 0 {
				continue
			}
			textured++
			assert.Equal(t, len(node.Vertices), len(node.TexCoords), name)
		}
		assert.Positive(t, textured, name)
	}
}

func TestIndicesInRange(t *testing.T) {
	assert.True(t, indicesInRange([]int{0, 1, 2}, 3))
	assert.False(t, indicesInRange([]int{0, 1, 3}, 3))
	assert.False(t, indicesInRange([]int{-1, 0, 1}, 3))
}

package readers

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	mst "github.com/flywave/go-mst"
	mat4d "github.com/flywave/go3d/float64/mat4"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	fbx "github.com/flywave/ofbx"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

type FBXReader struct{}

func (FBXReader) Name() string { return "FBXReader" }

func (FBXReader) ShortDescription() string { return "FBX files reader" }

func (FBXReader) Extensions() []string { return extensionsOf(".fbx") }

func (FBXReader) CreateSceneReader(fileName string) SceneReader {
	importer := &FBXImporter{}
	importer.SetFileName(fileName)
	return importer
}

// FBXImporter bakes each mesh's global transform into its vertices.
type FBXImporter struct {
	fileName string

	baseDir string
	texId   int
	// texture path -> material index already holding it
	texMaterials map[string]int32
}

func (im *FBXImporter) FileName() string { return im.fileName }

func (im *FBXImporter) SetFileName(fileName string) { im.fileName = fileName }

func (im *FBXImporter) Import() (*mst.Mesh, *[6]float64, error) {
	f, err := os.Open(im.fileName)
	if err != nil {
		return nil, nil, fmt.Errorf("open fbx file: %w", err)
	}
	defer f.Close()

	scene, err := fbx.Load(f)
	if err != nil {
		return nil, nil, fmt.Errorf("load fbx file %s: %w", im.fileName, err)
	}
	if len(scene.Meshes) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", im.fileName, ErrEmptyScene)
	}
	im.baseDir = filepath.Dir(im.fileName)
	im.texId = 0
	im.texMaterials = make(map[string]int32)

	mesh := mst.NewMesh()
	bbox := dvec3.MinBox
	for _, m := range scene.Meshes {
		if m.Geometry == nil || len(m.Geometry.Faces) == 0 {
			continue
		}
		bbox.Join(im.convertMesh(mesh, m))
	}
	if len(mesh.Nodes) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", im.fileName, ErrEmptyScene)
	}
	return mesh, bbox.Array(), nil
}

func (im *FBXImporter) convertMesh(out *mst.Mesh, m *fbx.Mesh) *dvec3.Box {
	node := &mst.MeshNode{}
	bbox := dvec3.MinBox
	g := m.Geometry
	global := fbx.GetGlobalMatrix(m)
	matrix := mat4d.FromArray(global.ToArray())

	// ofbx keeps Vertices as control points indexed by Faces, UVs per
	// polygon corner and Materials per fan triangle.
	corners := 0
	for _, face := range g.Faces {
		corners += len(face)
	}
	uvs := g.UVs[0]
	if len(uvs) != corners {
		uvs = nil
	}
	repeated := false
	for _, uv := range uvs {
		repeated = repeated || uv[0] > 1.1 || uv[1] > 1.1 || uv[0] < 0 || uv[1] < 0
	}

	groups := make(map[int]*mst.MeshTriangle)
	corner, triangle := 0, 0
	for _, face := range g.Faces {
		if !indicesInRange(face, len(g.Vertices)) {
			corner += len(face)
			if len(face) > 2 {
				triangle += len(face) - 2
			}
			continue
		}
		batch := 0
		if triangle < len(g.Materials) && g.Materials[triangle] > 0 {
			batch = g.Materials[triangle]
		}
		group, ok := groups[batch]
		if !ok {
			var mt *fbx.Material
			if batch < len(m.Materials) {
				mt = m.Materials[batch]
			}
			group = &mst.MeshTriangle{Batchid: im.convertMaterial(out, mt, repeated)}
			groups[batch] = group
			node.FaceGroup = append(node.FaceGroup, group)
		}

		for _, tri := range triangulatePolygon(face, g.Vertices) {
			base := uint32(len(node.Vertices))
			for _, c := range tri {
				v := g.Vertices[face[c]]
				p := matrix.MulVec3(&dvec3.T{float64(v[0]), float64(v[1]), float64(v[2])})
				node.Vertices = append(node.Vertices, vec3.T{float32(p[0]), float32(p[1]), float32(p[2])})
				if uvs != nil {
					uv := uvs[corner+c]
					node.TexCoords = append(node.TexCoords, vec2.T{float32(uv[0]), float32(uv[1])})
				}
				bbox.Extend(&p)
			}
			group.Faces = append(group.Faces, &mst.Face{Vertex: [3]uint32{base, base + 1, base + 2}})
		}
		corner += len(face)
		if len(face) > 2 {
			triangle += len(face) - 2
		}
	}

	node.ReComputeNormal()
	out.Nodes = append(out.Nodes, node)
	return &bbox
}

func indicesInRange(face []int, n int) bool {
	for _, idx := range face {
		if idx < 0 || idx >= n {
			return false
		}
	}
	return true
}

// triangulatePolygon splits quads along their shorter diagonal and fans
// anything larger. Triangles hold corner positions within face.
func triangulatePolygon[V ~[3]E, E float32 | float64](face []int, vertices []V) [][3]int {
	switch len(face) {
	case 0, 1, 2:
		return nil
	case 3:
		return [][3]int{{0, 1, 2}}
	case 4:
		if diagonal(vertices[face[0]], vertices[face[2]]) <= diagonal(vertices[face[1]], vertices[face[3]]) {
			return [][3]int{{0, 1, 2}, {0, 2, 3}}
		}
		return [][3]int{{0, 1, 3}, {1, 2, 3}}
	}
	tris := make([][3]int, 0, len(face)-2)
	for i := 1; i < len(face)-1; i++ {
		tris = append(tris, [3]int{0, i, i + 1})
	}
	return tris
}

func diagonal[V ~[3]E, E float32 | float64](a, b V) float64 {
	dx := float64(a[0] - b[0])
	dy := float64(a[1] - b[1])
	dz := float64(a[2] - b[2])
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (im *FBXImporter) convertMaterial(out *mst.Mesh, mt *fbx.Material, repeated bool) int32 {
	idx := int32(len(out.Materials))
	mtl := &mst.PbrMaterial{Metallic: 0, Roughness: 1}
	if mt == nil {
		mtl.Color = [3]byte{255, 255, 255}
		out.Materials = append(out.Materials, mtl)
		return idx
	}

	if mt.Textures[0] != nil {
		path := im.texturePath(mt.Textures[0])
		if shared, ok := im.texMaterials[path]; ok {
			return shared
		}
		if tex, err := convertTex(path, im.texId); err == nil {
			tex.Repeated = repeated
			mtl.Texture = tex
			im.texId++
			im.texMaterials[path] = idx
		}
	}
	if mt.Textures[1] != nil {
		if tex, err := convertTex(im.texturePath(mt.Textures[1]), im.texId); err == nil {
			tex.Repeated = repeated
			mtl.Normal = tex
			im.texId++
		}
	}

	mtl.Emissive = colorBytes([]float32{float32(mt.EmissiveColor.R), float32(mt.EmissiveColor.G), float32(mt.EmissiveColor.B)})
	mtl.Color = colorBytes([]float32{float32(mt.DiffuseColor.R), float32(mt.DiffuseColor.G), float32(mt.DiffuseColor.B)})
	out.Materials = append(out.Materials, mtl)
	return idx
}

// texturePath resolves a texture next to the fbx file; exporters often store
// absolute Windows paths.
func (im *FBXImporter) texturePath(tex *fbx.Texture) string {
	name := strings.ReplaceAll(tex.GetRelativeFileName().String(), "\\", "/")
	return filepath.Join(im.baseDir, filepath.Base(name))
}

package readers

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	mst "github.com/flywave/go-mst"
	gobj "github.com/flywave/go-obj"
	dvec3 "github.com/flywave/go3d/float64/vec3"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

// OBJReader supports both capabilities: the scene path keeps MTL materials,
// the geometry path only keeps the surface.
type OBJReader struct{}

func (OBJReader) Name() string { return "OBJReader" }

func (OBJReader) ShortDescription() string { return "Wavefront OBJ files reader" }

func (OBJReader) Extensions() []string { return extensionsOf(".obj") }

func (OBJReader) CreateSceneReader(fileName string) SceneReader {
	importer := &OBJImporter{}
	importer.SetFileName(fileName)
	return importer
}

func (OBJReader) CreateGeometryReader(fileName string) GeometryReader {
	reader := &OBJGeometryReader{}
	reader.SetFileName(fileName)
	return reader
}

type OBJImporter struct {
	fileName string
}

func (im *OBJImporter) FileName() string { return im.fileName }

func (im *OBJImporter) SetFileName(fileName string) { im.fileName = fileName }

func (im *OBJImporter) Import() (*mst.Mesh, *[6]float64, error) {
	obj, err := readOBJ(im.fileName)
	if err != nil {
		return nil, nil, err
	}

	groups := make(map[string]*mst.MeshTriangle)
	var names []string
	node := &mst.MeshNode{}
	bbox := dvec3.MinBox
	for fi, face := range obj.F {
		name := face.Material
		group, ok := groups[name]
		if !ok {
			group = &mst.MeshTriangle{}
			groups[name] = group
			names = append(names, name)
		}
		for _, tri := range fanTriangulate(len(face.Corners)) {
			appendTriangle(node, group, obj, fi, tri, &bbox)
		}
	}
	if len(node.Vertices) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", im.fileName, ErrEmptyScene)
	}

	materials := im.loadMaterials(obj)
	mesh := mst.NewMesh()
	sort.Strings(names)
	for _, name := range names {
		group := groups[name]
		if len(group.Faces) == 0 {
			continue
		}
		group.Batchid = int32(len(mesh.Materials))
		mesh.Materials = append(mesh.Materials, im.convertMaterial(materials[name]))
		node.FaceGroup = append(node.FaceGroup, group)
	}
	mesh.Nodes = append(mesh.Nodes, node)
	return mesh, bbox.Array(), nil
}

func (im *OBJImporter) loadMaterials(obj *gobj.ObjReader) map[string]*gobj.Material {
	if obj.MTL == "" {
		return nil
	}
	path := obj.MTL
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(im.fileName), path)
	}
	materials, err := gobj.ReadMaterials(path)
	if err != nil {
		// the geometry is still usable without its .mtl
		return nil
	}
	return materials
}

func (im *OBJImporter) convertMaterial(m *gobj.Material) mst.MeshMaterial {
	if m == nil {
		return &mst.BaseMaterial{Color: defaultColor}
	}
	diffuse := colorBytes(m.Diffuse)
	var tex *mst.Texture
	if m.DiffuseTexture != "" {
		tex = im.loadTexture(m.DiffuseTexture)
	}

	specular := colorBytes(m.Specular)
	if m.Shininess > 0 || specular != [3]byte{} {
		phong := &mst.PhongMaterial{}
		phong.Color = diffuse
		phong.Transparency = 1 - float32(m.Opacity)
		phong.Ambient = colorBytes(m.Ambient)
		phong.Diffuse = diffuse
		phong.Specular = specular
		phong.Shininess = float32(m.Shininess)
		phong.Texture = tex
		return phong
	}
	if tex != nil {
		texMtl := &mst.TextureMaterial{}
		texMtl.Color = diffuse
		texMtl.Transparency = 1 - float32(m.Opacity)
		texMtl.Texture = tex
		return texMtl
	}
	return &mst.BaseMaterial{Color: diffuse, Transparency: 1 - float32(m.Opacity)}
}

func (im *OBJImporter) loadTexture(name string) *mst.Texture {
	dir := filepath.Dir(im.fileName)
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		path = filepath.Join(dir, filepath.Base(name))
	}
	tex, err := convertTex(path, 0)
	if err != nil {
		return nil
	}
	return tex
}

type OBJGeometryReader struct {
	fileName string
}

func (r *OBJGeometryReader) FileName() string { return r.fileName }

func (r *OBJGeometryReader) SetFileName(fileName string) { r.fileName = fileName }

func (r *OBJGeometryReader) Update() (*mst.Mesh, *[6]float64, error) {
	obj, err := readOBJ(r.fileName)
	if err != nil {
		return nil, nil, err
	}
	node := &mst.MeshNode{}
	group := &mst.MeshTriangle{Batchid: 0}
	bbox := dvec3.MinBox
	for fi, face := range obj.F {
		for _, tri := range fanTriangulate(len(face.Corners)) {
			appendTriangle(node, group, obj, fi, tri, &bbox)
		}
	}
	if len(group.Faces) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", r.fileName, ErrEmptyScene)
	}
	node.FaceGroup = append(node.FaceGroup, group)

	mesh := mst.NewMesh()
	mesh.Materials = append(mesh.Materials, &mst.BaseMaterial{Color: defaultColor})
	mesh.Nodes = append(mesh.Nodes, node)
	return mesh, bbox.Array(), nil
}

func readOBJ(fileName string) (*gobj.ObjReader, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("open obj file: %w", err)
	}
	defer f.Close()

	obj := &gobj.ObjReader{}
	if err := obj.Read(f); err != nil {
		return nil, fmt.Errorf("read obj file %s: %w", fileName, err)
	}
	return obj, nil
}

// fanTriangulate returns the corner positions of a fan over an n-gon.
func fanTriangulate(n int) [][3]int {
	if n < 3 {
		return nil
	}
	tris := make([][3]int, 0, n-2)
	for i := 1; i < n-1; i++ {
		tris = append(tris, [3]int{0, i, i + 1})
	}
	return tris
}

func appendTriangle(node *mst.MeshNode, group *mst.MeshTriangle, obj *gobj.ObjReader, fi int, tri [3]int, bbox *dvec3.Box) {
	corners := obj.F[fi].Corners
	var pos [3]vec3.T
	for i, k := range tri {
		if c := corners[k]; c.VertexIndex >= 0 && c.VertexIndex < len(obj.V) {
			pos[i] = obj.V[c.VertexIndex]
		}
	}
	flat := faceNormal(pos[0], pos[1], pos[2])

	base := uint32(len(node.Vertices))
	for i, k := range tri {
		c := corners[k]
		uv := vec2.T{}
		if c.TexcoordIndex >= 0 && c.TexcoordIndex < len(obj.VT) {
			uv = obj.VT[c.TexcoordIndex]
		}
		n := flat
		if c.NormalIndex >= 0 && c.NormalIndex < len(obj.VN) {
			n = obj.VN[c.NormalIndex]
		}
		node.Vertices = append(node.Vertices, pos[i])
		node.TexCoords = append(node.TexCoords, uv)
		node.Normals = append(node.Normals, n)
		extendBox(bbox, pos[i])
	}
	group.Faces = append(group.Faces, &mst.Face{Vertex: [3]uint32{base, base + 1, base + 2}})
}

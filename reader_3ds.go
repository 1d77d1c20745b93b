package readers

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tds "github.com/flywave/go-3ds"
	mst "github.com/flywave/go-mst"
	dmat "github.com/flywave/go3d/float64/mat4"
	quat "github.com/flywave/go3d/float64/quaternion"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	dvec4 "github.com/flywave/go3d/float64/vec4"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

type ThreeDSReader struct{}

func (ThreeDSReader) Name() string { return "3DSReader" }

func (ThreeDSReader) ShortDescription() string { return "3DS files reader" }

func (ThreeDSReader) Extensions() []string { return extensionsOf(".3ds") }

func (ThreeDSReader) CreateSceneReader(fileName string) SceneReader {
	importer := &ThreeDSImporter{}
	importer.SetFileName(fileName)
	return importer
}

// ThreeDSImporter imports a 3DS file through go-3ds. Meshes referenced by an
// instance node are emitted once as mst.InstanceMesh with one transform per
// node; the rest are flattened into the top level mesh.
type ThreeDSImporter struct {
	fileName string

	baseDir   string
	texId     int
	savedTex  int
	materials []tds.Material
}

func (im *ThreeDSImporter) FileName() string { return im.fileName }

func (im *ThreeDSImporter) SetFileName(fileName string) { im.fileName = fileName }

func (im *ThreeDSImporter) Import() (*mst.Mesh, *[6]float64, error) {
	// lib3ds aborts the process on a malformed stream, so the main chunk is
	// checked before the file is handed over.
	if err := check3DSHeader(im.fileName); err != nil {
		return nil, nil, err
	}
	f := tds.OpenFile(im.fileName)

	meshes := f.GetMeshs()
	if len(meshes) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", im.fileName, ErrEmptyScene)
	}
	im.materials = f.GetMaterials()
	im.baseDir = filepath.Dir(im.fileName)
	im.texId = 0

	// go-3ds copies names out of fixed C buffers, NUL padding included.
	nodes := make(map[string]*tds.MeshInstanceNode)
	for _, nd := range f.GetMeshInstanceNode() {
		if name := cString([]byte(nd.InstanceName)); name != "" {
			nodes[name] = nd
		}
	}

	mesh := mst.NewMesh()
	bbox := dvec3.MinBox
	instances := make(map[string]*mst.InstanceMesh)
	var order []string

	for i := range meshes {
		m := &meshes[i]
		name := cString([]byte(m.Name))
		node, instanced := nodes[name]
		if !instanced {
			bbox.Join(im.convertMesh(m, mesh))
			continue
		}
		inst, ok := instances[name]
		if !ok {
			// instance meshes number their textures from zero
			im.savedTex, im.texId = im.texId, 0
			instMesh := mst.NewMesh()
			bx := im.convertMesh(m, instMesh)
			inst = &mst.InstanceMesh{BBox: bx.Array(), Mesh: &instMesh.BaseMesh}
			instances[name] = inst
			order = append(order, name)
			im.texId = im.savedTex
		}
		mat := nodeTransform(node)
		inst.Transfors = append(inst.Transfors, mat)
		bbox.Join(transformBox(inst.BBox, mat))
	}
	for _, name := range order {
		mesh.InstanceNode = append(mesh.InstanceNode, instances[name])
	}
	return mesh, bbox.Array(), nil
}

const (
	mainChunkID     = 0x4D4D
	chunkHeaderSize = 6
)

// check3DSHeader requires a regular file that starts with the main chunk and
// whose declared chunk length fits in the file.
func check3DSHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open 3ds file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("open 3ds file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrInvalid3DS, path)
	}
	var hdr [chunkHeaderSize]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return fmt.Errorf("%w: %s: short header", ErrInvalid3DS, path)
	}
	if id := binary.LittleEndian.Uint16(hdr[0:2]); id != mainChunkID {
		return fmt.Errorf("%w: %s: chunk id 0x%04X", ErrInvalid3DS, path, id)
	}
	length := binary.LittleEndian.Uint32(hdr[2:6])
	if length < chunkHeaderSize || int64(length) > info.Size() {
		return fmt.Errorf("%w: %s: chunk length %d, file size %d", ErrInvalid3DS, path, length, info.Size())
	}
	return nil
}

func (im *ThreeDSImporter) convertMesh(m *tds.Mesh, out *mst.Mesh) *dvec3.Box {
	bbox := dvec3.MinBox
	node := &mst.MeshNode{}
	mat := dmat.Ident
	for i, row := range m.Matrix {
		mat[i] = dvec4.T{float64(row[0]), float64(row[1]), float64(row[2]), float64(row[3])}
	}

	for _, v := range m.Vertices {
		p := &dvec3.T{float64(v[0]), float64(v[1]), float64(v[2])}
		*p = mat.MulVec3(p)
		bbox.Extend(p)
		node.Vertices = append(node.Vertices, vec3.T{float32(p[0]), float32(p[1]), float32(p[2])})
	}
	for _, uv := range m.Texcos {
		node.TexCoords = append(node.TexCoords, vec2.T{uv[0], uv[1]})
	}

	groups := make(map[int32]*mst.MeshTriangle)
	for _, face := range m.Faces {
		group, ok := groups[face.Material]
		if !ok {
			group = &mst.MeshTriangle{Batchid: int32(len(out.Materials))}
			groups[face.Material] = group
			node.FaceGroup = append(node.FaceGroup, group)
			out.Materials = append(out.Materials, im.convertMaterial(face.Material))
		}
		group.Faces = append(group.Faces, &mst.Face{
			Vertex: [3]uint32{uint32(face.Index[0]), uint32(face.Index[1]), uint32(face.Index[2])},
		})
	}
	out.Nodes = append(out.Nodes, node)
	return &bbox
}

func (im *ThreeDSImporter) convertMaterial(index int32) mst.MeshMaterial {
	if index < 0 || int(index) >= len(im.materials) {
		return &mst.BaseMaterial{Color: defaultColor}
	}
	m := &im.materials[index]

	phong := &mst.PhongMaterial{}
	phong.Color = colorBytes(m.Diffuse[:])
	phong.Transparency = m.Transparency
	phong.Ambient = colorBytes(m.Ambient[:])
	phong.Specular = colorBytes(m.Specular[:])
	phong.Shininess = m.Shininess

	texName := cString(m.Texture1Map.Name[:])
	if texName == "" {
		return phong
	}
	tex, err := convertTex(filepath.Join(im.baseDir, texName), im.texId)
	if err != nil {
		// a missing texture leaves the material untextured
		return phong
	}
	im.texId++
	phong.Texture = tex
	return phong
}

func nodeTransform(nd *tds.MeshInstanceNode) *dmat.T {
	m := &dmat.T{}
	q := quat.FromVec4(&dvec4.T{float64(nd.Rot[0]), float64(nd.Rot[1]), float64(nd.Rot[2]), float64(nd.Rot[3])})
	t := &dvec3.T{float64(nd.Pos[0]), float64(nd.Pos[1]), float64(nd.Pos[2])}
	s := &dvec3.T{float64(nd.Scl[0]), float64(nd.Scl[1]), float64(nd.Scl[2])}
	m.AssignQuaternion(&q)
	m.ScaleVec3(s)
	m.Translate(t)
	return m
}

func cString(b []byte) string {
	for i := range b {
		if b[i] == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

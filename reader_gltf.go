package readers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/flywave/gltf"
	"github.com/flywave/gltf/modeler"
	mst "github.com/flywave/go-mst"
	dmat "github.com/flywave/go3d/float64/mat4"
	quat "github.com/flywave/go3d/float64/quaternion"
	dvec3 "github.com/flywave/go3d/float64/vec3"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

const gpuInstancing = "EXT_mesh_gpu_instancing"

type GLTFReader struct{}

func (GLTFReader) Name() string { return "GLTFReader" }

func (GLTFReader) ShortDescription() string { return "GLTF files reader" }

func (GLTFReader) Extensions() []string { return extensionsOf(".gltf", ".glb") }

func (GLTFReader) CreateSceneReader(fileName string) SceneReader {
	importer := &GLTFImporter{}
	importer.SetFileName(fileName)
	return importer
}

// GLTFImporter imports glTF 2.0 text and binary files. A mesh placed by a
// single node is baked into the top level mesh with its world transform; a
// mesh placed by several nodes, or through EXT_mesh_gpu_instancing, becomes
// one mst.InstanceMesh carrying every placement.
type GLTFImporter struct {
	fileName string

	doc     *gltf.Document
	baseDir string
	texId   int
}

func (im *GLTFImporter) FileName() string { return im.fileName }

func (im *GLTFImporter) SetFileName(fileName string) { im.fileName = fileName }

func (im *GLTFImporter) Import() (*mst.Mesh, *[6]float64, error) {
	doc, err := gltf.Open(im.fileName)
	if err != nil {
		return nil, nil, fmt.Errorf("open gltf file %s: %w", im.fileName, err)
	}
	im.doc = doc
	im.baseDir = filepath.Dir(im.fileName)
	im.texId = 0

	placements, order, err := im.collectPlacements()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", im.fileName, err)
	}

	mesh := mst.NewMesh()
	bbox := dvec3.MinBox
	for _, id := range order {
		pl := placements[id]
		if !pl.instanced && len(pl.transforms) == 1 {
			bx, err := im.convertMesh(mesh, id, pl.transforms[0])
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", im.fileName, err)
			}
			if bx != nil {
				bbox.Join(bx)
			}
			continue
		}

		instMesh := mst.NewMesh()
		bx, err := im.convertMesh(instMesh, id, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", im.fileName, err)
		}
		if bx == nil {
			continue
		}
		inst := &mst.InstanceMesh{BBox: bx.Array(), Mesh: &instMesh.BaseMesh, Transfors: pl.transforms}
		for _, m := range pl.transforms {
			bbox.Join(transformBox(inst.BBox, m))
		}
		mesh.InstanceNode = append(mesh.InstanceNode, inst)
	}
	if len(mesh.Nodes) == 0 && len(mesh.InstanceNode) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", im.fileName, ErrEmptyScene)
	}
	return mesh, bbox.Array(), nil
}

type meshPlacement struct {
	transforms []*dmat.T
	instanced  bool
}

// collectPlacements walks the default scene depth first and records the
// world transform of every mesh reference, meshes in first-visit order.
func (im *GLTFImporter) collectPlacements() (map[uint32]*meshPlacement, []uint32, error) {
	doc := im.doc
	placements := make(map[uint32]*meshPlacement)
	var order []uint32
	onPath := make(map[uint32]bool)

	var walk func(idx uint32, parent *dmat.T) error
	walk = func(idx uint32, parent *dmat.T) error {
		if int(idx) >= len(doc.Nodes) {
			return fmt.Errorf("gltf node %d out of range", idx)
		}
		if onPath[idx] {
			return fmt.Errorf("gltf node %d is its own ancestor", idx)
		}
		onPath[idx] = true
		defer delete(onPath, idx)

		nd := doc.Nodes[idx]
		world := dmat.Ident
		world.AssignMul(parent, localMatrix(nd))

		if nd.Mesh != nil && int(*nd.Mesh) < len(doc.Meshes) {
			pl, ok := placements[*nd.Mesh]
			if !ok {
				pl = &meshPlacement{}
				placements[*nd.Mesh] = pl
				order = append(order, *nd.Mesh)
			}
			if ext, ok := nd.Extensions[gpuInstancing]; ok {
				locals, err := im.instanceTransforms(ext)
				if err != nil {
					return fmt.Errorf("gltf node %d: %w", idx, err)
				}
				pl.instanced = true
				for _, local := range locals {
					m := dmat.Ident
					m.AssignMul(&world, local)
					pl.transforms = append(pl.transforms, &m)
				}
			} else {
				w := world
				pl.transforms = append(pl.transforms, &w)
			}
		}
		for _, child := range nd.Children {
			if err := walk(child, &world); err != nil {
				return err
			}
		}
		return nil
	}

	root := dmat.Ident
	for _, idx := range im.rootNodes() {
		if err := walk(idx, &root); err != nil {
			return nil, nil, err
		}
	}
	return placements, order, nil
}

// rootNodes returns the nodes of the default scene, or every parentless node
// when the file declares no scene.
func (im *GLTFImporter) rootNodes() []uint32 {
	doc := im.doc
	if len(doc.Scenes) > 0 {
		s := 0
		if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
			s = int(*doc.Scene)
		}
		return doc.Scenes[s].Nodes
	}
	child := make(map[uint32]bool)
	for _, nd := range doc.Nodes {
		for _, c := range nd.Children {
			child[c] = true
		}
	}
	var roots []uint32
	for i := range doc.Nodes {
		if !child[uint32(i)] {
			roots = append(roots, uint32(i))
		}
	}
	return roots
}

func localMatrix(nd *gltf.Node) *dmat.T {
	if m := nd.MatrixOrDefault(); m != gltf.DefaultMatrix {
		var arr [16]float64
		for i, v := range m {
			arr[i] = float64(v)
		}
		mt := dmat.FromArray(arr)
		return &mt
	}
	return composeTRS(nd.TranslationOrDefault(), nd.RotationOrDefault(), nd.ScaleOrDefault())
}

func composeTRS(t [3]float32, r [4]float32, s [3]float32) *dmat.T {
	tr := dvec3.T{float64(t[0]), float64(t[1]), float64(t[2])}
	rot := quat.T{float64(r[0]), float64(r[1]), float64(r[2]), float64(r[3])}
	sc := dvec3.T{float64(s[0]), float64(s[1]), float64(s[2])}
	return dmat.Compose(&tr, &rot, &sc)
}

type gpuInstancingExt struct {
	Attributes map[string]uint32 `json:"attributes"`
}

// instanceTransforms reads the per-instance TRS accessors of an
// EXT_mesh_gpu_instancing extension. Missing attributes take their defaults.
func (im *GLTFImporter) instanceTransforms(ext interface{}) ([]*dmat.T, error) {
	raw, err := json.Marshal(ext)
	if err != nil {
		return nil, err
	}
	var inst gpuInstancingExt
	if err := json.Unmarshal(raw, &inst); err != nil {
		return nil, fmt.Errorf("%s: %w", gpuInstancing, err)
	}

	var (
		translations, scales [][3]float32
		rotations            [][4]float32
	)
	for name, idx := range inst.Attributes {
		acr, err := im.accessor(idx)
		if err != nil {
			return nil, err
		}
		data, err := modeler.ReadAccessor(im.doc, acr, nil)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", gpuInstancing, name, err)
		}
		var ok bool
		switch name {
		case "TRANSLATION":
			translations, ok = data.([][3]float32)
		case "SCALE":
			scales, ok = data.([][3]float32)
		case "ROTATION":
			rotations, ok = data.([][4]float32)
		default:
			ok = true
		}
		if !ok {
			return nil, fmt.Errorf("%s %s: unsupported accessor layout", gpuInstancing, name)
		}
	}

	n := max(len(translations), len(scales), len(rotations))
	out := make([]*dmat.T, 0, n)
	for i := 0; i < n; i++ {
		t, r, s := [3]float32{}, gltf.DefaultRotation, gltf.DefaultScale
		if i < len(translations) {
			t = translations[i]
		}
		if i < len(rotations) {
			r = rotations[i]
		}
		if i < len(scales) {
			s = scales[i]
		}
		out = append(out, composeTRS(t, r, s))
	}
	return out, nil
}

func (im *GLTFImporter) accessor(idx uint32) (*gltf.Accessor, error) {
	if int(idx) >= len(im.doc.Accessors) {
		return nil, fmt.Errorf("gltf accessor %d out of range", idx)
	}
	acr := im.doc.Accessors[idx]
	if acr.BufferView == nil && acr.Sparse == nil {
		return nil, fmt.Errorf("gltf accessor %d has no data", idx)
	}
	return acr, nil
}

// convertMesh appends one node holding every triangle primitive of the mesh.
// world, when set, is baked into positions and normals are recomputed. It
// returns nil when the mesh has no triangles.
func (im *GLTFImporter) convertMesh(out *mst.Mesh, id uint32, world *dmat.T) (*dvec3.Box, error) {
	gm := im.doc.Meshes[id]
	node := &mst.MeshNode{}
	bbox := dvec3.MinBox
	materials := make(map[int]int32)
	hasNormals, hasUVs, hasColors := world == nil, false, false

	for p, prim := range gm.Primitives {
		posIdx, ok := prim.Attributes["POSITION"]
		if !ok || prim.Mode != gltf.PrimitiveTriangles {
			continue
		}
		acr, err := im.accessor(posIdx)
		if err != nil {
			return nil, err
		}
		positions, err := modeler.ReadPosition(im.doc, acr, nil)
		if err != nil {
			return nil, fmt.Errorf("mesh %d primitive %d position: %w", id, p, err)
		}
		count := len(positions)
		base := uint32(len(node.Vertices))
		for _, pos := range positions {
			v := dvec3.T{float64(pos[0]), float64(pos[1]), float64(pos[2])}
			if world != nil {
				v = world.MulVec3(&v)
			}
			bbox.Extend(&v)
			node.Vertices = append(node.Vertices, vec3.T{float32(v[0]), float32(v[1]), float32(v[2])})
		}

		normals := im.readNormals(prim, count)
		if normals == nil {
			hasNormals = false
			normals = make([][3]float32, count)
		}
		for _, n := range normals {
			node.Normals = append(node.Normals, vec3.T(n))
		}

		uvs := im.readTexCoords(prim, count)
		repeated := false
		if uvs != nil {
			hasUVs = true
		} else {
			uvs = make([][2]float32, count)
		}
		for _, uv := range uvs {
			node.TexCoords = append(node.TexCoords, vec2.T(uv))
			repeated = repeated || uv[0] > 1.1 || uv[1] > 1.1 || uv[0] < 0 || uv[1] < 0
		}

		colors := im.readColors(prim, count)
		if colors != nil {
			hasColors = true
		}
		for i := 0; i < count; i++ {
			c := [3]byte{255, 255, 255}
			if colors != nil {
				c = [3]byte{colors[i][0], colors[i][1], colors[i][2]}
			}
			node.Colors = append(node.Colors, c)
		}

		indices, err := im.readIndices(prim, count)
		if err != nil {
			return nil, fmt.Errorf("mesh %d primitive %d indices: %w", id, p, err)
		}
		group := &mst.MeshTriangle{Batchid: im.convertMaterial(out, prim.Material, repeated, materials)}
		for i := 0; i+2 < len(indices); i += 3 {
			a, b, c := indices[i], indices[i+1], indices[i+2]
			if int(a) >= count || int(b) >= count || int(c) >= count {
				return nil, fmt.Errorf("mesh %d primitive %d: index out of range", id, p)
			}
			group.Faces = append(group.Faces, &mst.Face{Vertex: [3]uint32{base + a, base + b, base + c}})
		}
		node.FaceGroup = append(node.FaceGroup, group)
	}
	if len(node.FaceGroup) == 0 {
		return nil, nil
	}

	if !hasUVs {
		node.TexCoords = nil
	}
	if !hasColors {
		node.Colors = nil
	}
	if !hasNormals {
		node.Normals = nil
		node.ReComputeNormal()
	}
	out.Nodes = append(out.Nodes, node)
	return &bbox, nil
}

func (im *GLTFImporter) readIndices(prim *gltf.Primitive, count int) ([]uint32, error) {
	if prim.Indices == nil {
		indices := make([]uint32, count)
		for i := range indices {
			indices[i] = uint32(i)
		}
		return indices, nil
	}
	acr, err := im.accessor(*prim.Indices)
	if err != nil {
		return nil, err
	}
	return modeler.ReadIndices(im.doc, acr, nil)
}

// readNormals, readTexCoords and readColors return nil when the attribute is
// absent or does not line up with the positions.
func (im *GLTFImporter) readNormals(prim *gltf.Primitive, count int) [][3]float32 {
	idx, ok := prim.Attributes["NORMAL"]
	if !ok {
		return nil
	}
	acr, err := im.accessor(idx)
	if err != nil {
		return nil
	}
	normals, err := modeler.ReadNormal(im.doc, acr, nil)
	if err != nil || len(normals) != count {
		return nil
	}
	return normals
}

func (im *GLTFImporter) readTexCoords(prim *gltf.Primitive, count int) [][2]float32 {
	idx, ok := prim.Attributes["TEXCOORD_0"]
	if !ok {
		return nil
	}
	acr, err := im.accessor(idx)
	if err != nil {
		return nil
	}
	uvs, err := modeler.ReadTextureCoord(im.doc, acr, nil)
	if err != nil || len(uvs) != count {
		return nil
	}
	return uvs
}

func (im *GLTFImporter) readColors(prim *gltf.Primitive, count int) [][4]uint8 {
	idx, ok := prim.Attributes["COLOR_0"]
	if !ok {
		return nil
	}
	acr, err := im.accessor(idx)
	if err != nil {
		return nil
	}
	colors, err := modeler.ReadColor(im.doc, acr, nil)
	if err != nil || len(colors) != count {
		return nil
	}
	return colors
}

// convertMaterial converts a glTF material once per output mesh. Primitives
// without a material get the glTF default: white, fully metallic and rough.
func (im *GLTFImporter) convertMaterial(out *mst.Mesh, matIdx *uint32, repeated bool, cache map[int]int32) int32 {
	key := -1
	if matIdx != nil && int(*matIdx) < len(im.doc.Materials) {
		key = int(*matIdx)
	}
	if idx, ok := cache[key]; ok {
		return idx
	}
	idx := int32(len(out.Materials))
	cache[key] = idx

	mtl := &mst.PbrMaterial{Metallic: 1, Roughness: 1}
	mtl.Color = [3]byte{255, 255, 255}
	if key < 0 {
		out.Materials = append(out.Materials, mtl)
		return idx
	}

	mt := im.doc.Materials[key]
	if pbr := mt.PBRMetallicRoughness; pbr != nil {
		c := pbr.BaseColorFactorOrDefault()
		mtl.Color = colorBytes(c[:3])
		mtl.Transparency = 1 - c[3]
		mtl.Metallic = pbr.MetallicFactorOrDefault()
		mtl.Roughness = pbr.RoughnessFactorOrDefault()
		if pbr.BaseColorTexture != nil {
			if tex := im.texture(pbr.BaseColorTexture.Index); tex != nil {
				tex.Repeated = repeated
				mtl.Texture = tex
			}
		}
	}
	if mt.NormalTexture != nil && mt.NormalTexture.Index != nil {
		if tex := im.texture(*mt.NormalTexture.Index); tex != nil {
			tex.Repeated = repeated
			mtl.Normal = tex
		}
	}
	mtl.Emissive = colorBytes(mt.EmissiveFactor[:])
	out.Materials = append(out.Materials, mtl)
	return idx
}

// texture decodes the image behind a glTF texture from a buffer view, a data
// URI or a file next to the document. Undecodable images yield nil.
func (im *GLTFImporter) texture(index uint32) *mst.Texture {
	doc := im.doc
	if int(index) >= len(doc.Textures) || doc.Textures[index].Source == nil {
		return nil
	}
	src := *doc.Textures[index].Source
	if int(src) >= len(doc.Images) {
		return nil
	}
	img := doc.Images[src]

	var (
		tex *mst.Texture
		err error
	)
	switch {
	case img.BufferView != nil:
		if int(*img.BufferView) >= len(doc.BufferViews) {
			return nil
		}
		var data []byte
		if data, err = modeler.ReadBufferView(doc, doc.BufferViews[*img.BufferView]); err == nil {
			tex, err = decodeTexture(data, strings.TrimPrefix(img.MimeType, "image/"), im.texId)
		}
	case img.IsEmbeddedResource():
		var data []byte
		if data, err = img.MarshalData(); err == nil {
			mime, _, _ := strings.Cut(strings.TrimPrefix(img.URI, "data:"), ";")
			tex, err = decodeTexture(data, strings.TrimPrefix(mime, "image/"), im.texId)
		}
	case img.URI != "":
		name, uerr := url.PathUnescape(img.URI)
		if uerr != nil {
			name = img.URI
		}
		tex, err = convertTex(filepath.Join(im.baseDir, filepath.FromSlash(name)), im.texId)
	}
	if err != nil || tex == nil {
		return nil
	}
	im.texId++
	return tex
}

func decodeTexture(data []byte, ext string, texId int) (*mst.Texture, error) {
	img, err := decodeImage(bytes.NewReader(data), ext)
	if err != nil {
		return nil, err
	}
	return newTexture(img, texId), nil
}

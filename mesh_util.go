package readers

import (
	mst "github.com/flywave/go-mst"
	dmat "github.com/flywave/go3d/float64/mat4"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/flywave/go3d/vec3"
)

var defaultColor = [3]byte{200, 200, 200}

func colorBytes(c []float32) [3]byte {
	if len(c) < 3 {
		return [3]byte{255, 255, 255}
	}
	return [3]byte{unitToByte(c[0]), unitToByte(c[1]), unitToByte(c[2])}
}

func unitToByte(v float32) byte {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return byte(v * 255)
}

// outlineMesh builds a closed box over bx, twelve triangles on eight corners.
func outlineMesh(bx *dvec3.Box) *mst.Mesh {
	lo, hi := bx.Min, bx.Max
	corner := func(x, y, z float64) vec3.T { return vec3.T{float32(x), float32(y), float32(z)} }

	node := &mst.MeshNode{
		Vertices: []vec3.T{
			corner(lo[0], lo[1], lo[2]),
			corner(hi[0], lo[1], lo[2]),
			corner(hi[0], hi[1], lo[2]),
			corner(lo[0], hi[1], lo[2]),
			corner(lo[0], lo[1], hi[2]),
			corner(hi[0], lo[1], hi[2]),
			corner(hi[0], hi[1], hi[2]),
			corner(lo[0], hi[1], hi[2]),
		},
	}
	group := &mst.MeshTriangle{Batchid: 0}
	for _, f := range [][3]uint32{
		{0, 2, 1}, {0, 3, 2}, // bottom
		{4, 5, 6}, {4, 6, 7}, // top
		{0, 1, 5}, {0, 5, 4},
		{1, 2, 6}, {1, 6, 5},
		{2, 3, 7}, {2, 7, 6},
		{3, 0, 4}, {3, 4, 7},
	} {
		group.Faces = append(group.Faces, &mst.Face{Vertex: f})
	}
	node.FaceGroup = append(node.FaceGroup, group)

	mesh := mst.NewMesh()
	mesh.Materials = append(mesh.Materials, &mst.BaseMaterial{Color: defaultColor})
	mesh.Nodes = append(mesh.Nodes, node)
	return mesh
}

func faceNormal(v0, v1, v2 vec3.T) vec3.T {
	e1 := vec3.Sub(&v1, &v0)
	e2 := vec3.Sub(&v2, &v0)
	n := vec3.Cross(&e1, &e2)
	if l := n.Length(); l > 0 {
		return vec3.T{n[0] / l, n[1] / l, n[2] / l}
	}
	return vec3.T{0, 1, 0}
}

func extendBox(bx *dvec3.Box, v vec3.T) {
	bx.Extend(&dvec3.T{float64(v[0]), float64(v[1]), float64(v[2])})
}

// transformBox returns the box around the eight corners of bx moved by m.
func transformBox(bx *[6]float64, m *dmat.T) *dvec3.Box {
	out := dvec3.MinBox
	for i := 0; i < 8; i++ {
		p := dvec3.T{bx[(i&1)*3], bx[1+(i>>1&1)*3], bx[2+(i>>2&1)*3]}
		p = m.MulVec3(&p)
		out.Extend(&p)
	}
	return &out
}

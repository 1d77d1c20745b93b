// Package readers provides the file-format reader adapters of the viewer.
//
// A Reader only describes a format. Readers that can build something also
// implement SceneReaderFactory, GeometryReaderFactory or both; the Factory
// discovers those capabilities by type assertion.
package readers

import (
	mst "github.com/flywave/go-mst"
)

type Reader interface {
	Name() string
	ShortDescription() string
	// Extensions returns lowercase extensions including the leading dot.
	Extensions() []string
}

type SceneReaderFactory interface {
	Reader
	// CreateSceneReader returns a new importer configured with fileName.
	// The file is not touched until Import is called.
	CreateSceneReader(fileName string) SceneReader
}

type GeometryReaderFactory interface {
	Reader
	// CreateGeometryReader returns a new geometry reader configured with
	// fileName. The file is not touched until Update is called.
	CreateGeometryReader(fileName string) GeometryReader
}

// SceneReader imports a whole scene: meshes, materials and instances.
type SceneReader interface {
	FileName() string
	SetFileName(fileName string)
	Import() (*mst.Mesh, *[6]float64, error)
}

// GeometryReader produces a single geometry without scene information.
type GeometryReader interface {
	FileName() string
	SetFileName(fileName string)
	Update() (*mst.Mesh, *[6]float64, error)
}

func extensionsOf(ext ...string) []string {
	out := make([]string, len(ext))
	copy(out, ext)
	return out
}

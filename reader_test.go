package readers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestReaderMetadata(t *testing.T) {
	tests := []struct {
		reader      Reader
		name        string
		description string
		extensions  []string
	}{
		{ThreeDSReader{}, "3DSReader", "3DS files reader", []string{".3ds"}},
		{MetaImageReader{}, "MetaImageReader", "MetaImage files reader", []string{".mha", ".mhd"}},
		{OBJReader{}, "OBJReader", "Wavefront OBJ files reader", []string{".obj"}},
		{FBXReader{}, "FBXReader", "FBX files reader", []string{".fbx"}},
		{GLTFReader{}, "GLTFReader", "GLTF files reader", []string{".gltf", ".glb"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.reader.Name())
			assert.Equal(t, tt.description, tt.reader.ShortDescription())
			for i := 0; i < 3; i++ {
				assert.Equal(t, tt.extensions, tt.reader.Extensions())
			}
		})
	}
}

func TestExtensionsAreNotShared(t *testing.T) {
	r := MetaImageReader{}
	ext := r.Extensions()
	ext[0] = ".png"
	assert.Equal(t, []string{".mha", ".mhd"}, r.Extensions())
}

func TestCapabilities(t *testing.T) {
	var r Reader = ThreeDSReader{}
	_, scene := r.(SceneReaderFactory)
	_, geometry := r.(GeometryReaderFactory)
	assert.True(t, scene)
	assert.False(t, geometry)

	r = MetaImageReader{}
	_, scene = r.(SceneReaderFactory)
	_, geometry = r.(GeometryReaderFactory)
	assert.False(t, scene)
	assert.True(t, geometry)

	r = OBJReader{}
	_, scene = r.(SceneReaderFactory)
	_, geometry = r.(GeometryReaderFactory)
	assert.True(t, scene)
	assert.True(t, geometry)
}

func TestCreateSceneReaderKeepsPath(t *testing.T) {
	factories := []SceneReaderFactory{ThreeDSReader{}, OBJReader{}, FBXReader{}, GLTFReader{}}
	rapid.Check(t, func(t *rapid.T) {
		path := rapid.String().Draw(t, "path")
		for _, f := range factories {
			sr := f.CreateSceneReader(path)
			if sr.FileName() != path {
				t.Fatalf("%s: file name %q, want %q", f.Name(), sr.FileName(), path)
			}
		}
	})
}

func TestCreateGeometryReaderKeepsPath(t *testing.T) {
	factories := []GeometryReaderFactory{MetaImageReader{}, OBJReader{}}
	rapid.Check(t, func(t *rapid.T) {
		path := rapid.String().Draw(t, "path")
		for _, f := range factories {
			gr := f.CreateGeometryReader(path)
			if gr.FileName() != path {
				t.Fatalf("%s: file name %q, want %q", f.Name(), gr.FileName(), path)
			}
		}
	})
}

func TestFactoriesReturnIndependentInstances(t *testing.T) {
	a := ThreeDSReader{}.CreateSceneReader("scene.3ds")
	b := ThreeDSReader{}.CreateSceneReader("scene.3ds")
	require.NotSame(t, a.(*ThreeDSImporter), b.(*ThreeDSImporter))

	a.SetFileName("other.3ds")
	assert.Equal(t, "other.3ds", a.FileName())
	assert.Equal(t, "scene.3ds", b.FileName())

	g1 := MetaImageReader{}.CreateGeometryReader("head.mha")
	g2 := MetaImageReader{}.CreateGeometryReader("head.mha")
	require.NotSame(t, g1.(*MetaImageGeometryReader), g2.(*MetaImageGeometryReader))

	g1.SetFileName("brain.mhd")
	assert.Equal(t, "head.mha", g2.FileName())
}

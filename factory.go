package readers

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	mst "github.com/flywave/go-mst"
	"go.uber.org/zap"
)

// Factory routes file names to registered readers by extension.
type Factory struct {
	mu      sync.RWMutex
	readers []Reader
	byName  map[string]Reader

	cfg    *Config
	logger *zap.Logger
}

type Option func(*Factory)

func WithLogger(logger *zap.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func WithConfig(cfg *Config) Option {
	return func(f *Factory) {
		if cfg != nil {
			f.cfg = cfg
		}
	}
}

func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		byName: make(map[string]Reader),
		cfg:    DefaultConfig(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// BuiltinReaders returns the readers shipped with this package.
func BuiltinReaders() []Reader {
	return []Reader{
		ThreeDSReader{},
		MetaImageReader{},
		OBJReader{},
		FBXReader{},
		GLTFReader{},
	}
}

// NewDefaultFactory returns a factory with every builtin reader registered.
func NewDefaultFactory(opts ...Option) *Factory {
	f := NewFactory(opts...)
	for _, r := range BuiltinReaders() {
		// builtin names are unique
		_ = f.Register(r)
	}
	return f
}

func (f *Factory) Register(r Reader) error {
	name := r.Name()
	if f.cfg.isDisabled(name) {
		f.logger.Debug("reader disabled by configuration", zap.String("reader", name))
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byName[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateReader, name)
	}
	for _, ext := range r.Extensions() {
		if other := f.lookupLocked(ext); other != nil {
			f.logger.Warn("extension already claimed",
				zap.String("extension", ext),
				zap.String("reader", name),
				zap.String("owner", other.Name()))
		}
	}
	f.readers = append(f.readers, r)
	f.byName[name] = r
	f.logger.Debug("reader registered",
		zap.String("reader", name),
		zap.Strings("extensions", r.Extensions()))
	return nil
}

func (f *Factory) Unregister(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byName[name]; !ok {
		return false
	}
	delete(f.byName, name)
	for i, r := range f.readers {
		if r.Name() == name {
			f.readers = append(f.readers[:i:i], f.readers[i+1:]...)
			break
		}
	}
	return true
}

// Readers returns the registered readers in registration order.
func (f *Factory) Readers() []Reader {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Reader, len(f.readers))
	copy(out, f.readers)
	return out
}

// ReaderFor returns the first registered reader claiming the extension of
// fileName. Matching is case-insensitive.
func (f *Factory) ReaderFor(fileName string) (Reader, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, r := range f.readers {
		if CanRead(r, fileName) {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileName)
}

func (f *Factory) lookupLocked(ext string) Reader {
	for _, r := range f.readers {
		for _, e := range r.Extensions() {
			if strings.EqualFold(e, ext) {
				return r
			}
		}
	}
	return nil
}

// CanRead reports whether one of r's extensions is a suffix of fileName.
func CanRead(r Reader, fileName string) bool {
	base := strings.ToLower(filepath.Base(fileName))
	for _, ext := range r.Extensions() {
		if len(base) > len(ext) && strings.HasSuffix(base, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func (f *Factory) CreateSceneReader(fileName string) (SceneReader, error) {
	r, err := f.ReaderFor(fileName)
	if err != nil {
		return nil, err
	}
	sf, ok := r.(SceneReaderFactory)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSceneReader, r.Name())
	}
	return sf.CreateSceneReader(fileName), nil
}

func (f *Factory) CreateGeometryReader(fileName string) (GeometryReader, error) {
	r, err := f.ReaderFor(fileName)
	if err != nil {
		return nil, err
	}
	gf, ok := r.(GeometryReaderFactory)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoGeometryReader, r.Name())
	}
	return gf.CreateGeometryReader(fileName), nil
}

// Load reads fileName with its scene reader when the matched reader has
// one, with its geometry reader otherwise.
func (f *Factory) Load(fileName string) (*mst.Mesh, *[6]float64, error) {
	start := time.Now()
	var (
		mesh *mst.Mesh
		bbox *[6]float64
		kind string
	)
	sr, err := f.CreateSceneReader(fileName)
	switch {
	case err == nil:
		kind = "scene"
		mesh, bbox, err = sr.Import()
	case errors.Is(err, ErrNoSceneReader):
		var gr GeometryReader
		if gr, err = f.CreateGeometryReader(fileName); err != nil {
			return nil, nil, err
		}
		kind = "geometry"
		mesh, bbox, err = gr.Update()
	default:
		return nil, nil, err
	}
	if err != nil {
		f.logger.Debug("load failed", zap.String("file", fileName), zap.String("kind", kind), zap.Error(err))
		return nil, nil, err
	}
	f.logger.Debug("file loaded",
		zap.String("file", fileName),
		zap.String("kind", kind),
		zap.Int("nodes", len(mesh.Nodes)),
		zap.Duration("elapsed", time.Since(start)))
	return mesh, bbox, nil
}

package readers

import "errors"

var (
	ErrUnsupportedFormat = errors.New("no reader registered for file extension")
	ErrNoSceneReader     = errors.New("reader cannot create a scene reader")
	ErrNoGeometryReader  = errors.New("reader cannot create a geometry reader")
	ErrDuplicateReader   = errors.New("reader already registered")
	ErrInvalidHeader     = errors.New("invalid metaimage header")
	ErrEmptyScene        = errors.New("file contains no geometry")
	ErrInvalid3DS        = errors.New("not a 3ds file")
)

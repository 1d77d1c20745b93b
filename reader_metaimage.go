package readers

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	mst "github.com/flywave/go-mst"
	dvec3 "github.com/flywave/go3d/float64/vec3"
)

type MetaImageReader struct{}

func (MetaImageReader) Name() string { return "MetaImageReader" }

func (MetaImageReader) ShortDescription() string { return "MetaImage files reader" }

func (MetaImageReader) Extensions() []string { return extensionsOf(".mha", ".mhd") }

func (MetaImageReader) CreateGeometryReader(fileName string) GeometryReader {
	reader := &MetaImageGeometryReader{}
	reader.SetFileName(fileName)
	return reader
}

// ImageHeader is the part of a MetaImage header needed to place the volume.
type ImageHeader struct {
	NDims       int
	DimSize     []int
	Spacing     []float64
	Offset      []float64
	ElementType string
	Channels    int
	DataFile    string
	Binary      bool
	Compressed  bool
	MSB         bool
}

// Local reports whether the voxel payload follows the header in the same file.
func (h *ImageHeader) Local() bool {
	return strings.EqualFold(h.DataFile, "LOCAL")
}

// Extent returns the physical bounds of the voxel centers.
func (h *ImageHeader) Extent() *dvec3.Box {
	var lo, hi dvec3.T
	for i := 0; i < h.NDims && i < 3; i++ {
		lo[i] = h.Offset[i]
		hi[i] = h.Offset[i] + float64(h.DimSize[i]-1)*h.Spacing[i]
		if hi[i] < lo[i] {
			lo[i], hi[i] = hi[i], lo[i]
		}
	}
	return &dvec3.Box{Min: lo, Max: hi}
}

// MetaImageGeometryReader reads a .mha/.mhd header and outputs the outline of
// the image volume. Voxel data is left for the volume renderer.
type MetaImageGeometryReader struct {
	fileName string
	header   *ImageHeader
}

func (r *MetaImageGeometryReader) FileName() string { return r.fileName }

func (r *MetaImageGeometryReader) SetFileName(fileName string) {
	r.fileName = fileName
	r.header = nil
}

// Header returns the header parsed by the last successful Update.
func (r *MetaImageGeometryReader) Header() *ImageHeader { return r.header }

func (r *MetaImageGeometryReader) Update() (*mst.Mesh, *[6]float64, error) {
	f, err := os.Open(r.fileName)
	if err != nil {
		return nil, nil, fmt.Errorf("open metaimage file: %w", err)
	}
	defer f.Close()

	h, err := parseImageHeader(bufio.NewScanner(f))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", r.fileName, err)
	}
	if !h.Local() && !strings.EqualFold(h.DataFile, "LIST") && !strings.Contains(h.DataFile, "%") {
		data := h.DataFile
		if !filepath.IsAbs(data) {
			data = filepath.Join(filepath.Dir(r.fileName), data)
		}
		if _, err := os.Stat(data); err != nil {
			return nil, nil, fmt.Errorf("metaimage data file: %w", err)
		}
	}
	r.header = h

	bx := h.Extent()
	return outlineMesh(bx), bx.Array(), nil
}

func parseImageHeader(sc *bufio.Scanner) (*ImageHeader, error) {
	h := &ImageHeader{Channels: 1, Binary: true}
	fields := make(map[string]string)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%w: line %q", ErrInvalidHeader, line)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		fields[key] = value
		// ElementDataFile is always the last header field
		if key == "ElementDataFile" {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	var err error
	if h.NDims, err = strconv.Atoi(fields["NDims"]); err != nil {
		return nil, fmt.Errorf("%w: NDims %q", ErrInvalidHeader, fields["NDims"])
	}
	if h.NDims < 2 || h.NDims > 4 {
		return nil, fmt.Errorf("%w: unsupported NDims %d", ErrInvalidHeader, h.NDims)
	}
	if h.DimSize, err = parseInts(fields["DimSize"], h.NDims); err != nil {
		return nil, fmt.Errorf("%w: DimSize: %v", ErrInvalidHeader, err)
	}
	for _, d := range h.DimSize {
		if d <= 0 {
			return nil, fmt.Errorf("%w: DimSize must be positive", ErrInvalidHeader)
		}
	}

	h.Spacing = ones(h.NDims)
	if s, ok := firstOf(fields, "ElementSpacing", "ElementSize"); ok {
		if h.Spacing, err = parseFloats(s, h.NDims); err != nil {
			return nil, fmt.Errorf("%w: ElementSpacing: %v", ErrInvalidHeader, err)
		}
	}
	h.Offset = make([]float64, h.NDims)
	if s, ok := firstOf(fields, "Offset", "Origin", "Position"); ok {
		if h.Offset, err = parseFloats(s, h.NDims); err != nil {
			return nil, fmt.Errorf("%w: Offset: %v", ErrInvalidHeader, err)
		}
	}
	if s, ok := fields["ElementNumberOfChannels"]; ok {
		if h.Channels, err = strconv.Atoi(s); err != nil || h.Channels < 1 {
			return nil, fmt.Errorf("%w: ElementNumberOfChannels %q", ErrInvalidHeader, s)
		}
	}

	h.ElementType = fields["ElementType"]
	if h.ElementType == "" {
		return nil, fmt.Errorf("%w: missing ElementType", ErrInvalidHeader)
	}
	h.DataFile = fields["ElementDataFile"]
	if h.DataFile == "" {
		return nil, fmt.Errorf("%w: missing ElementDataFile", ErrInvalidHeader)
	}
	if s, ok := fields["BinaryData"]; ok {
		h.Binary = isTrue(s)
	}
	h.Compressed = isTrue(fields["CompressedData"])
	if s, ok := firstOf(fields, "ElementByteOrderMSB", "BinaryDataByteOrderMSB"); ok {
		h.MSB = isTrue(s)
	}
	return h, nil
}

func firstOf(fields map[string]string, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			return v, true
		}
	}
	return "", false
}

func parseInts(s string, n int) ([]int, error) {
	parts := strings.Fields(s)
	if len(parts) != n {
		return nil, fmt.Errorf("want %d values, got %d", n, len(parts))
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Fields(s)
	if len(parts) != n {
		return nil, fmt.Errorf("want %d values, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func isTrue(s string) bool {
	return strings.EqualFold(s, "True") || s == "1"
}

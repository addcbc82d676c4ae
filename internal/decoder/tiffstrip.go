package decoder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/nexdatas/nxstools/internal/nexus"
)

// TIFF tags read by the strip decoder.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagStripByteCounts = 279
	tagTileWidth       = 322
	tagSampleFormat    = 339
)

// stripSource reads uncompressed single-channel TIFF strips whose samples
// x/image/tiff does not decode: 32-bit integers and floats, and signed
// 16-bit integers. Pilatus detectors write int32 frames this way.
type stripSource struct {
	frame
	path      string
	bigEndian bool
	offsets   []uint32
	counts    []uint32
}

func openStripTIFF(path string) (*stripSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tags, order, err := readIFD(data)
	if err != nil {
		return nil, err
	}
	first := func(tag uint16, def uint32) uint32 {
		if v := tags[tag]; len(v) > 0 {
			return v[0]
		}
		return def
	}

	if _, tiled := tags[tagTileWidth]; tiled {
		return nil, errors.New("tiled images are not supported")
	}
	if c := first(tagCompression, 1); c != 1 {
		return nil, fmt.Errorf("compression %d is not supported", c)
	}
	if n := first(tagSamplesPerPixel, 1); n != 1 {
		return nil, fmt.Errorf("%d samples per pixel are not supported", n)
	}
	dtype, err := stripDType(first(tagBitsPerSample, 1), first(tagSampleFormat, 1))
	if err != nil {
		return nil, err
	}
	width, height := first(tagImageWidth, 0), first(tagImageLength, 0)
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("bad image size %dx%d", width, height)
	}
	offsets, counts := tags[tagStripOffsets], tags[tagStripByteCounts]
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return nil, errors.New("bad strip offsets")
	}

	return &stripSource{
		frame:     frame{shape: []int{int(height), int(width)}, dtype: dtype},
		path:      path,
		bigEndian: order == binary.BigEndian,
		offsets:   offsets,
		counts:    counts,
	}, nil
}

func stripDType(bits, format uint32) (nexus.DType, error) {
	switch {
	case bits == 16 && format == 1:
		return nexus.Uint16, nil
	case bits == 16 && format == 2:
		return nexus.Int16, nil
	case bits == 32 && format == 1:
		return nexus.Uint32, nil
	case bits == 32 && format == 2:
		return nexus.Int32, nil
	case bits == 32 && format == 3:
		return nexus.Float32, nil
	}
	return "", fmt.Errorf("%d-bit samples of format %d are not supported", bits, format)
}

// readIFD returns the SHORT and LONG valued tags of the first image file
// directory.
func readIFD(data []byte) (map[uint16][]uint32, binary.ByteOrder, error) {
	if len(data) < 8 {
		return nil, nil, errors.New("malformed header")
	}
	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, nil, errors.New("malformed header")
	}
	if order.Uint16(data[2:]) != 42 {
		return nil, nil, errors.New("malformed header")
	}

	off := uint64(order.Uint32(data[4:]))
	if off+2 > uint64(len(data)) {
		return nil, nil, errors.New("directory offset out of bounds")
	}
	n := uint64(order.Uint16(data[off:]))
	off += 2
	if off+12*n > uint64(len(data)) {
		return nil, nil, errors.New("truncated directory")
	}

	tags := make(map[uint16][]uint32, n)
	for i := uint64(0); i < n; i++ {
		e := data[off+12*i : off+12*i+12]
		tag, typ, count := order.Uint16(e), order.Uint16(e[2:]), uint64(order.Uint32(e[4:]))
		var size uint64
		switch typ {
		case 3: // SHORT
			size = 2
		case 4: // LONG
			size = 4
		default:
			continue
		}
		raw := e[8:12]
		if count*size > 4 {
			p := uint64(order.Uint32(e[8:]))
			if p+count*size > uint64(len(data)) {
				return nil, nil, fmt.Errorf("tag %d out of bounds", tag)
			}
			raw = data[p : p+count*size]
		}
		vals := make([]uint32, count)
		for j := range vals {
			if size == 2 {
				vals[j] = uint32(order.Uint16(raw[2*j:]))
			} else {
				vals[j] = order.Uint32(raw[4*j:])
			}
		}
		tags[tag] = vals
	}
	return tags, order, nil
}

func (s *stripSource) Read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	out := make([]byte, 0, s.size())
	for i, off := range s.offsets {
		end := uint64(off) + uint64(s.counts[i])
		if end > uint64(len(data)) {
			return nil, decodeErr("tiff strip %d out of bounds", i)
		}
		out = append(out, data[off:end]...)
	}
	if len(out) < s.size() {
		return nil, decodeErr("tiff strips hold %d bytes, want %d", len(out), s.size())
	}
	out = out[:s.size()]
	if s.bigEndian {
		n := s.dtype.Size()
		for i := 0; i+n <= len(out); i += n {
			slices.Reverse(out[i : i+n])
		}
	}
	return out, nil
}

func (s *stripSource) Close() error {
	return nil
}

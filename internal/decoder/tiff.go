package decoder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"

	"golang.org/x/image/tiff"

	"github.com/nexdatas/nxstools/internal/nexus"
)

type tiffSource struct {
	frame
	path     string
	channels int
}

func openTIFF(path string) (FrameSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer f.Close()

	cfg, err := tiff.DecodeConfig(f)
	var unsupported tiff.UnsupportedError
	if errors.As(err, &unsupported) {
		src, serr := openStripTIFF(path)
		if serr != nil {
			return nil, decodeErr("tiff header: %v (%v)", err, serr)
		}
		return src, nil
	}
	if err != nil {
		return nil, decodeErr("tiff header: %v", err)
	}

	src := &tiffSource{path: path, channels: 1}
	switch cfg.ColorModel {
	case color.GrayModel:
		src.dtype = nexus.Uint8
	case color.Gray16Model:
		src.dtype = nexus.Uint16
	case color.RGBAModel, color.NRGBAModel:
		src.dtype, src.channels = nexus.Uint8, 4
	case color.RGBA64Model, color.NRGBA64Model:
		src.dtype, src.channels = nexus.Uint16, 4
	default:
		if _, ok := cfg.ColorModel.(color.Palette); !ok {
			return nil, decodeErr("unsupported tiff colour model %T", cfg.ColorModel)
		}
		src.dtype = nexus.Uint8
	}
	src.shape = []int{cfg.Height, cfg.Width}
	if src.channels > 1 {
		src.shape = append(src.shape, src.channels)
	}
	return src, nil
}

func (s *tiffSource) Read() ([]byte, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, decodeErr("tiff data: %v", err)
	}
	b := img.Bounds()
	if b.Dy() != s.shape[0] || b.Dx() != s.shape[1] {
		return nil, decodeErr("tiff size %dx%d differs from header", b.Dx(), b.Dy())
	}

	out := make([]byte, 0, s.size())
	switch m := img.(type) {
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			row := m.Pix[y*m.Stride:]
			out = append(out, row[:b.Dx()]...)
		}
	case *image.Paletted:
		for y := 0; y < b.Dy(); y++ {
			row := m.Pix[y*m.Stride:]
			out = append(out, row[:b.Dx()]...)
		}
	case *image.RGBA:
		for y := 0; y < b.Dy(); y++ {
			row := m.Pix[y*m.Stride:]
			out = append(out, row[:4*b.Dx()]...)
		}
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			row := m.Pix[y*m.Stride:]
			out = append(out, row[:4*b.Dx()]...)
		}
	case *image.Gray16:
		out = swap16(out, m.Pix, m.Stride, b.Dx(), b.Dy(), 1)
	case *image.RGBA64:
		out = swap16(out, m.Pix, m.Stride, b.Dx(), b.Dy(), 4)
	case *image.NRGBA64:
		out = swap16(out, m.Pix, m.Stride, b.Dx(), b.Dy(), 4)
	default:
		return nil, decodeErr("unsupported tiff image type %T", img)
	}
	if len(out) != s.size() {
		return nil, decodeErr("tiff decoded to %d bytes, want %d", len(out), s.size())
	}
	return out, nil
}

func (s *tiffSource) Close() error {
	return nil
}

// swap16 converts big-endian 16-bit samples (the image package layout) to
// little-endian.
func swap16(out, pix []byte, stride, w, h, channels int) []byte {
	for y := 0; y < h; y++ {
		row := pix[y*stride:]
		for i := 0; i < w*channels; i++ {
			out = binary.LittleEndian.AppendUint16(out, binary.BigEndian.Uint16(row[2*i:]))
		}
	}
	return out
}

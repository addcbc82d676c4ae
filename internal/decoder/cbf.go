package decoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/nexdatas/nxstools/internal/nexus"
)

// cbfMarker starts the binary section of a CBF image.
var cbfMarker = []byte{0x0c, 0x1a, 0x04, 0xd5}

const (
	cbfByteOffset = "x-cbf_byte_offset"
	cbfNone       = "x-cbf_none"
)

var cbfElementTypes = map[string]nexus.DType{
	"signed 8-bit integer":    nexus.Int8,
	"unsigned 8-bit integer":  nexus.Uint8,
	"signed 16-bit integer":   nexus.Int16,
	"unsigned 16-bit integer": nexus.Uint16,
	"signed 32-bit integer":   nexus.Int32,
	"unsigned 32-bit integer": nexus.Uint32,
}

type cbfSource struct {
	frame
	conversion string
	elements   int
	data       []byte
}

func openCBF(path string) (FrameSource, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	pos := bytes.Index(content, cbfMarker)
	if pos < 0 {
		return nil, decodeErr("cbf binary section marker not found")
	}
	header := parseCBFHeader(string(content[:pos]))
	return newCBFSource(header, content[pos+len(cbfMarker):])
}

// parseCBFHeader collects the MIME-style keys of the binary section,
// lower-cased, with surrounding quotes removed.
func parseCBFHeader(text string) map[string]string {
	header := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		var key, value string
		if k, v, ok := strings.Cut(line, ":"); ok && strings.HasPrefix(strings.ToLower(k), "x-binary") {
			key, value = k, v
		} else if k, v, ok := strings.Cut(line, "="); ok && strings.EqualFold(strings.TrimSpace(k), "conversions") {
			key, value = k, v
		} else {
			continue
		}
		value = strings.TrimSuffix(strings.TrimSpace(value), ";")
		header[strings.ToLower(strings.TrimSpace(key))] = strings.Trim(value, `"`)
	}
	return header
}

func newCBFSource(header map[string]string, body []byte) (*cbfSource, error) {
	fastest, err := cbfInt(header, "x-binary-size-fastest-dimension")
	if err != nil {
		return nil, err
	}
	second, err := cbfInt(header, "x-binary-size-second-dimension")
	if err != nil {
		return nil, err
	}

	elemType := strings.ToLower(header["x-binary-element-type"])
	dtype, ok := cbfElementTypes[elemType]
	if !ok {
		return nil, decodeErr("unsupported cbf element type %q", header["x-binary-element-type"])
	}
	if order, ok := header["x-binary-element-byte-order"]; ok && !strings.EqualFold(order, "LITTLE_ENDIAN") {
		return nil, decodeErr("unsupported cbf byte order %q", order)
	}

	conversion := strings.ToLower(header["conversions"])
	if conversion == "" {
		conversion = cbfByteOffset
	}
	if conversion != cbfByteOffset && conversion != cbfNone {
		return nil, decodeErr("unsupported cbf compression %q", header["conversions"])
	}

	elements := fastest * second
	if n, ok := header["x-binary-number-of-elements"]; ok {
		elements, err = strconv.Atoi(n)
		if err != nil {
			return nil, decodeErr("bad X-Binary-Number-of-Elements %q", n)
		}
		if elements != fastest*second {
			return nil, decodeErr("cbf has %d elements for a %dx%d image", elements, second, fastest)
		}
	}

	if size, ok := header["x-binary-size"]; ok {
		n, err := strconv.Atoi(size)
		if err != nil || n < 0 {
			return nil, decodeErr("bad X-Binary-Size %q", size)
		}
		if n > len(body) {
			return nil, decodeErr("cbf binary section truncated: %d of %d bytes", len(body), n)
		}
		body = body[:n]
	}

	return &cbfSource{
		frame:      frame{shape: []int{second, fastest}, dtype: dtype},
		conversion: conversion,
		elements:   elements,
		data:       body,
	}, nil
}

func cbfInt(header map[string]string, key string) (int, error) {
	v, ok := header[key]
	if !ok {
		return 0, decodeErr("cbf header lacks %s", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, decodeErr("bad cbf %s %q", key, v)
	}
	return n, nil
}

func (s *cbfSource) Read() ([]byte, error) {
	if s.conversion == cbfNone {
		if len(s.data) < s.size() {
			return nil, decodeErr("cbf data truncated: %d of %d bytes", len(s.data), s.size())
		}
		return append([]byte(nil), s.data[:s.size()]...), nil
	}

	values, err := byteOffsetDecode(s.data, s.elements)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, s.size())
	for _, v := range values {
		switch s.dtype {
		case nexus.Int8, nexus.Uint8:
			out = append(out, byte(v))
		case nexus.Int16, nexus.Uint16:
			out = binary.LittleEndian.AppendUint16(out, uint16(v))
		default:
			out = binary.LittleEndian.AppendUint32(out, uint32(v))
		}
	}
	return out, nil
}

func (s *cbfSource) Close() error {
	s.data = nil
	return nil
}

// byteOffsetDecode expands x-CBF_BYTE_OFFSET data: each value is the previous
// one plus a delta stored in 1 byte, escaping to 2, 4 and 8 bytes on the
// minimum value of the narrower width.
func byteOffsetDecode(data []byte, n int) ([]int64, error) {
	values := make([]int64, 0, n)
	var cur int64
	pos := 0
	for len(values) < n {
		if pos >= len(data) {
			return nil, decodeErr("cbf data truncated after %d of %d elements", len(values), n)
		}
		delta := int64(int8(data[pos]))
		pos++
		if delta == math.MinInt8 {
			if pos+2 > len(data) {
				return nil, decodeErr("cbf data truncated")
			}
			delta = int64(int16(binary.LittleEndian.Uint16(data[pos:])))
			pos += 2
			if delta == math.MinInt16 {
				if pos+4 > len(data) {
					return nil, decodeErr("cbf data truncated")
				}
				delta = int64(int32(binary.LittleEndian.Uint32(data[pos:])))
				pos += 4
				if delta == math.MinInt32 {
					if pos+8 > len(data) {
						return nil, decodeErr("cbf data truncated")
					}
					delta = int64(binary.LittleEndian.Uint64(data[pos:]))
					pos += 8
				}
			}
		}
		cur += delta
		values = append(values, cur)
	}
	return values, nil
}

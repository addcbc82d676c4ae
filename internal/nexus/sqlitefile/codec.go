package sqlitefile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Compression is the codec applied to stored slabs.
// NOTE: it shares a byte with the checksum flag, so at most 8 codecs fit.
type Compression uint8

const (
	Uncompressed Compression = 0
	Snappy       Compression = 1
	Zstd         Compression = 2
)

func (c Compression) String() string {
	switch c {
	case Uncompressed:
		return "none"
	case Snappy:
		return "snappy"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseCompression maps a configuration value to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "off":
		return Uncompressed, nil
	case "snappy":
		return Snappy, nil
	case "zstd":
		return Zstd, nil
	default:
		return Uncompressed, fmt.Errorf("unknown compression %q (want none, snappy or zstd)", name)
	}
}

const crcFlag = 0x08

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

func zstdCodec() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil)
		if zstdErr != nil {
			return
		}
		zstdDec, zstdErr = zstd.NewReader(nil)
	})
	return zstdEnc, zstdDec, zstdErr
}

// encodeSlab serializes a slab as: format byte, CRC32 of the payload, payload.
func encodeSlab(data []byte, compress Compression) ([]byte, error) {
	var payload []byte
	switch compress {
	case Uncompressed:
		payload = data
	case Snappy:
		payload = snappy.Encode(nil, data)
	case Zstd:
		enc, _, err := zstdCodec()
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		payload = enc.EncodeAll(data, nil)
	default:
		return nil, fmt.Errorf("illegal compression %d during serialization", compress)
	}

	var buf bytes.Buffer
	buf.Grow(len(payload) + 5)
	buf.WriteByte(byte(compress)<<4 | crcFlag)
	if err := binary.Write(&buf, binary.LittleEndian, crc32.ChecksumIEEE(payload)); err != nil {
		return nil, err
	}
	buf.Write(payload)
	return buf.Bytes(), nil
}

// decodeSlab reverses encodeSlab, verifying the checksum.
func decodeSlab(s []byte) ([]byte, error) {
	if len(s) < 1 {
		return nil, fmt.Errorf("empty slab record")
	}
	format := s[0]
	compress := Compression(format >> 4)
	payload := s[1:]
	if format&crcFlag != 0 {
		if len(payload) < 4 {
			return nil, fmt.Errorf("truncated slab checksum")
		}
		stored := binary.LittleEndian.Uint32(payload[:4])
		payload = payload[4:]
		if got := crc32.ChecksumIEEE(payload); got != stored {
			return nil, fmt.Errorf("bad slab checksum: stored %x got %x", stored, got)
		}
	}

	switch compress {
	case Uncompressed:
		return payload, nil
	case Snappy:
		return snappy.Decode(nil, payload)
	case Zstd:
		_, dec, err := zstdCodec()
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		return dec.DecodeAll(payload, nil)
	default:
		return nil, fmt.Errorf("illegal compression format (%d) in deserialization", compress)
	}
}

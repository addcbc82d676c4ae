package sqlitefile

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlabCodecRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0, 1, 2, 3, 250, 251}, 1000)

	for _, c := range []Compression{Uncompressed, Snappy, Zstd} {
		t.Run(c.String(), func(t *testing.T) {
			encoded, err := encodeSlab(payload, c)
			require.NoError(t, err)
			assert.Equal(t, byte(c)<<4|crcFlag, encoded[0])
			if c != Uncompressed {
				assert.Less(t, len(encoded), len(payload))
			}

			decoded, err := decodeSlab(encoded)
			require.NoError(t, err)
			assert.Equal(t, payload, decoded)
		})
	}
}

func TestSlabCodecDetectsCorruption(t *testing.T) {
	encoded, err := encodeSlab([]byte("frame bytes"), Uncompressed)
	require.NoError(t, err)
	encoded[len(encoded)-1] ^= 0xff

	_, err = decodeSlab(encoded)
	assert.ErrorContains(t, err, "checksum")

	_, err = decodeSlab(nil)
	assert.Error(t, err)

	_, err = decodeSlab([]byte{0x78, 0, 0, 0, 0})
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in      string
		want    Compression
		wantErr bool
	}{
		{in: "", want: Uncompressed},
		{in: "none", want: Uncompressed},
		{in: "Snappy", want: Snappy},
		{in: " zstd ", want: Zstd},
		{in: "gzip", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCompression(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func solid(size int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		for x := range size {
			img.Set(x, y, c)
		}
	}
	return img
}

// SolidPNG returns a size x size PNG filled with c.
func SolidPNG(t *testing.T, size int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(size, c)))
	return buf.Bytes()
}

// SolidJPEG returns a size x size JPEG filled with c.
func SolidJPEG(t *testing.T, size int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(size, c), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// PNGWithDeclaredSize returns a tiny valid PNG whose header claims width x
// height pixels. Only the IHDR chunk is rewritten, so decoders that trust
// the header see a huge image while the payload stays a few bytes.
func PNGWithDeclaredSize(t *testing.T, width, height uint32) []byte {
	t.Helper()
	data := SolidPNG(t, 1, color.Gray{Y: 128})

	// signature(8) | length(4) | "IHDR"(4) | width(4) | height(4) | ...(5) | crc(4)
	const ihdrType, ihdrData, ihdrLen = 12, 16, 13
	require.Equal(t, "IHDR", string(data[ihdrType:ihdrData]))
	binary.BigEndian.PutUint32(data[ihdrData:], width)
	binary.BigEndian.PutUint32(data[ihdrData+4:], height)
	crc := crc32.ChecksumIEEE(data[ihdrType : ihdrData+ihdrLen])
	binary.BigEndian.PutUint32(data[ihdrData+ihdrLen:], crc)
	return data
}

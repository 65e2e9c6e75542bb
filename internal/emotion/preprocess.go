package emotion

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	// Registered decoders for the accepted upload formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/tphakala/petmood/internal/errors"
)

// DefaultInputSize is the square input edge of both bundled checkpoints.
const DefaultInputSize = 224

const channels = 3

// MaxImagePixels caps the declared width x height of an upload. Larger
// images are rejected before any pixel data is decoded.
const MaxImagePixels = 40_000_000

// ImageNet channel statistics in RGB order.
var (
	imageNetMean = [channels]float32{0.485, 0.456, 0.406}
	imageNetStd  = [channels]float32{0.229, 0.224, 0.225}
)

var (
	errEmptyImage = errors.NewStd("empty image")
	errNoPixels   = errors.NewStd("image has no pixels")
	errTooLarge   = errors.NewStd("image dimensions too large")
)

// preprocessor turns encoded image bytes into a model input tensor.
type preprocessor struct {
	size          int
	normalization Normalization
	layout        Layout
}

// decodeImage decodes PNG, JPEG, GIF, BMP or WebP bytes. The header is
// checked against MaxImagePixels first.
func decodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: errEmptyImage}
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &DecodeError{Err: errNoPixels}
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, &DecodeError{Err: fmt.Errorf("%w: %dx%d", errTooLarge, cfg.Width, cfg.Height)}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, &DecodeError{Err: errNoPixels}
	}
	return img, nil
}

// tensor resizes img to the model input size and lays the normalized RGB
// values out in p.layout. Alpha is discarded.
func (p preprocessor) tensor(img image.Image) []float32 {
	rgba := toNRGBA(img)
	if b := rgba.Bounds(); b.Dx() != p.size || b.Dy() != p.size {
		rgba = toNRGBA(resize.Resize(uint(p.size), uint(p.size), rgba, resize.Lanczos3))
	}

	plane := p.size * p.size
	out := make([]float32, channels*plane)
	b := rgba.Bounds()

	for y := 0; y < p.size; y++ {
		for x := 0; x < p.size; x++ {
			c := rgba.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			rgb := [channels]uint8{c.R, c.G, c.B}
			pixelIndex := y*p.size + x
			for ch := range channels {
				v := p.normalize(rgb[ch], ch)
				if p.layout == LayoutNHWC {
					out[pixelIndex*channels+ch] = v
				} else {
					out[ch*plane+pixelIndex] = v
				}
			}
		}
	}
	return out
}

func (p preprocessor) normalize(v uint8, ch int) float32 {
	switch p.normalization {
	case NormalizationRaw255:
		return float32(v)
	case NormalizationImageNet:
		return (float32(v)/255 - imageNetMean[ch]) / imageNetStd[ch]
	default:
		return float32(v) / 255
	}
}

// toNRGBA returns img as non-premultiplied RGBA, converting only when needed.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

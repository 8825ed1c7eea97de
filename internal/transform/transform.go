// Package transform decodes, resizes and re-encodes images.
package transform

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	// Decoders for image.Decode. PNG and JPEG are registered by the imports above.
	_ "image/gif"

	"github.com/HugoSmits86/nativewebp"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/LavishGent/imgedge/internal/format"
)

// DefaultMaxPixels bounds the canvas a source may declare, about 200 MiB
// once decoded to RGBA.
const DefaultMaxPixels = 50_000_000

// Transformer is stateless and safe for concurrent use.
type Transformer struct {
	pngEncoder png.Encoder
	maxPixels  int64
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithMaxPixels caps width*height of a source image. Values <= 0 keep the default.
func WithMaxPixels(n int64) Option {
	return func(t *Transformer) {
		if n > 0 {
			t.maxPixels = n
		}
	}
}

// New returns a Transformer.
func New(opts ...Option) *Transformer {
	t := &Transformer{
		pngEncoder: png.Encoder{CompressionLevel: png.DefaultCompression},
		maxPixels:  DefaultMaxPixels,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MaxPixels is the largest source canvas Decode accepts.
func (t *Transformer) MaxPixels() int64 { return t.maxPixels }

// Decode sniffs the container format from data and decodes it. The header is
// read first so a canvas over the pixel cap is refused before the decoder
// allocates it.
func (t *Transformer) Decode(data []byte) (image.Image, error) {
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if int64(cfg.Width)*int64(cfg.Height) > t.maxPixels {
		return nil, &DecodeError{Source: name, Err: &PixelLimitError{Width: cfg.Width, Height: cfg.Height, Limit: t.maxPixels}}
	}

	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if b := img.Bounds(); b.Empty() {
		return nil, &DecodeError{Source: name, Err: errEmptyImage}
	}
	return img, nil
}

// Resize scales img to the given width with nearest-neighbour sampling.
// The height stays the source height; the aspect ratio is not preserved.
func (t *Transformer) Resize(img image.Image, width uint32) image.Image {
	src := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, int(width), src.Dy()))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
	return dst
}

// Encode writes img in the requested format. JPEG quality is passed to the
// encoder, which treats 0 as its minimum of 1. WEBP is always lossless.
func (t *Transformer) Encode(img image.Image, f format.OutputFormat) ([]byte, error) {
	var buf bytes.Buffer

	var err error
	switch f.Kind() {
	case format.KindJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: f.JPEGQuality()})
	case format.KindWebP:
		err = encodeWebP(&buf, img)
	default:
		err = t.pngEncoder.Encode(&buf, img)
	}
	if err != nil {
		return nil, &EncodeError{Format: f.Kind(), Err: err}
	}

	return buf.Bytes(), nil
}

// Transform runs Decode, Resize and Encode.
func (t *Transformer) Transform(data []byte, width uint32, f format.OutputFormat) ([]byte, error) {
	img, err := t.Decode(data)
	if err != nil {
		return nil, err
	}
	return t.Encode(t.Resize(img, width), f)
}

func encodeWebP(buf *bytes.Buffer, img image.Image) (err error) {
	if b := img.Bounds(); b.Empty() {
		return errEmptyImage
	}
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return nativewebp.Encode(buf, img, nil)
}

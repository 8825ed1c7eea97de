package transform

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"

	"github.com/LavishGent/imgedge/internal/format"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func mustFormat(t *testing.T, name string, quality *int) format.OutputFormat {
	t.Helper()
	f, err := format.Resolve(name, quality)
	if err != nil {
		t.Fatalf("Resolve(%q) error = %v", name, err)
	}
	return f
}

func TestTransformRoundTrip(t *testing.T) {
	src := encodePNG(t, solid(10, 10, color.RGBA{R: 200, G: 10, B: 10, A: 255}))
	tr := New()

	for _, name := range []string{"png", "jpeg", "jpg", "webp"} {
		t.Run(name, func(t *testing.T) {
			out, err := tr.Transform(src, 5, mustFormat(t, name, nil))
			if err != nil {
				t.Fatalf("Transform() error = %v", err)
			}

			cfg, decoded, err := image.DecodeConfig(bytes.NewReader(out))
			if err != nil {
				t.Fatalf("DecodeConfig() error = %v", err)
			}
			if cfg.Width != 5 {
				t.Errorf("width = %d, want 5", cfg.Width)
			}
			if cfg.Height != 10 {
				t.Errorf("height = %d, want the source height 10", cfg.Height)
			}

			wantCodec := map[string]string{"png": "png", "jpeg": "jpeg", "jpg": "jpeg", "webp": "webp"}[name]
			if decoded != wantCodec {
				t.Errorf("output codec = %s, want %s", decoded, wantCodec)
			}
		})
	}
}

func TestResizeKeepsHeight(t *testing.T) {
	tr := New()
	out := tr.Resize(solid(40, 30, color.White), 400)

	if b := out.Bounds(); b.Dx() != 400 || b.Dy() != 30 {
		t.Errorf("Resize() bounds = %v, want 400x30", b)
	}
}

func TestResizeNearestNeighbour(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}

	src := image.NewRGBA(image.Rect(0, 0, 10, 1))
	for x := 0; x < 10; x++ {
		if x < 5 {
			src.Set(x, 0, red)
		} else {
			src.Set(x, 0, blue)
		}
	}

	out := New().Resize(src, 2)

	if got := color.RGBAModel.Convert(out.At(0, 0)); got != red {
		t.Errorf("pixel 0 = %v, want %v", got, red)
	}
	if got := color.RGBAModel.Convert(out.At(1, 0)); got != blue {
		t.Errorf("pixel 1 = %v, want %v", got, blue)
	}
}

func TestDecodeSniffsContent(t *testing.T) {
	tr := New()
	img := solid(3, 2, color.Black)

	var gifBuf bytes.Buffer
	if err := gif.Encode(&gifBuf, img, nil); err != nil {
		t.Fatal(err)
	}
	pngBytes, err := tr.Encode(img, format.PNG())
	if err != nil {
		t.Fatal(err)
	}
	webpFmt, _ := format.NewWebP(80)
	webpBytes, err := tr.Encode(img, webpFmt)
	if err != nil {
		t.Fatal(err)
	}

	for name, data := range map[string][]byte{"gif": gifBuf.Bytes(), "png": pngBytes, "webp": webpBytes} {
		t.Run(name, func(t *testing.T) {
			got, err := tr.Decode(data)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if b := got.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
				t.Errorf("bounds = %v, want 3x2", b)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	full := encodePNG(t, solid(8, 8, color.White))

	tests := map[string][]byte{
		"empty":     nil,
		"garbage":   []byte("definitely not an image"),
		"truncated": full[:len(full)/2],
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New().Decode(data)
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Errorf("Decode() error = %v, want *DecodeError", err)
			}
		})
	}
}

func TestEncodeErrors(t *testing.T) {
	empty := image.NewRGBA(image.Rect(0, 0, 0, 0))
	webpFmt, _ := format.NewWebP(80)

	for _, f := range []format.OutputFormat{format.PNG(), webpFmt} {
		t.Run(f.String(), func(t *testing.T) {
			_, err := New().Encode(empty, f)
			var ee *EncodeError
			if !errors.As(err, &ee) {
				t.Fatalf("Encode() error = %v, want *EncodeError", err)
			}
			if ee.Format != f.Kind() {
				t.Errorf("EncodeError.Format = %v, want %v", ee.Format, f.Kind())
			}
		})
	}
}

func TestEncodeJPEGQuality(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: uint8((x ^ y) * 4), A: 255})
		}
	}

	tr := New()
	low, _ := format.NewJPEG(0)
	high, _ := format.NewJPEG(100)

	lowOut, err := tr.Encode(img, low)
	if err != nil {
		t.Fatalf("Encode(q=0) error = %v", err)
	}
	highOut, err := tr.Encode(img, high)
	if err != nil {
		t.Fatalf("Encode(q=100) error = %v", err)
	}
	if len(lowOut) >= len(highOut) {
		t.Errorf("quality 0 produced %d bytes, quality 100 produced %d; want fewer at low quality", len(lowOut), len(highOut))
	}
}

// declareSize rewrites a PNG's IHDR so it claims a w x h canvas while the
// pixel data stays that of the original.
func declareSize(src []byte, w, h uint32) []byte {
	out := bytes.Clone(src)
	binary.BigEndian.PutUint32(out[16:], w)
	binary.BigEndian.PutUint32(out[20:], h)
	binary.BigEndian.PutUint32(out[29:], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestDecodeRejectsOversizedCanvas(t *testing.T) {
	small := encodePNG(t, solid(4, 4, color.White))

	tests := []struct {
		name    string
		data    []byte
		opts    []Option
		wantErr bool
	}{
		{"declared 40000x40000", declareSize(small, 40000, 40000), nil, true},
		{"over a custom limit", small, []Option{WithMaxPixels(15)}, true},
		{"at a custom limit", small, []Option{WithMaxPixels(16)}, false},
		{"non-positive limit keeps default", small, []Option{WithMaxPixels(0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := New(tt.opts...).Decode(tt.data)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Decode() error = %v", err)
				}
				if img.Bounds().Dx() != 4 {
					t.Errorf("width = %d, want 4", img.Bounds().Dx())
				}
				return
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("Decode() error = %v, want *DecodeError", err)
			}
			if de.Source != "png" {
				t.Errorf("DecodeError.Source = %q, want png", de.Source)
			}
			if !errors.Is(err, ErrTooManyPixels) {
				t.Errorf("Decode() error = %v, want ErrTooManyPixels", err)
			}
		})
	}

	if got := New().MaxPixels(); got != DefaultMaxPixels {
		t.Errorf("MaxPixels() = %d, want %d", got, DefaultMaxPixels)
	}
}

func BenchmarkTransform(b *testing.B) {
	src := encodePNG(b, solid(640, 480, color.RGBA{R: 30, G: 120, B: 200, A: 255}))
	tr := New()

	for _, name := range []string{"png", "jpeg", "webp"} {
		f, _ := format.Resolve(name, nil)
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := tr.Transform(src, 320, f); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// Package format resolves the requested output encoding.
//
// An OutputFormat is one of PNG, JPEG with an integer quality in 0..100, or
// WEBP with a float quality in 0..100. WEBP output is lossless: its quality is
// validated and carried for symmetry with JPEG but has no effect on the
// encoded bytes.
package format

import (
	"strings"
)

// Kind identifies the output codec.
type Kind int

const (
	KindPNG Kind = iota
	KindJPEG
	KindWebP
)

const (
	DefaultJPEGQuality = 85
	DefaultWebPQuality = float32(80)
	MaxQuality         = 100
)

func (k Kind) String() string {
	switch k {
	case KindPNG:
		return "png"
	case KindJPEG:
		return "jpeg"
	case KindWebP:
		return "webp"
	default:
		return "unknown"
	}
}

// OutputFormat is an immutable, validated output encoding.
// The zero value is PNG.
type OutputFormat struct {
	kind        Kind
	jpegQuality int
	webpQuality float32
}

// PNG returns the PNG format. PNG has no quality setting.
func PNG() OutputFormat {
	return OutputFormat{kind: KindPNG}
}

// NewJPEG returns a JPEG format. Qualities above 100 are rejected; there is no lower bound check.
func NewJPEG(quality int) (OutputFormat, error) {
	if quality > MaxQuality {
		return OutputFormat{}, &InvalidQualityError{Format: KindJPEG, Quality: float64(quality)}
	}
	return OutputFormat{kind: KindJPEG, jpegQuality: quality}, nil
}

// NewWebP returns a WEBP format. Qualities above 100 are rejected.
// The encoder is lossless, so the quality is informational only.
func NewWebP(quality float32) (OutputFormat, error) {
	if quality > MaxQuality {
		return OutputFormat{}, &InvalidQualityError{Format: KindWebP, Quality: float64(quality)}
	}
	return OutputFormat{kind: KindWebP, webpQuality: quality}, nil
}

// Resolve builds an OutputFormat from a case-insensitive format name and an
// optional quality. A nil quality selects the format's default.
func Resolve(name string, quality *int) (OutputFormat, error) {
	switch strings.ToLower(name) {
	case "png":
		return PNG(), nil
	case "jpeg", "jpg":
		q := DefaultJPEGQuality
		if quality != nil {
			q = *quality
		}
		return NewJPEG(q)
	case "webp":
		q := DefaultWebPQuality
		if quality != nil {
			q = float32(*quality)
		}
		return NewWebP(q)
	default:
		return OutputFormat{}, &UnsupportedFormatError{Name: name}
	}
}

// IsSupported reports whether Resolve accepts name.
func IsSupported(name string) bool {
	switch strings.ToLower(name) {
	case "png", "jpeg", "jpg", "webp":
		return true
	}
	return false
}

func (f OutputFormat) Kind() Kind {
	return f.kind
}

// JPEGQuality returns the JPEG quality, or 0 for other formats.
func (f OutputFormat) JPEGQuality() int {
	return f.jpegQuality
}

// WebPQuality returns the requested WEBP quality, or 0 for other formats.
func (f OutputFormat) WebPQuality() float32 {
	return f.webpQuality
}

func (f OutputFormat) ContentType() string {
	switch f.kind {
	case KindJPEG:
		return "image/jpeg"
	case KindWebP:
		return "image/webp"
	default:
		return "image/png"
	}
}

// Extension returns the canonical file extension without the dot.
func (f OutputFormat) Extension() string {
	switch f.kind {
	case KindJPEG:
		return "jpg"
	case KindWebP:
		return "webp"
	default:
		return "png"
	}
}

func (f OutputFormat) String() string {
	return f.kind.String()
}

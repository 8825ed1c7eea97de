package format

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrInvalidQuality    = errors.New("invalid quality")
)

// UnsupportedFormatError reports a format name outside png, jpeg, jpg and webp.
type UnsupportedFormatError struct {
	Name string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q, expected one of png, jpeg, jpg, webp", e.Name)
}

func (e *UnsupportedFormatError) Unwrap() error {
	return ErrUnsupportedFormat
}

// InvalidQualityError reports a quality above the format's maximum.
type InvalidQualityError struct {
	Format  Kind
	Quality float64
}

func (e *InvalidQualityError) Error() string {
	return fmt.Sprintf("quality %g is out of range for %s, must be at most %d", e.Quality, e.Format, MaxQuality)
}

func (e *InvalidQualityError) Unwrap() error {
	return ErrInvalidQuality
}

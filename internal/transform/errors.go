package transform

import (
	"errors"
	"fmt"

	"github.com/LavishGent/imgedge/internal/format"
)

var errEmptyImage = errors.New("image has no pixels")

// ErrTooManyPixels matches any PixelLimitError.
var ErrTooManyPixels = errors.New("too many pixels")

// PixelLimitError reports a canvas larger than the configured pixel cap.
type PixelLimitError struct {
	Width, Height int
	Limit         int64
}

func (e *PixelLimitError) Error() string {
	return fmt.Sprintf("%dx%d exceeds the %d pixel limit", e.Width, e.Height, e.Limit)
}

func (e *PixelLimitError) Is(target error) bool { return target == ErrTooManyPixels }

// DecodeError reports source bytes that are not a readable image.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("decode %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("decode: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeError reports a failure writing the output format.
type EncodeError struct {
	Format format.Kind
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Format, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("encoder panic: %v", e.value)
}

package pipeline

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/LavishGent/imgedge/internal/format"
)

// Request is the part of an inbound HTTP request the pipeline reads.
type Request struct {
	Query  url.Values
	Method string
	Path   string
}

// NewRequest captures r's method, path and query.
func NewRequest(r *http.Request) *Request {
	return &Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
	}
}

// TransformRequest is a validated set of transform inputs.
type TransformRequest struct {
	SourceURL string
	Format    format.OutputFormat
	Width     uint32
}

// ErrorKind classifies a rejected parameter.
type ErrorKind int

const (
	ParameterMissing ErrorKind = iota + 1
	ParameterInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case ParameterMissing:
		return "missing"
	case ParameterInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// ParamError is a query parameter rejected before any I/O.
// Message is the exact text sent to the client.
type ParamError struct {
	Err     error
	Param   string
	Message string
	Kind    ErrorKind
	Status  int
}

func (e *ParamError) Error() string {
	return e.Message
}

func (e *ParamError) Unwrap() error {
	return e.Err
}

func missing(param, msg string) *ParamError {
	return &ParamError{Param: param, Message: msg, Kind: ParameterMissing, Status: http.StatusForbidden}
}

func invalid(param, msg string, err error) *ParamError {
	return &ParamError{Param: param, Message: msg, Kind: ParameterInvalid, Status: http.StatusBadRequest, Err: err}
}

// ParseOptions bound what ParseRequest accepts.
type ParseOptions struct {
	DefaultFormat string
	MaxWidth      uint32
}

// ParseRequest validates url, w, format and quality, in that order.
// A quality that is not an unsigned integer is ignored.
func ParseRequest(q url.Values, opts ParseOptions) (TransformRequest, *ParamError) {
	if !q.Has("url") {
		return TransformRequest{}, missing("url", "'url' parameter is not provided.")
	}

	if !q.Has("w") {
		return TransformRequest{}, missing("w", "'w' parameter not provided.")
	}
	w, err := parseUint32(q.Get("w"))
	if err != nil {
		return TransformRequest{}, invalid("w", "'w' parameter must be a valid number.", err)
	}
	if w == 0 {
		return TransformRequest{}, invalid("w", "'w' parameter must be greater than zero.", nil)
	}
	if opts.MaxWidth > 0 && w > uint64(opts.MaxWidth) {
		return TransformRequest{}, invalid("w", fmt.Sprintf("'w' parameter must not exceed %d.", opts.MaxWidth), nil)
	}

	name := q.Get("format")
	if name == "" {
		name = opts.DefaultFormat
	}
	if name == "" {
		name = "png"
	}

	var quality *int
	if raw := q.Get("quality"); raw != "" {
		if v, err := parseUint32(raw); err == nil {
			n := int(v)
			quality = &n
		}
	}

	f, err := format.Resolve(name, quality)
	if err != nil {
		return TransformRequest{}, invalid("format", "Invalid format: "+err.Error(), err)
	}

	return TransformRequest{
		SourceURL: q.Get("url"),
		Width:     uint32(w),
		Format:    f,
	}, nil
}

// parseUint32 reads a decimal uint32. One leading '+' is allowed, so "%2B5"
// means 5; signs, spaces and anything else are rejected.
func parseUint32(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimPrefix(s, "+"), 10, 32)
}

package logging

import (
	"context"
	"log/slog"

	"github.com/LavishGent/imgedge/internal/types"
)

// adapter lets a caller-supplied types.Logger sit behind *slog.Logger.
// Groups are flattened into dotted keys since types.Logger has no notion of
// nesting; level filtering is left to the wrapped logger.
type adapter struct {
	logger types.Logger
	prefix string
	fields []any
}

func (adapter) Enabled(context.Context, slog.Level) bool { return true }

//nolint:gocritic // slog.Handler takes Record by value
func (a adapter) Handle(_ context.Context, r slog.Record) error {
	kv := make([]any, len(a.fields), len(a.fields)+2*r.NumAttrs())
	copy(kv, a.fields)
	r.Attrs(func(attr slog.Attr) bool {
		kv = a.flatten(kv, attr)
		return true
	})
	a.sink(r.Level)(r.Message, kv...)
	return nil
}

func (a adapter) sink(level slog.Level) func(string, ...any) {
	switch {
	case level >= slog.LevelError:
		return a.logger.Error
	case level >= slog.LevelWarn:
		return a.logger.Warn
	case level >= slog.LevelInfo:
		return a.logger.Info
	}
	return a.logger.Debug
}

func (a adapter) flatten(kv []any, attr slog.Attr) []any {
	return append(kv, a.prefix+attr.Key, attr.Value.Resolve().Any())
}

func (a adapter) WithAttrs(attrs []slog.Attr) slog.Handler {
	fields := make([]any, len(a.fields), len(a.fields)+2*len(attrs))
	copy(fields, a.fields)
	for _, attr := range attrs {
		fields = a.flatten(fields, attr)
	}
	a.fields = fields
	return a
}

func (a adapter) WithGroup(name string) slog.Handler {
	if name != "" {
		a.prefix += name + "."
	}
	return a
}

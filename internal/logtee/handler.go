// Package logtee provides an slog.Handler that copies records at or above a
// level to a callback, used to push daemon warnings to the connected client.
package logtee

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"
)

// Entry is the callback's view of a log record.
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	// Source is the dot-separated slog group the record was logged under.
	Source string
	// Attrs holds the record's attributes and those added with WithAttrs,
	// rendered as strings. Keys inside groups are dot-qualified.
	Attrs map[string]string
}

// Callback receives entries. It must not log through the same handler.
type Callback func(Entry)

// Handler wraps a base handler. Every record goes to base; records at or
// above minLevel are also passed to the callback.
type Handler struct {
	base     slog.Handler
	callback Callback
	minLevel slog.Level
	group    string
	attrs    []slog.Attr // qualified with the group active when they were added
}

// New creates a Handler. A nil callback makes it a plain pass-through.
func New(base slog.Handler, minLevel slog.Level, callback Callback) *Handler {
	return &Handler{
		base:     base,
		callback: callback,
		minLevel: minLevel,
	}
}

// Enabled defers to base; minLevel only gates the callback.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle forwards to base and then invokes the callback. The callback runs
// even if base fails, and the base error is returned.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	err := h.base.Handle(ctx, record)

	if h.callback != nil && record.Level >= h.minLevel {
		h.emit(h.entry(record))
	}
	return err
}

func (h *Handler) emit(e Entry) {
	defer func() {
		if r := recover(); r != nil {
			// stderr, not slog: logging here would re-enter this handler.
			fmt.Fprintf(os.Stderr, "[logtee] callback panicked: %v\n%s\n", r, debug.Stack())
		}
	}()
	h.callback(e)
}

func (h *Handler) entry(record slog.Record) Entry {
	e := Entry{
		Time:    record.Time,
		Level:   record.Level,
		Message: record.Message,
		Source:  h.group,
	}
	if len(h.attrs) == 0 && record.NumAttrs() == 0 {
		return e
	}
	e.Attrs = make(map[string]string, len(h.attrs)+record.NumAttrs())
	for _, a := range h.attrs {
		flatten(e.Attrs, "", a)
	}
	record.Attrs(func(a slog.Attr) bool {
		flatten(e.Attrs, h.group, a)
		return true
	})
	return e
}

func flatten(out map[string]string, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			flatten(out, key, ga)
		}
		return
	}
	out[key] = a.Value.String()
}

// WithAttrs keeps the callback, level and group.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	qualified := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	qualified = append(qualified, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a = slog.Group(h.group, a)
		}
		qualified = append(qualified, a)
	}
	return &Handler{
		base:     h.base.WithAttrs(attrs),
		callback: h.callback,
		minLevel: h.minLevel,
		group:    h.group,
		attrs:    qualified,
	}
}

// WithGroup appends name to the accumulated group, dot-separated.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &Handler{
		base:     h.base.WithGroup(name),
		callback: h.callback,
		minLevel: h.minLevel,
		group:    group,
		attrs:    h.attrs,
	}
}

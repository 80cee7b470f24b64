package testutils

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// RecordHandler is a slog handler keeping every record, with the attributes of the logger flattened in.
type RecordHandler struct {
	mu      *sync.Mutex
	records *[]string
	attrs   []slog.Attr
}

// NewRecordHandler returns an empty RecordHandler.
func NewRecordHandler() RecordHandler {
	return RecordHandler{mu: &sync.Mutex{}, records: &[]string{}}
}

// Enabled implements Handler.Enabled.
func (h RecordHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle implements Handler.Handle.
func (h RecordHandler) Handle(_ context.Context, record slog.Record) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", record.Level, record.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s", a)
	}
	record.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s", a)
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	*h.records = append(*h.records, b.String())
	return nil
}

// WithAttrs implements Handler.WithAttrs.
func (h RecordHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return h
}

// WithGroup implements Handler.WithGroup. Groups are ignored.
func (h RecordHandler) WithGroup(string) slog.Handler {
	return h
}

// Records returns a copy of the formatted records handled so far.
func (h RecordHandler) Records() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string{}, *h.records...)
}

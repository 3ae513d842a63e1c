// Package testutil holds helpers shared by package tests.
package testutil

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
)

// syncBuffer guards a bytes.Buffer for handlers written from several goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything written so far.
func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// LogBuffer is the captured output of CaptureLogBuffer.
type LogBuffer interface {
	String() string
}

// CaptureLogBuffer redirects the default slog logger to an in-memory buffer
// and restores the original logger in t.Cleanup.
func CaptureLogBuffer(t *testing.T, level slog.Level) LogBuffer {
	t.Helper()
	originalLogger := slog.Default()
	logBuf := &syncBuffer{}
	slog.SetDefault(slog.New(slog.NewTextHandler(logBuf, &slog.HandlerOptions{Level: level})))
	t.Cleanup(func() {
		slog.SetDefault(originalLogger)
	})
	return logBuf
}

package utils

import (
	"io"
	"sync"
)

func Contains[T comparable](slice []T, x T) bool {
	for _, i := range slice {
		if i == x {
			return true
		}
	}
	return false
}

// SyncWriter serializes writes to an underlying writer so several goroutines
// can share it. Each Write call reaches w whole.
type SyncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSyncWriter(w io.Writer) *SyncWriter {
	return &SyncWriter{w: w}
}

func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

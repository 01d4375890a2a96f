package video

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// AudioSink receives per-scene narration for the render hand-off and returns the
// reference the timeline uses for it.
type AudioSink interface {
	Store(index int, wav []byte) (ref string, err error)
}

// AudioFileName is the conventional name of a scene's narration file.
func AudioFileName(index int) string {
	return fmt.Sprintf("audio_%d.wav", index)
}

// DirSink writes audio_<index>.wav files into Dir.
type DirSink struct {
	Dir string
}

func (s DirSink) Store(index int, wav []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", err
	}
	name := AudioFileName(index)
	if err := os.WriteFile(filepath.Join(s.Dir, name), wav, 0644); err != nil {
		return "", fmt.Errorf("store narration %s: %w", name, err)
	}
	return name, nil
}

// MemorySink keeps narration in memory.
type MemorySink struct {
	mu    sync.Mutex
	items map[string][]byte
}

func NewMemorySink() *MemorySink {
	return &MemorySink{items: make(map[string][]byte)}
}

func (s *MemorySink) Store(index int, wav []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := "mem:" + AudioFileName(index)
	s.items[ref] = append([]byte(nil), wav...)
	return ref, nil
}

// Get returns a stored payload.
func (s *MemorySink) Get(ref string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.items[ref]
	return b, ok
}

// Len reports how many payloads are stored.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

package tts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// VoiceCache maps persona ids to cloned ElevenLabs voice ids. It is backed by
// a JSON file that is loaded once and rewritten whole on every change.
type VoiceCache struct {
	path string

	mu  sync.RWMutex
	ids map[string]string
}

// LoadVoiceCache reads path. A missing file yields an empty cache; an
// unreadable or corrupt one is an error.
func LoadVoiceCache(path string) (*VoiceCache, error) {
	c := &VoiceCache{path: path, ids: map[string]string{}}
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read voice cache: %w", err)
	}
	if len(data) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, &c.ids); err != nil {
		return nil, fmt.Errorf("parse voice cache %s: %w", path, err)
	}
	return c, nil
}

// Get returns the cached voice id for a persona.
func (c *VoiceCache) Get(personaID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.ids[personaID]
	return id, ok && id != ""
}

// Put records a voice id and persists the whole map. The in-memory entry is
// kept even when the write fails.
func (c *VoiceCache) Put(personaID, voiceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[personaID] = voiceID
	return c.save()
}

// Len returns the number of cached voices.
func (c *VoiceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

// save writes to a temp file in the same directory and renames it over the
// target. Callers hold c.mu.
func (c *VoiceCache) save() error {
	if c.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(c.ids, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal voice cache: %w", err)
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create voice cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".voice_ids-*.json")
	if err != nil {
		return fmt.Errorf("create temp voice cache: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write voice cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close voice cache: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace voice cache: %w", err)
	}
	return nil
}

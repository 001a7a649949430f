// Package cache holds the run-scoped caches: form field options extracted
// from the live form, and generated text keyed by a content fingerprint.
// Both are append-only for the lifetime of one orchestrator run and are only
// touched from the single control goroutine, so no locking is used. A cache
// file, when configured, carries entries across process restarts.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// RunCache is the explicit cache state passed into components by reference.
type RunCache struct {
	path string
	data cacheData
}

type cacheData struct {
	// Options maps form identifier -> field name -> canonical option list.
	Options map[string]map[string][]string `json:"options"`
	// Content maps field|sha256(source) -> generated text.
	Content map[string]string `json:"content"`
}

// New returns a cache backed by path. A missing or unreadable file starts
// empty; persistence failures never fail a run. Empty path keeps the cache
// in-memory only.
func New(path string) *RunCache {
	c := &RunCache{
		path: path,
		data: cacheData{
			Options: make(map[string]map[string][]string),
			Content: make(map[string]string),
		},
	}
	if path == "" {
		return c
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	var loaded cacheData
	if err := json.Unmarshal(raw, &loaded); err != nil {
		return c // corrupt cache file: start fresh
	}
	if loaded.Options != nil {
		c.data.Options = loaded.Options
	}
	if loaded.Content != nil {
		c.data.Content = loaded.Content
	}
	return c
}

// Fingerprint hashes the given parts into a stable content key.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{'|'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Options returns the cached option list for a form field.
func (c *RunCache) Options(formID, field string) ([]string, bool) {
	fields, ok := c.data.Options[formID]
	if !ok {
		return nil, false
	}
	opts, ok := fields[field]
	if !ok || len(opts) == 0 {
		return nil, false
	}
	return opts, true
}

// SetOptions stores an option list for a form field and persists.
func (c *RunCache) SetOptions(formID, field string, opts []string) {
	if len(opts) == 0 {
		return
	}
	fields, ok := c.data.Options[formID]
	if !ok {
		fields = make(map[string][]string)
		c.data.Options[formID] = fields
	}
	fields[field] = append([]string(nil), opts...)
	_ = c.Save()
}

// Content returns cached generated text for (field, source).
func (c *RunCache) Content(field, source string) (string, bool) {
	text, ok := c.data.Content[contentKey(field, source)]
	return text, ok
}

// SetContent stores generated text for (field, source) and persists.
func (c *RunCache) SetContent(field, source, text string) {
	c.data.Content[contentKey(field, source)] = text
	_ = c.Save()
}

func contentKey(field, source string) string {
	return field + "|" + Fingerprint(source)
}

// Save writes the cache file. In-memory caches are a no-op.
func (c *RunCache) Save() error {
	if c.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}
	return os.WriteFile(c.path, data, 0o644)
}

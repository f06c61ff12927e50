package fusion

import (
	"strings"
	"sync"
)

// AliasTable maps source-specific identifiers onto canonical entity ids.
// Keys are either "source:raw_id" or a bare "raw_id"; the qualified key wins.
type AliasTable struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewAliasTable builds a table from a key -> canonical id map.
func NewAliasTable(entries map[string]string) *AliasTable {
	t := &AliasTable{entries: make(map[string]string, len(entries))}
	for k, v := range entries {
		t.Set(k, v)
	}
	return t
}

// Set adds or replaces an alias. Empty keys or targets are ignored.
func (t *AliasTable) Set(key, canonical string) {
	key = strings.TrimSpace(key)
	canonical = strings.TrimSpace(canonical)
	if key == "" || canonical == "" {
		return
	}
	t.mu.Lock()
	t.entries[key] = canonical
	t.mu.Unlock()
}

// Resolve returns the canonical id for rawID as reported by source.
// Unknown ids are returned unchanged.
func (t *AliasTable) Resolve(source, rawID string) string {
	if t == nil {
		return rawID
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.entries) == 0 {
		return rawID
	}
	if source != "" {
		if v, ok := t.entries[source+":"+rawID]; ok {
			return v
		}
	}
	if v, ok := t.entries[rawID]; ok {
		return v
	}
	return rawID
}

// Len returns the number of aliases.
func (t *AliasTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

package codex

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFile reads a JSON array of entries and builds an index from it.
func LoadFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read codex file: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse codex file %s: %w", path, err)
	}
	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("codex entry %d has no name", i)
		}
		if e.Kind == "" {
			entries[i].Kind = KindOther
		}
	}
	return NewIndex(entries), nil
}

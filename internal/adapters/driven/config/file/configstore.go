package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/oasis-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore persists configuration as a TOML file. Reads are served from
// an in-memory copy; every Set rewrites the file.
//
// Nested tables are exposed as flattened dot keys: [scoring.weights] beds = 0.2
// reads as "scoring.weights.beds".
type ConfigStore struct {
	*memory.ConfigStore

	// writeMu orders Set/Save/Load so the file always matches one snapshot.
	writeMu  sync.Mutex
	filePath string
}

// NewConfigStore opens the TOML file at filePath, creating its directory.
// An empty path means ~/.oasis/config.toml. A missing file is an empty
// configuration.
func NewConfigStore(filePath string) (*ConfigStore, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		filePath = filepath.Join(home, ".oasis", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	s := &ConfigStore{
		ConfigStore: memory.NewConfigStore(),
		filePath:    filePath,
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Set stores a value and rewrites the file.
func (s *ConfigStore) Set(key string, value any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.ConfigStore.Set(key, value); err != nil {
		return err
	}
	return s.write()
}

// Save rewrites the file from the current values.
func (s *ConfigStore) Save() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.write()
}

// Load replaces the current values with the file's contents.
func (s *ConfigStore) Load() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		s.Reset(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.filePath, err)
	}

	var tree map[string]any
	if err := toml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("parsing %s: %w", s.filePath, err)
	}
	s.Reset(flattenMap(tree, ""))
	return nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

// write must be called with writeMu held. The file may hold API keys, so it
// is readable by the owner only.
func (s *ConfigStore) write() error {
	data, err := toml.Marshal(nestMap(s.Snapshot()))
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(s.filePath, data, 0o600)
}

// flattenMap converts nested tables to dot keys: {"a": {"b": 1}} becomes
// {"a.b": 1}.
func flattenMap(tree map[string]any, prefix string) map[string]any {
	flat := make(map[string]any)
	for key, value := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		nested, ok := value.(map[string]any)
		if !ok {
			flat[key] = value
			continue
		}
		for k, v := range flattenMap(nested, key) {
			flat[k] = v
		}
	}
	return flat
}

// nestMap is the inverse of flattenMap. A key that is both a value and a
// table prefix keeps the value and drops the deeper keys.
func nestMap(flat map[string]any) map[string]any {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	root := make(map[string]any)
	for _, key := range keys {
		parts := strings.Split(key, ".")
		leaf := parts[len(parts)-1]
		if table := descend(root, parts[:len(parts)-1]); table != nil {
			if _, isTable := table[leaf].(map[string]any); !isTable {
				table[leaf] = flat[key]
			}
		}
	}
	return root
}

// descend walks (creating as needed) the tables named by path. It returns
// nil when a scalar already occupies part of the path.
func descend(table map[string]any, path []string) map[string]any {
	for _, part := range path {
		next, exists := table[part]
		if !exists {
			child := make(map[string]any)
			table[part] = child
			table = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return nil
		}
		table = child
	}
	return table
}

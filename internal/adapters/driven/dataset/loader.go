package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driven"
	"github.com/custodia-labs/oasis-cli/internal/logger"
)

// wrapped is the object form of a dataset file.
type wrapped struct {
	Facilities []domain.Facility `json:"facilities" yaml:"facilities"`
}

// Load reads and validates a dataset file. Facility ids must be unique.
func Load(path string) ([]domain.Facility, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	var facilities []domain.Facility
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		facilities, err = decodeYAML(data)
	default:
		facilities, err = decodeJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrValidation, filepath.Base(path), err)
	}

	seen := make(map[string]struct{}, len(facilities))
	for i := range facilities {
		f := &facilities[i]
		f.ID = strings.TrimSpace(f.ID)
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if _, dup := seen[f.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate facility id %s", domain.ErrValidation, f.ID)
		}
		seen[f.ID] = struct{}{}
	}
	return facilities, nil
}

func decodeJSON(data []byte) ([]domain.Facility, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var w wrapped
		if err := json.Unmarshal(trimmed, &w); err != nil {
			return nil, err
		}
		return w.Facilities, nil
	}
	var facilities []domain.Facility
	if err := json.Unmarshal(trimmed, &facilities); err != nil {
		return nil, err
	}
	return facilities, nil
}

func decodeYAML(data []byte) ([]domain.Facility, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	if node.Content[0].Kind == yaml.MappingNode {
		var w wrapped
		if err := node.Decode(&w); err != nil {
			return nil, err
		}
		return w.Facilities, nil
	}
	var facilities []domain.Facility
	if err := node.Decode(&facilities); err != nil {
		return nil, err
	}
	return facilities, nil
}

// Rebuilder rebuilds the retrieval index from the facility store.
type Rebuilder interface {
	Rebuild(ctx context.Context) (domain.IndexStats, error)
}

// Loader moves a dataset file into the facility store and rebuilds the index.
type Loader struct {
	path    string
	store   driven.FacilityStore
	indexer Rebuilder
}

// NewLoader creates a loader. indexer may be nil.
func NewLoader(path string, store driven.FacilityStore, indexer Rebuilder) *Loader {
	return &Loader{path: path, store: store, indexer: indexer}
}

// Path returns the dataset file path.
func (l *Loader) Path() string {
	return l.path
}

// Reload reads the file, replaces the store and rebuilds the index. A bad
// file leaves the store and the published generation untouched.
func (l *Loader) Reload(ctx context.Context) (int, error) {
	start := time.Now()
	facilities, err := Load(l.path)
	if err != nil {
		return 0, err
	}
	if err := l.store.Replace(ctx, facilities); err != nil {
		return 0, fmt.Errorf("replace facilities: %w", err)
	}
	logger.Info("loaded %d facilities from %s in %s", len(facilities), l.path, time.Since(start).Round(time.Millisecond))

	if l.indexer != nil {
		stats, err := l.indexer.Rebuild(ctx)
		if err != nil {
			return len(facilities), fmt.Errorf("rebuild index: %w", err)
		}
		logger.Debug("index generation %d built with %d documents", stats.Generation, stats.Size)
	}
	return len(facilities), nil
}

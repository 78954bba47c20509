package server

import (
	"fmt"
	"sort"
	"sync"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"github.com/sealdeck/sealdeck/pkg/reveal"
)

// Registry owns every table for the lifetime of the process. It is passed
// explicitly to whoever needs table lookup; there is no ambient or static
// access.
type Registry struct {
	log    slog.Logger
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewRegistry creates an empty table registry.
func NewRegistry(log slog.Logger) *Registry {
	if log == nil {
		log = slog.Disabled
	}
	return &Registry{
		log:    log,
		tables: make(map[string]*Table),
	}
}

// TableDeps bundles the collaborators every table shares.
type TableDeps struct {
	Coordinator *reveal.Coordinator
	DB          Database
	Notifier    *Notifier
}

// CreateTable builds and registers a table, assigning an ID when absent.
func (r *Registry) CreateTable(cfg TableConfig, deps TableDeps) (*Table, error) {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tables[cfg.ID]; exists {
		return nil, fmt.Errorf("table %s already exists", cfg.ID)
	}

	t := NewTable(cfg, deps.Coordinator, deps.DB, deps.Notifier)
	r.tables[cfg.ID] = t
	r.log.Infof("registry: created table %s", cfg.ID)
	return t, nil
}

// Get returns the table with the given ID.
func (r *Registry) Get(tableID string) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[tableID]
	return t, ok
}

// Remove drops a table from the registry.
func (r *Registry) Remove(tableID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tables, tableID)
}

// List returns all table IDs in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.tables))
	for id := range r.tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/xhad/askpdf/internal/models"
)

// Registry maps document names to what the backend made of them. Names are
// unique; registering a name again replaces the earlier entry.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]models.DocumentEntry
}

func New() *Registry {
	return &Registry{entries: make(map[string]models.DocumentEntry)}
}

func (r *Registry) Upsert(name string, chunks int, status models.DocumentStatus, ingestedAt time.Time) {
	r.Put(models.DocumentEntry{
		Name:       name,
		ChunkCount: chunks,
		Status:     status,
		IngestedAt: ingestedAt,
	})
}

// Put stores a full entry, including optional local metadata.
func (r *Registry) Put(entry models.DocumentEntry) {
	if entry.ChunkCount < 0 {
		entry.ChunkCount = 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.Name] = entry
}

func (r *Registry) Get(name string) (models.DocumentEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

func (r *Registry) TotalChunks() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, e := range r.entries {
		total += e.ChunkCount
	}
	return total
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Entries returns a copy of all entries ordered by name.
func (r *Registry) Entries() []models.DocumentEntry {
	r.mu.RLock()
	entries := make([]models.DocumentEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries
}

package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"docqa-backend/internal/logger"
	"docqa-backend/internal/telemetry"
	"docqa-backend/models"
)

const registryFileName = "documents.json"

// DocumentRegistry tracks document-level metadata, independent of the
// vector index. The whole map is rewritten to one JSON file on every
// mutation; at expected scale (hundreds of documents) this is cheaper than
// it sounds. The in-memory map stays authoritative even when a write fails.
type DocumentRegistry struct {
	mu      sync.RWMutex
	docs    map[string]models.DocumentMetadata
	path    string
	metrics *telemetry.Metrics
}

func NewDocumentRegistry(dataDir string, metrics *telemetry.Metrics) (*DocumentRegistry, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	r := &DocumentRegistry{
		docs:    make(map[string]models.DocumentMetadata),
		path:    filepath.Join(dataDir, registryFileName),
		metrics: metrics,
	}
	r.load()
	return r, nil
}

// Register inserts or overwrites the metadata record and persists the
// registry. Called only after the vector index insert succeeded, so a crash
// between the two steps leaves an index-only orphan rather than a registry
// entry pointing at missing vectors.
func (r *DocumentRegistry) Register(documentID string, meta models.DocumentMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[documentID] = meta
	r.persistLocked()
}

// Get returns the metadata for one document.
func (r *DocumentRegistry) Get(documentID string) (models.DocumentMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.docs[documentID]
	return meta, ok
}

// List returns a snapshot copy of the registry.
func (r *DocumentRegistry) List() map[string]models.DocumentMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make(map[string]models.DocumentMetadata, len(r.docs))
	for id, meta := range r.docs {
		snapshot[id] = meta
	}
	return snapshot
}

// Remove deletes the record and persists, reporting whether the id existed.
// The caller is responsible for the matching vector index delete.
func (r *DocumentRegistry) Remove(documentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[documentID]; !ok {
		return false
	}
	delete(r.docs, documentID)
	r.persistLocked()
	return true
}

// persistLocked rewrites the registry file. Write errors are logged and
// counted, never propagated: a failed disk write must not undo a mutation
// that already happened in memory.
func (r *DocumentRegistry) persistLocked() {
	if err := writeJSONAtomic(r.path, r.docs); err != nil {
		logger.Error("Failed to persist document registry", "path", r.path, "error", err)
		if r.metrics != nil {
			r.metrics.RecordPersistenceError("registry")
		}
		return
	}
	logger.Debug("Document registry persisted", "documents", len(r.docs))
}

func (r *DocumentRegistry) load() {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Error("Failed to read document registry", "path", r.path, "error", err)
		}
		return
	}
	if err := json.Unmarshal(data, &r.docs); err != nil {
		logger.Error("Failed to parse document registry, starting empty", "path", r.path, "error", err)
		r.docs = make(map[string]models.DocumentMetadata)
		return
	}
	logger.Info("Document registry loaded", "documents", len(r.docs))
}

// writeJSONAtomic writes v as JSON via a temp file and rename, so a crash
// mid-write can never leave a torn file behind.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

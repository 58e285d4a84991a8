package services

import (
	"context"
	"fmt"
	"sync"

	"docqa-backend/internal/logger"
	"docqa-backend/models"

	"github.com/google/uuid"
)

// Embedder converts text into an embedding vector. Implemented by the
// Gemini client; tests substitute fakes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores chunk vectors and answers filtered similarity queries.
type VectorIndex interface {
	Upsert(ctx context.Context, points []models.ChunkPoint) error
	Search(ctx context.Context, vector []float32, k int, documentIDs []string) ([]models.ScoredChunk, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	CountByDocument(ctx context.Context, documentID string) (int, error)
}

// DocumentService owns the document lifecycle: extract, chunk, embed,
// index, register. Index and registry writes for the same document id are
// serialized through a per-id lock so a delete cannot race an in-flight
// insert.
type DocumentService struct {
	extractor *TextExtractor
	chunker   *Chunker
	embedder  Embedder
	index     VectorIndex
	registry  *DocumentRegistry

	locksMu  sync.Mutex
	docLocks map[string]*sync.Mutex
}

func NewDocumentService(extractor *TextExtractor, chunker *Chunker, embedder Embedder, index VectorIndex, registry *DocumentRegistry) *DocumentService {
	return &DocumentService{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		registry:  registry,
		docLocks:  make(map[string]*sync.Mutex),
	}
}

func (s *DocumentService) lockDocument(documentID string) *sync.Mutex {
	s.locksMu.Lock()
	mu, ok := s.docLocks[documentID]
	if !ok {
		mu = &sync.Mutex{}
		s.docLocks[documentID] = mu
	}
	s.locksMu.Unlock()
	mu.Lock()
	return mu
}

// Ingest adds a document and returns its generated id. The index upsert
// happens before the registry write: a crash in between leaves orphan
// chunks in the index, never a registry entry without vectors.
func (s *DocumentService) Ingest(ctx context.Context, content []byte, fileName, fileType string) (string, error) {
	text, err := s.extractor.Extract(content, fileType)
	if err != nil {
		return "", err
	}

	chunks := s.chunker.Split(text)
	if len(chunks) == 0 {
		return "", fmt.Errorf("document %q contains no extractable text", fileName)
	}

	documentID := uuid.NewString()
	logger.Info("Ingesting document", "file_name", fileName, "file_type", fileType,
		"document_id", documentID, "chunks", len(chunks))

	// Embed outside any lock; only the index/registry writes are guarded.
	points := make([]models.ChunkPoint, len(chunks))
	for i, chunk := range chunks {
		vector, err := s.embedder.Embed(ctx, chunk)
		if err != nil {
			return "", fmt.Errorf("failed to embed chunk %d of %s: %w", i, fileName, err)
		}
		points[i] = models.ChunkPoint{
			ID:         uuid.NewString(),
			Vector:     vector,
			Text:       chunk,
			DocumentID: documentID,
			FileName:   fileName,
			Order:      i,
		}
	}

	mu := s.lockDocument(documentID)
	defer mu.Unlock()

	if err := s.index.Upsert(ctx, points); err != nil {
		return "", fmt.Errorf("failed to index document %s: %w", fileName, err)
	}

	s.registry.Register(documentID, models.DocumentMetadata{
		FileName:   fileName,
		FileType:   fileType,
		ChunkCount: len(chunks),
		FileSize:   int64(len(content)),
	})

	return documentID, nil
}

// Delete removes a document. The registry entry goes first, then the index
// chunks, keeping the same orphan direction as Ingest: a failure in between
// leaves stray chunks, never a registry entry pointing at nothing. Returns
// false when the id is unknown.
func (s *DocumentService) Delete(ctx context.Context, documentID string) (bool, error) {
	mu := s.lockDocument(documentID)
	defer mu.Unlock()

	if !s.registry.Remove(documentID) {
		logger.Warn("Attempted to delete unknown document", "document_id", documentID)
		return false, nil
	}

	if err := s.index.DeleteByDocument(ctx, documentID); err != nil {
		// Registry entry is already gone; stray chunks remain until a
		// retried delete removes them. DeleteByDocument is idempotent so
		// retrying is always safe.
		return true, fmt.Errorf("failed to delete chunks for %s: %w", documentID, err)
	}

	logger.Info("Document deleted", "document_id", documentID)
	return true, nil
}

// List returns a snapshot of all document metadata.
func (s *DocumentService) List() map[string]models.DocumentMetadata {
	return s.registry.List()
}

// Stats summarizes the store. Storage size uses the recorded file size
// where present and falls back to ~1KB per chunk.
func (s *DocumentService) Stats() models.DocumentStats {
	docs := s.registry.List()
	var total int64
	for _, meta := range docs {
		if meta.FileSize > 0 {
			total += meta.FileSize
		} else {
			total += int64(meta.ChunkCount) * 1024
		}
	}
	return models.DocumentStats{DocumentCount: len(docs), StorageSize: total}
}

// Reconcile drops registry entries that have no chunks left in the index,
// repairing the registry side of a crash between an index delete and a
// registry write. Run once at startup.
func (s *DocumentService) Reconcile(ctx context.Context) error {
	for documentID := range s.registry.List() {
		count, err := s.index.CountByDocument(ctx, documentID)
		if err != nil {
			return fmt.Errorf("reconcile aborted at %s: %w", documentID, err)
		}
		if count == 0 {
			s.registry.Remove(documentID)
			logger.Warn("Removed registry entry with no indexed chunks", "document_id", documentID)
		}
	}
	return nil
}

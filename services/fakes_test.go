package services

import (
	"context"
	"sort"
	"sync"

	"docqa-backend/models"
)

// fakeEmbedder returns canned vectors per text, falling back to a constant
// vector for texts it has no entry for.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0}, nil
}

// fakeVectorIndex is an in-memory index with the same filter semantics as
// the Qdrant client: exact document_id matching, descending dot-product
// scores, k as a soft cap.
type fakeVectorIndex struct {
	mu        sync.Mutex
	points    []models.ChunkPoint
	upsertErr error
	searchErr error
	deleteErr error
	countErr  error
}

func (f *fakeVectorIndex) Upsert(_ context.Context, points []models.ChunkPoint) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, points...)
	return nil
}

func (f *fakeVectorIndex) Search(_ context.Context, vector []float32, k int, documentIDs []string) ([]models.ScoredChunk, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	scope := map[string]bool{}
	for _, id := range documentIDs {
		scope[id] = true
	}

	var results []models.ScoredChunk
	for _, p := range f.points {
		if len(scope) > 0 && !scope[p.DocumentID] {
			continue
		}
		var score float64
		for i := 0; i < len(vector) && i < len(p.Vector); i++ {
			score += float64(vector[i]) * float64(p.Vector[i])
		}
		results = append(results, models.ScoredChunk{
			Text:       p.Text,
			DocumentID: p.DocumentID,
			FileName:   p.FileName,
			Score:      score,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (f *fakeVectorIndex) DeleteByDocument(_ context.Context, documentID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.points[:0]
	for _, p := range f.points {
		if p.DocumentID != documentID {
			kept = append(kept, p)
		}
	}
	f.points = kept
	return nil
}

func (f *fakeVectorIndex) CountByDocument(_ context.Context, documentID string) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, p := range f.points {
		if p.DocumentID == documentID {
			count++
		}
	}
	return count, nil
}

// legacyMetadata builds a registry entry with no recorded file size, as
// written by older deployments.
func legacyMetadata(chunks int) models.DocumentMetadata {
	return models.DocumentMetadata{
		FileName:   "legacy.txt",
		FileType:   "txt",
		ChunkCount: chunks,
	}
}

// fakeGenerator records the inputs of its last call.
type fakeGenerator struct {
	answer       string
	err          error
	lastQuestion string
	lastPassages []string
	lastHistory  []models.ChatMessage
}

func (f *fakeGenerator) Generate(_ context.Context, question string, passages []string, history []models.ChatMessage) (string, error) {
	f.lastQuestion = question
	f.lastPassages = passages
	f.lastHistory = history
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

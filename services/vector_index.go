package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"docqa-backend/internal/telemetry"
	"docqa-backend/models"
)

// QdrantIndex is a minimal REST client to a Qdrant collection. Vectors are
// compared with cosine distance; search results come back ordered by
// similarity, descending.
type QdrantIndex struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
	metrics    *telemetry.Metrics
}

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewQdrantIndex(cfg QdrantConfig, metrics *telemetry.Metrics) *QdrantIndex {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantIndex{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
		metrics:    metrics,
	}
}

// documentFilter matches points whose document_id payload field equals one
// of the given ids.
func documentFilter(documentIDs []string) map[string]any {
	var match map[string]any
	if len(documentIDs) == 1 {
		match = map[string]any{"value": documentIDs[0]}
	} else {
		match = map[string]any{"any": documentIDs}
	}
	return map[string]any{
		"must": []map[string]any{
			{"key": "document_id", "match": match},
		},
	}
}

// EnsureCollection creates the collection if it does not exist yet.
// Qdrant answers 200 for an existing collection with the same schema.
func (q *QdrantIndex) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return q.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", q.collection), body, nil)
}

// Upsert writes chunk points to the collection. wait=true makes Qdrant
// flush before responding, so points are durable once this returns.
func (q *QdrantIndex) Upsert(ctx context.Context, points []models.ChunkPoint) error {
	if len(points) == 0 {
		return nil
	}
	qdrantPoints := make([]map[string]any, len(points))
	for i, p := range points {
		qdrantPoints[i] = map[string]any{
			"id":     p.ID,
			"vector": p.Vector,
			"payload": map[string]any{
				"document_id": p.DocumentID,
				"file_name":   p.FileName,
				"order":       p.Order,
				"text":        p.Text,
			},
		}
	}
	body := map[string]any{"points": qdrantPoints}
	err := q.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", q.collection), body, nil)
	if q.metrics != nil {
		q.metrics.RecordIndexOperation("upsert", err == nil)
	}
	return err
}

// Search returns up to k chunks nearest to vector, restricted to the given
// document ids when any are provided. k is a soft cap: fewer results come
// back when fewer points are eligible.
func (q *QdrantIndex) Search(ctx context.Context, vector []float32, k int, documentIDs []string) ([]models.ScoredChunk, error) {
	if k <= 0 {
		k = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	if len(documentIDs) > 0 {
		req["filter"] = documentFilter(documentIDs)
	}

	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", q.collection), req, &resp); err != nil {
		return nil, err
	}

	results := make([]models.ScoredChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		chunk := models.ScoredChunk{Score: r.Score}
		if v, ok := r.Payload["text"].(string); ok {
			chunk.Text = v
		}
		if v, ok := r.Payload["document_id"].(string); ok {
			chunk.DocumentID = v
		}
		if v, ok := r.Payload["file_name"].(string); ok {
			chunk.FileName = v
		}
		results = append(results, chunk)
	}
	return results, nil
}

// DeleteByDocument removes every chunk belonging to the document. Deleting
// an id with no chunks is a no-op, not an error.
func (q *QdrantIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	body := map[string]any{"filter": documentFilter([]string{documentID})}
	err := q.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/delete?wait=true", q.collection), body, nil)
	if q.metrics != nil {
		q.metrics.RecordIndexOperation("delete", err == nil)
	}
	return err
}

// CountByDocument returns the exact number of chunks indexed for the
// document. Used by the startup reconciliation pass.
func (q *QdrantIndex) CountByDocument(ctx context.Context, documentID string) (int, error) {
	body := map[string]any{
		"filter": documentFilter([]string{documentID}),
		"exact":  true,
	}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/count", q.collection), body, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (q *QdrantIndex) do(ctx context.Context, method, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, q.url+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: qdrant %s %s returned %s", ErrIndexUnavailable, method, path, resp.Status)
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, path, resp.Status, string(msg))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

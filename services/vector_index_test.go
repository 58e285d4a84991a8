package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"docqa-backend/models"
)

// fakeQdrant emulates the small slice of the Qdrant REST API the index
// client uses, recording the last request body per endpoint.
type fakeQdrant struct {
	requests map[string]map[string]any
	searches []map[string]any
}

func newFakeQdrant() (*fakeQdrant, *httptest.Server) {
	f := &fakeQdrant{requests: make(map[string]map[string]any)}
	mux := http.NewServeMux()

	mux.HandleFunc("/collections/docs", func(w http.ResponseWriter, r *http.Request) {
		f.record("create", r)
		w.Write([]byte(`{"result":true,"status":"ok"}`))
	})
	mux.HandleFunc("/collections/docs/points", func(w http.ResponseWriter, r *http.Request) {
		f.record("upsert", r)
		w.Write([]byte(`{"result":{"status":"completed"},"status":"ok"}`))
	})
	mux.HandleFunc("/collections/docs/points/search", func(w http.ResponseWriter, r *http.Request) {
		body := f.record("search", r)
		f.searches = append(f.searches, body)
		w.Write([]byte(`{"result":[
			{"score":0.92,"payload":{"text":"first","document_id":"A","file_name":"a.txt","order":0}},
			{"score":0.81,"payload":{"text":"second","document_id":"A","file_name":"a.txt","order":1}}
		],"status":"ok"}`))
	})
	mux.HandleFunc("/collections/docs/points/delete", func(w http.ResponseWriter, r *http.Request) {
		f.record("delete", r)
		w.Write([]byte(`{"result":{"status":"completed"},"status":"ok"}`))
	})
	mux.HandleFunc("/collections/docs/points/count", func(w http.ResponseWriter, r *http.Request) {
		f.record("count", r)
		w.Write([]byte(`{"result":{"count":3},"status":"ok"}`))
	})

	return f, httptest.NewServer(mux)
}

func (f *fakeQdrant) record(name string, r *http.Request) map[string]any {
	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)
	f.requests[name] = body
	return body
}

func newTestIndex(url string) *QdrantIndex {
	return NewQdrantIndex(QdrantConfig{URL: url, Collection: "docs"}, nil)
}

func TestQdrantEnsureCollection(t *testing.T) {
	fake, srv := newFakeQdrant()
	defer srv.Close()

	idx := newTestIndex(srv.URL)
	if err := idx.EnsureCollection(context.Background(), 768); err != nil {
		t.Fatalf("EnsureCollection failed: %v", err)
	}

	vectors, ok := fake.requests["create"]["vectors"].(map[string]any)
	if !ok {
		t.Fatal("collection create request had no vectors config")
	}
	if vectors["size"].(float64) != 768 {
		t.Fatalf("expected dimension 768, got %v", vectors["size"])
	}
	if vectors["distance"] != "Cosine" {
		t.Fatalf("expected cosine distance, got %v", vectors["distance"])
	}

	if err := idx.EnsureCollection(context.Background(), 0); err == nil {
		t.Fatal("expected error for non-positive dimension")
	}
}

func TestQdrantUpsertPayload(t *testing.T) {
	fake, srv := newFakeQdrant()
	defer srv.Close()

	idx := newTestIndex(srv.URL)
	err := idx.Upsert(context.Background(), []models.ChunkPoint{
		{ID: "p1", Vector: []float32{0.1, 0.2}, Text: "hello", DocumentID: "A", FileName: "a.txt", Order: 0},
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	points := fake.requests["upsert"]["points"].([]any)
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	payload := points[0].(map[string]any)["payload"].(map[string]any)
	if payload["document_id"] != "A" || payload["file_name"] != "a.txt" || payload["text"] != "hello" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestQdrantUpsertEmptyIsNoop(t *testing.T) {
	fake, srv := newFakeQdrant()
	defer srv.Close()

	idx := newTestIndex(srv.URL)
	if err := idx.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("empty upsert should succeed: %v", err)
	}
	if _, called := fake.requests["upsert"]; called {
		t.Fatal("empty upsert should not hit the server")
	}
}

func TestQdrantSearchUnscoped(t *testing.T) {
	fake, srv := newFakeQdrant()
	defer srv.Close()

	idx := newTestIndex(srv.URL)
	results, err := idx.Search(context.Background(), []float32{0.5, 0.5}, 10, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Score < results[1].Score {
		t.Fatal("results should be ordered by descending score")
	}
	if results[0].Text != "first" || results[0].DocumentID != "A" || results[0].FileName != "a.txt" {
		t.Fatalf("unexpected first result: %+v", results[0])
	}

	if _, hasFilter := fake.requests["search"]["filter"]; hasFilter {
		t.Fatal("unscoped search must not send a filter")
	}
	if fake.requests["search"]["limit"].(float64) != 10 {
		t.Fatalf("expected limit 10, got %v", fake.requests["search"]["limit"])
	}
}

func TestQdrantSearchScopedSendsFilter(t *testing.T) {
	fake, srv := newFakeQdrant()
	defer srv.Close()

	idx := newTestIndex(srv.URL)
	if _, err := idx.Search(context.Background(), []float32{0.5, 0.5}, 5, []string{"A", "B"}); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	filter, ok := fake.requests["search"]["filter"].(map[string]any)
	if !ok {
		t.Fatal("scoped search must send a filter")
	}
	must := filter["must"].([]any)
	cond := must[0].(map[string]any)
	if cond["key"] != "document_id" {
		t.Fatalf("filter key should be document_id, got %v", cond["key"])
	}
	anyIDs := cond["match"].(map[string]any)["any"].([]any)
	if len(anyIDs) != 2 || anyIDs[0] != "A" || anyIDs[1] != "B" {
		t.Fatalf("unexpected filter ids: %v", anyIDs)
	}
}

func TestQdrantDeleteByDocument(t *testing.T) {
	fake, srv := newFakeQdrant()
	defer srv.Close()

	idx := newTestIndex(srv.URL)
	if err := idx.DeleteByDocument(context.Background(), "A"); err != nil {
		t.Fatalf("DeleteByDocument failed: %v", err)
	}

	filter := fake.requests["delete"]["filter"].(map[string]any)
	cond := filter["must"].([]any)[0].(map[string]any)
	if cond["match"].(map[string]any)["value"] != "A" {
		t.Fatalf("unexpected delete filter: %v", filter)
	}

	// A second delete of the same id is a no-op, not an error.
	if err := idx.DeleteByDocument(context.Background(), "A"); err != nil {
		t.Fatalf("repeated delete should be idempotent: %v", err)
	}
}

func TestQdrantCountByDocument(t *testing.T) {
	fake, srv := newFakeQdrant()
	defer srv.Close()

	idx := newTestIndex(srv.URL)
	count, err := idx.CountByDocument(context.Background(), "A")
	if err != nil {
		t.Fatalf("CountByDocument failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
	if fake.requests["count"]["exact"] != true {
		t.Fatal("count should request an exact result")
	}
}

func TestQdrantUnreachableSurfacesIndexUnavailable(t *testing.T) {
	idx := newTestIndex("http://127.0.0.1:1")

	_, err := idx.Search(context.Background(), []float32{0.1}, 5, nil)
	if !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestQdrantServerErrorSurfacesIndexUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	idx := newTestIndex(srv.URL)
	err := idx.DeleteByDocument(context.Background(), "A")
	if !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

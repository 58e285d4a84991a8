package models

// DocumentMetadata is the registry record for one ingested document.
// The registry file on disk is a map of document_id -> DocumentMetadata.
type DocumentMetadata struct {
	FileName   string `json:"file_name"`
	FileType   string `json:"file_type"`
	ChunkCount int    `json:"chunk_count"`
	FileSize   int64  `json:"file_size,omitempty"`
}

// ChunkPoint is one indexed chunk: the embedding vector plus the payload
// stored alongside it in the vector engine.
type ChunkPoint struct {
	ID         string
	Vector     []float32
	Text       string
	DocumentID string
	FileName   string
	Order      int
}

// ScoredChunk is a retrieval hit. Score is cosine similarity, higher is
// more relevant.
type ScoredChunk struct {
	Text       string  `json:"text"`
	DocumentID string  `json:"document_id"`
	FileName   string  `json:"file_name"`
	Score      float64 `json:"score"`
}

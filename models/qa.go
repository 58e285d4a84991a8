package models

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question       string   `json:"question" binding:"required"`
	DocumentIDs    []string `json:"document_ids,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
}

// Source is one cited passage backing an answer.
type Source struct {
	Content  string         `json:"content"`
	Metadata SourceMetadata `json:"metadata"`
}

// SourceMetadata identifies where a cited passage came from.
type SourceMetadata struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
}

// AskResponse is the result of one question/answer cycle. Direction is
// "rtl" or "ltr", derived from the answer text.
type AskResponse struct {
	Answer         string   `json:"answer"`
	Sources        []Source `json:"sources"`
	ConversationID string   `json:"conversation_id"`
	Direction      string   `json:"direction"`
}

// UploadResponse is the result of a successful document upload.
type UploadResponse struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
}

// DocumentStats summarizes the document store.
type DocumentStats struct {
	DocumentCount int   `json:"document_count"`
	StorageSize   int64 `json:"storage_size"`
}

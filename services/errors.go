package services

import "errors"

// Error kinds surfaced by the document and QA services. Handlers translate
// these into HTTP status codes; everything else is a plain 500.
var (
	ErrUnsupportedFileType   = errors.New("unsupported file type")
	ErrDocumentNotFound      = errors.New("document not found")
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrIndexUnavailable      = errors.New("vector index unavailable")
	ErrGenerationUnavailable = errors.New("generation service unavailable")
)

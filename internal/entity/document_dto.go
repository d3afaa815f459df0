package entity

import "fmt"

// IndexDocumentRequest carries a document to (re)index.
type IndexDocumentRequest struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

func (r *IndexDocumentRequest) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: id", ErrMissingField)
	}
	if len(r.ID) > 128 {
		return fmt.Errorf("%w: id longer than 128 characters", ErrInvalidParameter)
	}
	return nil
}

// IndexDocumentResponse is returned by index and reindex.
type IndexDocumentResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ChunkCount int    `json:"chunk_count"`
}

// ListDocumentsResponse wraps the document registry listing.
type ListDocumentsResponse struct {
	Documents []*Document `json:"documents"`
}

// DeleteDocumentResponse is returned by remove.
type DeleteDocumentResponse struct {
	Status string `json:"status"`
}

// DocumentStoreTextResponse is the document-storage service payload.
type DocumentStoreTextResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// ASRTranscribeResponse is the speech recognition service payload.
type ASRTranscribeResponse struct {
	Transcriptions string `json:"transcriptions"`
}

// ErrorResponse is the HTTP error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

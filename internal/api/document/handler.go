package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/futig/safeguard-backend/internal/pkg/logger"
	"github.com/futig/safeguard-backend/internal/pkg/response"
	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type Handler struct {
	usecase   DocumentUsecase
	validator FileValidator
}

func NewHandler(usecase DocumentUsecase, validator FileValidator) *Handler {
	return &Handler{
		usecase:   usecase,
		validator: validator,
	}
}

// uploadedFile is a document sent as multipart form data
type uploadedFile struct {
	id       string
	title    string
	filename string
	content  []byte
}

// IndexDocument handles POST /documents
func (h *Handler) IndexDocument(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "IndexDocument")

	if isMultipart(r) {
		upload, ok := h.readUpload(ctx, w, r, "")
		if !ok {
			return
		}

		resp, err := h.usecase.IndexFile(ctx, upload.id, upload.title, upload.filename, upload.content)
		if err != nil {
			h.handleUsecaseError(ctx, w, err)
			return
		}
		ctxzap.Info(ctx, "document file indexed", zap.String("document_id", resp.ID), zap.Int("chunk_count", resp.ChunkCount))
		response.Created(ctx, w, resp)
		return
	}

	var req entity.IndexDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	resp, err := h.usecase.Index(ctx, &req)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Info(ctx, "document indexed", zap.String("document_id", resp.ID), zap.Int("chunk_count", resp.ChunkCount))
	response.Created(ctx, w, resp)
}

// ReindexDocument handles PUT /documents/{document_id}
func (h *Handler) ReindexDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "document_id")
	ctx := logger.WithAction(r.Context(), "ReindexDocument")

	if isMultipart(r) {
		upload, ok := h.readUpload(ctx, w, r, documentID)
		if !ok {
			return
		}
		if _, err := h.usecase.Get(ctx, documentID); err != nil {
			h.handleUsecaseError(ctx, w, err)
			return
		}

		resp, err := h.usecase.IndexFile(ctx, documentID, upload.title, upload.filename, upload.content)
		if err != nil {
			h.handleUsecaseError(ctx, w, err)
			return
		}
		ctxzap.Info(ctx, "document file reindexed", zap.String("document_id", resp.ID), zap.Int("chunk_count", resp.ChunkCount))
		response.Success(ctx, w, resp)
		return
	}

	var req entity.IndexDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	req.ID = documentID

	resp, err := h.usecase.Reindex(ctx, &req)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Info(ctx, "document reindexed", zap.String("document_id", resp.ID), zap.Int("chunk_count", resp.ChunkCount))
	response.Success(ctx, w, resp)
}

// ReindexFromStore handles POST /documents/{document_id}/reindex
func (h *Handler) ReindexFromStore(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "document_id")
	ctx := logger.WithAction(r.Context(), "ReindexFromStore")

	resp, err := h.usecase.ReindexFromStore(ctx, documentID)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Info(ctx, "document reindexed from storage", zap.String("document_id", resp.ID), zap.Int("chunk_count", resp.ChunkCount))
	response.Success(ctx, w, resp)
}

// ListDocuments handles GET /documents
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "ListDocuments")

	docs, err := h.usecase.List(ctx)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Debug(ctx, "documents listed", zap.Int("count", len(docs)))
	response.Success(ctx, w, &entity.ListDocumentsResponse{Documents: docs})
}

// GetDocument handles GET /documents/{document_id}
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "document_id")
	ctx := logger.WithAction(r.Context(), "GetDocument")

	doc, err := h.usecase.Get(ctx, documentID)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}
	response.Success(ctx, w, doc)
}

// DeactivateDocument handles POST /documents/{document_id}/deactivate
func (h *Handler) DeactivateDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "document_id")
	ctx := logger.WithAction(r.Context(), "DeactivateDocument")

	doc, err := h.usecase.Deactivate(ctx, documentID)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Info(ctx, "document deactivated", zap.String("document_id", documentID))
	response.Success(ctx, w, doc)
}

// RemoveDocument handles DELETE /documents/{document_id}
func (h *Handler) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "document_id")
	ctx := logger.WithAction(r.Context(), "RemoveDocument")

	if err := h.usecase.Remove(ctx, documentID); err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Info(ctx, "document removed", zap.String("document_id", documentID))
	response.Success(ctx, w, &entity.DeleteDocumentResponse{Status: "deleted"})
}

// Status handles GET /status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "Status")

	status, err := h.usecase.Status(ctx)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}
	response.Success(ctx, w, status)
}

// readUpload parses a multipart document upload. The path id, when set, wins over the form id.
func (h *Handler) readUpload(ctx context.Context, w http.ResponseWriter, r *http.Request, pathID string) (*uploadedFile, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.validator.MaxUploadSize())
	if err := r.ParseMultipartForm(h.validator.MaxUploadSize()); err != nil {
		response.Error(ctx, w, http.StatusBadRequest, "invalid form data or size too large", err)
		return nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.Error(ctx, w, http.StatusBadRequest, "file is required", err)
		return nil, false
	}
	defer file.Close()

	if err := h.validator.ValidateDocumentFile(header.Filename, header.Size); err != nil {
		h.handleUsecaseError(ctx, w, err)
		return nil, false
	}

	content, err := io.ReadAll(file)
	if err != nil {
		response.Error(ctx, w, http.StatusBadRequest, "failed to read uploaded file", err)
		return nil, false
	}

	upload := &uploadedFile{
		id:       r.FormValue("id"),
		title:    r.FormValue("title"),
		filename: header.Filename,
		content:  content,
	}
	if pathID != "" {
		upload.id = pathID
	}

	if upload.id == "" {
		h.handleUsecaseError(ctx, w, fmt.Errorf("%w: id", entity.ErrMissingField))
		return nil, false
	}

	ctxzap.Debug(ctx, "document upload received",
		zap.String("filename", upload.filename),
		zap.Int("size", len(content)),
	)
	return upload, true
}

func (h *Handler) handleUsecaseError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrDocumentNotFound):
		response.Error(ctx, w, http.StatusNotFound, "document not found", err)
	case errors.Is(err, entity.ErrInvalidParameter), errors.Is(err, entity.ErrMissingField), errors.Is(err, entity.ErrInvalidFormat):
		response.Error(ctx, w, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, entity.ErrInvalidFile), errors.Is(err, entity.ErrInvalidExtension), errors.Is(err, entity.ErrEmptyDocument):
		response.Error(ctx, w, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, entity.ErrFileTooLarge):
		response.Error(ctx, w, http.StatusRequestEntityTooLarge, err.Error(), err)
	case errors.Is(err, entity.ErrIndexCorruptionRisk):
		response.Error(ctx, w, http.StatusInternalServerError, "index write failed, previous version kept", err)
	case errors.Is(err, entity.ErrEmbeddingFailed):
		response.Error(ctx, w, http.StatusBadGateway, "embedding service unavailable", err)
	default:
		response.Error(ctx, w, http.StatusInternalServerError, "internal server error", err)
	}
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

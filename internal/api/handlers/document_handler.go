package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sorincom/analize-new/internal/application/services"
)

// DocumentHandler handles document registry requests
type DocumentHandler struct {
	documentService *services.DocumentService
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documentService *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

type registerDocumentRequest struct {
	FilePath    string `json:"file_path"`
	ContentHash string `json:"content_hash"`
}

type registerDocumentResponse struct {
	Document  interface{} `json:"document"`
	Duplicate bool        `json:"duplicate"`
}

// RegisterDocument handles POST /api/users/{id}/documents
func (h *DocumentHandler) RegisterDocument(w http.ResponseWriter, r *http.Request) {
	var req registerDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	document, duplicate, err := h.documentService.Register(r.Context(), r.PathValue("id"), req.FilePath, req.ContentHash)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if duplicate {
		status = http.StatusOK
	}
	respondWithJSON(w, status, registerDocumentResponse{Document: document, Duplicate: duplicate})
}

// GetDocument handles GET /api/documents/{id}
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	document, err := h.documentService.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, document)
}

// ListUserDocuments handles GET /api/users/{id}/documents
func (h *DocumentHandler) ListUserDocuments(w http.ResponseWriter, r *http.Request) {
	documents, err := h.documentService.ListByUser(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, documents)
}

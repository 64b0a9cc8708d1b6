package handlers

import (
	"net/http"

	"github.com/sorincom/analize-new/internal/application/services"
)

// CatalogHandler serves read access to canonical labs and test types
type CatalogHandler struct {
	catalogService *services.CatalogService
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogService *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// ListLabs handles GET /api/labs
func (h *CatalogHandler) ListLabs(w http.ResponseWriter, r *http.Request) {
	labs, err := h.catalogService.ListLabs(r.Context())
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, labs)
}

// GetLab handles GET /api/labs/{id}
func (h *CatalogHandler) GetLab(w http.ResponseWriter, r *http.Request) {
	lab, err := h.catalogService.GetLab(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, lab)
}

// ListTestTypes handles GET /api/test-types
func (h *CatalogHandler) ListTestTypes(w http.ResponseWriter, r *http.Request) {
	testTypes, err := h.catalogService.ListTestTypes(r.Context())
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, testTypes)
}

// GetTestType handles GET /api/test-types/{id}
func (h *CatalogHandler) GetTestType(w http.ResponseWriter, r *http.Request) {
	testType, err := h.catalogService.GetTestType(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, testType)
}

// ListTestTypeAliases handles GET /api/test-types/{id}/aliases
func (h *CatalogHandler) ListTestTypeAliases(w http.ResponseWriter, r *http.Request) {
	aliases, err := h.catalogService.ListAliases(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, aliases)
}

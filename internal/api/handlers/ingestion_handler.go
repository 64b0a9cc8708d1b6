package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"github.com/sorincom/analize-new/internal/application/services"
	"github.com/sorincom/analize-new/internal/domain/entities"
	"github.com/sorincom/analize-new/internal/infrastructure/observability"
)

// processRequest is the extraction payload posted by the PDF extraction
// collaborator. The document id comes from the URL, the user id from the
// document registry, so the body carries only what extraction produced.
type processRequest struct {
	Lab     entities.LabDescriptor     `json:"lab"`
	Results []entities.ExtractedResult `json:"results"`
}

// IngestionHandler triggers document processing
type IngestionHandler struct {
	ingestionService *services.IngestionService
	documentService  *services.DocumentService
	redisClient      *redislib.Client
	idempotencyTTL   time.Duration
}

// NewIngestionHandler creates a new ingestion handler
func NewIngestionHandler(
	ingestionService *services.IngestionService,
	documentService *services.DocumentService,
	redisClient *redislib.Client,
	idempotencyTTL time.Duration,
) *IngestionHandler {
	if idempotencyTTL <= 0 {
		idempotencyTTL = 24 * time.Hour
	}
	return &IngestionHandler{
		ingestionService: ingestionService,
		documentService:  documentService,
		redisClient:      redisClient,
		idempotencyTTL:   idempotencyTTL,
	}
}

// ProcessDocument handles POST /api/documents/{id}/process
func (h *IngestionHandler) ProcessDocument(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	if documentID == "" {
		respondWithError(w, http.StatusBadRequest, "document id is required")
		return
	}

	if duplicate, key := h.isDuplicate(r); duplicate {
		respondWithJSON(w, http.StatusOK, map[string]string{
			"status":          "duplicate",
			"idempotency_key": key,
		})
		return
	}

	document, err := h.documentService.GetByID(r.Context(), documentID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report, err := h.ingestionService.Process(r.Context(), entities.DocumentPayload{
		DocumentID: document.ID,
		UserID:     document.UserID,
		Lab:        req.Lab,
		Results:    req.Results,
	})
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}

// isDuplicate claims the request's Idempotency-Key in redis. The first
// request under a key wins; replays are answered without reprocessing.
func (h *IngestionHandler) isDuplicate(r *http.Request) (bool, string) {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		key = strings.TrimSpace(r.Header.Get("X-Idempotency-Key"))
	}
	if key == "" || h.redisClient == nil {
		return false, ""
	}

	redisKey := "document_process_idem:" + key
	ok, err := h.redisClient.SetNX(r.Context(), redisKey, time.Now().UTC().Format(time.RFC3339Nano), h.idempotencyTTL).Result()
	if err != nil {
		observability.LoggerFromContext(r.Context()).Warn().
			Err(err).
			Msg("idempotency check failed, processing anyway")
		return false, key
	}
	return !ok, key
}

package handlers

import (
	"net/http"

	"github.com/sorincom/analize-new/internal/application/services"
)

// TimelineHandler serves longitudinal result reads
type TimelineHandler struct {
	timelineService *services.TimelineService
}

// NewTimelineHandler creates a new timeline handler
func NewTimelineHandler(timelineService *services.TimelineService) *TimelineHandler {
	return &TimelineHandler{timelineService: timelineService}
}

// ListUserResults handles GET /api/users/{id}/results
func (h *TimelineHandler) ListUserResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.timelineService.ListByUser(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, results)
}

// ListUserTestTypeResults handles GET /api/users/{id}/results/{testTypeId}
func (h *TimelineHandler) ListUserTestTypeResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.timelineService.ListByUserAndTestType(r.Context(), r.PathValue("id"), r.PathValue("testTypeId"))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, results)
}

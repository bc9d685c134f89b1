package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"odo-backend/internal/middleware"
	"odo-backend/internal/models"
	"odo-backend/internal/repository"
	"odo-backend/internal/services"
)

type ListeningHandler struct {
	ingestService  *services.IngestService
	sessionService *services.SessionService
	statsService   *services.StatsService
}

func NewListeningHandler(ingestService *services.IngestService, sessionService *services.SessionService, statsService *services.StatsService) *ListeningHandler {
	return &ListeningHandler{
		ingestService:  ingestService,
		sessionService: sessionService,
		statsService:   statsService,
	}
}

// IngestEvent accepts one playback event. When the client presents a session
// id the arbiter rules on it first; a rejected session bounces the whole
// request so the extension logs back in before resuming reporting.
func (h *ListeningHandler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var req models.IngestEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	ip := clientIP(r)

	sessionID := middleware.GetSessionID(r)
	if sessionID != "" {
		if _, err := h.sessionService.Validate(r.Context(), sessionID, userID, ip); err != nil {
			handleServiceError(w, r, err)
			return
		}
	}

	resp, err := h.ingestService.Ingest(r.Context(), userID, sessionID, ip, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *ListeningHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.HistoryFilter{
		StartDate:  q.Get("start_date"),
		EndDate:    q.Get("end_date"),
		TrackID:    q.Get("track_id"),
		PlaylistID: q.Get("playlist_id"),
		Page:       intQuery(q.Get("page")),
		Limit:      intQuery(q.Get("limit")),
	}

	records, total, err := h.statsService.History(r.Context(), middleware.GetUserID(r.Context()), filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"total":   total,
	})
}

func (h *ListeningHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r.URL.Query().Get("limit"))

	records, err := h.statsService.Recent(r.Context(), middleware.GetUserID(r.Context()), limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

func intQuery(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

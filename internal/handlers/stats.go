package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"odo-backend/internal/middleware"
	"odo-backend/internal/services"
)

type StatsHandler struct {
	statsService *services.StatsService
}

func NewStatsHandler(statsService *services.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

func (h *StatsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.statsService.Summary(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *StatsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end := q.Get("start_date"), q.Get("end_date")
	if start == "" || end == "" {
		// Default to the trailing 30 days
		now := time.Now()
		end = now.Format("2006-01-02")
		start = now.AddDate(0, 0, -29).Format("2006-01-02")
	}

	stats, err := h.statsService.Daily(r.Context(), middleware.GetUserID(r.Context()), start, end)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"daily": stats})
}

func (h *StatsHandler) Hourly(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	stats, err := h.statsService.Hourly(r.Context(), middleware.GetUserID(r.Context()), date)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"hourly": stats})
}

func (h *StatsHandler) GroupDaily(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid group id", r))
		return
	}

	q := r.URL.Query()
	start, end := q.Get("start_date"), q.Get("end_date")
	if start == "" || end == "" {
		now := time.Now()
		end = now.Format("2006-01-02")
		start = now.AddDate(0, 0, -29).Format("2006-01-02")
	}

	group, stats, err := h.statsService.GroupDaily(r.Context(), groupID, start, end)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"group": group,
		"daily": stats,
	})
}

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"odo-backend/internal/repository"
)

type GroupHandler struct {
	groups *repository.GroupRepo
}

func NewGroupHandler(groups *repository.GroupRepo) *GroupHandler {
	return &GroupHandler{groups: groups}
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"groups": groups})
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid group id", r))
		return
	}

	group, err := h.groups.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if group == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Group not found", r))
		return
	}

	writeJSON(w, http.StatusOK, group)
}

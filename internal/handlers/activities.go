package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/petermazzocco/go-doll-studio/internal/activities"
)

func TodayActivitiesHandler(w http.ResponseWriter, r *http.Request, svc *activities.Service) {
	day, err := svc.Today(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// StartVideoHandler answers 202 for a new render and 200 for a cached one.
func StartVideoHandler(w http.ResponseWriter, r *http.Request, svc *activities.Service) {
	view, started, err := svc.StartVideo(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "activityId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusOK
	if started {
		status = http.StatusAccepted
	}
	writeJSON(w, status, view)
}

func GetVideoHandler(w http.ResponseWriter, r *http.Request, svc *activities.Service) {
	view, err := svc.Video(chi.URLParam(r, "id"), chi.URLParam(r, "activityId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func CancelVideoHandler(w http.ResponseWriter, r *http.Request, svc *activities.Service) {
	view, err := svc.CancelVideo(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "activityId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

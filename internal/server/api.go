package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/mockvoice/mockvoice/internal/call"
	"github.com/mockvoice/mockvoice/internal/interview"
	"github.com/mockvoice/mockvoice/internal/storage"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type InterviewStore interface {
	GetInterview(id string) (storage.Interview, error)
	ListInterviews(userID string, limit int) ([]storage.Interview, error)
	ListLatestInterviews(excludeUserID string, limit int) ([]storage.Interview, error)
	GetFeedbackByInterview(interviewID, userID string) (storage.Feedback, error)
}

// CallControls connects the API to the call switchboard.
type CallControls struct {
	Start    func(ctx context.Context, mode interview.Mode, req call.StartRequest) error
	Stop     func()
	Current  func() (call.Snapshot, bool)
	Warnings func() []string
}

type startCallRequest struct {
	Mode string `json:"mode"`
	call.StartRequest
}

func registerAPIRoutes(mux *http.ServeMux, store InterviewStore, controls CallControls) {
	mux.HandleFunc("POST /api/calls", func(w http.ResponseWriter, r *http.Request) {
		if controls.Start == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "calls are not available")
			return
		}

		var body startCallRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
			return
		}
		mode, err := interview.ParseMode(body.Mode)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(body.UserID) == "" {
			writeJSONError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		if mode == interview.ModeInterview && !validID(body.InterviewID) {
			writeJSONError(w, http.StatusBadRequest, "interview_id is required for interview calls")
			return
		}

		if err := controls.Start(r.Context(), mode, body.StartRequest); err != nil {
			writeJSONError(w, startErrorStatus(err), err.Error())
			return
		}

		resp := map[string]any{"started": true}
		if controls.Current != nil {
			if snap, ok := controls.Current(); ok {
				resp["call"] = snap
			}
		}
		writeJSON(w, http.StatusAccepted, resp)
	})

	mux.HandleFunc("POST /api/calls/stop", func(w http.ResponseWriter, r *http.Request) {
		if controls.Stop != nil {
			controls.Stop()
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		var current any
		if controls.Current != nil {
			if snap, ok := controls.Current(); ok {
				current = snap
			}
		}
		var warnings []string
		if controls.Warnings != nil {
			warnings = controls.Warnings()
		}
		if warnings == nil {
			warnings = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"call": current, "warnings": warnings})
	})

	mux.HandleFunc("GET /api/interviews", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		userID := query.Get("user_id")
		if !validID(userID) {
			writeJSONError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		limit, _ := strconv.Atoi(query.Get("limit"))

		var (
			interviews []storage.Interview
			err        error
		)
		if query.Get("scope") == "latest" {
			interviews, err = store.ListLatestInterviews(userID, limit)
		} else {
			interviews, err = store.ListInterviews(userID, limit)
		}
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list interviews: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, interviews)
	})

	mux.HandleFunc("GET /api/interviews/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !validID(id) {
			writeJSONError(w, http.StatusForbidden, "invalid interview id")
			return
		}

		iv, err := store.GetInterview(id)
		if err != nil {
			writeJSONError(w, lookupErrorStatus(err), fmt.Sprintf("get interview: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, iv)
	})

	mux.HandleFunc("GET /api/interviews/{id}/feedback", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !validID(id) {
			writeJSONError(w, http.StatusForbidden, "invalid interview id")
			return
		}
		userID := r.URL.Query().Get("user_id")
		if userID != "" && !validID(userID) {
			writeJSONError(w, http.StatusBadRequest, "invalid user id")
			return
		}

		fb, err := store.GetFeedbackByInterview(id, userID)
		if err != nil {
			writeJSONError(w, lookupErrorStatus(err), fmt.Sprintf("get feedback: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, fb)
	})
}

func validID(id string) bool {
	return idPattern.MatchString(id)
}

func startErrorStatus(err error) int {
	switch {
	case errors.Is(err, call.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, call.ErrUnknownMode):
		return http.StatusBadRequest
	case errors.Is(err, call.ErrMicPermission),
		errors.Is(err, call.ErrNoAudioTrack),
		errors.Is(err, call.ErrMicMuted),
		errors.Is(err, call.ErrMicUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func lookupErrorStatus(err error) int {
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

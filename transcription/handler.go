package transcription

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/internal/log"
)

type startRequest struct {
	AudioURL string `json:"audio_url"`
}

type startResponse struct {
	InstanceID string `json:"instance_id"`
}

type statusResponse struct {
	InstanceID string `json:"instance_id"`
	Status     string `json:"status"`
}

// NewHandler serves the transcription trigger API.
//
//	POST /transcriptions        {"audio_url": "..."} starts an instance, answers 202 with its id
//	GET  /transcriptions/<id>   returns the status of an instance
func NewHandler(d *Dispatcher, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Add("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(v); err != nil {
			logger.Error("Encoding response", "error", err)
		}
	}

	mux.HandleFunc("/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AudioURL == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		instanceID, err := d.Start(r.Context(), req.AudioURL)
		if err != nil {
			logger.Error("Starting transcription", "error", err, log.AudioURLKey, req.AudioURL)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusAccepted, &startResponse{InstanceID: instanceID})
	})

	mux.HandleFunc("/transcriptions/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		instanceID := strings.TrimPrefix(r.URL.Path, "/transcriptions/")
		if instanceID == "" || strings.Contains(instanceID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		status, err := d.Status(r.Context(), instanceID)
		if err != nil {
			if errors.Is(err, backend.ErrInstanceNotFound) {
				w.WriteHeader(http.StatusNotFound)
				return
			}

			logger.Error("Getting transcription status", "error", err, log.InstanceIDKey, instanceID)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, &statusResponse{InstanceID: instanceID, Status: status.String()})
	})

	return mux
}

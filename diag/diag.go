package diag

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/voxflow/go-transcribe/internal/log"
)

// NewServeMux returns an *http.ServeMux that serves the read-only diagnostics API at /api.
//
//	GET /api/?after=<instanceID>&count=<n>  lists instances, newest first
//	GET /api/<instanceID>                   returns the instance and its full history
//	GET /api/stats                          returns backend stats
func NewServeMux(backend Backend) *http.ServeMux {
	mux := http.NewServeMux()
	logger := backend.Options().Logger

	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Add("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(v); err != nil {
			logger.Error("Encoding diagnostics response", "error", err)
		}
	}

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		// Only support GET requests
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		relativeURL := strings.TrimPrefix(r.URL.Path, "/api/")

		// /api/
		if relativeURL == "" {
			query := r.URL.Query()

			count := 25
			if countStr := query.Get("count"); countStr != "" {
				var err error
				count, err = strconv.Atoi(countStr)
				if err != nil || count <= 0 {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
			}

			instances, err := backend.GetWorkflowInstances(r.Context(), query.Get("after"), count)
			if err != nil {
				logger.Error("Listing workflow instances", "error", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			writeJSON(w, instances)
			return
		}

		// /api/stats
		if relativeURL == "stats" {
			stats, err := backend.GetStats(r.Context())
			if err != nil {
				logger.Error("Getting stats", "error", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			writeJSON(w, stats)
			return
		}

		segments := strings.Split(relativeURL, "/")
		if len(segments) != 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		// /api/{instanceID}
		instance, err := backend.GetWorkflowInstance(r.Context(), segments[0])
		if err != nil {
			logger.Error("Getting workflow instance", "error", err, log.InstanceIDKey, segments[0])
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		if instance == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		history, err := backend.GetWorkflowInstanceHistory(r.Context(), instance.Instance, nil)
		if err != nil {
			logger.Error("Getting workflow history", "error", err, log.InstanceIDKey, segments[0])
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		newHistory := make([]*Event, 0, len(history))
		for _, event := range history {
			newHistory = append(newHistory, &Event{
				ID:              event.ID,
				SequenceID:      event.SequenceID,
				Type:            event.Type.String(),
				Timestamp:       event.Timestamp,
				ScheduleEventID: event.ScheduleEventID,
				Attributes:      event.Attributes,
				VisibleAt:       event.VisibleAt,
			})
		}

		writeJSON(w, &WorkflowInstanceInfo{
			WorkflowInstanceRef: instance,
			History:             newHistory,
		})
	})

	return mux
}

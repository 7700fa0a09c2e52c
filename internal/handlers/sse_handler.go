package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/revlook/internal/services/events"
	"github.com/ternarybob/revlook/internal/services/jobs"
	"github.com/ternarybob/revlook/internal/storage/postgres"
)

const ssePingInterval = 15 * time.Second

// SSEHandler streams job lifecycle events over Server-Sent Events
type SSEHandler struct {
	service *jobs.Service
	events  *events.Publisher
	logger  arbor.ILogger
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(service *jobs.Service, eventPub *events.Publisher, logger arbor.ILogger) *SSEHandler {
	return &SSEHandler{
		service: service,
		events:  eventPub,
		logger:  logger,
	}
}

// EventsHandler handles GET /api/jobs/{id}/events - live progress stream.
// Connecting to an already-completed job yields a single completed event and
// a closed stream.
func (h *SSEHandler) EventsHandler(w http.ResponseWriter, r *http.Request, jobIDStr string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobID, err := uuid.Parse(jobIDStr)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, postgres.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobIDStr).Msg("Failed to get job for event stream")
		WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}
	flusher.Flush()

	if job.IsComplete() {
		h.sendEvent(w, flusher, events.Event{
			Type:    events.EventCompleted,
			Payload: events.CompletedPayload{JobID: job.JobID},
		})
		return
	}

	sub := h.events.Subscribe(jobID)
	defer h.events.Unsubscribe(jobID, sub)

	h.logger.Debug().Str("job_id", jobIDStr).Msg("Event stream subscriber connected")

	pingTicker := time.NewTicker(ssePingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			h.sendEvent(w, flusher, ev)
			pingTicker.Reset(ssePingInterval)

		case <-sub.Done():
			// Drain events delivered before the close
			for {
				select {
				case ev, ok := <-sub.Events():
					if !ok {
						return
					}
					h.sendEvent(w, flusher, ev)
				default:
					return
				}
			}

		case <-pingTicker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// sendEvent writes one SSE frame: event name "message", JSON {type, payload}
func (h *SSEHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal SSE event")
		return
	}

	fmt.Fprintf(w, "event: message\n")
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

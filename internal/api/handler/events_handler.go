package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"judge_zone/internal/api/middleware"
	"judge_zone/internal/app/service"
	"judge_zone/internal/common"
	"judge_zone/internal/platform/notify"
)

const keepAliveInterval = 15 * time.Second

// EventsHandler streams judge progress for one submission as Server-Sent
// Events.
type EventsHandler struct {
	submissionService *service.SubmissionService
	subscriber        notify.Subscriber
	log               *zap.Logger
}

func NewEventsHandler(ss *service.SubmissionService, sub notify.Subscriber, log *zap.Logger) *EventsHandler {
	return &EventsHandler{submissionService: ss, subscriber: sub, log: log}
}

func (h *EventsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/submission/{submissionID}/events", h.stream)
}

func (h *EventsHandler) stream(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "submissionID")
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	if _, err := h.submissionService.Authorize(r.Context(), middleware.ActorFromContext(r.Context()), id); err != nil {
		common.RespondWithErr(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		common.RespondWithError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	channel := notify.SubmissionChannel(id)
	events, cancel, err := h.subscriber.Subscribe(r.Context(), channel)
	if err != nil {
		h.log.Error("subscribe failed", zap.String("channel", channel), zap.Error(err))
		common.RespondWithErr(w, common.ErrServiceUnavailable)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ":\n\n")
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ":\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case payload, ok := <-events:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", channel, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

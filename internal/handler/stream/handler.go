package stream

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	chatHandler "github.com/camwood/camwood-site/backend/internal/handler/chat"
	chatService "github.com/camwood/camwood-site/backend/internal/service/chat"
	"github.com/camwood/camwood-site/backend/pkg/utils"
)

const defaultHeartbeat = 15 * time.Second

// Handler streams conversation snapshots via Server-Sent Events
type Handler struct {
	chatSvc   *chatService.Service
	logger    *zap.Logger
	heartbeat time.Duration
}

// New creates a new stream handler
func New(chatSvc *chatService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc:   chatSvc,
		logger:    logger.Named("stream"),
		heartbeat: defaultHeartbeat,
	}
}

// RegisterRoutes mounts the event stream under the sessions router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/{sessionID}/events", h.handleEvents)
}

// handleEvents sends a "snapshot" event on every state change and an "end" event once the
// conversation is disposed.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	conv, err := h.chatSvc.Conversation(r.Context(), sessionID)
	if err != nil {
		chatHandler.RespondServiceError(w, err)
		return
	}

	updates, unsubscribe := conv.Subscribe()
	defer unsubscribe()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	h.logger.Debug("opening event stream", zap.String("session", sessionID))

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("closing event stream", zap.String("session", sessionID))
			return
		case snap, open := <-updates:
			if !open {
				_ = utils.SendSSEEvent(w, flusher, "end", map[string]string{"sessionId": sessionID})
				return
			}
			if err := utils.SendSSEEvent(w, flusher, "snapshot", snap); err != nil {
				h.logger.Debug("event stream write failed", zap.String("session", sessionID), zap.Error(err))
				return
			}
			h.touch(ctx, sessionID)
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
			h.touch(ctx, sessionID)
		}
	}
}

// touch keeps a session with an attached listener out of the reaper's reach. A session that
// is already gone is reported through the closed updates channel instead.
func (h *Handler) touch(ctx context.Context, sessionID string) {
	if err := h.chatSvc.Touch(ctx, sessionID); err != nil {
		h.logger.Debug("session vanished while streaming", zap.String("session", sessionID))
	}
}

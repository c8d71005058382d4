package chat

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	chatService "github.com/camwood/camwood-site/backend/internal/service/chat"
	"github.com/camwood/camwood-site/backend/internal/service/conversation"
	"github.com/camwood/camwood-site/backend/pkg/utils"
)

// Handler 聊天助手会话的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	logger  *zap.Logger
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc: chatSvc,
		logger:  logger.Named("chat"),
	}
}

type textPayload struct {
	Text string `json:"text"`
}

type sessionResponse struct {
	ID        string                `json:"id"`
	CreatedAt time.Time             `json:"createdAt"`
	Snapshot  conversation.Snapshot `json:"snapshot"`
}

// RegisterRoutes 注册会话相关的路由，r 挂载在 /assistant/sessions 下
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.handleCreateSession)
	r.Route("/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGetSession)
		r.Delete("/", h.handleEndSession)
		r.Post("/open", h.handleOpen)
		r.Post("/close", h.handleClose)
		r.Put("/draft", h.handleDraft)
		r.Post("/messages", h.handleSubmit)
	})
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		RespondServiceError(w, err)
		return
	}

	conv, err := h.chatSvc.Conversation(r.Context(), session.ID)
	if err != nil {
		RespondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, sessionResponse{
		ID:        session.ID,
		CreatedAt: session.CreatedAt,
		Snapshot:  conv.Snapshot(),
	})
}

// handleGetSession 返回会话快照
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, conv.Snapshot())
}

// handleEndSession 结束会话并释放所有计时器
func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.EndSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		RespondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, http.StatusOK, func(conv *conversation.Controller) error {
		return conv.Open()
	})
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, http.StatusOK, func(conv *conversation.Controller) error {
		return conv.Close()
	})
}

// handleDraft 保存输入框草稿
func (h *Handler) handleDraft(w http.ResponseWriter, r *http.Request) {
	var payload textPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.apply(w, r, http.StatusOK, func(conv *conversation.Controller) error {
		return conv.SetDraft(payload.Text)
	})
}

// handleSubmit 提交用户消息，回复通过快照或事件流异步返回
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload textPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.apply(w, r, http.StatusAccepted, func(conv *conversation.Controller) error {
		return conv.Submit(payload.Text)
	})
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, status int, fn func(*conversation.Controller) error) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	if err := fn(conv); err != nil {
		h.logger.Debug("conversation rejected request",
			zap.String("session", chi.URLParam(r, "sessionID")), zap.Error(err))
		RespondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, status, conv.Snapshot())
}

func (h *Handler) conversation(w http.ResponseWriter, r *http.Request) (*conversation.Controller, bool) {
	conv, err := h.chatSvc.Conversation(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		RespondServiceError(w, err)
		return nil, false
	}
	return conv, true
}

// RespondServiceError 将服务层错误映射为HTTP状态码
func RespondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, conversation.ErrEmptyInput):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, conversation.ErrAwaitingResponse):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, conversation.ErrDisposed):
		utils.RespondError(w, http.StatusGone, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}

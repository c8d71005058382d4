package contact

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	contactService "github.com/camwood/camwood-site/backend/internal/service/contact"
	"github.com/camwood/camwood-site/backend/pkg/utils"
)

// Submitter relays a validated contact submission.
type Submitter interface {
	Submit(ctx context.Context, sub contactService.Submission) error
}

// Handler 联系表单的HTTP处理器
type Handler struct {
	client Submitter
}

// New 创建联系表单处理器
func New(client Submitter) *Handler {
	return &Handler{client: client}
}

// RegisterRoutes 注册联系表单路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/contact", h.handleSubmit)
	r.Get("/contact/purposes", h.handlePurposes)
}

// handleSubmit 校验并转发联系表单
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var sub contactService.Submission
	if err := utils.DecodeJSON(r, &sub); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.client.Submit(r.Context(), sub)
	var validationErr *contactService.ValidationError
	var submitErr *contactService.SubmitError
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, map[string]string{"message": contactService.SuccessMessage})
	case errors.As(err, &validationErr):
		utils.RespondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  validationErr.Error(),
			"fields": validationErr.Fields,
		})
	case errors.Is(err, contactService.ErrBackendNotConfigured):
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &submitErr):
		utils.RespondError(w, http.StatusBadGateway, submitErr.Error())
	case errors.Is(err, contactService.ErrNetwork):
		utils.RespondError(w, http.StatusBadGateway, contactService.ErrNetwork.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "failed to send message")
	}
}

// handlePurposes 返回可选的联系目的
func (h *Handler) handlePurposes(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, contactService.Purposes)
}

package knowledge

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/camwood/camwood-site/backend/internal/analysis/matcher"
	"github.com/camwood/camwood-site/backend/internal/model/knowledge"
	"github.com/camwood/camwood-site/backend/pkg/utils"
)

// Handler 知识库的HTTP处理器
type Handler struct {
	store   knowledge.Store
	matcher *matcher.Matcher
}

// New 创建知识库处理器
func New(store knowledge.Store, m *matcher.Matcher) *Handler {
	return &Handler{
		store:   store,
		matcher: m,
	}
}

// RegisterRoutes 注册知识库相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/knowledge", h.handleList)
	r.Get("/knowledge/match", h.handleMatch)
}

type listResponse struct {
	SuggestedQuestions []string             `json:"suggestedQuestions"`
	Categories         []knowledge.Category `json:"categories"`
}

type matchResponse struct {
	Query   string           `json:"query"`
	Matched bool             `json:"matched"`
	Entry   *knowledge.Entry `json:"entry,omitempty"`
	Scores  []matcher.Scored `json:"scores,omitempty"`
}

// handleList 列出所有分类与条目
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, listResponse{
		SuggestedQuestions: h.store.SuggestedQuestions(),
		Categories:         h.store.Categories(),
	})
}

// handleMatch 对查询执行本地匹配，explain=true 时附带每个条目的得分
func (h *Handler) handleMatch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		utils.RespondError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}

	resp := matchResponse{Query: query}
	if entry, ok := h.matcher.Match(query); ok {
		resp.Matched = true
		resp.Entry = &entry
	}
	if r.URL.Query().Get("explain") == "true" {
		resp.Scores = h.matcher.Explain(query)
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

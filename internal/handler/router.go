package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/camwood/camwood-site/backend/internal/analysis/matcher"
	"github.com/camwood/camwood-site/backend/internal/handler/chat"
	"github.com/camwood/camwood-site/backend/internal/handler/contact"
	knowledgeHandler "github.com/camwood/camwood-site/backend/internal/handler/knowledge"
	"github.com/camwood/camwood-site/backend/internal/handler/stream"
	"github.com/camwood/camwood-site/backend/internal/handler/widget"
	middlewarePkg "github.com/camwood/camwood-site/backend/internal/middleware"
	"github.com/camwood/camwood-site/backend/internal/model/knowledge"
	chatService "github.com/camwood/camwood-site/backend/internal/service/chat"
	"github.com/camwood/camwood-site/backend/internal/service/conversation"
)

// Dependencies are the services the HTTP layer is wired to.
type Dependencies struct {
	Knowledge       knowledge.Store
	Matcher         *matcher.Matcher
	Sessions        *chatService.Service
	NewConversation func() *conversation.Controller
	Contact         contact.Submitter
	Logger          *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  zap.NewStdLog(logger.Named("http")),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	knowledgeH := knowledgeHandler.New(deps.Knowledge, deps.Matcher)
	chatH := chat.New(deps.Sessions, logger)
	streamH := stream.New(deps.Sessions, logger)
	widgetH := widget.NewWebSocketHandler(deps.NewConversation, logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(api chi.Router) {
		knowledgeH.RegisterRoutes(api)

		api.Route("/assistant/sessions", func(sessions chi.Router) {
			chatH.RegisterRoutes(sessions)
			streamH.RegisterRoutes(sessions)
		})
		widgetH.RegisterWebSocketRoutes(api)

		if deps.Contact != nil {
			contact.New(deps.Contact).RegisterRoutes(api)
		}
	})

	return r
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/camwood/camwood-site/backend/internal/analysis/matcher"
	"github.com/camwood/camwood-site/backend/internal/config"
	"github.com/camwood/camwood-site/backend/internal/handler"
	"github.com/camwood/camwood-site/backend/internal/logging"
	"github.com/camwood/camwood-site/backend/internal/model/knowledge"
	"github.com/camwood/camwood-site/backend/internal/service/ai"
	"github.com/camwood/camwood-site/backend/internal/service/chat"
	"github.com/camwood/camwood-site/backend/internal/service/contact"
	"github.com/camwood/camwood-site/backend/internal/service/conversation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Info("no .env file loaded, continuing with system environment variables only", zap.Error(envErr))
	}

	knowledgeStore := knowledge.NewMemoryStore(knowledge.Seed())
	localMatcher := matcher.NewFromStore(knowledgeStore)
	logger.Info("knowledge base loaded", zap.Int("entries", len(knowledgeStore.Entries())))

	responder := ai.NewResponder(cfg.Assistant, ai.WithLogger(logger))
	if responder.Enabled() {
		logger.Info("generative fallback enabled", zap.String("model", cfg.Assistant.Model))
	} else {
		logger.Warn("GEMINI_API_KEY not set, unmatched questions will be escalated")
	}

	opts := conversation.OptionsFromConfig(cfg.Assistant)
	newConversation := func() *conversation.Controller {
		return conversation.New(localMatcher, responder, opts, logger)
	}
	sessions := chat.NewService(newConversation, cfg.Assistant.SessionTTL, logger)
	defer sessions.Shutdown()

	contactClient := contact.NewClient(cfg.Contact, logger)
	if !contactClient.Configured() {
		logger.Warn("CONTACT_BACKEND_URL not set, contact submissions will be rejected")
	}

	router := handler.NewRouter(handler.Dependencies{
		Knowledge:       knowledgeStore,
		Matcher:         localMatcher,
		Sessions:        sessions,
		NewConversation: newConversation,
		Contact:         contactClient,
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Camwood assistant backend listening", zap.String("addr", srv.Addr))
		return runServer(gctx, srv)
	})
	g.Go(func() error {
		return sessions.RunReaper(gctx, reaperInterval(cfg.Assistant.SessionTTL))
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func reaperInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	if interval > time.Minute {
		interval = time.Minute
	}
	return interval
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

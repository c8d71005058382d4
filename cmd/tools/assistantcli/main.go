package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/camwood/camwood-site/backend/internal/analysis/matcher"
	"github.com/camwood/camwood-site/backend/internal/config"
	"github.com/camwood/camwood-site/backend/internal/logging"
	"github.com/camwood/camwood-site/backend/internal/model/knowledge"
)

var rootCmd = &cobra.Command{
	Use:           "assistantcli",
	Short:         "Query the Camwood assistant from a terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log at debug level")
	rootCmd.AddCommand(newMatchCmd(), newChatCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

type runtime struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *knowledge.MemoryStore
	matcher *matcher.Matcher
}

// loadRuntime reads .env and the environment and builds the local knowledge pipeline.
func loadRuntime(cmd *cobra.Command) (*runtime, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Log
	logCfg.Level = "warn"
	logCfg.Development = true
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}

	store := knowledge.NewMemoryStore(knowledge.Seed())
	return &runtime{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		matcher: matcher.NewFromStore(store),
	}, nil
}

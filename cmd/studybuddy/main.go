package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"studybuddy-backend/internal/config"
	"studybuddy-backend/internal/logging"
	"studybuddy-backend/internal/services"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "studybuddy",
		Short:         "Ask questions about a PDF, answered only from its contents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("log-level", "", "Log level (trace, debug, info, warn, error); overrides LOG_LEVEL")

	rootCmd.AddCommand(newServeCommand(), newChatCommand())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// loadConfig reads the environment and sets up logging. The --log-level
// flag wins over LOG_LEVEL; fallbackLevel applies when neither is set.
func loadConfig(cmd *cobra.Command, fallbackLevel string) (*config.Config, error) {
	cfg := config.Load()

	level := fallbackLevel
	if cmd.Flags().Changed("log-level") {
		level, _ = cmd.Flags().GetString("log-level")
	} else if os.Getenv("LOG_LEVEL") != "" {
		level = cfg.LogLevel
	}

	pretty := cfg.IsDevelopment() && isatty.IsTerminal(os.Stderr.Fd())
	if err := logging.Setup(os.Stderr, level, pretty); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newStudyService wires the extraction, model and conversation layers
// shared by both front ends.
func newStudyService(cfg *config.Config, extractor services.Extractor) (*services.StudyService, *services.ModelCache) {
	modelCache := services.NewModelCache(services.NewGeminiFactory(cfg.GeminiModel))
	conversation := services.NewConversationService(services.RetryPolicy{
		MaxAttempts: cfg.GeminiMaxAttempts,
		Delay:       cfg.GeminiRetryDelay,
	})

	study := services.NewStudyService(
		extractor,
		services.NewTokenEstimator(),
		modelCache,
		conversation,
		cfg.GeminiAPIKey,
	)
	return study, modelCache
}

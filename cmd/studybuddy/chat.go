package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"studybuddy-backend/internal/services"
	"studybuddy-backend/internal/shell"
)

func newChatCommand() *cobra.Command {
	var (
		pdfPath string
		apiKey  string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat about a PDF in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, "warn")
			if err != nil {
				return err
			}

			study, modelCache := newStudyService(cfg, services.NewFileExtractService())
			defer modelCache.Close()

			sh := shell.New(study, os.Stdin, os.Stdout)
			if apiKey != "" {
				sh.SetCredential(apiKey)
			}
			if pdfPath != "" {
				if err := sh.Load(cmd.Context(), pdfPath); err != nil {
					return err
				}
			}

			// An interrupt cancels a pending answer or retry wait and leaves
			// the shell. Default handling is then restored, so a second one
			// terminates the process.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			go func() {
				<-ctx.Done()
				stop()
			}()
			return sh.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&pdfPath, "pdf", "", "PDF to load before the first question")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Gemini API key (defaults to GEMINI_API_KEY)")
	return cmd
}

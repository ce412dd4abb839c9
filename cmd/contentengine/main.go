// Command contentengine runs the content generation pipeline.
//
// Each stage is a subcommand that reads its upstream output from the run
// store and persists its own, so a single stage can be re-run for an existing
// run. `run` executes every stage for a new run and prints the report.
//
// Usage:
//
//	go run ./cmd/contentengine run [--config configs/pipeline.yaml]
//	go run ./cmd/contentengine draft --run <id> --target 50 --seed 7
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/logger"
)

var (
	configPath string
	runFlag    string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "contentengine",
	Short: "Quality-gated content generation pipeline",
	Long: `contentengine turns brand assets into scored, repaired, de-duplicated
content units and packages the accepted ones into render and publish tasks.

Stages: ingest, plan, draft, score, repair, dedupe, package, report.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is normal outside local development.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/pipeline.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&runFlag, "run", "", "run id (defaults to the latest run)")

	rootCmd.AddCommand(ingestCmd, runCmd, resumeCmd, reportCmd, draftCmd)
	for _, c := range stageCmds() {
		rootCmd.AddCommand(c)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if apperrors.IsFatal(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

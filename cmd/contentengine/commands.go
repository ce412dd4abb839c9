package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/runstate"
)

var (
	draftTarget int
	draftSeed   uint64
	resumeFrom  string
	reportJSON  bool
)

// withApp builds the app for one command and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// runFor resolves the run and returns a runner bound to its configuration.
func runFor(ctx context.Context, a *app) (*pipeline.Runner, string, error) {
	runID, err := resolveRun(ctx, a)
	if err != nil {
		return nil, "", err
	}
	r, err := a.runner.ForRun(ctx, runID)
	if err != nil {
		return nil, "", err
	}
	return r, runID, nil
}

// resolveRun returns the --run flag or the latest run id.
func resolveRun(ctx context.Context, a *app) (string, error) {
	if runFlag != "" {
		return runFlag, nil
	}
	id, err := a.runner.LatestRun(ctx)
	if err != nil {
		return "", fmt.Errorf("no --run given and no latest run: %w", err)
	}
	return id, nil
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Start a new run and ingest the configured asset locations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			run, err := a.runner.Start(ctx)
			if err != nil {
				return err
			}
			if err := a.runner.Ingest(ctx, run.RunID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), run.RunID)
			return nil
		})
	},
}

// stageCmds returns one command per stage that only needs a run id.
func stageCmds() []*cobra.Command {
	stages := []struct {
		use   string
		stage runstate.Stage
		short string
	}{
		{"plan", runstate.StagePlan, "Build the content agenda"},
		{"score", runstate.StageScore, "Score drafted units against the rubric and hard constraints"},
		{"repair", runstate.StageRepair, "Repair units below the quality threshold"},
		{"dedupe", runstate.StageDedup, "Mark near-duplicate units and rebuild the similarity index"},
		{"package", runstate.StagePackage, "Build render and publish tasks for accepted units"},
	}
	cmds := make([]*cobra.Command, 0, len(stages))
	for _, s := range stages {
		cmds = append(cmds, &cobra.Command{
			Use:   s.use,
			Short: s.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, func(ctx context.Context, a *app) error {
					r, runID, err := runFor(ctx, a)
					if err != nil {
						return err
					}
					return r.RunStage(ctx, runID, s.stage)
				})
			},
		})
	}
	return cmds
}

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Draft content units for the planned agenda",
	Long: `Draft content units for the run's agenda.

With --target or --seed the run is forked: a new run reuses the ingested
assets, is planned with the new size and seed, and is drafted. The new run id
is printed and becomes the latest run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			runID, err := resolveRun(ctx, a)
			if err != nil {
				return err
			}
			targetSet := cmd.Flags().Changed("target")
			seedSet := cmd.Flags().Changed("seed")
			if !targetSet && !seedSet {
				r, err := a.runner.ForRun(ctx, runID)
				if err != nil {
					return err
				}
				return r.Draft(ctx, runID)
			}

			var seed *uint64
			if seedSet {
				seed = &draftSeed
			}
			target := 0
			if targetSet {
				if draftTarget <= 0 {
					return fmt.Errorf("--target must be positive")
				}
				target = draftTarget
			}
			fork, run, err := a.runner.Fork(ctx, runID, target, seed)
			if err != nil {
				return err
			}
			if err := fork.Draft(ctx, run.RunID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), run.RunID)
			return nil
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a new run and execute every stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			rep, err := a.runner.RunAll(ctx)
			if err != nil {
				return err
			}
			return writeReport(cmd, rep)
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Execute the stages of an existing run from a given stage onwards",
	RunE: func(cmd *cobra.Command, args []string) error {
		stage, err := runstate.ParseStage(resumeFrom)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			r, runID, err := runFor(ctx, a)
			if err != nil {
				return err
			}
			rep, err := r.Resume(ctx, runID, stage)
			if err != nil {
				return err
			}
			return writeReport(cmd, rep)
		})
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarise a run's outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			runID, err := resolveRun(ctx, a)
			if err != nil {
				return err
			}
			rep, err := a.runner.Report(ctx, runID)
			if err != nil {
				return err
			}
			return writeReport(cmd, rep)
		})
	},
}

func writeReport(cmd *cobra.Command, rep pipeline.Report) error {
	if reportJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	return rep.WriteText(cmd.OutOrStdout())
}

func init() {
	draftCmd.Flags().IntVar(&draftTarget, "target", 0, "fork the run with this many units")
	draftCmd.Flags().Uint64Var(&draftSeed, "seed", 0, "fork the run with this seed")
	resumeCmd.Flags().StringVar(&resumeFrom, "from", string(runstate.StageIngest), "first stage to execute")
	for _, c := range []*cobra.Command{runCmd, resumeCmd, reportCmd} {
		c.Flags().BoolVar(&reportJSON, "json", false, "print the report as JSON")
	}
	// Errors go to stderr through main; keep stdout for run ids and reports.
	rootCmd.SetErr(os.Stderr)
}

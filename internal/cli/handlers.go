package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BartekS5/dailyetl/internal/config"
	"github.com/BartekS5/dailyetl/internal/etl"
)

func runPipeline(cmd *cobra.Command, cfg *config.Config) error {
	pipeline, err := etl.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	report, err := pipeline.Run(cmd.Context())
	if report != nil {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "run %s: %s\n", report.ID, report.State)
		if report.State == etl.StateDone {
			fmt.Fprintf(out, "extracted %d rows, cleaned %d rows, indexed %d documents into %s\n",
				report.Extracted, report.Cleaned, report.Documents, cfg.Index.Name)
		} else if report.FailedStage != "" {
			fmt.Fprintf(out, "failed in %s stage\n", report.FailedStage)
		}
	}
	return err
}

func runStage(cmd *cobra.Command, cfg *config.Config, stage string) error {
	pipeline, err := etl.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	switch stage {
	case stageExtract:
		n, err := pipeline.Extract(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "extracted %d rows into %s\n", n, cfg.Artifacts.RawPath)
	case stageClean:
		report, err := pipeline.Clean(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "cleaned %d rows into %d (%d duplicates removed) in %s\n",
			report.RowsIn, report.RowsOut, report.Duplicates, cfg.Artifacts.CleanedPath)
	case stageLoad:
		n, err := pipeline.Load(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "indexed %d documents into %s\n", n, cfg.Index.Name)
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
	return nil
}

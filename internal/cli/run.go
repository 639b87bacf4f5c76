package cli

import (
	"github.com/spf13/cobra"

	"github.com/BartekS5/dailyetl/internal/etl"
)

const (
	stageExtract = etl.StageExtract
	stageClean   = etl.StageClean
	stageLoad    = etl.StageLoad
)

var stageDescriptions = map[string]string{
	stageExtract: "Read the source table into the raw artifact",
	stageClean:   "Clean the raw artifact into the cleaned artifact",
	stageLoad:    "Bulk index the cleaned artifact",
}

func newRunCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run extract, clean and load once, stopping at the first failure",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runPipeline(c, opts.cfg)
		},
	}
}

// newStageCmd runs a single stage. Stages only share the artifact files,
// so a failed run can be resumed by hand from the stage that failed.
func newStageCmd(opts *Options, stage string) *cobra.Command {
	return &cobra.Command{
		Use:   stage,
		Short: stageDescriptions[stage],
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runStage(c, opts.cfg, stage)
		},
	}
}

// Package cli wires the pipeline into the dailyetl command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/BartekS5/dailyetl/internal/config"
	"github.com/BartekS5/dailyetl/pkg/logger"
)

// Options are the flags shared by every command, plus the configuration
// they resolve to.
type Options struct {
	ConfigFile string
	LogLevel   string

	cfg *config.Config
}

func NewRootCmd() *cobra.Command {
	opts := &Options{}

	rootCmd := &cobra.Command{
		Use:   "dailyetl",
		Short: "dailyetl - daily relational table to search index pipeline",
		Long: `dailyetl extracts a relational table into a raw CSV artifact, cleans it
(deduplication, median and placeholder imputation, column name normalization)
into a cleaned artifact, and bulk indexes the cleaned rows as documents.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level (overrides log.level)")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newStageCmd(opts, stageExtract),
		newStageCmd(opts, stageClean),
		newStageCmd(opts, stageLoad),
		newScheduleCmd(opts),
		newWorkflowCmd(opts),
	)
	return rootCmd
}

func (o *Options) load() error {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if o.LogLevel != "" {
		level = o.LogLevel
	}
	if err := logger.Init(level, cfg.Log.Format); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

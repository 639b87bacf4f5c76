package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newWorkflowCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "workflow",
		Short: "Print the scheduled workflow definition as YAML",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(c.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(opts.cfg.Workflow()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

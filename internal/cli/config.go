package cli

import (
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved job configuration as YAML",
	Long: `Resolve a job the same way compress does and print it as YAML without
running it. The output can be saved and passed back with --config.

Examples:
  ctxcompress config --corpus medical_en --level 3
  ctxcompress config --config jobs/legal.yaml --server-urls http://gpu0:8091/compress`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	addJobFlags(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	job, err := buildJob(cmd)
	if err != nil {
		return err
	}
	data, err := job.Marshal()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

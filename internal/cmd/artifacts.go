package cmd

import (
	"github.com/spf13/cobra"
)

var artifactsGlob string

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Inspect files stored in a plan workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var artifactsListCmd = &cobra.Command{
	Use:     "ls <plan>",
	Aliases: []string{"list"},
	Short:   "List workspace entries",
	Long: `List workspace entries, optionally filtered by a glob.

Patterns use doublestar syntax, so ** matches across directories.

Examples:
  plancraft artifacts ls plan-0192f3a1b2c3d4e5f6a7
  plancraft artifacts ls plan-0192f3a1b2c3d4e5f6a7 --glob 'artifacts/**/*.md'
  plancraft artifacts ls plan-0192f3a1b2c3d4e5f6a7 --glob 'checkpoints/*'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := current.open(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		entries, err := e.Artifacts(cmd.Context(), artifactsGlob)
		if err != nil {
			return err
		}
		return render(cmd, entryList(entries))
	},
}

func init() {
	artifactsListCmd.Flags().StringVar(&artifactsGlob, "glob", "", "doublestar pattern to filter entries")

	artifactsCmd.AddCommand(artifactsListCmd)
	rootCmd.AddCommand(artifactsCmd)
}

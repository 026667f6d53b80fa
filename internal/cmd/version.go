package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/plancraft/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return render(cmd, version.GetInfo())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/plancraft/internal/ux"
)

var (
	cfgFile      string
	outputFormat string
	noColor      bool
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "plancraft",
	Short: "Phased plan execution with resumable checkpoints",
	Long: `plancraft manages phased execution plans: phases that depend on each
other, tasks inside phases, and ordered subtasks inside tasks.

It decides which task should run next, tracks progress, and writes a
checkpoint after every change so work can be resumed after interruption.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command with ctx and releases whatever the command
// opened, whether it succeeded or not.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if current != nil {
		current.close(ctx, err)
		current = nil
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.plancraft/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "o", "text", "output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	_ = rootCmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return ux.Formats, cobra.ShellCompDirectiveNoFileComp
	})
}

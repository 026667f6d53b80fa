package cmd

import (
	"github.com/spf13/cobra"
)

var nextExplain bool

var nextCmd = &cobra.Command{
	Use:   "next <plan>",
	Short: "Show the task that should run next",
	Long: `Show the task that should run next.

Phases are considered in creation order and only the first eligible phase
is examined. When nothing can run, the reason is printed instead: work in
flight, a failed task, a blocked or waiting phase, or a finished plan.
--explain lists every phase that was passed over and why.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := current.open(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return render(cmd, decisionView{PlanID: e.ID(), Decision: e.Decide(cmd.Context()), explain: nextExplain})
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress <plan>",
	Short: "Show task completion for a plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := current.open(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		pr := e.Progress()
		current.metrics.RecordProgress(e.ID().String(), pr.TasksCompleted, pr.TotalTasks, pr.PercentComplete)
		return render(cmd, progressView{PlanID: e.ID(), Progress: pr})
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <plan>",
	Short: "Print a report of every phase and task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := current.open(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if outputFormat == "text" && noColor {
			_, err := cmd.OutOrStdout().Write([]byte(e.GenerateReport()))
			return err
		}
		return render(cmd, reportView{e.Report()})
	},
}

func init() {
	nextCmd.Flags().BoolVar(&nextExplain, "explain", false, "list skipped phases and why")

	rootCmd.AddCommand(nextCmd, progressCmd, reportCmd)
}

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/engine"
	"github.com/felixgeelhaar/plancraft/internal/plan"
)

var (
	subtaskDescription string
	subtaskThinking    string
	subtaskOrder       int
)

var subtaskCmd = &cobra.Command{
	Use:   "subtask",
	Short: "Add, start, and complete ordered subtasks",
	Long: `Add, start, and complete ordered subtasks.

Subtasks run in order inside a started task. A subtask can only start once
every subtask before it is completed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var subtaskAddCmd = &cobra.Command{
	Use:   "add <plan> <task> <title>",
	Short: "Add a subtask to a task",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec := plan.SubtaskSpec{
			Title:           args[2],
			Description:     subtaskDescription,
			ThinkingProcess: subtaskThinking,
			Order:           subtaskOrder,
		}
		return current.change(cmd, args[0], "added subtask", func(ctx context.Context, e *engine.Engine) ([]plan.Transition, string, error) {
			st, err := e.AddSubtask(ctx, domain.TaskID(args[1]), spec)
			if err != nil {
				return nil, "", err
			}
			return nil, st.ID.String(), nil
		})
	},
}

var subtaskStartCmd = &cobra.Command{
	Use:   "start <plan> <subtask>",
	Short: "Start the next subtask of a running task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.change(cmd, args[0], "started subtask", func(ctx context.Context, e *engine.Engine) ([]plan.Transition, string, error) {
			trs, err := e.StartSubtask(ctx, domain.SubtaskID(args[1]))
			return trs, "", err
		})
	},
}

var subtaskCompleteCmd = &cobra.Command{
	Use:   "complete <plan> <subtask>",
	Short: "Complete an in-progress subtask",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.change(cmd, args[0], "completed subtask", func(ctx context.Context, e *engine.Engine) ([]plan.Transition, string, error) {
			trs, err := e.CompleteSubtask(ctx, domain.SubtaskID(args[1]))
			return trs, "", err
		})
	},
}

func init() {
	subtaskAddCmd.Flags().StringVarP(&subtaskDescription, "description", "d", "", "subtask description")
	subtaskAddCmd.Flags().StringVar(&subtaskThinking, "thinking", "", "reasoning behind the subtask")
	subtaskAddCmd.Flags().IntVar(&subtaskOrder, "order", 0, "position among siblings (0 appends)")

	subtaskCmd.AddCommand(subtaskAddCmd, subtaskStartCmd, subtaskCompleteCmd)
	rootCmd.AddCommand(subtaskCmd)
}

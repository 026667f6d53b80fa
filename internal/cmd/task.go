package cmd

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/engine"
	"github.com/felixgeelhaar/plancraft/internal/plan"
)

var (
	taskDescription string
	taskObjective   string
	taskCriteria    []string

	taskFailed    bool
	taskOutput    string
	taskArtifacts []string
	taskAttach    []string
	taskThinking  []string

	taskReopenReason string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Add, start, complete, and reopen tasks",
	Long: `Add, start, complete, and reopen tasks.

A task moves pending -> in_progress -> completed or failed. A failed task
holds its phase until it is reopened. Starting the first task of a phase
starts the phase; completing its last task completes the phase.

Examples:
  plancraft task add plan-0192f3a1b2c3d4e5f6a7 phase-1 "Write spec"
  plancraft task start plan-0192f3a1b2c3d4e5f6a7 task-1
  plancraft task complete plan-0192f3a1b2c3d4e5f6a7 task-1 --output "approved" --attach spec.md
  plancraft task complete plan-0192f3a1b2c3d4e5f6a7 task-2 --failed --output "tests red"
  plancraft task reopen plan-0192f3a1b2c3d4e5f6a7 task-2 --reason "retry after fix"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var taskAddCmd = &cobra.Command{
	Use:   "add <plan> <phase> <title>",
	Short: "Append a task to a phase",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec := plan.TaskSpec{Title: args[2], Description: taskDescription}
		if taskObjective != "" || len(taskCriteria) > 0 {
			spec.Context = &plan.TaskContext{Objective: taskObjective, SuccessCriteria: taskCriteria}
		}
		return current.change(cmd, args[0], "added task", func(ctx context.Context, e *engine.Engine) ([]plan.Transition, string, error) {
			t, err := e.CreateTask(ctx, domain.PhaseID(args[1]), spec)
			if err != nil {
				return nil, "", err
			}
			return nil, t.ID.String(), nil
		})
	},
}

var taskStartCmd = &cobra.Command{
	Use:   "start <plan> <task>",
	Short: "Start a pending task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.change(cmd, args[0], "started task", func(ctx context.Context, e *engine.Engine) ([]plan.Transition, string, error) {
			trs, err := e.StartTask(ctx, domain.TaskID(args[1]))
			return trs, "", err
		})
	},
}

var taskCompleteCmd = &cobra.Command{
	Use:   "complete <plan> <task>",
	Short: "Record the result of an in-progress task",
	Long: `Record the result of an in-progress task.

--attach copies local files into the plan workspace under
artifacts/<task>/ and records them on the result alongside any --artifact
references.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID := domain.TaskID(args[1])
		action := "completed task"
		if taskFailed {
			action = "failed task"
		}
		return current.change(cmd, args[0], action, func(ctx context.Context, e *engine.Engine) ([]plan.Transition, string, error) {
			t, err := e.Task(taskID)
			if err != nil {
				return nil, "", err
			}
			artifacts := append([]string(nil), taskArtifacts...)
			attachments := taskAttach
			// CompleteTask rejects any other status
			if t.Status != domain.TaskInProgress {
				attachments = nil
			}
			for _, local := range attachments {
				name, err := attach(ctx, e, taskID, local)
				if err != nil {
					return nil, "", err
				}
				artifacts = append(artifacts, name)
			}
			trs, err := e.CompleteTask(ctx, taskID, plan.TaskResult{
				Success:       !taskFailed,
				Output:        taskOutput,
				Artifacts:     artifacts,
				ThinkingSteps: taskThinking,
			})
			return trs, "", err
		})
	},
}

var taskReopenCmd = &cobra.Command{
	Use:   "reopen <plan> <task>",
	Short: "Return a failed or completed task to pending",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.change(cmd, args[0], "reopened task", func(ctx context.Context, e *engine.Engine) ([]plan.Transition, string, error) {
			trs, err := e.ReopenTask(ctx, domain.TaskID(args[1]), taskReopenReason)
			return trs, "", err
		})
	},
}

// attach copies a local file into the workspace and returns its workspace
// path.
func attach(ctx context.Context, e *engine.Engine, taskID domain.TaskID, local string) (string, error) {
	data, err := os.ReadFile(local)
	if err != nil {
		return "", fmt.Errorf("failed to read attachment: %w", err)
	}
	name := path.Join(taskID.String(), filepath.Base(local))
	if err := e.WriteArtifact(ctx, name, data); err != nil {
		return "", err
	}
	return path.Join("artifacts", name), nil
}

func init() {
	taskAddCmd.Flags().StringVarP(&taskDescription, "description", "d", "", "task description")
	taskAddCmd.Flags().StringVar(&taskObjective, "objective", "", "what the task must achieve")
	taskAddCmd.Flags().StringArrayVar(&taskCriteria, "success-criteria", nil, "success criterion (repeatable)")

	taskCompleteCmd.Flags().BoolVar(&taskFailed, "failed", false, "record the task as failed")
	taskCompleteCmd.Flags().StringVar(&taskOutput, "output", "", "result output")
	taskCompleteCmd.Flags().StringArrayVar(&taskArtifacts, "artifact", nil, "artifact reference to record (repeatable)")
	taskCompleteCmd.Flags().StringArrayVar(&taskAttach, "attach", nil, "local file to copy into the workspace (repeatable)")
	taskCompleteCmd.Flags().StringArrayVar(&taskThinking, "thinking", nil, "reasoning step to record (repeatable)")

	taskReopenCmd.Flags().StringVar(&taskReopenReason, "reason", "", "why the task is reopened")

	taskCmd.AddCommand(taskAddCmd, taskStartCmd, taskCompleteCmd, taskReopenCmd)
	rootCmd.AddCommand(taskCmd)
}

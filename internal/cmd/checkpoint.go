package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/errors"
	"github.com/felixgeelhaar/plancraft/internal/progress"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "List, inspect, and restore plan checkpoints",
	Long: `List, inspect, and restore plan checkpoints.

A checkpoint is written after every change to a plan. Restoring an older
checkpoint writes it again as the newest one, so history is never lost.

Examples:
  plancraft checkpoint list plan-0192f3a1b2c3d4e5f6a7
  plancraft checkpoint show plan-0192f3a1b2c3d4e5f6a7 cp-0192f3a1-...
  plancraft checkpoint restore plan-0192f3a1b2c3d4e5f6a7 cp-0192f3a1-...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var checkpointListCmd = &cobra.Command{
	Use:     "list <plan>",
	Aliases: []string{"ls"},
	Short:   "List checkpoints, newest first",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := current.open(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		sums, err := e.Checkpoints(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd, checkpointList(sums))
	},
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show <plan> <checkpoint>",
	Short: "Show one checkpoint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := validatePlanID(args[0]); err != nil {
			return err
		}
		mgr, err := current.checkpoints(ctx)
		if err != nil {
			return err
		}
		cp, size, err := mgr.Load(ctx, args[0], domain.CheckpointID(args[1]))
		if err != nil {
			return err
		}
		p, err := cp.Plan()
		if err != nil {
			return err
		}
		return render(cmd, checkpointDetail{
			Summary:  cp.Summary(size),
			Progress: progress.Compute(p),
			Phases:   len(p.PhaseOrder),
		})
	},
}

var checkpointRestoreCmd = &cobra.Command{
	Use:   "restore <plan> <checkpoint>",
	Short: "Make an older checkpoint the current state",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := current.open(ctx, args[0])
		if err != nil {
			return err
		}
		id := domain.CheckpointID(args[1])
		if err := e.RestoreCheckpoint(ctx, id); err != nil {
			return err
		}
		sum, err := e.CreateCheckpoint(ctx, map[string]string{
			"command":       cmd.CommandPath(),
			"restored_from": id.String(),
		})
		if err != nil {
			return err
		}
		return render(cmd, changeView{Action: "restored checkpoint", PlanID: e.ID(), Created: id.String(), Checkpoint: sum})
	},
}

func validatePlanID(id string) error {
	if err := domain.PlanID(id).Validate(); err != nil {
		return errors.Validation(errors.ErrCodeInvalidDefinition, "%v", err)
	}
	return nil
}

func init() {
	checkpointCmd.AddCommand(checkpointListCmd, checkpointShowCmd, checkpointRestoreCmd)
	rootCmd.AddCommand(checkpointCmd)
}

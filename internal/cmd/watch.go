package cmd

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/tui"
	"github.com/felixgeelhaar/plancraft/internal/workspace"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <plan>",
	Short: "Follow a plan's progress live in the terminal",
	Long: `Follow a plan's progress live in the terminal.

The view reloads whenever another plancraft command writes a checkpoint.
With the fs backend the checkpoint directory is watched for changes; with
the nats backend the newest checkpoint is polled every --interval.

Keys: r reload, q quit.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		ws := args[0]
		if err := validatePlanID(ws); err != nil {
			return err
		}
		mgr, err := current.checkpoints(ctx)
		if err != nil {
			return err
		}
		if _, err := mgr.Latest(ctx, ws); err != nil {
			return err
		}

		load := func(ctx context.Context) (tui.Snapshot, error) {
			id, err := mgr.Latest(ctx, ws)
			if err != nil {
				return tui.Snapshot{}, err
			}
			p, err := mgr.Restore(ctx, ws, id)
			if err != nil {
				return tui.Snapshot{}, err
			}
			return tui.Snapshot{Plan: p, Checkpoint: id}, nil
		}

		var changes <-chan domain.CheckpointID
		if fs, ok := mgr.Store().(*workspace.FSStore); ok {
			w, err := tui.WatchDir(fs.CheckpointDir(ws), current.logger.Slog())
			if err != nil {
				current.logger.Warn("falling back to polling", "error", err)
			} else {
				defer w.Close()
				changes = w.Changes()
			}
		}
		if changes == nil {
			changes = tui.Poll(ctx, watchInterval, func(ctx context.Context) (domain.CheckpointID, error) {
				return mgr.Latest(ctx, ws)
			})
		}

		model := tui.NewModel(load, changes, noColor)
		_, err = tea.NewProgram(model,
			tea.WithContext(ctx),
			tea.WithInput(cmd.InOrStdin()),
			tea.WithOutput(cmd.OutOrStdout()),
		).Run()
		if err != nil && ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "poll interval when the store cannot be watched")

	rootCmd.AddCommand(watchCmd)
}

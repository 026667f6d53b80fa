package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/engine"
	"github.com/felixgeelhaar/plancraft/internal/plan"
)

var (
	phaseDescription  string
	phaseDependsOn    []string
	phaseExitCriteria []string
	phaseBlockReason  string
)

var phaseCmd = &cobra.Command{
	Use:   "phase",
	Short: "Add, block, and unblock phases",
	Long: `Add, block, and unblock phases.

Phases run in creation order. A phase becomes eligible once every phase it
depends on is completed. Blocking a phase also blocks every phase that
depends on it, directly or transitively.

Examples:
  plancraft phase add plan-0192f3a1b2c3d4e5f6a7 Build --depends-on phase-1
  plancraft phase block plan-0192f3a1b2c3d4e5f6a7 phase-2 --reason "waiting on legal"
  plancraft phase unblock plan-0192f3a1b2c3d4e5f6a7 phase-2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var phaseAddCmd = &cobra.Command{
	Use:   "add <plan> <name>",
	Short: "Append a phase to a plan",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps := make([]domain.PhaseID, len(phaseDependsOn))
		for i, d := range phaseDependsOn {
			deps[i] = domain.PhaseID(d)
		}
		spec := plan.PhaseSpec{
			Name:         args[1],
			Description:  phaseDescription,
			ExitCriteria: phaseExitCriteria,
			DependsOn:    deps,
		}
		return current.change(cmd, args[0], "added phase", func(ctx context.Context, e *engine.Engine) ([]plan.Transition, string, error) {
			ph, err := e.CreatePhase(ctx, spec)
			if err != nil {
				return nil, "", err
			}
			return nil, ph.ID.String(), nil
		})
	},
}

var phaseBlockCmd = &cobra.Command{
	Use:   "block <plan> <phase>",
	Short: "Block a phase and its dependents",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.change(cmd, args[0], "blocked phase", func(ctx context.Context, e *engine.Engine) ([]plan.Transition, string, error) {
			trs, err := e.BlockPhase(ctx, domain.PhaseID(args[1]), phaseBlockReason)
			return trs, "", err
		})
	},
}

var phaseUnblockCmd = &cobra.Command{
	Use:   "unblock <plan> <phase>",
	Short: "Release a blocked phase and the dependents it blocked",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.change(cmd, args[0], "unblocked phase", func(ctx context.Context, e *engine.Engine) ([]plan.Transition, string, error) {
			trs, err := e.UnblockPhase(ctx, domain.PhaseID(args[1]))
			return trs, "", err
		})
	},
}

func init() {
	phaseAddCmd.Flags().StringVarP(&phaseDescription, "description", "d", "", "phase description")
	phaseAddCmd.Flags().StringSliceVar(&phaseDependsOn, "depends-on", nil, "phases that must complete first (repeatable)")
	phaseAddCmd.Flags().StringArrayVar(&phaseExitCriteria, "exit-criteria", nil, "exit criterion (repeatable)")

	phaseBlockCmd.Flags().StringVar(&phaseBlockReason, "reason", "", "why the phase is blocked")
	_ = phaseBlockCmd.MarkFlagRequired("reason")

	phaseCmd.AddCommand(phaseAddCmd, phaseBlockCmd, phaseUnblockCmd)
	rootCmd.AddCommand(phaseCmd)
}

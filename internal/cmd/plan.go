package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/engine"
	"github.com/felixgeelhaar/plancraft/internal/plan"
	"github.com/felixgeelhaar/plancraft/internal/progress"
)

var (
	planCreateID          string
	planCreateDescription string
	planApplyFile         string
	planApplyID           string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Create, list, and inspect plans",
	Long: `Create, list, and inspect plans.

A plan is a named set of phases. Every change to a plan writes a new
checkpoint, and commands always work from the newest one.

Examples:
  plancraft plan create "Auth rollout" --description "login and sessions"
  plancraft plan apply -f auth.yaml
  plancraft plan list
  plancraft plan show plan-0192f3a1b2c3d4e5f6a7`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var planCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := current.create(ctx, domain.PlanID(planCreateID), args[0], planCreateDescription)
		if err != nil {
			return err
		}
		sum, err := current.persist(ctx, cmd, e)
		if err != nil {
			return err
		}
		return render(cmd, changeView{Action: "created plan", PlanID: e.ID(), Created: args[0], Checkpoint: sum})
	},
}

var planApplyCmd = &cobra.Command{
	Use:   "apply -f <file>",
	Short: "Create a plan from a YAML definition, or add one to an existing plan",
	Long: `Apply a YAML plan definition.

Without --plan a new plan is created from the definition's name and
description. With --plan the definition's phases are appended to that plan.
Either everything in the file is applied or nothing is.

Example definition:
  name: Auth rollout
  phases:
    - key: design
      name: Design
      tasks:
        - title: Write spec
    - key: build
      name: Build
      depends_on: [design]
      tasks:
        - title: Login form
          subtasks:
            - title: markup
            - title: validation`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		def, err := plan.LoadDefinition(planApplyFile)
		if err != nil {
			return err
		}

		var (
			e       *engine.Engine
			created string
		)
		if planApplyID != "" {
			e, err = current.open(ctx, planApplyID)
		} else {
			created = def.Name
			e, err = current.create(ctx, "", def.Name, def.Description)
		}
		if err != nil {
			return err
		}
		if _, err := e.Apply(ctx, def); err != nil {
			return err
		}
		sum, err := current.persist(ctx, cmd, e)
		if err != nil {
			return err
		}
		action := "applied definition to"
		if created != "" {
			action = "created plan"
		}
		return render(cmd, changeView{Action: action, PlanID: e.ID(), Created: created, Checkpoint: sum})
	},
}

var planListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List plans in the workspace store",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ids, err := current.plans(ctx)
		if err != nil {
			return err
		}
		out := make(planList, 0, len(ids))
		for _, id := range ids {
			e, err := current.open(ctx, id)
			if err != nil {
				// one unreadable plan should not hide the others
				out = append(out, planSummary{ID: domain.PlanID(id), Error: err.Error()})
				continue
			}
			snap := e.Snapshot()
			out = append(out, planSummary{ID: snap.ID, Name: snap.Name, Progress: progress.Compute(snap)})
		}
		return render(cmd, out)
	},
}

var planShowCmd = &cobra.Command{
	Use:   "show <plan>",
	Short: "Show the full plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := current.open(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if outputFormat == "text" {
			return render(cmd, reportView{e.Report()})
		}
		return render(cmd, e.Snapshot())
	},
}

func init() {
	planCreateCmd.Flags().StringVar(&planCreateID, "id", "", "plan id (generated when empty)")
	planCreateCmd.Flags().StringVarP(&planCreateDescription, "description", "d", "", "plan description")

	planApplyCmd.Flags().StringVarP(&planApplyFile, "file", "f", "", "plan definition file")
	planApplyCmd.Flags().StringVar(&planApplyID, "plan", "", "existing plan to extend")
	_ = planApplyCmd.MarkFlagRequired("file")
	_ = planApplyCmd.MarkFlagFilename("file", "yaml", "yml")

	planCmd.AddCommand(planCreateCmd, planApplyCmd, planListCmd, planShowCmd)
	rootCmd.AddCommand(planCmd)
}

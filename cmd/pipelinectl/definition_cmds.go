package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bverad/workshop-cicd-app-cdk/internal"
	"github.com/bverad/workshop-cicd-app-cdk/internal/buildspec"
	"github.com/bverad/workshop-cicd-app-cdk/internal/pipeline"
	"github.com/bverad/workshop-cicd-app-cdk/internal/util"
)

func newValidateCommand(a *app) *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the declared pipeline and the buildspec files it references",
		RunE: func(cmd *cobra.Command, _ []string) error {
			def, err := a.definition()
			if err != nil {
				return err
			}
			if root == "" {
				root, err = util.FindRoot(".", "cdk.json")
				if err != nil {
					return fmt.Errorf("locating cdk.json: %w", err)
				}
			}
			if err := buildspec.CheckDefinition(root, def); err != nil {
				return err
			}
			a.log.Info("pipeline is valid",
				zap.String("pipeline", def.Name),
				zap.String("variant", def.Variant),
				zap.Strings("stages", def.StageNames()),
			)
			fmt.Fprintf(a.out, "%s (%s): %s\n", def.Name, def.Variant, strings.Join(def.StageNames(), " -> "))
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "directory holding the buildspec files (default: nearest cdk.json)")
	return cmd
}

type planAction struct {
	Stage   string   `json:"stage"`
	Action  string   `json:"action"`
	Kind    string   `json:"kind"`
	Project string   `json:"project,omitempty"`
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

type planProject struct {
	ID          string   `json:"id"`
	BuildSpec   string   `json:"buildspec"`
	ComputeType string   `json:"compute_type"`
	Privileged  bool     `json:"privileged"`
	Environment []string `json:"environment"`
	Registry    []string `json:"registry_actions"`
}

type plan struct {
	Pipeline string        `json:"pipeline"`
	Variant  string        `json:"variant"`
	Actions  []planAction  `json:"actions"`
	Projects []planProject `json:"projects"`
}

func newPlan(def *pipeline.Definition) plan {
	p := plan{Pipeline: def.Name, Variant: def.Variant}
	for _, s := range def.Stages {
		for _, act := range s.Actions {
			p.Actions = append(p.Actions, planAction{
				Stage:   s.Name,
				Action:  act.Name,
				Kind:    string(act.Kind),
				Project: act.Project,
				Inputs:  act.Inputs,
				Outputs: act.Outputs,
			})
		}
	}
	for _, bp := range def.Projects {
		pp := planProject{
			ID:          bp.ID,
			BuildSpec:   bp.BuildSpec,
			ComputeType: bp.ComputeType,
			Privileged:  bp.Privileged,
		}
		for _, v := range bp.Environment {
			value := v.Value
			if value == "" && v.FromRegion {
				value = "${AWS::Region}"
			}
			pp.Environment = append(pp.Environment, v.Name+"="+value)
		}
		if bp.Policy != nil {
			pp.Registry = bp.Policy.Actions
		}
		p.Projects = append(p.Projects, pp)
	}
	return p
}

func newPlanCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the stages, actions and build projects that will be synthesized",
		RunE: func(cmd *cobra.Command, _ []string) error {
			def, err := a.definition()
			if err != nil {
				return err
			}
			p := newPlan(def)
			if a.wantJSON() {
				return a.writeJSON(p)
			}

			actions := a.newTable(fmt.Sprintf("%s (%s)", p.Pipeline, p.Variant))
			actions.AppendHeader(table.Row{"Stage", "Action", "Kind", "Project", "Inputs", "Outputs"})
			for _, act := range p.Actions {
				actions.AppendRow(table.Row{
					act.Stage, act.Action, act.Kind, act.Project,
					strings.Join(act.Inputs, ", "), strings.Join(act.Outputs, ", "),
				})
			}
			actions.Render()

			projects := a.newTable("Build projects")
			projects.AppendHeader(table.Row{"Project", "Buildspec", "Compute", "Privileged", "Environment", "Registry actions"})
			for _, bp := range p.Projects {
				projects.AppendRow(table.Row{
					bp.ID, bp.BuildSpec, bp.ComputeType, bp.Privileged,
					strings.Join(bp.Environment, "\n"), strings.Join(bp.Registry, "\n"),
				})
			}
			projects.Render()
			return nil
		},
	}
}

func newUseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "use <test|docker>",
		Short:     "Select which pipeline variant the CDK app synthesizes",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{internal.VariantTest, internal.VariantDocker},
		RunE: func(cmd *cobra.Command, args []string) error {
			config := *internal.Config
			config.Variant = args[0]
			if err := internal.UpdateConfiguration(a.configPath, &config); err != nil {
				return err
			}
			a.log.Info("variant selected", zap.String("variant", config.Variant), zap.String("path", a.configPath))
			fmt.Fprintf(a.out, "%s now synthesizes the %s variant\n", config.StackName, config.Variant)
			return nil
		},
	}
}

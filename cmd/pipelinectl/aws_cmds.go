package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bverad/workshop-cicd-app-cdk/internal"
	"github.com/bverad/workshop-cicd-app-cdk/internal/service"
)

func newOutputsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "outputs",
		Short: "Print the outputs exported by the deployed stack",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			outputs, err := svc.Outputs(cmd.Context(), internal.Config.StackName)
			if err != nil {
				return err
			}
			if a.wantJSON() {
				return a.writeJSON(outputs)
			}
			t := a.newTable(fmt.Sprintf("%s (%s)", outputs.StackName, outputs.StackStatus))
			t.AppendRows([]table.Row{
				{internal.OutputPipelineName, outputs.PipelineName},
				{internal.OutputRepositoryName, outputs.RepositoryName},
			})
			t.Render()
			return nil
		},
	}
}

func (a *app) printStatus(status *service.PipelineStatus) error {
	if a.wantJSON() {
		return a.writeJSON(status)
	}
	t := a.newTable(status.Name)
	t.AppendHeader(table.Row{"Stage", "Status", "Execution", "Action", "Action status", "Summary"})
	for _, s := range status.Stages {
		if len(s.Actions) == 0 {
			t.AppendRow(table.Row{s.Name, s.Status, s.ExecutionID})
			continue
		}
		for i, act := range s.Actions {
			if i == 0 {
				t.AppendRow(table.Row{s.Name, s.Status, s.ExecutionID, act.Name, act.Status, act.Summary})
			} else {
				t.AppendRow(table.Row{"", "", "", act.Name, act.Status, act.Summary})
			}
		}
	}
	t.Render()
	return nil
}

// watch follows executionID (or the current execution when empty) until it
// settles and fails when one of its stages failed.
func (a *app) watch(cmd *cobra.Command, svc *service.PipelineService, pipelineName, executionID string) error {
	interval := time.Duration(internal.Config.WatchInterval)
	status, err := svc.Watch(cmd.Context(), pipelineName, executionID, interval, func(s *service.PipelineStatus) {
		for _, stage := range s.Stages {
			a.log.Info("stage", zap.String("name", stage.Name), zap.String("status", stage.Status))
		}
	})
	if err != nil {
		return err
	}
	if err := a.printStatus(status); err != nil {
		return err
	}
	if status.Failed(executionID) {
		return fmt.Errorf("pipeline %s failed", pipelineName)
	}
	return nil
}

func newStatusCommand(a *app) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the latest state of every pipeline stage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			if follow {
				return a.watch(cmd, svc, internal.Config.PipelineName, "")
			}
			status, err := svc.Status(cmd.Context(), internal.Config.PipelineName)
			if err != nil {
				return err
			}
			return a.printStatus(status)
		},
	}
	cmd.Flags().BoolVarP(&follow, "watch", "w", false, "poll until no stage is running")
	return cmd
}

func newVerifyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the deployed stack against the declared pipeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			def, err := a.definition()
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			outputs, err := svc.Outputs(cmd.Context(), internal.Config.StackName)
			if err != nil {
				return err
			}
			if outputs.PipelineName != def.Name {
				return fmt.Errorf("stack %s exports pipeline %q, declared %q", outputs.StackName, outputs.PipelineName, def.Name)
			}
			if err := svc.VerifyStages(cmd.Context(), outputs.PipelineName, def); err != nil {
				return err
			}
			a.log.Info("deployed pipeline matches", zap.String("pipeline", def.Name), zap.String("variant", def.Variant))
			fmt.Fprintf(a.out, "%s matches the %s variant\n", def.Name, def.Variant)
			return nil
		},
	}
}

func newReleaseCommand(a *app) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Start a new pipeline execution",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			id, err := svc.Release(cmd.Context(), internal.Config.PipelineName)
			if err != nil {
				return err
			}
			a.log.Info("execution started", zap.String("pipeline", internal.Config.PipelineName), zap.String("execution", id))
			fmt.Fprintln(a.out, id)
			if follow {
				return a.watch(cmd, svc, internal.Config.PipelineName, id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&follow, "watch", "w", false, "poll until the execution settles")
	return cmd
}

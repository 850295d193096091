package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:               "pipelinectl",
		Short:             "Inspect and operate the workshop CI/CD pipeline",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(a.out)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to config.json (default $PIPELINE_CONFIG_PATH or config.json)")
	root.PersistentFlags().StringVar(&a.region, "region", "", "AWS region (default $CDK_DEFAULT_REGION)")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "print JSON instead of tables")

	root.AddCommand(
		newValidateCommand(a),
		newPlanCommand(a),
		newUseCommand(a),
		newOutputsCommand(a),
		newStatusCommand(a),
		newVerifyCommand(a),
		newReleaseCommand(a),
	)
	return root
}

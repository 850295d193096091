package main

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"
	"go.uber.org/zap"

	"github.com/bverad/workshop-cicd-app-cdk/internal"
	"github.com/bverad/workshop-cicd-app-cdk/internal/logger"
	"github.com/bverad/workshop-cicd-app-cdk/internal/pipeline"
	"github.com/bverad/workshop-cicd-app-cdk/internal/settings"
	"github.com/bverad/workshop-cicd-app-cdk/internal/stack"
)

func main() {
	defer jsii.Close()

	if err := settings.ReadDotenv(internal.DotEnvPath); err != nil {
		panic(err)
	}
	settings.Settings = settings.NewSettings()

	log, err := logger.New(settings.Settings.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := internal.InitializeConfiguration(settings.Settings.ConfigPath); err != nil {
		log.Fatal("loading configuration", zap.String("path", settings.Settings.ConfigPath), zap.Error(err))
	}

	def, err := pipeline.Build(internal.Config, settings.Settings.Region)
	if err != nil {
		log.Fatal("declaring pipeline", zap.Error(err))
	}

	app := awscdk.NewApp(nil)
	if _, err := stack.NewPipelineCdkStack(app, internal.Config.StackName, &stack.PipelineCdkStackProps{
		StackProps: awscdk.StackProps{
			Env: env(settings.Settings),
		},
		Definition: def,
	}); err != nil {
		log.Fatal("creating stack", zap.String("stack", internal.Config.StackName), zap.Error(err))
	}

	log.Info("synthesizing",
		zap.String("stack", internal.Config.StackName),
		zap.String("variant", def.Variant),
		zap.Strings("stages", def.StageNames()),
	)
	app.Synth(nil)
}

// env pins the stack to the CLI's default account and region when both are
// known, otherwise the stack stays environment-agnostic.
func env(s *settings.AppSettings) *awscdk.Environment {
	if !s.HasEnvironment() {
		return nil
	}
	return &awscdk.Environment{
		Account: jsii.String(s.Account),
		Region:  jsii.String(s.Region),
	}
}

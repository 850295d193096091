package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/bverad/workshop-cicd-app-cdk/internal"
	"github.com/bverad/workshop-cicd-app-cdk/internal/awslib"
	"github.com/bverad/workshop-cicd-app-cdk/internal/logger"
	"github.com/bverad/workshop-cicd-app-cdk/internal/pipeline"
	"github.com/bverad/workshop-cicd-app-cdk/internal/service"
	"github.com/bverad/workshop-cicd-app-cdk/internal/settings"
)

type serviceFactory func(ctx context.Context, region string) (*service.PipelineService, error)

type app struct {
	out io.Writer
	log *zap.Logger

	configPath string
	dotenvPath string
	region     string
	jsonOutput bool

	settings   *settings.AppSettings
	newService serviceFactory
}

func newApp(out io.Writer) *app {
	return &app{
		out:        out,
		log:        zap.NewNop(),
		dotenvPath: internal.DotEnvPath,
		newService: newAWSService,
	}
}

func newAWSService(ctx context.Context, region string) (*service.PipelineService, error) {
	clients, err := awslib.NewClients(ctx, region)
	if err != nil {
		return nil, err
	}
	return service.NewPipelineService(
		clients.CloudFormation,
		clients.CodePipeline,
		service.NewUUIDGen(),
	), nil
}

// setup loads .env, settings, the logger and the configuration. Flags win
// over the environment.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := settings.ReadDotenv(a.dotenvPath); err != nil {
		return err
	}
	a.settings = settings.NewSettings()
	if a.configPath == "" {
		a.configPath = a.settings.ConfigPath
	}
	if a.region == "" {
		a.region = a.settings.Region
	}

	log, err := logger.New(a.settings.LogLevel)
	if err != nil {
		return err
	}
	a.log = log

	if err := internal.InitializeConfiguration(a.configPath); err != nil {
		return err
	}
	a.log.Debug("configuration loaded",
		zap.String("path", a.configPath),
		zap.String("variant", internal.Config.Variant),
		zap.String("command", cmd.Name()),
	)
	return nil
}

func (a *app) definition() (*pipeline.Definition, error) {
	return pipeline.Build(internal.Config, a.region)
}

func (a *app) service(ctx context.Context) (*service.PipelineService, error) {
	return a.newService(ctx, a.region)
}

// wantJSON is true when asked for, or when stdout is not a terminal.
func (a *app) wantJSON() bool {
	if a.jsonOutput {
		return true
	}
	f, ok := a.out.(*os.File)
	return ok && !term.IsTerminal(int(f.Fd()))
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(a.out)
	t.SetTitle(title)
	t.SetStyle(table.StyleLight)
	return t
}

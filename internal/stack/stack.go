// Package stack synthesizes a pipeline.Definition into CDK constructs:
// one CodePipeline, a PipelineProject per build project, the artifacts that
// bind actions together and the stack outputs.
package stack

import (
	"errors"
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscodebuild"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscodepipeline"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscodepipelineactions"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/bverad/workshop-cicd-app-cdk/internal"
	"github.com/bverad/workshop-cicd-app-cdk/internal/pipeline"
)

var ErrNoDefinition = errors.New("stack needs a pipeline definition")

type PipelineCdkStackProps struct {
	awscdk.StackProps
	Definition *pipeline.Definition
}

type PipelineCdkStack struct {
	awscdk.Stack

	Pipeline  awscodepipeline.Pipeline
	Projects  map[string]awscodebuild.PipelineProject
	Artifacts map[string]awscodepipeline.Artifact
}

// NewPipelineCdkStack validates props.Definition and declares it under scope.
// Nothing is added to scope when the definition is invalid.
func NewPipelineCdkStack(
	scope constructs.Construct,
	id string,
	props *PipelineCdkStackProps,
) (*PipelineCdkStack, error) {
	if props == nil || props.Definition == nil {
		return nil, ErrNoDefinition
	}
	def := props.Definition
	if err := def.Validate(); err != nil {
		return nil, err
	}
	source, ok := def.Source()
	if !ok {
		return nil, fmt.Errorf("pipeline %s has no source action", def.Name)
	}
	for _, p := range def.Projects {
		if err := checkProject(p); err != nil {
			return nil, err
		}
	}

	sprops := props.StackProps
	s := &PipelineCdkStack{
		Stack:     awscdk.NewStack(scope, jsii.String(id), &sprops),
		Projects:  make(map[string]awscodebuild.PipelineProject, len(def.Projects)),
		Artifacts: make(map[string]awscodepipeline.Artifact),
	}

	s.Pipeline = awscodepipeline.NewPipeline(s.Stack, jsii.String("Pipeline"), &awscodepipeline.PipelineProps{
		PipelineName:     jsii.String(def.Name),
		CrossAccountKeys: jsii.Bool(def.CrossAccountKeys),
	})

	for _, p := range def.Projects {
		project, err := newProject(s.Stack, p)
		if err != nil {
			return nil, err
		}
		s.Projects[p.ID] = project
	}

	for _, name := range def.Artifacts() {
		s.Artifacts[name] = awscodepipeline.Artifact_Artifact(jsii.String(name))
	}

	for _, stage := range def.Stages {
		actions := make([]awscodepipeline.IAction, 0, len(stage.Actions))
		for _, a := range stage.Actions {
			actions = append(actions, s.newAction(a))
		}
		s.Pipeline.AddStage(&awscodepipeline.StageOptions{
			StageName: jsii.String(stage.Name),
			Actions:   &actions,
		})
	}

	awscdk.NewCfnOutput(s.Stack, jsii.String(internal.OutputPipelineName), &awscdk.CfnOutputProps{
		Value:       s.Pipeline.PipelineName(),
		Description: jsii.String("Name of the deployed pipeline"),
	})
	awscdk.NewCfnOutput(s.Stack, jsii.String(internal.OutputRepositoryName), &awscdk.CfnOutputProps{
		Value:       jsii.String(source.Repo),
		Description: jsii.String("Name of the source repository"),
	})

	return s, nil
}

func (s *PipelineCdkStack) newAction(a pipeline.Action) awscodepipeline.IAction {
	outputs := make([]awscodepipeline.Artifact, len(a.Outputs))
	for i, o := range a.Outputs {
		outputs[i] = s.Artifacts[o]
	}

	if a.Kind == pipeline.ActionKindSource {
		return awscodepipelineactions.NewGitHubSourceAction(&awscodepipelineactions.GitHubSourceActionProps{
			ActionName: jsii.String(a.Name),
			Owner:      jsii.String(a.Source.Owner),
			Repo:       jsii.String(a.Source.Repo),
			Branch:     jsii.String(a.Source.Branch),
			OauthToken: awscdk.SecretValue_SecretsManager(jsii.String(a.Source.TokenSecret), nil),
			Output:     outputs[0],
		})
	}

	props := &awscodepipelineactions.CodeBuildActionProps{
		ActionName: jsii.String(a.Name),
		Project:    s.Projects[a.Project],
		Input:      s.Artifacts[a.Inputs[0]],
	}
	if len(a.Inputs) > 1 {
		extra := make([]awscodepipeline.Artifact, 0, len(a.Inputs)-1)
		for _, in := range a.Inputs[1:] {
			extra = append(extra, s.Artifacts[in])
		}
		props.ExtraInputs = &extra
	}
	if len(outputs) > 0 {
		props.Outputs = &outputs
	}
	return awscodepipelineactions.NewCodeBuildAction(props)
}

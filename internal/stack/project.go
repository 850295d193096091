package stack

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscodebuild"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/jsii-runtime-go"

	"github.com/bverad/workshop-cicd-app-cdk/internal/pipeline"
)

var computeTypes = map[string]awscodebuild.ComputeType{
	"SMALL":    awscodebuild.ComputeType_SMALL,
	"MEDIUM":   awscodebuild.ComputeType_MEDIUM,
	"LARGE":    awscodebuild.ComputeType_LARGE,
	"X2_LARGE": awscodebuild.ComputeType_X2_LARGE,
}

func buildImage(name string) (awscodebuild.IBuildImage, error) {
	switch name {
	case pipeline.BuildImageStandard7:
		return awscodebuild.LinuxBuildImage_STANDARD_7_0(), nil
	default:
		return nil, fmt.Errorf("unsupported build image %q", name)
	}
}

func checkProject(p pipeline.BuildProject) error {
	if _, err := buildImage(p.Image); err != nil {
		return fmt.Errorf("project %s: %w", p.ID, err)
	}
	if _, ok := computeTypes[p.ComputeType]; !ok {
		return fmt.Errorf("project %s: unsupported compute type %q", p.ID, p.ComputeType)
	}
	return nil
}

func newProject(stack awscdk.Stack, p pipeline.BuildProject) (awscodebuild.PipelineProject, error) {
	image, err := buildImage(p.Image)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", p.ID, err)
	}
	computeType, ok := computeTypes[p.ComputeType]
	if !ok {
		return nil, fmt.Errorf("project %s: unsupported compute type %q", p.ID, p.ComputeType)
	}

	props := &awscodebuild.PipelineProjectProps{
		Environment: &awscodebuild.BuildEnvironment{
			BuildImage:  image,
			Privileged:  jsii.Bool(p.Privileged),
			ComputeType: computeType,
		},
		BuildSpec: awscodebuild.BuildSpec_FromSourceFilename(jsii.String(p.BuildSpec)),
	}
	if len(p.Environment) > 0 {
		props.EnvironmentVariables = environmentVariables(p.Environment)
	}

	project := awscodebuild.NewPipelineProject(stack, jsii.String(p.ID), props)
	if p.Policy != nil {
		project.AddToRolePolicy(registryPolicyStatement(p.Policy))
	}
	return project, nil
}

func environmentVariables(vars []pipeline.EnvironmentVariable) *map[string]*awscodebuild.BuildEnvironmentVariable {
	env := make(map[string]*awscodebuild.BuildEnvironmentVariable, len(vars))
	for _, v := range vars {
		var value interface{} = jsii.String(v.Value)
		if v.FromRegion && v.Value == "" {
			// resolved by CloudFormation at deploy time
			value = awscdk.Aws_REGION()
		}
		env[v.Name] = &awscodebuild.BuildEnvironmentVariable{
			Type:  awscodebuild.BuildEnvironmentVariableType_PLAINTEXT,
			Value: value,
		}
	}
	return &env
}

func registryPolicyStatement(policy *pipeline.RegistryPolicy) awsiam.PolicyStatement {
	return awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Effect:    awsiam.Effect_ALLOW,
		Actions:   jsii.Strings(policy.Actions...),
		Resources: jsii.Strings(policy.Resources...),
	})
}

package awslib

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
)

// GetConfigV2 loads the default AWS SDK v2 config, asking IMDS for the region
// when the environment and shared config do not name one. It is kept as-is
// from buildkite-agent's awslib package.
func GetConfigV2(ctx context.Context, optFns ...func(*config.LoadOptions) error) (cfg aws.Config, err error) {
	cfg, err = config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return cfg, fmt.Errorf("error loading default config: %w", err)
	}

	if cfg.Region != "" {
		return cfg, nil
	}

	client := imds.NewFromConfig(cfg)

	var regionResult *imds.GetRegionOutput
	regionResult, err = client.GetRegion(ctx, &imds.GetRegionInput{})
	if err != nil {
		return cfg, fmt.Errorf("error getting region using imds: %w", err)
	}

	optFns = append(optFns, config.WithRegion(regionResult.Region))

	cfg, err = config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return cfg, fmt.Errorf("error loading default config using imds region: %w", err)
	}

	return cfg, nil
}

type Clients struct {
	CloudFormation *cloudformation.Client
	CodePipeline   *codepipeline.Client
}

// NewClients builds the API clients used against the deployed stack. An
// empty region leaves region resolution to GetConfigV2.
func NewClients(ctx context.Context, region string) (*Clients, error) {
	var optFns []func(*config.LoadOptions) error
	if region != "" {
		optFns = append(optFns, config.WithRegion(region))
	}
	cfg, err := GetConfigV2(ctx, optFns...)
	if err != nil {
		return nil, err
	}
	return &Clients{
		CloudFormation: cloudformation.NewFromConfig(cfg),
		CodePipeline:   codepipeline.NewFromConfig(cfg),
	}, nil
}

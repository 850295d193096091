package pipeline

import (
	"slices"

	"github.com/bverad/workshop-cicd-app-cdk/internal"
)

// Build declares the pipeline for the configured variant. region is the
// deployment's default region and may be empty. cfg.Validate restricts the
// variant to test or docker.
func Build(cfg *internal.Configuration, region string) (*Definition, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	def := testPipeline(cfg)
	if cfg.Variant == internal.VariantDocker {
		def = dockerPipeline(cfg, region)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

func testPipeline(cfg *internal.Configuration) *Definition {
	return &Definition{
		Name:             cfg.PipelineName,
		Variant:          internal.VariantTest,
		CrossAccountKeys: false,
		Stages: []Stage{
			sourceStage(cfg),
			{
				Name: internal.StageTesting,
				Actions: []Action{{
					Name:    internal.ActionUnitTest,
					Kind:    ActionKindBuild,
					Project: internal.TestProjectID,
					Inputs:  []string{internal.ArtifactSource},
					Outputs: []string{internal.ArtifactUnitTest},
				}},
			},
		},
		Projects: []BuildProject{{
			ID:          internal.TestProjectID,
			BuildSpec:   cfg.TestBuildSpec,
			Image:       BuildImageStandard7,
			ComputeType: cfg.ComputeType,
			Privileged:  cfg.Privileged,
		}},
	}
}

func dockerPipeline(cfg *internal.Configuration, region string) *Definition {
	def := testPipeline(cfg)
	def.Variant = internal.VariantDocker
	def.Stages = append(def.Stages, Stage{
		Name: internal.StageDocker,
		Actions: []Action{{
			Name:    internal.ActionDockerPush,
			Kind:    ActionKindBuild,
			Project: internal.DockerProjectID,
			Inputs:  []string{internal.ArtifactSource},
			Outputs: []string{internal.ArtifactDocker},
		}},
	})
	def.Projects = append(def.Projects, BuildProject{
		ID:          internal.DockerProjectID,
		BuildSpec:   cfg.DockerBuildSpec,
		Image:       BuildImageStandard7,
		ComputeType: cfg.ComputeType,
		// docker daemon access inside CodeBuild needs privileged mode
		Privileged: true,
		Environment: []EnvironmentVariable{{
			Name:       internal.RegionEnvVar,
			Value:      region,
			FromRegion: true,
		}},
		Policy: &RegistryPolicy{
			Actions:   slices.Clone(RegistryActions),
			Resources: []string{"*"},
		},
	})
	return def
}

func sourceStage(cfg *internal.Configuration) Stage {
	return Stage{
		Name: internal.StageSource,
		Actions: []Action{{
			Name: internal.ActionSource,
			Kind: ActionKindSource,
			Source: &Source{
				Owner:       cfg.GitHubOwner,
				Repo:        cfg.GitHubRepo,
				Branch:      cfg.GitHubBranch,
				TokenSecret: cfg.GitHubTokenSecret,
			},
			Outputs: []string{internal.ArtifactSource},
		}},
	}
}

package internal

const (
	DotEnvPath        = "./.env"
	DefaultConfigPath = "config.json"

	VariantTest   = "test"
	VariantDocker = "docker"

	StageSource  = "source"
	StageTesting = "code-quality-testing"
	StageDocker  = "docker-push-ecr"

	ActionSource     = "source"
	ActionUnitTest   = "unit-test"
	ActionDockerPush = "docker-push"

	ArtifactSource   = "SourceOutput"
	ArtifactUnitTest = "UnitTestOutput"
	ArtifactDocker   = "DockerOutput"

	TestProjectID   = "CodeBuild"
	DockerProjectID = "DockerBuild"

	OutputPipelineName   = "PipelineName"
	OutputRepositoryName = "RepositoryName"

	RegionEnvVar = "AWS_DEFAULT_REGION"
)

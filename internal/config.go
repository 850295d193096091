package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/bverad/workshop-cicd-app-cdk/internal/util"
)

var Config *Configuration

var ErrInvalidConfiguration = errors.New("invalid configuration")

var ComputeTypes = []string{"SMALL", "MEDIUM", "LARGE", "X2_LARGE"}

type SecondsDuration time.Duration

func NewSecondsDuration(seconds int64) SecondsDuration {
	return SecondsDuration(time.Duration(seconds) * time.Second)
}

func (sd SecondsDuration) MarshalJSON() ([]byte, error) {
	seconds := float64(time.Duration(sd)) / float64(time.Second)
	return json.Marshal(seconds)
}

func (sd *SecondsDuration) UnmarshalJSON(data []byte) error {
	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return err
	}
	*sd = SecondsDuration(seconds * float64(time.Second))
	return nil
}

type Configuration struct {
	StackName         string          `json:"stack_name"`
	PipelineName      string          `json:"pipeline_name"`
	Variant           string          `json:"variant"`
	GitHubOwner       string          `json:"github_owner"`
	GitHubRepo        string          `json:"github_repo"`
	GitHubBranch      string          `json:"github_branch"`
	GitHubTokenSecret string          `json:"github_token_secret"`
	TestBuildSpec     string          `json:"test_buildspec"`
	DockerBuildSpec   string          `json:"docker_buildspec"`
	ComputeType       string          `json:"compute_type"`
	Privileged        bool            `json:"privileged"`
	WatchInterval     SecondsDuration `json:"watch_interval_seconds"`
}

func DefaultConfiguration() *Configuration {
	return &Configuration{
		StackName:         "PipelineCdkStack",
		PipelineName:      "cicd_pipeline",
		Variant:           VariantDocker,
		GitHubOwner:       "bverad",
		GitHubRepo:        "workshop-cicd",
		GitHubBranch:      "main",
		GitHubTokenSecret: "github-token",
		TestBuildSpec:     "buildspec_test.yml",
		DockerBuildSpec:   "buildspec_docker.yml",
		ComputeType:       "LARGE",
		Privileged:        true,
		WatchInterval:     NewSecondsDuration(10),
	}
}

// InitializeConfiguration reads the configuration at path into Config,
// writing the defaults there first when the file does not exist yet.
func InitializeConfiguration(path string) error {
	config := DefaultConfiguration()

	configFileExists, _ := util.PathExists(path)
	if !configFileExists {
		if err := writeConfiguration(path, config); err != nil {
			return err
		}
	} else {
		configBytes, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(configBytes, config); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := config.Validate(); err != nil {
		return err
	}
	Config = config
	return nil
}

func UpdateConfiguration(path string, config *Configuration) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if err := writeConfiguration(path, config); err != nil {
		return err
	}

	Config = config

	return nil
}

func writeConfiguration(path string, config *Configuration) error {
	b, err := json.MarshalIndent(config, "", "    ")
	if err != nil {
		return err
	}

	configFile, err := os.Create(path)
	if err != nil {
		return err
	}
	defer configFile.Close()

	if _, err := configFile.Write(b); err != nil {
		return err
	}
	return nil
}

func (c *Configuration) Validate() error {
	required := []struct {
		name, value string
	}{
		{"stack_name", c.StackName},
		{"pipeline_name", c.PipelineName},
		{"github_owner", c.GitHubOwner},
		{"github_repo", c.GitHubRepo},
		{"github_branch", c.GitHubBranch},
		{"github_token_secret", c.GitHubTokenSecret},
		{"test_buildspec", c.TestBuildSpec},
	}
	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("%w: %s must not be empty", ErrInvalidConfiguration, field.name)
		}
	}

	switch c.Variant {
	case VariantTest:
	case VariantDocker:
		if c.DockerBuildSpec == "" {
			return fmt.Errorf("%w: docker_buildspec must not be empty", ErrInvalidConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown variant %q", ErrInvalidConfiguration, c.Variant)
	}

	if !slices.Contains(ComputeTypes, c.ComputeType) {
		return fmt.Errorf("%w: unknown compute_type %q", ErrInvalidConfiguration, c.ComputeType)
	}
	if c.WatchInterval <= 0 {
		return fmt.Errorf("%w: watch_interval_seconds must be positive", ErrInvalidConfiguration)
	}
	return nil
}

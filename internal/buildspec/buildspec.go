// Package buildspec loads and lints the CodeBuild buildspec files the
// pipeline's build projects point at. Command contents are not interpreted.
package buildspec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/goccy/go-yaml"

	"github.com/bverad/workshop-cicd-app-cdk/internal/pipeline"
)

var (
	ErrUnsupportedVersion = errors.New("unsupported buildspec version")
	ErrNoPhases           = errors.New("buildspec declares no phases")
	ErrUnknownPhase       = errors.New("unknown buildspec phase")
	ErrEmptyPhase         = errors.New("buildspec phase has no commands")
)

var (
	SupportedVersions = []string{"0.1", "0.2"}
	PhaseOrder        = []string{"install", "pre_build", "build", "post_build"}
)

type Env struct {
	Shell          string            `yaml:"shell"`
	Variables      map[string]string `yaml:"variables"`
	ParameterStore map[string]string `yaml:"parameter-store"`
	SecretsManager map[string]string `yaml:"secrets-manager"`
	ExportedVars   []string          `yaml:"exported-variables"`
}

type Phase struct {
	RuntimeVersions map[string]any `yaml:"runtime-versions"`
	Commands        []string       `yaml:"commands"`
	Finally         []string       `yaml:"finally"`
}

type Artifacts struct {
	Files         []string `yaml:"files"`
	Name          string   `yaml:"name"`
	BaseDirectory string   `yaml:"base-directory"`
}

type BuildSpec struct {
	// RawVersion is kept untyped since `version: 0.2` decodes as a number.
	RawVersion any              `yaml:"version"`
	Env        *Env             `yaml:"env"`
	Phases     map[string]Phase `yaml:"phases"`
	Artifacts  *Artifacts       `yaml:"artifacts"`
}

func (bs *BuildSpec) Version() string {
	if bs.RawVersion == nil {
		return ""
	}
	return fmt.Sprint(bs.RawVersion)
}

// PhaseNames returns the declared phases in execution order.
func (bs *BuildSpec) PhaseNames() []string {
	names := make([]string, 0, len(bs.Phases))
	for _, name := range PhaseOrder {
		if _, ok := bs.Phases[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

func Parse(b []byte) (*BuildSpec, error) {
	bs := new(BuildSpec)
	if err := yaml.Unmarshal(b, bs); err != nil {
		return nil, err
	}
	return bs, nil
}

func Load(path string) (*BuildSpec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	bs, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return bs, nil
}

func (bs *BuildSpec) Validate() error {
	if !slices.Contains(SupportedVersions, bs.Version()) {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, bs.Version())
	}
	if len(bs.Phases) == 0 {
		return ErrNoPhases
	}
	for name, phase := range bs.Phases {
		if !slices.Contains(PhaseOrder, name) {
			return fmt.Errorf("%w: %q", ErrUnknownPhase, name)
		}
		if len(phase.Commands) == 0 && len(phase.Finally) == 0 {
			return fmt.Errorf("%w: %q", ErrEmptyPhase, name)
		}
	}
	return nil
}

// CheckDefinition loads and validates the buildspec of every build project in
// def, resolving paths against root. All failures are reported together.
func CheckDefinition(root string, def *pipeline.Definition) error {
	var errs []error
	for _, p := range def.Projects {
		bs, err := Load(filepath.Join(root, p.BuildSpec))
		if err == nil {
			err = bs.Validate()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("project %s (%s): %w", p.ID, p.BuildSpec, err))
		}
	}
	return errors.Join(errs...)
}

// Package pipeline declares the resource graph of the workshop pipeline:
// ordered stages of actions bound together by named artifacts, and the
// build projects those actions run.
package pipeline

type ActionKind string

const (
	ActionKindSource ActionKind = "source"
	ActionKindBuild  ActionKind = "build"
)

const BuildImageStandard7 = "STANDARD_7_0"

// RegistryActions are the ECR operations a container build needs to log in,
// move layers, push the image and list what is already there.
var RegistryActions = []string{
	"ecr:GetAuthorizationToken",
	"ecr:BatchCheckLayerAvailability",
	"ecr:GetDownloadUrlForLayer",
	"ecr:BatchGetImage",
	"ecr:InitiateLayerUpload",
	"ecr:UploadLayerPart",
	"ecr:CompleteLayerUpload",
	"ecr:PutImage",
	"ecr:DescribeRepositories",
	"ecr:ListImages",
}

type Source struct {
	Owner       string
	Repo        string
	Branch      string
	TokenSecret string
}

type Action struct {
	Name    string
	Kind    ActionKind
	Source  *Source
	Project string
	Inputs  []string
	Outputs []string
}

type Stage struct {
	Name    string
	Actions []Action
}

// EnvironmentVariable is a plaintext build variable. When FromRegion is set
// the variable carries the deployment's default region; an empty Value then
// means the region is only known at deploy time.
type EnvironmentVariable struct {
	Name       string
	Value      string
	FromRegion bool
}

type RegistryPolicy struct {
	Actions   []string
	Resources []string
}

type BuildProject struct {
	ID          string
	BuildSpec   string
	Image       string
	ComputeType string
	Privileged  bool
	Environment []EnvironmentVariable
	Policy      *RegistryPolicy
}

type Definition struct {
	Name             string
	Variant          string
	CrossAccountKeys bool
	Stages           []Stage
	Projects         []BuildProject
}

func (d *Definition) StageNames() []string {
	names := make([]string, len(d.Stages))
	for i, s := range d.Stages {
		names[i] = s.Name
	}
	return names
}

// Artifacts lists every artifact name in the order it is first produced.
func (d *Definition) Artifacts() []string {
	seen := make(map[string]bool)
	artifacts := make([]string, 0)
	for _, s := range d.Stages {
		for _, a := range s.Actions {
			for _, o := range a.Outputs {
				if !seen[o] {
					seen[o] = true
					artifacts = append(artifacts, o)
				}
			}
		}
	}
	return artifacts
}

func (d *Definition) Project(id string) (*BuildProject, bool) {
	for i := range d.Projects {
		if d.Projects[i].ID == id {
			return &d.Projects[i], true
		}
	}
	return nil, false
}

func (d *Definition) Stage(name string) (*Stage, bool) {
	for i := range d.Stages {
		if d.Stages[i].Name == name {
			return &d.Stages[i], true
		}
	}
	return nil, false
}

// Source returns the first source action's repository settings.
func (d *Definition) Source() (*Source, bool) {
	for _, s := range d.Stages {
		for _, a := range s.Actions {
			if a.Kind == ActionKindSource && a.Source != nil {
				return a.Source, true
			}
		}
	}
	return nil, false
}

func (s *Stage) Action(name string) (*Action, bool) {
	for i := range s.Actions {
		if s.Actions[i].Name == name {
			return &s.Actions[i], true
		}
	}
	return nil, false
}

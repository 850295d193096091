package pipeline

import (
	"regexp"
	"slices"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// Validate checks the declared graph: named, unique stages; a leading
// source stage; build actions bound to declared projects; and every input
// artifact produced exactly once by an earlier stage.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return newValidationError("", "", "name must not be empty")
	}
	if len(d.Stages) < 2 {
		return newValidationError("", "", "at least two stages are required, got %d", len(d.Stages))
	}

	projects := make(map[string]bool, len(d.Projects))
	for _, p := range d.Projects {
		if p.ID == "" {
			return newValidationError("", "", "build project id must not be empty")
		}
		if projects[p.ID] {
			return newValidationError("", "", "duplicate build project %q", p.ID)
		}
		if p.BuildSpec == "" {
			return newValidationError("", "", "build project %q has no buildspec", p.ID)
		}
		if p.Policy != nil && (len(p.Policy.Actions) == 0 || len(p.Policy.Resources) == 0) {
			return newValidationError("", "", "build project %q has an empty registry policy", p.ID)
		}
		projects[p.ID] = true
	}

	stages := make(map[string]bool, len(d.Stages))
	// artifacts produced by stages before the current one
	available := make(map[string]bool)
	for i, s := range d.Stages {
		if s.Name == "" {
			return newValidationError("", "", "stage %d has no name", i)
		}
		if stages[s.Name] {
			return newValidationError(s.Name, "", "duplicate stage name")
		}
		stages[s.Name] = true
		if len(s.Actions) == 0 {
			return newValidationError(s.Name, "", "stage has no actions")
		}

		produced := make(map[string]bool)
		actions := make(map[string]bool, len(s.Actions))
		for _, a := range s.Actions {
			if err := d.validateAction(i, s.Name, a, projects, available); err != nil {
				return err
			}
			if actions[a.Name] {
				return newValidationError(s.Name, a.Name, "duplicate action name")
			}
			actions[a.Name] = true

			for _, o := range a.Outputs {
				if !identifierRe.MatchString(o) {
					return newValidationError(s.Name, a.Name, "invalid artifact name %q", o)
				}
				if available[o] || produced[o] {
					return newValidationError(s.Name, a.Name, "artifact %q is produced more than once", o)
				}
				produced[o] = true
			}
		}
		for o := range produced {
			available[o] = true
		}
	}

	for _, p := range d.Projects {
		if !d.usesProject(p.ID) {
			return newValidationError("", "", "build project %q is not used by any action", p.ID)
		}
	}
	return nil
}

func (d *Definition) validateAction(
	index int,
	stage string,
	a Action,
	projects, available map[string]bool,
) error {
	if !identifierRe.MatchString(a.Name) {
		return newValidationError(stage, a.Name, "invalid action name")
	}

	switch a.Kind {
	case ActionKindSource:
		if index != 0 {
			return newValidationError(stage, a.Name, "source actions are only allowed in the first stage")
		}
		if a.Source == nil || a.Source.Owner == "" || a.Source.Repo == "" ||
			a.Source.Branch == "" || a.Source.TokenSecret == "" {
			return newValidationError(stage, a.Name, "source action needs owner, repo, branch and token secret")
		}
		if len(a.Inputs) != 0 {
			return newValidationError(stage, a.Name, "source action takes no inputs")
		}
		if len(a.Outputs) != 1 {
			return newValidationError(stage, a.Name, "source action produces exactly one artifact")
		}
	case ActionKindBuild:
		if index == 0 {
			return newValidationError(stage, a.Name, "the first stage may only hold source actions")
		}
		if !projects[a.Project] {
			return newValidationError(stage, a.Name, "unknown build project %q", a.Project)
		}
		if len(a.Inputs) == 0 {
			return newValidationError(stage, a.Name, "build action needs an input artifact")
		}
		for _, in := range a.Inputs {
			if !available[in] {
				return newValidationError(stage, a.Name, "input artifact %q is not produced by an earlier stage", in)
			}
		}
		if slices.ContainsFunc(a.Outputs, func(o string) bool { return slices.Contains(a.Inputs, o) }) {
			return newValidationError(stage, a.Name, "action consumes its own output")
		}
	default:
		return newValidationError(stage, a.Name, "unknown action kind %q", a.Kind)
	}
	return nil
}

func (d *Definition) usesProject(id string) bool {
	for _, s := range d.Stages {
		for _, a := range s.Actions {
			if a.Kind == ActionKindBuild && a.Project == id {
				return true
			}
		}
	}
	return false
}

// Package preview merges unsaved edits of an instance descriptor over the
// persisted record and renders the build plan the edited descriptor would run.
// It never talks to the management API.
package preview

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pandeptwidyaop/deploy-manager/internal/models"
)

// GitPatch holds edited git options.
type GitPatch struct {
	CheckoutAllowed    models.Optional[bool] `json:"checkout,omitzero"`
	SubmodulesRequired models.Optional[bool] `json:"submodules,omitzero"`
}

// NodePatch holds edited node options.
type NodePatch struct {
	ForceInstall models.Optional[bool]   `json:"force_install,omitzero"`
	NVMAlias     models.Optional[string] `json:"nvm,omitzero"`
	Script       models.Optional[string] `json:"script,omitzero"`
}

// DescriptorPatch is a set of edited descriptor fields. Absent fields keep the
// persisted value. The instance name cannot be patched.
type DescriptorPatch struct {
	Path           models.Optional[string] `json:"path,omitzero"`
	BuildOutputDir models.Optional[string] `json:"build,omitzero"`
	WebRoot        models.Optional[string] `json:"web_root,omitzero"`
	BackupsDir     models.Optional[string] `json:"backups,omitzero"`
	Git            GitPatch                `json:"git,omitzero"`
	Node           NodePatch               `json:"node,omitzero"`
}

// Merge returns persisted with every field present in patch replaced.
func Merge(persisted models.InstanceDescriptor, patch DescriptorPatch) models.InstanceDescriptor {
	d := persisted
	apply(&d.Path, patch.Path)
	apply(&d.BuildOutputDir, patch.BuildOutputDir)
	apply(&d.WebRoot, patch.WebRoot)
	apply(&d.BackupsDir, patch.BackupsDir)
	apply(&d.Git.CheckoutAllowed, patch.Git.CheckoutAllowed)
	apply(&d.Git.SubmodulesRequired, patch.Git.SubmodulesRequired)
	apply(&d.Node.ForceInstall, patch.Node.ForceInstall)
	apply(&d.Node.NVMAlias, patch.Node.NVMAlias)
	apply(&d.Node.Script, patch.Node.Script)
	return d
}

// Combine returns the accumulated edit of p followed by next. Fields present
// in next win.
func (p DescriptorPatch) Combine(next DescriptorPatch) DescriptorPatch {
	return DescriptorPatch{
		Path:           latest(p.Path, next.Path),
		BuildOutputDir: latest(p.BuildOutputDir, next.BuildOutputDir),
		WebRoot:        latest(p.WebRoot, next.WebRoot),
		BackupsDir:     latest(p.BackupsDir, next.BackupsDir),
		Git: GitPatch{
			CheckoutAllowed:    latest(p.Git.CheckoutAllowed, next.Git.CheckoutAllowed),
			SubmodulesRequired: latest(p.Git.SubmodulesRequired, next.Git.SubmodulesRequired),
		},
		Node: NodePatch{
			ForceInstall: latest(p.Node.ForceInstall, next.Node.ForceInstall),
			NVMAlias:     latest(p.Node.NVMAlias, next.Node.NVMAlias),
			Script:       latest(p.Node.Script, next.Node.Script),
		},
	}
}

// IsEmpty reports whether the patch changes nothing.
func (p DescriptorPatch) IsEmpty() bool {
	return p == DescriptorPatch{}
}

func apply[T any](dst *T, o models.Optional[T]) {
	if v, ok := o.Get(); ok {
		*dst = v
	}
}

func latest[T any](earlier, later models.Optional[T]) models.Optional[T] {
	if later.IsSet() {
		return later
	}
	return earlier
}

// ParseAssignment parses a "key=value" edit such as "web_root=/var/www/new" or
// "node.force_install=true". Keys use the descriptor's JSON field names.
func ParseAssignment(s string) (DescriptorPatch, error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok {
		return DescriptorPatch{}, fmt.Errorf("invalid assignment %q: expected key=value", s)
	}

	var p DescriptorPatch
	var err error
	switch strings.TrimSpace(key) {
	case "path":
		p.Path = models.Some(value)
	case "build":
		p.BuildOutputDir = models.Some(value)
	case "web_root":
		p.WebRoot = models.Some(value)
	case "backups":
		p.BackupsDir = models.Some(value)
	case "git.checkout":
		p.Git.CheckoutAllowed, err = parseBool(value)
	case "git.submodules":
		p.Git.SubmodulesRequired, err = parseBool(value)
	case "node.force_install":
		p.Node.ForceInstall, err = parseBool(value)
	case "node.nvm":
		p.Node.NVMAlias = models.Some(value)
	case "node.script":
		p.Node.Script = models.Some(value)
	default:
		return DescriptorPatch{}, fmt.Errorf("unknown field %q", key)
	}
	if err != nil {
		return DescriptorPatch{}, fmt.Errorf("field %s: %w", key, err)
	}
	return p, nil
}

func parseBool(s string) (models.Optional[bool], error) {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return models.None[bool](), err
	}
	return models.Some(b), nil
}

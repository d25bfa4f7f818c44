package preview

import (
	"time"

	"github.com/pandeptwidyaop/deploy-manager/internal/models"
	"github.com/pandeptwidyaop/deploy-manager/internal/plan"
)

// Editor tracks unsaved edits of one instance. It is not safe for concurrent use.
type Editor struct {
	persisted models.InstanceDescriptor
	pending   DescriptorPatch
}

// NewEditor starts editing the persisted descriptor.
func NewEditor(persisted models.InstanceDescriptor) *Editor {
	return &Editor{persisted: persisted}
}

// Edit adds patch to the pending edits.
func (e *Editor) Edit(patch DescriptorPatch) {
	e.pending = e.pending.Combine(patch)
}

// Cancel drops the pending edits.
func (e *Editor) Cancel() {
	e.pending = DescriptorPatch{}
}

// Saved records that d is now the persisted descriptor and drops the pending edits.
func (e *Editor) Saved(d models.InstanceDescriptor) {
	e.persisted = d
	e.pending = DescriptorPatch{}
}

// Dirty reports whether there are pending edits.
func (e *Editor) Dirty() bool {
	return !e.pending.IsEmpty()
}

// Pending returns the accumulated edits.
func (e *Editor) Pending() DescriptorPatch {
	return e.pending
}

// Persisted returns the last saved descriptor.
func (e *Editor) Persisted() models.InstanceDescriptor {
	return e.persisted
}

// Effective returns the persisted descriptor with the pending edits applied.
func (e *Editor) Effective() models.InstanceDescriptor {
	return Merge(e.persisted, e.pending)
}

// Preview returns the plan a plain build of the effective descriptor would run.
// No branch switch, clean checkout or backup is assumed.
func (e *Editor) Preview(at time.Time) plan.Plan {
	return plan.CompileBuild(e.Effective(), models.BuildOptions{Clear: false}, at)
}

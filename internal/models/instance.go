// Package models defines data models for instances, build and restore options, and jobs.
package models

import "time"

// GitOptions controls how the instance repository is updated.
type GitOptions struct {
	CheckoutAllowed    bool `json:"checkout"`
	SubmodulesRequired bool `json:"submodules"`
}

// NodeOptions controls dependency installation and the build script.
type NodeOptions struct {
	ForceInstall bool   `json:"force_install"`
	NVMAlias     string `json:"nvm,omitempty" validate:"omitempty,shellsafe"`
	Script       string `json:"script,omitempty" validate:"omitempty,shellsafe"`
}

// InstanceDescriptor is the persisted configuration of one deployable instance.
// Optional string fields are unset when empty.
type InstanceDescriptor struct {
	Name           string      `json:"name,omitempty" validate:"omitempty,instancename"`
	Path           string      `json:"path" validate:"required,abspath,shellsafe"`
	BuildOutputDir string      `json:"build,omitempty" validate:"omitempty,abspath,shellsafe"`
	WebRoot        string      `json:"web_root" validate:"required,abspath,shellsafe"`
	BackupsDir     string      `json:"backups,omitempty" validate:"omitempty,abspath,shellsafe"`
	Git            GitOptions  `json:"git"`
	Node           NodeOptions `json:"node"`
}

// HasBackups reports whether the instance has a backups directory, which is the
// only case where backup related options mean anything.
func (d InstanceDescriptor) HasBackups() bool {
	return d.BackupsDir != ""
}

// Record returns a copy of the descriptor without its name, as stored and as sent
// in create and update requests.
func (d InstanceDescriptor) Record() InstanceDescriptor {
	d.Name = ""
	return d
}

// Instance is a stored descriptor with bookkeeping timestamps.
type Instance struct {
	InstanceDescriptor
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInstanceRequest contains the data for creating a new instance.
type CreateInstanceRequest struct {
	Name   string             `json:"name" binding:"required"`
	Record InstanceDescriptor `json:"record"`
}

// UpdateInstanceRequest contains the replacement record for an existing instance.
type UpdateInstanceRequest struct {
	Record InstanceDescriptor `json:"record"`
}

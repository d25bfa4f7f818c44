package models

// BuildOptions are the choices made for a single build. They live only as long as
// the build session that created them.
type BuildOptions struct {
	Clear    bool             `json:"clear"`
	Checkout Optional[string] `json:"checkout,omitzero"`
	Backup   Optional[bool]   `json:"backup,omitzero"`
}

// RestoreOptions are the choices made for a single restore.
type RestoreOptions struct {
	Backup        string         `json:"backup"`
	BackupCurrent Optional[bool] `json:"backup_current,omitzero"`
}

// BuildRequest is the body posted to the build trigger.
type BuildRequest struct {
	Name string `json:"name"`
	BuildOptions
}

// RestoreRequest is the body posted to the restore trigger.
type RestoreRequest struct {
	Name string `json:"name"`
	RestoreOptions
}

package models

// InstanceStatus is the remote repository state shown before a build.
type InstanceStatus struct {
	Status            string   `json:"status"`
	CurrentBranch     string   `json:"branch"`
	AvailableBranches []string `json:"branches"`
}

// HasBranch reports whether name is one of the available branches.
func (s *InstanceStatus) HasBranch(name string) bool {
	for _, b := range s.AvailableBranches {
		if b == name {
			return true
		}
	}
	return false
}

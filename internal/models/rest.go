package models

import (
	"sort"
	"time"
)

// PythonOptions selects the interpreter and dependency file of a backend
// service checkout.
type PythonOptions struct {
	Which        string `json:"which,omitempty" validate:"omitempty,shellsafe"`
	Requirements string `json:"requirements,omitempty" validate:"omitempty,shellsafe"`
}

// ServiceProcess is one process of a backend service instance. Supervisor is
// the supervisord program name, when it differs from the service key.
type ServiceProcess struct {
	Supervisor string `json:"supervisor,omitempty" validate:"omitempty,shellsafe"`
}

// RestDescriptor is the persisted configuration of a backend service instance:
// a python checkout whose processes run under supervisord.
type RestDescriptor struct {
	Name     string                    `json:"name,omitempty" validate:"omitempty,instancename"`
	Path     string                    `json:"path" validate:"required,abspath,shellsafe"`
	Git      GitOptions                `json:"git"`
	Python   PythonOptions             `json:"python"`
	Services map[string]ServiceProcess `json:"services" validate:"dive,keys,instancename,endkeys"`
}

// Record returns a copy of the descriptor without its name.
func (d RestDescriptor) Record() RestDescriptor {
	d.Name = ""
	return d
}

// ServiceNames returns the service keys in order.
func (d RestDescriptor) ServiceNames() []string {
	names := make([]string, 0, len(d.Services))
	for name := range d.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Program returns the supervisord program name of a service.
func (d RestDescriptor) Program(service string) string {
	if p := d.Services[service].Supervisor; p != "" {
		return p
	}
	return service
}

// RestInstance is a stored backend service descriptor with bookkeeping
// timestamps.
type RestInstance struct {
	RestDescriptor
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RestStatus is the repository state of a backend service instance plus the
// supervisord programs a deploy would restart.
type RestStatus struct {
	InstanceStatus
	Programs []string `json:"programs"`
}

// CreateRestRequest contains the data for creating a backend service instance.
type CreateRestRequest struct {
	Name   string         `json:"name" binding:"required"`
	Record RestDescriptor `json:"record"`
}

// UpdateRestRequest contains the replacement record for a backend service
// instance.
type UpdateRestRequest struct {
	Record RestDescriptor `json:"record"`
}

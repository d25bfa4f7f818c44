package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/pandeptwidyaop/deploy-manager/internal/database"
	"github.com/pandeptwidyaop/deploy-manager/internal/models"
	"github.com/pandeptwidyaop/deploy-manager/internal/validation"
)

// RestService stores backend service descriptors. Names are unique among
// backend services and independent of frontend instance names.
type RestService struct {
	db        *database.DB
	validator *validation.Validator
	repos     *RepositoryService
}

// NewRestService creates a new RestService instance.
func NewRestService(db *database.DB, v *validation.Validator, repos *RepositoryService) *RestService {
	return &RestService{db: db, validator: v, repos: repos}
}

// Create validates and stores a new backend service instance.
func (s *RestService) Create(name string, record models.RestDescriptor) (*models.RestInstance, error) {
	if err := validation.ValidateName(name); err != nil {
		return nil, validation.FieldErrors{{Field: "name", Message: err.Error()}}
	}
	record.Name = name
	if err := s.validator.Rest(&record); err != nil {
		return nil, err
	}

	data, err := json.Marshal(record.Record())
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec("INSERT INTO rest_instances (name, record) VALUES (?, ?)", name, string(data))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return nil, ErrInstanceExists
		}
		return nil, err
	}

	return s.Get(name)
}

// Get retrieves a backend service instance by name.
func (s *RestService) Get(name string) (*models.RestInstance, error) {
	var record string
	var inst models.RestInstance
	err := s.db.QueryRow(
		"SELECT record, created_at, updated_at FROM rest_instances WHERE name = ?",
		name,
	).Scan(&record, &inst.CreatedAt, &inst.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrInstanceNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(record), &inst.RestDescriptor); err != nil {
		return nil, fmt.Errorf("decode rest instance %s: %w", name, err)
	}
	inst.Name = name
	return &inst, nil
}

// List retrieves all backend service instances ordered by name.
func (s *RestService) List() ([]models.RestInstance, error) {
	rows, err := s.db.Query("SELECT name, record, created_at, updated_at FROM rest_instances ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.RestInstance
	for rows.Next() {
		var name, record string
		var inst models.RestInstance
		if err := rows.Scan(&name, &record, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(record), &inst.RestDescriptor); err != nil {
			return nil, fmt.Errorf("decode rest instance %s: %w", name, err)
		}
		inst.Name = name
		out = append(out, inst)
	}
	return out, rows.Err()
}

// Update replaces the record of an existing backend service instance.
func (s *RestService) Update(name string, record models.RestDescriptor) (*models.RestInstance, error) {
	if _, err := s.Get(name); err != nil {
		return nil, err
	}

	record.Name = name
	if err := s.validator.Rest(&record); err != nil {
		return nil, err
	}

	data, err := json.Marshal(record.Record())
	if err != nil {
		return nil, err
	}

	if _, err := s.db.Exec(
		"UPDATE rest_instances SET record = ?, updated_at = ? WHERE name = ?",
		string(data), time.Now(), name,
	); err != nil {
		return nil, err
	}

	return s.Get(name)
}

// Delete removes a backend service instance.
func (s *RestService) Delete(name string) error {
	result, err := s.db.Exec("DELETE FROM rest_instances WHERE name = ?", name)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrInstanceNotFound
	}
	return nil
}

// Status reports the repository state of the named backend service instance
// and the supervisord programs it runs.
func (s *RestService) Status(name string) (*models.RestStatus, error) {
	inst, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	st, err := s.repos.Status(inst.Path)
	if err != nil {
		return nil, err
	}

	programs := make([]string, 0, len(inst.Services))
	for _, svc := range inst.ServiceNames() {
		programs = append(programs, inst.Program(svc))
	}
	return &models.RestStatus{InstanceStatus: *st, Programs: programs}, nil
}

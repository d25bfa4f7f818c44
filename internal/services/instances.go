// Package services provides the instance store, repository inspection, backup
// listing and job execution behind the management API.
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

var (
	// ErrInstanceNotFound indicates the requested instance was not found.
	ErrInstanceNotFound = errors.New("instance not found")
	// ErrInstanceExists indicates an instance with the same name already exists.
	ErrInstanceExists = errors.New("instance already exists")
)

// InstanceService stores instance descriptors.
type InstanceService struct {
	db        *database.DB
	validator *validation.Validator
}

// NewInstanceService creates a new InstanceService instance.
func NewInstanceService(db *database.DB, v *validation.Validator) *InstanceService {
	return &InstanceService{db: db, validator: v}
}

// Create validates and stores a new instance.
func (s *InstanceService) Create(name string, record models.InstanceDescriptor) (*models.Instance, error) {
	if err := validation.ValidateName(name); err != nil {
		return nil, validation.FieldErrors{{Field: "name", Message: err.Error()}}
	}
	record.Name = name
	if err := s.validator.Descriptor(&record); err != nil {
		return nil, err
	}

	data, err := json.Marshal(record.Record())
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec("INSERT INTO instances (name, record) VALUES (?, ?)", name, string(data))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return nil, ErrInstanceExists
		}
		return nil, err
	}

	return s.Get(name)
}

// Get retrieves an instance by name.
func (s *InstanceService) Get(name string) (*models.Instance, error) {
	var record string
	var inst models.Instance
	err := s.db.QueryRow(
		"SELECT record, created_at, updated_at FROM instances WHERE name = ?",
		name,
	).Scan(&record, &inst.CreatedAt, &inst.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrInstanceNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(record), &inst.InstanceDescriptor); err != nil {
		return nil, fmt.Errorf("decode instance %s: %w", name, err)
	}
	inst.Name = name
	return &inst, nil
}

// List retrieves all instances ordered by name.
func (s *InstanceService) List() ([]models.Instance, error) {
	rows, err := s.db.Query("SELECT name, record, created_at, updated_at FROM instances ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var instances []models.Instance
	for rows.Next() {
		var name, record string
		var inst models.Instance
		if err := rows.Scan(&name, &record, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(record), &inst.InstanceDescriptor); err != nil {
			return nil, fmt.Errorf("decode instance %s: %w", name, err)
		}
		inst.Name = name
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

// Update replaces the record of an existing instance. The name never changes.
func (s *InstanceService) Update(name string, record models.InstanceDescriptor) (*models.Instance, error) {
	if _, err := s.Get(name); err != nil {
		return nil, err
	}

	record.Name = name
	if err := s.validator.Descriptor(&record); err != nil {
		return nil, err
	}

	data, err := json.Marshal(record.Record())
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(
		"UPDATE instances SET record = ?, updated_at = ? WHERE name = ?",
		string(data), time.Now(), name,
	)
	if err != nil {
		return nil, err
	}

	return s.Get(name)
}

// Delete removes an instance. Its job history is kept.
func (s *InstanceService) Delete(name string) error {
	result, err := s.db.Exec("DELETE FROM instances WHERE name = ?", name)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrInstanceNotFound
	}
	return nil
}

package services

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/pandeptwidyaop/deploy-manager/internal/database"
)

// Audit actions.
const (
	ActionInstanceCreate = "instance_create"
	ActionInstanceUpdate = "instance_update"
	ActionInstanceDelete = "instance_delete"
	ActionBuild          = "build"
	ActionRestore        = "restore"
	ActionRestCreate     = "rest_create"
	ActionRestUpdate     = "rest_update"
	ActionRestDelete     = "rest_delete"
)

// AuditService records changes to instances and the jobs started against them.
type AuditService struct {
	db *database.DB
}

// NewAuditService creates a new AuditService instance.
func NewAuditService(db *database.DB) *AuditService {
	return &AuditService{db: db}
}

// AuditLog is an audit entry to be recorded.
type AuditLog struct {
	Details   map[string]any
	Action    string
	Instance  string
	JobID     string
	IPAddress string
	UserAgent string
}

// Log records an entry. Failures are logged and returned but callers are not
// expected to fail the request because of them.
func (s *AuditService) Log(entry AuditLog) error {
	var details string
	if entry.Details != nil {
		if b, err := json.Marshal(entry.Details); err == nil {
			details = string(b)
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO audit_logs (action, instance, job_id, ip_address, user_agent, details)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.Action, entry.Instance, entry.JobID, entry.IPAddress, entry.UserAgent, details)
	if err != nil {
		log.Error().Err(err).Str("action", entry.Action).Str("instance", entry.Instance).Msg("failed to write audit log")
	}
	return err
}

// AuditLogEntry is a stored audit entry.
type AuditLogEntry struct {
	Action    string `json:"action"`
	Instance  string `json:"instance"`
	JobID     string `json:"job_id,omitempty"`
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	Details   string `json:"details,omitempty"`
	CreatedAt string `json:"created_at"`
	ID        int64  `json:"id"`
}

// GetLogs returns audit entries newest first, optionally limited to one instance.
func (s *AuditService) GetLogs(instance string, limit, offset int) ([]AuditLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, action, instance, job_id, ip_address, user_agent, details, created_at FROM audit_logs`
	args := []any{}
	if instance != "" {
		query += " WHERE instance = ?"
		args = append(args, instance)
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	logs := make([]AuditLogEntry, 0)
	for rows.Next() {
		var e AuditLogEntry
		var jobID, ip, ua, details *string
		if err := rows.Scan(&e.ID, &e.Action, &e.Instance, &jobID, &ip, &ua, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		if jobID != nil {
			e.JobID = *jobID
		}
		if ip != nil {
			e.IPAddress = *ip
		}
		if ua != nil {
			e.UserAgent = *ua
		}
		if details != nil {
			e.Details = *details
		}
		logs = append(logs, e)
	}
	return logs, rows.Err()
}

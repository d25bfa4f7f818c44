package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pandeptwidyaop/deploy-manager/internal/config"
	"github.com/pandeptwidyaop/deploy-manager/internal/database"
	"github.com/pandeptwidyaop/deploy-manager/internal/metrics"
	"github.com/pandeptwidyaop/deploy-manager/internal/models"
)

// ErrJobNotFound indicates the requested job was not found.
var ErrJobNotFound = errors.New("job not found")

const truncatedNotice = "\n[output truncated]\n"

// ExecutorService stores jobs and runs their commands through the configured
// shell, streaming output lines to subscribers.
type ExecutorService struct {
	db        *database.DB
	cfg       *config.Config
	metrics   *metrics.Metrics
	streams   map[string][]chan string
	streamsMu sync.RWMutex
}

// NewExecutorService creates a new ExecutorService instance. m may be nil.
func NewExecutorService(db *database.DB, cfg *config.Config, m *metrics.Metrics) *ExecutorService {
	return &ExecutorService{
		db:      db,
		cfg:     cfg,
		metrics: m,
		streams: make(map[string][]chan string),
	}
}

// CreateJob stores a pending job that will run commands.
func (s *ExecutorService) CreateJob(instance string, kind models.JobKind, commands string) (*models.Job, error) {
	id := uuid.New().String()

	_, err := s.db.Exec(
		"INSERT INTO jobs (id, instance, kind, status, commands) VALUES (?, ?, ?, ?, ?)",
		id, instance, kind, models.StatusPending, commands,
	)
	if err != nil {
		return nil, err
	}

	return s.GetJob(id)
}

const jobColumns = "id, instance, kind, status, commands, output, exit_code, started_at, finished_at, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*models.Job, error) {
	var job models.Job
	var output sql.NullString
	var exitCode sql.NullInt64
	var startedAt, finishedAt sql.NullTime

	err := row.Scan(&job.ID, &job.Instance, &job.Kind, &job.Status, &job.Commands,
		&output, &exitCode, &startedAt, &finishedAt, &job.CreatedAt)
	if err != nil {
		return nil, err
	}

	if output.Valid {
		job.Output = output.String
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		job.ExitCode = &code
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		job.FinishedAt = &finishedAt.Time
	}
	return &job, nil
}

// GetJob retrieves a job by its ID.
func (s *ExecutorService) GetJob(id string) (*models.Job, error) {
	job, err := scanJob(s.db.QueryRow("SELECT "+jobColumns+" FROM jobs WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	return job, err
}

// ListJobs returns jobs newest first, optionally limited to one instance.
func (s *ExecutorService) ListJobs(instance string, limit, offset int) ([]models.Job, error) {
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT " + jobColumns + " FROM jobs"
	args := []any{}
	if instance != "" {
		query += " WHERE instance = ?"
		args = append(args, instance)
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	jobs := []models.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// Run executes the commands of a pending job and waits for them to finish.
// A non-zero exit marks the job failed but is not an error; the returned
// error is only set when the job could not be loaded or recorded.
func (s *ExecutorService) Run(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := s.GetJob(jobID)
	if err != nil {
		return nil, err
	}

	logger := log.With().Str("job", job.ID).Str("instance", job.Instance).Str("kind", string(job.Kind)).Logger()
	logger.Info().Msg("starting job")

	started := time.Now()
	if _, err := s.db.Exec(
		"UPDATE jobs SET status = ?, started_at = ? WHERE id = ?",
		models.StatusRunning, started, jobID,
	); err != nil {
		return nil, fmt.Errorf("start job: %w", err)
	}
	s.metrics.JobStarted(string(job.Kind))

	out := newOutputBuffer(s.cfg.Execution.MaxOutputSize)
	exitCode, runErr := s.execute(ctx, jobID, job.Commands, out)

	status := models.StatusSuccess
	if runErr != nil {
		status = models.StatusFailed
		out.WriteLine(runErr.Error())
		s.broadcastLine(jobID, runErr.Error())
	}

	if err := s.finishJob(jobID, status, out.String(), exitCode); err != nil {
		return nil, err
	}
	s.broadcastComplete(jobID, status)
	duration := time.Since(started)
	s.metrics.JobFinished(string(job.Kind), string(status), duration)

	logger.Info().Str("status", string(status)).Int("exit_code", exitCode).Dur("duration", duration).Msg("finished job")

	return s.GetJob(jobID)
}

// MarkFailed records a job that could not be run as failed, so it does not
// stay pending.
func (s *ExecutorService) MarkFailed(jobID string, cause error) error {
	if err := s.finishJob(jobID, models.StatusFailed, cause.Error()+"\n", -1); err != nil {
		return err
	}
	s.broadcastComplete(jobID, models.StatusFailed)
	return nil
}

// execute runs commands until they exit, the configured timeout passes or ctx
// is cancelled. Callers that must not abort a job when their request goes
// away pass a context without cancellation.
func (s *ExecutorService) execute(ctx context.Context, jobID, commands string, out *outputBuffer) (int, error) {
	runCtx := ctx
	timeout := s.cfg.Execution.Timeout()
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := append(append([]string(nil), s.cfg.Execution.ShellArgs...), commands)
	cmd := exec.CommandContext(runCtx, s.cfg.Execution.Shell, args...)
	// Children that outlive a killed shell keep the output pipes open.
	cmd.WaitDelay = 5 * time.Second

	w := &lineWriter{max: s.cfg.Execution.MaxOutputSize, emit: func(line string) {
		out.WriteLine(line)
		s.broadcastLine(jobID, line)
	}}
	cmd.Stdout = w
	cmd.Stderr = w

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("start %s: %w", s.cfg.Execution.Shell, err)
	}
	err := cmd.Wait()
	w.Flush()

	if err := ctx.Err(); err != nil {
		return -1, fmt.Errorf("job cancelled: %w", err)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return -1, fmt.Errorf("job timed out after %s", timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			return code, fmt.Errorf("exit status %d", code)
		}
		return -1, err
	}
	return 0, nil
}

// lineWriter splits written bytes into lines. exec serializes writes when
// Stdout and Stderr are the same writer. A line longer than max is emitted in
// pieces of max bytes.
type lineWriter struct {
	emit    func(line string)
	partial []byte
	max     int
}

func (w *lineWriter) Write(p []byte) (int, error) {
	n := len(p)
	for {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			break
		}
		w.partial = append(w.partial, p[:i]...)
		w.emit(strings.TrimSuffix(string(w.partial), "\r"))
		w.partial = w.partial[:0]
		p = p[i+1:]
	}
	w.partial = append(w.partial, p...)
	for w.max > 0 && len(w.partial) >= w.max {
		w.emit(string(w.partial[:w.max]))
		w.partial = append(w.partial[:0], w.partial[w.max:]...)
	}
	return n, nil
}

// Flush emits a trailing line without a newline.
func (w *lineWriter) Flush() {
	if len(w.partial) > 0 {
		w.emit(string(w.partial))
		w.partial = nil
	}
}

func (s *ExecutorService) finishJob(id string, status models.JobStatus, output string, exitCode int) error {
	_, err := s.db.Exec(
		"UPDATE jobs SET status = ?, output = ?, exit_code = ?, finished_at = ? WHERE id = ?",
		status, output, exitCode, time.Now(), id,
	)
	return err
}

// Subscribe returns a channel receiving "output:<line>" messages for the job
// and a final "complete:<status>".
func (s *ExecutorService) Subscribe(jobID string) chan string {
	ch := make(chan string, 100)

	s.streamsMu.Lock()
	s.streams[jobID] = append(s.streams[jobID], ch)
	s.streamsMu.Unlock()

	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (s *ExecutorService) Unsubscribe(jobID string, ch chan string) {
	s.streamsMu.Lock()
	defer s.streamsMu.Unlock()

	channels := s.streams[jobID]
	for i, c := range channels {
		if c == ch {
			s.streams[jobID] = append(channels[:i], channels[i+1:]...)
			close(ch)
			break
		}
	}

	if len(s.streams[jobID]) == 0 {
		delete(s.streams, jobID)
	}
}

func (s *ExecutorService) broadcastLine(jobID string, line string) {
	s.streamsMu.RLock()
	defer s.streamsMu.RUnlock()

	for _, ch := range s.streams[jobID] {
		select {
		case ch <- "output:" + line:
		default:
		}
	}
}

// broadcastComplete delivers the final message to every subscriber. A
// subscriber whose buffer is full loses its oldest lines instead.
func (s *ExecutorService) broadcastComplete(jobID string, status models.JobStatus) {
	s.streamsMu.RLock()
	defer s.streamsMu.RUnlock()

	msg := "complete:" + string(status)
	for _, ch := range s.streams[jobID] {
		for delivered := false; !delivered; {
			select {
			case ch <- msg:
				delivered = true
			default:
				select {
				case <-ch:
				default:
				}
			}
		}
	}
}

// outputBuffer collects job output up to a size limit. Lines from stdout and
// stderr are interleaved in arrival order.
type outputBuffer struct {
	mu        sync.Mutex
	b         strings.Builder
	limit     int
	truncated bool
}

func newOutputBuffer(limit int) *outputBuffer {
	return &outputBuffer{limit: limit}
}

func (o *outputBuffer) WriteLine(line string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.truncated {
		return
	}
	if o.limit > 0 && o.b.Len()+len(line)+1 > o.limit {
		o.truncated = true
		o.b.WriteString(truncatedNotice)
		return
	}
	o.b.WriteString(line)
	o.b.WriteByte('\n')
}

func (o *outputBuffer) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.b.String()
}

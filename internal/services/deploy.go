package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pandeptwidyaop/deploy-manager/internal/models"
	"github.com/pandeptwidyaop/deploy-manager/internal/plan"
	"github.com/pandeptwidyaop/deploy-manager/internal/validation"
)

var (
	// ErrCheckoutNotAllowed indicates a branch switch was requested for an
	// instance that does not allow it.
	ErrCheckoutNotAllowed = errors.New("instance does not allow switching branches")
	// ErrInstanceBusy indicates a job is already running for the instance.
	ErrInstanceBusy = errors.New("a job is already running for this instance")
)

// DeployService compiles and runs build and restore jobs for instances.
type DeployService struct {
	instances *InstanceService
	repos     *RepositoryService
	backups   *BackupService
	executor  *ExecutorService
	now       func() time.Time
	locks     *instanceLocks
}

// NewDeployService creates a new DeployService instance.
func NewDeployService(instances *InstanceService, repos *RepositoryService, backups *BackupService, executor *ExecutorService) *DeployService {
	return &DeployService{
		instances: instances,
		repos:     repos,
		backups:   backups,
		executor:  executor,
		now:       time.Now,
		locks:     newInstanceLocks(),
	}
}

// Status reports the repository state of the named instance.
func (s *DeployService) Status(name string) (*models.InstanceStatus, error) {
	inst, err := s.instances.Get(name)
	if err != nil {
		return nil, err
	}
	return s.repos.Status(inst.Path)
}

// Backups lists the backups of the named instance, newest first.
func (s *DeployService) Backups(name string) ([]string, error) {
	inst, err := s.instances.Get(name)
	if err != nil {
		return nil, err
	}
	return s.backups.List(inst.InstanceDescriptor)
}

// Build runs a build of the named instance and returns the finished job.
func (s *DeployService) Build(ctx context.Context, name string, opts models.BuildOptions) (*models.Job, error) {
	inst, err := s.instances.Get(name)
	if err != nil {
		return nil, err
	}
	d := inst.InstanceDescriptor

	if branch, ok := opts.Checkout.Get(); ok && branch != "" {
		if !d.Git.CheckoutAllowed {
			return nil, ErrCheckoutNotAllowed
		}
		if !validation.IsShellSafe(branch) || strings.HasPrefix(branch, "-") {
			return nil, validation.FieldErrors{{Field: "checkout", Message: "contains characters not allowed in commands"}}
		}
		st, err := s.repos.Status(d.Path)
		if err != nil {
			return nil, err
		}
		if !st.HasBranch(branch) {
			return nil, validation.FieldErrors{{Field: "checkout", Message: "unknown branch"}}
		}
	}
	if !opts.Backup.IsSet() && d.HasBackups() {
		opts.Backup = models.Some(true)
	}

	p := plan.CompileBuild(d, opts, s.now())
	return s.run(ctx, name, models.JobBuild, p)
}

// Restore replaces the web root of the named instance with a backup and
// returns the finished job.
func (s *DeployService) Restore(ctx context.Context, name string, opts models.RestoreOptions) (*models.Job, error) {
	inst, err := s.instances.Get(name)
	if err != nil {
		return nil, err
	}
	d := inst.InstanceDescriptor

	if err := s.backups.Check(d, opts.Backup); err != nil {
		return nil, err
	}

	p := plan.CompileRestore(d, opts.Backup, opts.BackupCurrent.OrElse(false), s.now())
	return s.run(ctx, name, models.JobRestore, p)
}

func (s *DeployService) run(ctx context.Context, name string, kind models.JobKind, p plan.Plan) (*models.Job, error) {
	if !s.locks.tryLock(name) {
		return nil, ErrInstanceBusy
	}
	defer s.locks.unlock(name)

	job, err := s.executor.CreateJob(name, kind, p.String())
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	log.Info().Str("instance", name).Str("kind", string(kind)).Str("job", job.ID).Int("steps", len(p)).Msg("job queued")

	// The job outlives the request that started it; only the configured
	// timeout stops it.
	done, err := s.executor.Run(context.WithoutCancel(ctx), job.ID)
	if err != nil {
		if markErr := s.executor.MarkFailed(job.ID, err); markErr != nil {
			log.Error().Err(markErr).Str("job", job.ID).Msg("failed to mark job failed")
		}
		return nil, err
	}
	return done, nil
}

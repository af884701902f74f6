package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/sirupsen/logrus"
)

// Job names accepted by RunNow
const (
	JobRefreshMetrics = "refresh_metrics"
	JobSweep          = "sweep"
	JobCleanup        = "cleanup"
)

const (
	cleanupSchedule   = "30 3 * * *"
	auditLogRetention = 365 * 24 * time.Hour
	cronJobTimeout    = 2 * time.Minute
)

var ErrUnknownJob = errors.New("unknown cron job")

// SweepSource finds records stuck in a waiting state
type SweepSource interface {
	ListStaleAssignments(ctx context.Context, cutoff time.Time) ([]models.ServiceRequest, error)
	ListPendingPaymentsOlderThan(ctx context.Context, cutoff time.Time) ([]models.Payment, error)
}

// TokenCleaner removes expired refresh tokens
type TokenCleaner interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditCleaner removes old audit rows
type AuditCleaner interface {
	CleanupOldAuditLogs(ctx context.Context, olderThan time.Duration) (int64, error)
}

// RateLimitCleaner removes expired login attempt records
type RateLimitCleaner interface {
	CleanupExpiredRateLimits(ctx context.Context) (int64, error)
}

// CronConfig holds the job schedules and sweep thresholds
type CronConfig struct {
	MetricsSchedule    string
	SweepSchedule      string
	StaleAssignmentAge time.Duration
	PendingPaymentAge  time.Duration
}

// SweepReport is the result of one sweep run
type SweepReport struct {
	StaleAssignments int `json:"stale_assignments"`
	PendingPayments  int `json:"pending_payments"`
}

// CronService manages scheduled background jobs
type CronService struct {
	cron   *cron.Cron
	config CronConfig
	stats  StatsSource
	sweep  SweepSource
	tokens TokenCleaner
	audit  AuditCleaner
	limits RateLimitCleaner
	logger logrus.FieldLogger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	lastRun map[string]time.Time
}

// NewCronService creates a new CronService
func NewCronService(config CronConfig, stats StatsSource, sweep SweepSource, tokens TokenCleaner, audit AuditCleaner, limits RateLimitCleaner, logger logrus.FieldLogger) *CronService {
	return &CronService{
		cron:    cron.New(),
		config:  config,
		stats:   stats,
		sweep:   sweep,
		tokens:  tokens,
		audit:   audit,
		limits:  limits,
		logger:  logger,
		entries: make(map[string]cron.EntryID),
		lastRun: make(map[string]time.Time),
	}
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	schedules := []struct {
		name string
		spec string
	}{
		{JobRefreshMetrics, s.config.MetricsSchedule},
		{JobSweep, s.config.SweepSchedule},
		{JobCleanup, cleanupSchedule},
	}

	for _, sc := range schedules {
		name := sc.name
		id, err := s.cron.AddFunc(sc.spec, func() {
			if err := s.RunNow(context.Background(), name); err != nil {
				s.logger.WithError(err).WithField("job", name).Error("Cron job failed")
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", name, err)
		}
		s.mu.Lock()
		s.entries[name] = id
		s.mu.Unlock()
		s.logger.WithFields(logrus.Fields{"job": name, "schedule": sc.spec}).Info("Scheduled cron job")
	}

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// RunNow runs a job immediately. Used by the scheduler and the admin trigger.
func (s *CronService) RunNow(ctx context.Context, job string) error {
	ctx, cancel := context.WithTimeout(ctx, cronJobTimeout)
	defer cancel()

	start := time.Now()
	var err error
	switch job {
	case JobRefreshMetrics:
		err = s.refreshMetrics(ctx)
	case JobSweep:
		_, err = s.Sweep(ctx)
	case JobCleanup:
		err = s.cleanup(ctx)
	default:
		return ErrUnknownJob
	}

	recordCronJob(job, start, err)
	s.mu.Lock()
	s.lastRun[job] = start
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"job": job, "duration": time.Since(start).String()}).Debug("Cron job finished")
	return nil
}

func (s *CronService) refreshMetrics(ctx context.Context) error {
	counts, err := s.stats.CountRequestsByStatus(ctx)
	if err != nil {
		return err
	}
	pending, err := s.stats.CountPendingPayments(ctx)
	if err != nil {
		return err
	}
	setStatusGauges(counts, pending)
	return nil
}

// Sweep logs requests assigned for too long and payments awaiting confirmation
func (s *CronService) Sweep(ctx context.Context) (*SweepReport, error) {
	now := time.Now()

	stale, err := s.sweep.ListStaleAssignments(ctx, now.Add(-s.config.StaleAssignmentAge))
	if err != nil {
		return nil, err
	}
	for _, r := range stale {
		s.logger.WithFields(logrus.Fields{
			"service_request_id": r.ID,
			"company_id":         r.CompanyID,
			"assigned_since":     r.UpdatedAt,
		}).Warn("Service request assigned but not accepted")
	}

	payments, err := s.sweep.ListPendingPaymentsOlderThan(ctx, now.Add(-s.config.PendingPaymentAge))
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		s.logger.WithFields(logrus.Fields{
			"payment_id":         p.ID,
			"service_request_id": p.ServiceRequestID,
			"requested_at":       p.CreatedAt,
		}).Warn("Payment awaiting admin confirmation")
	}

	report := &SweepReport{StaleAssignments: len(stale), PendingPayments: len(payments)}
	s.logger.WithFields(logrus.Fields{
		"stale_assignments": report.StaleAssignments,
		"pending_payments":  report.PendingPayments,
	}).Info("Sweep completed")
	return report, nil
}

func (s *CronService) cleanup(ctx context.Context) error {
	tokens, err := s.tokens.DeleteExpired(ctx, time.Now())
	if err != nil {
		return err
	}
	logs, err := s.audit.CleanupOldAuditLogs(ctx, auditLogRetention)
	if err != nil {
		return err
	}
	var attempts int64
	if s.limits != nil {
		if attempts, err = s.limits.CleanupExpiredRateLimits(ctx); err != nil {
			return err
		}
	}
	s.logger.WithFields(logrus.Fields{
		"expired_tokens": tokens,
		"audit_logs":     logs,
		"login_attempts": attempts,
	}).Info("Cleanup completed")
	return nil
}

// JobStatus describes one scheduled job
type JobStatus struct {
	Name    string     `json:"name"`
	NextRun *time.Time `json:"next_run,omitempty"`
	LastRun *time.Time `json:"last_run,omitempty"`
}

// GetJobStatus returns the scheduled jobs with their next and last runs
func (s *CronService) GetJobStatus() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := []string{JobRefreshMetrics, JobSweep, JobCleanup}
	sort.Strings(names)

	jobs := make([]JobStatus, 0, len(names))
	for _, name := range names {
		st := JobStatus{Name: name}
		if id, ok := s.entries[name]; ok {
			if next := s.cron.Entry(id).Next; !next.IsZero() {
				st.NextRun = &next
			}
		}
		if last, ok := s.lastRun[name]; ok {
			st.LastRun = &last
		}
		jobs = append(jobs, st)
	}
	return jobs
}

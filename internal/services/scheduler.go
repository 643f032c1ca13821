package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"expensa/internal/amqp"
	"expensa/internal/core"
	"expensa/internal/log"

	"golang.org/x/sync/errgroup"
)

// SchedulerConfig holds configuration for the periodic scheduler
type SchedulerConfig struct {
	// RecurringInterval is how often recurring series are caught up (default: 1h)
	RecurringInterval time.Duration

	// ImportInterval is how often Splitwise imports run (default: 1h)
	ImportInterval time.Duration

	// Concurrency bounds how many users are processed at once (default: 4)
	Concurrency int
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		RecurringInterval: time.Hour,
		ImportInterval:    time.Hour,
		Concurrency:       4,
	}
}

// UserLister enumerates the users the scheduler works for.
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// Scheduler periodically catches up recurring series and imports Splitwise
// expenses for every user. With a publisher it enqueues jobs for the worker
// instead of running them itself.
type Scheduler struct {
	users     UserLister
	recurring *RecurringService
	importer  *SplitwiseImporter
	publisher Publisher
	config    SchedulerConfig
	logger    *log.Logger
	now       func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a scheduler. importer and publisher may be nil.
func NewScheduler(users UserLister, recurring *RecurringService, importer *SplitwiseImporter, publisher Publisher, config SchedulerConfig, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Nop()
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	return &Scheduler{
		users:     users,
		recurring: recurring,
		importer:  importer,
		publisher: publisher,
		config:    config,
		logger:    logger.WithComponent(log.ComponentScheduler),
		now:       time.Now,
	}
}

// Start begins the scheduling loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	go s.runLoop(ctx, stopCh, doneCh)

	s.logger.InfoContext(ctx, "Scheduler started",
		"recurring_interval", s.config.RecurringInterval,
		"import_interval", s.config.ImportInterval,
		"concurrency", s.config.Concurrency,
		"enqueue", s.publisher != nil)
	return nil
}

// Stop signals the loop and waits for the current round to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Scheduler stop timed out")
		return ctx.Err()
	}
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// runLoop exits on Stop or when ctx ends; either way the scheduler can be
// started again afterwards.
func (s *Scheduler) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(doneCh)
	}()

	recurringTicker := time.NewTicker(s.config.RecurringInterval)
	defer recurringTicker.Stop()

	importInterval := s.config.ImportInterval
	if importInterval <= 0 {
		importInterval = s.config.RecurringInterval
	}
	importTicker := time.NewTicker(importInterval)
	defer importTicker.Stop()

	// Run immediately on startup
	s.RunCatchUp(ctx)
	s.RunImport(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-recurringTicker.C:
			s.RunCatchUp(ctx)
		case <-importTicker.C:
			s.RunImport(ctx)
		}
	}
}

// RunCatchUp performs one catch-up round across all users.
func (s *Scheduler) RunCatchUp(ctx context.Context) {
	through := core.CurrentMonth(s.now())
	s.forEachUser(ctx, log.OpCatchUp, func(ctx context.Context, userID string) error {
		if s.publisher != nil {
			return s.publisher.Publish(ctx, amqp.NewCatchUpJob(userID, through.String()))
		}
		_, err := s.recurring.CatchUp(ctx, userID, through)
		return err
	})
}

// RunImport performs one Splitwise import round for users that configured it.
func (s *Scheduler) RunImport(ctx context.Context) {
	if s.importer == nil {
		return
	}
	s.forEachUser(ctx, log.OpImport, func(ctx context.Context, userID string) error {
		ready, err := s.importer.Ready(ctx, userID)
		if err != nil || !ready {
			return err
		}
		if s.publisher != nil {
			return s.publisher.Publish(ctx, amqp.NewImportJob(userID))
		}
		_, err = s.importer.Import(ctx, userID)
		return err
	})
}

// forEachUser runs fn for every user with bounded concurrency. Failures are
// logged per user and never abort the round.
func (s *Scheduler) forEachUser(ctx context.Context, op string, fn func(context.Context, string) error) {
	ids, err := s.users.ListUserIDs(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list users", log.FieldOperation, op, log.FieldError, err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)

	var (
		mu     sync.Mutex
		failed int
	)
	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := fn(gctx, id); err != nil && !errors.Is(err, context.Canceled) {
				mu.Lock()
				failed++
				mu.Unlock()
				s.logger.WarnContext(gctx, "Scheduled job failed",
					log.FieldOperation, op, log.FieldUserID, id, log.FieldError, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.DebugContext(ctx, "Scheduler round complete",
		log.FieldOperation, op, log.FieldCount, len(ids), "failed", failed)
}

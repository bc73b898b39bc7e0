package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"invoicehub/internal/services"
	"invoicehub/pkg/logger"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const (
	resetTokenSweepInterval = time.Hour
	limiterSweepInterval    = 5 * time.Minute
	jobTimeout              = 2 * time.Minute
)

// Sweeper drops idle in-memory state, e.g. per-IP rate limiters.
type Sweeper interface {
	Cleanup()
}

// JobScheduler runs the periodic maintenance jobs of the API process.
type JobScheduler struct {
	scheduler     gocron.Scheduler
	passwordReset services.PasswordResetService
	sweepers      []Sweeper
	jobs          map[string]gocron.Job
	mu            sync.RWMutex
}

// NewJobScheduler creates a scheduler with every job registered. Jobs do not
// run until Start is called.
func NewJobScheduler(passwordReset services.PasswordResetService, sweepers ...Sweeper) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	js := &JobScheduler{
		scheduler:     scheduler,
		passwordReset: passwordReset,
		sweepers:      sweepers,
		jobs:          make(map[string]gocron.Job),
	}
	if err := js.registerJobs(); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) Start() {
	logger.L().Info("starting background job scheduler", zap.Strings("jobs", js.JobNames()))
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	logger.L().Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// JobNames lists the registered jobs in name order.
func (js *JobScheduler) JobNames() []string {
	js.mu.RLock()
	defer js.mu.RUnlock()
	names := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (js *JobScheduler) registerJobs() error {
	if err := js.add("reset-token-cleanup", resetTokenSweepInterval, js.clearExpiredResetTokens); err != nil {
		return err
	}
	if len(js.sweepers) > 0 {
		if err := js.add("rate-limiter-cleanup", limiterSweepInterval, js.sweepLimiters); err != nil {
			return err
		}
	}
	return nil
}

func (js *JobScheduler) add(name string, every time.Duration, task func()) error {
	job, err := js.scheduler.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register job %s: %w", name, err)
	}
	js.mu.Lock()
	js.jobs[name] = job
	js.mu.Unlock()
	return nil
}

// clearExpiredResetTokens removes reset tokens whose hour has passed. Expired
// tokens are already unusable; this keeps the users table tidy.
func (js *JobScheduler) clearExpiredResetTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	cleared, err := js.passwordReset.ClearExpired(ctx)
	if err != nil {
		logger.L().Error("reset token cleanup failed", zap.Error(err))
		return
	}
	if cleared > 0 {
		logger.L().Info("cleared expired reset tokens", zap.Int64("count", cleared))
	}
}

func (js *JobScheduler) sweepLimiters() {
	for _, s := range js.sweepers {
		s.Cleanup()
	}
}

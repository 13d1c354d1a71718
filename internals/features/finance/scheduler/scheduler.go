// file: internals/features/finance/scheduler/scheduler.go
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"impactacademy_backend/internals/configs"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

// ErrLocked is returned by RunLocked when another run holds the job lock.
var ErrLocked = errors.New("job is already running")

type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	locker Locker
	ttl    time.Duration
	log    *zap.Logger
}

// New registers every job on its configured schedule. Nothing runs until
// Start.
func New(cfg configs.CronConfig, jobs *Jobs, locker Locker, log *zap.Logger) (*Scheduler, error) {
	log = log.Named("scheduler")
	if locker == nil {
		locker = NewLocalLocker()
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	s := &Scheduler{
		jobs:   jobs,
		locker: locker,
		ttl:    ttl,
		log:    log,
	}
	cl := cronLogger{log.Sugar()}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	schedules := map[string]string{
		JobCheckOverdue:     cfg.OverdueSchedule,
		JobPaymentReminders: cfg.RemindersSchedule,
		JobGenerateInvoices: cfg.InvoicesSchedule,
		JobBlockProgression: cfg.ProgressionSchedule,
		JobDeductions:       cfg.DeductionsSchedule,
		JobCleanup:          cfg.CleanupSchedule,
	}
	for _, name := range JobNames {
		spec := schedules[name]
		if spec == "" || spec == "-" {
			log.Info("job disabled", zap.String("job", name))
			continue
		}
		name := name
		if _, err := s.cron.AddFunc(spec, func() { s.fire(name) }); err != nil {
			return nil, fmt.Errorf("schedule %s (%q): %w", name, spec, err)
		}
		log.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	}
	return s, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop menghentikan cron dan menunggu job yang jalan sampai ctx selesai.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out, jobs still running")
	}
}

func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

func (s *Scheduler) fire(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.ttl)
	defer cancel()
	if _, err := s.RunLocked(ctx, helperAuth.SystemActor, name, nil); err != nil && !errors.Is(err, ErrLocked) {
		s.log.Error("job failed", zap.String("job", name), zap.Error(err))
	}
}

// RunLocked runs one job under its lock. Cron ticks and the admin endpoint
// both come through here.
func (s *Scheduler) RunLocked(ctx context.Context, actor helperAuth.Actor, name string, args []string) (any, error) {
	return RunWithLock(ctx, s.locker, s.ttl, s.jobs, actor, name, args, s.log)
}

// RunWithLock = RunLocked tanpa cron, dipakai command one-shot.
func RunWithLock(ctx context.Context, locker Locker, ttl time.Duration, jobs *Jobs, actor helperAuth.Actor, name string, args []string, log *zap.Logger) (any, error) {
	if !IsJob(name) {
		return jobs.Run(ctx, actor, name, args)
	}
	release, ok, err := locker.TryLock(ctx, name, ttl)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", name, err)
	}
	if !ok {
		log.Info("job skipped, lock held", zap.String("job", name))
		return nil, ErrLocked
	}
	defer release()

	start := time.Now()
	res, err := jobs.Run(ctx, actor, name, args)
	if err != nil {
		return res, err
	}
	log.Info("job finished", zap.String("job", name), zap.Duration("took", time.Since(start)), zap.Any("summary", res))
	return res, nil
}

// cronLogger meneruskan log robfig/cron ke zap.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.s.Errorw(msg, append(kv, "error", err)...)
}

package scheduler

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"impactacademy_backend/internals/configs"
	"impactacademy_backend/internals/databases/dbtest"
	deductionService "impactacademy_backend/internals/features/finance/deductions/service"
	"impactacademy_backend/internals/features/finance/finerr"
	invoiceService "impactacademy_backend/internals/features/finance/invoices/service"
	ledgerService "impactacademy_backend/internals/features/finance/ledger/service"
	"impactacademy_backend/internals/features/finance/notifications/notifytest"
	payModel "impactacademy_backend/internals/features/finance/payments/model"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

var t0 = time.Date(2025, 6, 1, 4, 0, 0, 0, time.UTC)

func newJobs(t *testing.T, db *gorm.DB) *Jobs {
	t.Helper()
	rec := &notifytest.Recorder{}
	clock := func() time.Time { return t0 }

	inv := invoiceService.New(db, rec, nil, zap.NewNop())
	inv.Now = clock
	led := ledgerService.New(db, rec, nil, zap.NewNop())
	led.Now = clock
	ded := deductionService.New(db, nil, zap.NewNop())
	ded.Now = clock

	return &Jobs{
		DB: db, Invoices: inv, Ledger: led, Deductions: ded,
		Retention: 90 * 24 * time.Hour, Log: zap.NewNop(), Now: clock,
	}
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	now := t0
	l.clock = func() time.Time { return now }
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, "check-overdue", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = l.TryLock(ctx, "check-overdue", time.Minute)
	assert.False(t, ok, "held lock")

	_, ok, _ = l.TryLock(ctx, "cleanup", time.Minute)
	assert.True(t, ok, "locks are per key")

	release()
	release2, ok, _ := l.TryLock(ctx, "check-overdue", time.Minute)
	require.True(t, ok, "released lock")

	// an expired lock can be taken over; the stale release must not free it
	now = now.Add(2 * time.Minute)
	_, ok, _ = l.TryLock(ctx, "check-overdue", time.Minute)
	require.True(t, ok)
	release2()
	_, ok, _ = l.TryLock(ctx, "check-overdue", time.Minute)
	assert.False(t, ok)
}

func TestLocalLockerSingleWinner(t *testing.T) {
	l := NewLocalLocker()
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := l.TryLock(context.Background(), "generate-invoices", time.Minute); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestRedisLocker(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	l := NewRedisLocker(redis.NewClient(opt))
	l.prefix = "finance:test:" + t.Name() + ":"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.Ping(ctx); err != nil {
		t.Skip("Skipping Redis locker test: redis not available")
	}

	release, ok, err := l.TryLock(ctx, "cleanup", 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "cleanup", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	release, ok, err = l.TryLock(ctx, "cleanup", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}

func TestRunUnknownJob(t *testing.T) {
	db := dbtest.NewTestDB(t)
	_, err := RunWithLock(context.Background(), NewLocalLocker(), time.Minute, newJobs(t, db),
		helperAuth.SystemActor, "payroll", nil, zap.NewNop())
	assert.True(t, finerr.Is(err, finerr.KindValidation))
}

func TestRunSkipsWhenLocked(t *testing.T) {
	db := dbtest.NewTestDB(t)
	locker := NewLocalLocker()
	_, ok, _ := locker.TryLock(context.Background(), JobCleanup, time.Minute)
	require.True(t, ok)

	_, err := RunWithLock(context.Background(), locker, time.Minute, newJobs(t, db),
		helperAuth.SystemActor, JobCleanup, nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrLocked)
}

func TestCleanupJobRemovesOldFinishedEvents(t *testing.T) {
	db := dbtest.NewTestDB(t)
	event := func(id string, status payModel.GatewayEventStatus, age time.Duration) {
		require.NoError(t, db.Create(&payModel.PaymentGatewayEventModel{
			GatewayEventProvider:   payModel.GatewayProviderMidtrans,
			GatewayEventExternalID: id,
			GatewayEventType:       "notification",
			GatewayEventStatus:     status,
			GatewayEventReceivedAt: t0.Add(-age),
		}).Error)
	}
	old := 120 * 24 * time.Hour
	event("old-success", payModel.GatewayEventSuccess, old)
	event("old-failed", payModel.GatewayEventFailed, old)
	event("old-processing", payModel.GatewayEventProcessing, old)
	event("recent-success", payModel.GatewayEventSuccess, 24*time.Hour)

	res, err := RunWithLock(context.Background(), NewLocalLocker(), time.Minute, newJobs(t, db),
		helperAuth.SystemActor, JobCleanup, nil, zap.NewNop())
	require.NoError(t, err)
	sum := res.(CleanupSummary)
	assert.Equal(t, int64(2), sum.Removed)
	assert.Equal(t, t0.Add(-90*24*time.Hour), sum.Cutoff)

	var left []string
	require.NoError(t, db.Model(&payModel.PaymentGatewayEventModel{}).
		Order("gateway_event_external_id").
		Pluck("gateway_event_external_id", &left).Error)
	assert.Equal(t, []string{"old-processing", "recent-success"}, left)
}

func TestDeductionsJobDefaultsToPreviousMonth(t *testing.T) {
	db := dbtest.NewTestDB(t)
	res, err := newJobs(t, db).Run(context.Background(), helperAuth.SystemActor, JobDeductions, nil)
	require.NoError(t, err)
	assert.Equal(t, "2025-05", res.(*deductionService.Summary).Period)

	res, err = newJobs(t, db).Run(context.Background(), helperAuth.SystemActor, JobDeductions, []string{"2025-01"})
	require.NoError(t, err)
	assert.Equal(t, "2025-01", res.(*deductionService.Summary).Period)
}

func TestNewRegistersSchedules(t *testing.T) {
	db := dbtest.NewTestDB(t)
	cfg := configs.CronConfig{
		OverdueSchedule:     "0 1 * * *",
		RemindersSchedule:   "0 8 * * *",
		InvoicesSchedule:    "0 2 1 * *",
		ProgressionSchedule: "0 3 1 * *",
		DeductionsSchedule:  "30 3 1 * *",
		CleanupSchedule:     "-",
	}
	s, err := New(cfg, newJobs(t, db), nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 5, s.Entries())

	cfg.CleanupSchedule = "every sunday"
	_, err = New(cfg, newJobs(t, db), nil, zap.NewNop())
	assert.Error(t, err)
}

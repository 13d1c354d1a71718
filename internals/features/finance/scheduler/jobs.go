// file: internals/features/finance/scheduler/jobs.go
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	deductionService "impactacademy_backend/internals/features/finance/deductions/service"
	"impactacademy_backend/internals/features/finance/finerr"
	invoiceService "impactacademy_backend/internals/features/finance/invoices/service"
	ledgerService "impactacademy_backend/internals/features/finance/ledger/service"
	payService "impactacademy_backend/internals/features/finance/payments/service"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

const (
	JobGenerateInvoices = "generate-invoices"
	JobCheckOverdue     = "check-overdue"
	JobPaymentReminders = "payment-reminders"
	JobBlockProgression = "block-progression"
	JobDeductions       = "deductions"
	JobCleanup          = "cleanup"
)

// JobNames lists every job in a stable order.
var JobNames = []string{
	JobGenerateInvoices, JobCheckOverdue, JobPaymentReminders,
	JobBlockProgression, JobDeductions, JobCleanup,
}

// Jobs binds job names to the services that do the work.
type Jobs struct {
	DB         *gorm.DB
	Invoices   *invoiceService.Service
	Ledger     *ledgerService.Service
	Deductions *deductionService.Service
	Retention  time.Duration
	Log        *zap.Logger
	Now        func() time.Time
}

type CleanupSummary struct {
	Cutoff  time.Time `json:"cutoff"`
	Removed int64     `json:"removed"`
}

func IsJob(name string) bool {
	for _, j := range JobNames {
		if j == name {
			return true
		}
	}
	return false
}

// Run executes one job and returns its summary. deductions takes an
// optional YYYY-MM argument and defaults to the previous month.
func (j *Jobs) Run(ctx context.Context, actor helperAuth.Actor, name string, args []string) (any, error) {
	switch name {
	case JobGenerateInvoices:
		return j.Invoices.GenerateDueInvoices(ctx)
	case JobCheckOverdue:
		return j.Invoices.CheckOverduePayments(ctx)
	case JobPaymentReminders:
		return j.Invoices.SendPaymentReminders(ctx)
	case JobBlockProgression:
		return j.Ledger.BlockProgressionCheck(ctx)
	case JobDeductions:
		period := deductionService.PreviousPeriod(j.now())
		if len(args) > 0 && args[0] != "" {
			period = args[0]
		}
		return j.Deductions.CalculateAutomatedDeductions(ctx, actor, period)
	case JobCleanup:
		cutoff := j.now().Add(-j.Retention)
		n, err := payService.CleanupGatewayEvents(ctx, j.DB, cutoff)
		if err != nil {
			return nil, err
		}
		return CleanupSummary{Cutoff: cutoff, Removed: n}, nil
	}
	return nil, finerr.Validation("unknown job %q", name)
}

func (j *Jobs) now() time.Time {
	if j.Now == nil {
		return time.Now().UTC()
	}
	return j.Now().UTC()
}

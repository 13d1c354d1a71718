// Package finance wires the ledger services together for the API server and
// the one-shot cron command.
package finance

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"impactacademy_backend/internals/configs"
	deductionService "impactacademy_backend/internals/features/finance/deductions/service"
	invoiceService "impactacademy_backend/internals/features/finance/invoices/service"
	ledgerService "impactacademy_backend/internals/features/finance/ledger/service"
	notifService "impactacademy_backend/internals/features/finance/notifications/service"
	payService "impactacademy_backend/internals/features/finance/payments/service"
	receiptService "impactacademy_backend/internals/features/finance/receipts/service"
	"impactacademy_backend/internals/features/finance/scheduler"
	transService "impactacademy_backend/internals/features/finance/transactions/service"
)

type Services struct {
	Config configs.FinanceConfig
	DB     *gorm.DB
	Log    *zap.Logger

	Notifier   notifService.Notifier
	Activity   *notifService.ActivityLogger
	Receipts   *receiptService.Issuer
	Recorder   *transService.Recorder
	Ledger     *ledgerService.Service
	Invoices   *invoiceService.Service
	Payments   *payService.Service
	Deductions *deductionService.Service
}

// NewServices builds every finance service from cfg. A missing Midtrans key
// leaves checkout disabled; manual payments and the webhook-less flows keep
// working.
func NewServices(cfg configs.FinanceConfig, db *gorm.DB, log *zap.Logger) *Services {
	var mailer notifService.Mailer = notifService.LogMailer{Log: log.Named("mail")}
	if cfg.Mail.SendgridAPIKey != "" {
		mailer = notifService.NewSendgridMailer(cfg.Mail.SendgridAPIKey, cfg.Mail.FromName, cfg.Mail.FromAddress)
	}
	notifier := notifService.NewDispatcher(db, mailer, notifService.UsersTableLookup(db), log)
	activity := notifService.NewActivityLogger(db)
	receipts := &receiptService.Issuer{
		Store:  receiptService.NewStore(cfg.Receipts, log.Named("receipts")),
		Prefix: cfg.Receipts.OSSPrefix,
	}

	var gateway payService.PaymentGateway
	if mt, err := payService.NewMidtransGateway(cfg.Gateway.MidtransServerKey, cfg.Gateway.UseProduction); err != nil {
		log.Warn("midtrans gateway disabled", zap.Error(err))
	} else {
		policy := payService.DefaultRetryPolicy()
		policy.MaxAttempts = cfg.Gateway.MaxAttempts
		policy.AttemptTimeout = cfg.Gateway.AttemptTimeout
		policy.Backoff = cfg.Gateway.Backoff
		gateway = payService.NewRetryingGateway(mt, policy, log)
	}
	payments := payService.New(db, gateway, receipts, notifier, activity, log)
	payments.ServerKey = cfg.Gateway.MidtransServerKey

	return &Services{
		Config:     cfg,
		DB:         db,
		Log:        log,
		Notifier:   notifier,
		Activity:   activity,
		Receipts:   receipts,
		Recorder:   transService.NewRecorder(db, receipts, notifier, activity, log),
		Ledger:     ledgerService.New(db, notifier, activity, log),
		Invoices:   invoiceService.New(db, notifier, activity, log),
		Payments:   payments,
		Deductions: deductionService.New(db, activity, log),
	}
}

func (s *Services) Jobs() *scheduler.Jobs {
	return &scheduler.Jobs{
		DB:         s.DB,
		Invoices:   s.Invoices,
		Ledger:     s.Ledger,
		Deductions: s.Deductions,
		Retention:  time.Duration(s.Config.Cron.EventRetentionDays) * 24 * time.Hour,
		Log:        s.Log,
	}
}

// Locker returns the Redis locker when REDIS_URL is reachable, otherwise
// the in-process one.
func (s *Services) Locker(ctx context.Context) scheduler.Locker {
	if s.Config.RedisURL == "" {
		return scheduler.NewLocalLocker()
	}
	rl, err := scheduler.NewRedisLockerFromURL(s.Config.RedisURL)
	if err != nil {
		s.Log.Warn("invalid REDIS_URL, using local job locks", zap.Error(err))
		return scheduler.NewLocalLocker()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rl.Ping(ctx); err != nil {
		s.Log.Warn("redis unreachable, using local job locks", zap.Error(err))
		return scheduler.NewLocalLocker()
	}
	return rl
}

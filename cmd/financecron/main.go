// Command financecron runs one finance job and exits, for external
// schedulers (systemd timers, k8s CronJobs).
//
//	financecron generate-invoices
//	financecron check-overdue
//	financecron payment-reminders
//	financecron block-progression
//	financecron deductions 2025-05
//	financecron cleanup
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"impactacademy_backend/internals/configs"
	database "impactacademy_backend/internals/databases"
	"impactacademy_backend/internals/features/finance"
	"impactacademy_backend/internals/features/finance/scheduler"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: financecron <job> [args]\njobs: %s\n", strings.Join(scheduler.JobNames, ", "))
}

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" {
		usage()
		os.Exit(2)
	}
	job, args := os.Args[1], os.Args[2:]
	if !scheduler.IsJob(job) {
		fmt.Fprintf(os.Stderr, "unknown job %q\n", job)
		usage()
		os.Exit(2)
	}

	configs.LoadEnv()
	cfg := configs.LoadFinanceConfig()
	logger := configs.NewLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, job, args); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %s failed: %v\n", job, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg configs.FinanceConfig, logger *zap.Logger, job string, args []string) error {
	fmt.Printf("🔌 connecting to %s/%s\n", cfg.DB.Host, cfg.DB.Name)
	db, err := database.ConnectDB(cfg.DB, logger)
	if err != nil {
		return err
	}
	defer database.Close(db)

	svc := finance.NewServices(cfg, db, logger)

	fmt.Printf("▶️  running %s %s\n", job, strings.Join(args, " "))
	res, err := scheduler.RunWithLock(ctx, svc.Locker(ctx), cfg.Cron.LockTTL, svc.Jobs(),
		helperAuth.SystemActor, job, args, logger)
	if errors.Is(err, scheduler.ErrLocked) {
		fmt.Printf("⏭  %s is already running elsewhere, skipped\n", job)
		return nil
	}
	if err != nil {
		return err
	}

	out, err := sonic.ConfigDefault.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("✅ %s done\n%s\n", job, out)
	return nil
}

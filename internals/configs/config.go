package configs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// =======================
// ENV LOADER
// =======================
func LoadEnv() {
	if os.Getenv("RAILWAY_ENVIRONMENT") == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("⚠️ .env file not found, using system ENV")
		} else {
			log.Println("✅ .env file loaded")
		}
	} else {
		log.Println("🚀 Running in Railway, using system ENV")
	}
}

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if (!exists || strings.TrimSpace(value) == "") && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return strings.TrimSpace(value)
}

func GetEnvInt(key string, def int) int {
	v := GetEnv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func GetEnvBool(key string, def bool) bool {
	switch strings.ToLower(GetEnv(key)) {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func GetEnvDuration(key string, def time.Duration) time.Duration {
	v := GetEnv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// =======================
// FINANCE CONFIG
// =======================

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	SSLMode  string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&application_name=impactacademy&options=-c statement_timeout=5000",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

type GatewayConfig struct {
	MidtransServerKey string
	UseProduction     bool
	MaxAttempts       int
	AttemptTimeout    time.Duration
	Backoff           time.Duration
}

type MailConfig struct {
	SendgridAPIKey string
	FromAddress    string
	FromName       string
}

type ReceiptConfig struct {
	OSSEndpoint  string
	OSSAccessKey string
	OSSSecretKey string
	OSSBucket    string
	OSSPrefix    string
	LocalDir     string
}

func (c ReceiptConfig) UseOSS() bool {
	return c.OSSEndpoint != "" && c.OSSAccessKey != "" && c.OSSSecretKey != "" && c.OSSBucket != ""
}

type CronConfig struct {
	Enabled             bool
	OverdueSchedule     string
	RemindersSchedule   string
	InvoicesSchedule    string
	ProgressionSchedule string
	DeductionsSchedule  string
	CleanupSchedule     string
	EventRetentionDays  int
	LockTTL             time.Duration
}

type FinanceConfig struct {
	Env       string
	Port      string
	JWTSecret string
	RedisURL  string
	DB        DBConfig
	Gateway   GatewayConfig
	Mail      MailConfig
	Receipts  ReceiptConfig
	Cron      CronConfig
}

func LoadFinanceConfig() FinanceConfig {
	cfg := FinanceConfig{
		Env:       GetEnv("APP_ENV", "production"),
		Port:      GetEnv("PORT", "3000"),
		JWTSecret: GetEnv("JWT_SECRET"),
		RedisURL:  GetEnv("REDIS_URL"),
		DB: DBConfig{
			User:     GetEnv("DB_USER"),
			Password: GetEnv("DB_PASSWORD"),
			Host:     GetEnv("DB_HOST", "localhost"),
			Port:     GetEnv("DB_PORT", "5432"),
			Name:     GetEnv("DB_NAME"),
			SSLMode:  GetEnv("DB_SSLMODE", "require"),
		},
		Gateway: GatewayConfig{
			MidtransServerKey: GetEnv("MIDTRANS_SERVER_KEY"),
			UseProduction:     GetEnvBool("MIDTRANS_USE_PROD", false),
			MaxAttempts:       GetEnvInt("GATEWAY_MAX_ATTEMPTS", 3),
			AttemptTimeout:    GetEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
			Backoff:           GetEnvDuration("GATEWAY_BACKOFF", 500*time.Millisecond),
		},
		Mail: MailConfig{
			SendgridAPIKey: GetEnv("SENDGRID_API_KEY"),
			FromAddress:    GetEnv("MAIL_FROM_ADDRESS", "finance@impactdigitalacademy.com"),
			FromName:       GetEnv("MAIL_FROM_NAME", "Impact Digital Academy"),
		},
		Receipts: ReceiptConfig{
			OSSEndpoint:  GetEnv("ALI_OSS_ENDPOINT"),
			OSSAccessKey: GetEnv("ALI_OSS_ACCESS_KEY"),
			OSSSecretKey: GetEnv("ALI_OSS_SECRET_KEY"),
			OSSBucket:    GetEnv("ALI_OSS_BUCKET"),
			OSSPrefix:    GetEnv("ALI_OSS_RECEIPT_PREFIX", "receipts"),
			LocalDir:     GetEnv("RECEIPT_DIR", "storage/receipts"),
		},
		Cron: CronConfig{
			Enabled:             GetEnvBool("FINANCE_CRON_ENABLED", true),
			OverdueSchedule:     GetEnv("CRON_OVERDUE", "0 1 * * *"),
			RemindersSchedule:   GetEnv("CRON_REMINDERS", "0 8 * * *"),
			InvoicesSchedule:    GetEnv("CRON_INVOICES", "0 2 1 * *"),
			ProgressionSchedule: GetEnv("CRON_PROGRESSION", "0 3 1 * *"),
			DeductionsSchedule:  GetEnv("CRON_DEDUCTIONS", "30 3 1 * *"),
			CleanupSchedule:     GetEnv("CRON_CLEANUP", "0 4 * * 0"),
			EventRetentionDays:  GetEnvInt("GATEWAY_EVENT_RETENTION_DAYS", 90),
			LockTTL:             GetEnvDuration("CRON_LOCK_TTL", 30*time.Minute),
		},
	}

	if cfg.JWTSecret == "" {
		log.Println("❌ JWT_SECRET is not set")
	}
	if cfg.Gateway.MidtransServerKey == "" {
		log.Println("⚠️ MIDTRANS_SERVER_KEY is not set, gateway checkout is disabled")
	}
	return cfg
}

// =======================
// GORM LOGGER CUSTOM
// =======================
type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      gormLogger.LogLevel
	log           *zap.Logger
}

func NewGormLogger(l *zap.Logger) gormLogger.Interface {
	return &GormLogger{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      gormLogger.Warn,
		log:           l.Named("gorm"),
	}
}

func (l *GormLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	nl := *l
	nl.LogLevel = level
	return &nl
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Info {
		l.log.Sugar().Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Warn {
		l.log.Sugar().Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Error {
		l.log.Sugar().Errorf(msg, data...)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormLogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("file", utils.FileWithLineNum()),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}

	switch {
	case err != nil && errors.Is(err, gorm.ErrRecordNotFound):
		return
	case err != nil && l.LogLevel >= gormLogger.Error:
		l.log.Error("[ERROR]", append(fields, zap.Error(err))...)
	case elapsed > l.SlowThreshold && l.LogLevel >= gormLogger.Warn:
		l.log.Warn("[SLOW SQL]", fields...)
	case l.LogLevel >= gormLogger.Info:
		l.log.Debug("[QUERY]", fields...)
	}
}

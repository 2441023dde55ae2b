package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	CreditAlertThresholdPct float64 `env:"CREDIT_ALERT_THRESHOLD_PCT" envDefault:"80"`
	DefaultPaymentTermsDays int     `env:"DEFAULT_PAYMENT_TERMS_DAYS" envDefault:"30"`

	StatementBatchConcurrency  int           `env:"STATEMENT_BATCH_CONCURRENCY" envDefault:"4"`
	StatementSchedulerEnabled  bool          `env:"STATEMENT_SCHEDULER_ENABLED" envDefault:"true"`
	StatementSchedulerInterval time.Duration `env:"STATEMENT_SCHEDULER_INTERVAL" envDefault:"1h"`

	NotifyWebhookURL      string        `env:"NOTIFY_WEBHOOK_URL"`
	EventDispatchInterval time.Duration `env:"EVENT_DISPATCH_INTERVAL" envDefault:"5s"`
	EventDispatchBatch    int           `env:"EVENT_DISPATCH_BATCH" envDefault:"50"`

	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.CreditAlertThresholdPct <= 0 || cfg.CreditAlertThresholdPct > 100 {
		return nil, fmt.Errorf("config.Load: CREDIT_ALERT_THRESHOLD_PCT must be in (0, 100], got %v", cfg.CreditAlertThresholdPct)
	}
	if cfg.StatementBatchConcurrency < 1 {
		cfg.StatementBatchConcurrency = 1
	}
	return &cfg, nil
}

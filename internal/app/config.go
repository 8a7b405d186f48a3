package app

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StorageDriver выбирает реализацию хранилища.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска приложения. Значения читаются из
// файла app.env (если есть) и переменных окружения с префиксом DMS_.
type Config struct {
	HTTPAddr    string `mapstructure:"http_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
	LogLevel    string `mapstructure:"log_level"`

	StorageDriver       StorageDriver `mapstructure:"storage_driver"`
	PostgresDSN         string        `mapstructure:"postgres_dsn"`
	PostgresAutoMigrate bool          `mapstructure:"postgres_auto_migrate"`

	KafkaBrokers string `mapstructure:"kafka_brokers"`

	GatewayMerchantID     string `mapstructure:"gateway_merchant_id"`
	GatewayMerchantSecret string `mapstructure:"gateway_merchant_secret"`
	GatewayCheckoutURL    string `mapstructure:"gateway_checkout_url"`
	GatewayNotifyURL      string `mapstructure:"gateway_notify_url"`
	GatewayReturnURL      string `mapstructure:"gateway_return_url"`
	GatewayCancelURL      string `mapstructure:"gateway_cancel_url"`

	JournalTTL              time.Duration `mapstructure:"journal_ttl"`
	JournalCleanupInterval  time.Duration `mapstructure:"journal_cleanup_interval"`
	JournalCleanupBatchSize int           `mapstructure:"journal_cleanup_batch_size"`

	OutboxPollInterval time.Duration `mapstructure:"outbox_poll_interval"`
	OutboxBatchSize    int           `mapstructure:"outbox_batch_size"`
	OutboxMaxAttempts  int           `mapstructure:"outbox_max_attempts"`
	OutboxRetryDelay   time.Duration `mapstructure:"outbox_retry_delay"`

	// Флаги ручного перевода статусов сотрудниками вне обычной цепочки.
	OrderAllowOverride    bool `mapstructure:"order_allow_override"`
	DeliveryAllowOverride bool `mapstructure:"delivery_allow_override"`

	SMTPHost         string `mapstructure:"smtp_host"`
	SMTPPort         string `mapstructure:"smtp_port"`
	SMTPFrom         string `mapstructure:"smtp_from"`
	SMTPPassword     string `mapstructure:"smtp_password"`
	InvoiceQueueSize int    `mapstructure:"invoice_queue_size"`
}

// DefaultConfig возвращает конфигурацию для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                ":8080",
		MetricsAddr:             ":9090",
		LogLevel:                "info",
		StorageDriver:           StorageDriverMemory,
		PostgresAutoMigrate:     true,
		GatewayCheckoutURL:      "https://sandbox.payhere.lk/pay/checkout",
		JournalTTL:              72 * time.Hour,
		JournalCleanupInterval:  time.Hour,
		JournalCleanupBatchSize: 500,
		OutboxPollInterval:      2 * time.Second,
		OutboxBatchSize:         50,
		OutboxMaxAttempts:       5,
		OutboxRetryDelay:        time.Second,
		InvoiceQueueSize:        256,
		SMTPPort:                "587",
	}
}

// LoadConfig читает конфигурацию: defaults, затем app.env из path (если
// найден), затем переменные окружения DMS_*.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	v.SetEnvPrefix("DMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultConfig()
	v.SetDefault("http_addr", defaults.HTTPAddr)
	v.SetDefault("metrics_addr", defaults.MetricsAddr)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("storage_driver", string(defaults.StorageDriver))
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("postgres_auto_migrate", defaults.PostgresAutoMigrate)
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("gateway_merchant_id", "")
	v.SetDefault("gateway_merchant_secret", "")
	v.SetDefault("gateway_checkout_url", defaults.GatewayCheckoutURL)
	v.SetDefault("gateway_notify_url", "")
	v.SetDefault("gateway_return_url", "")
	v.SetDefault("gateway_cancel_url", "")
	v.SetDefault("journal_ttl", defaults.JournalTTL)
	v.SetDefault("journal_cleanup_interval", defaults.JournalCleanupInterval)
	v.SetDefault("journal_cleanup_batch_size", defaults.JournalCleanupBatchSize)
	v.SetDefault("outbox_poll_interval", defaults.OutboxPollInterval)
	v.SetDefault("outbox_batch_size", defaults.OutboxBatchSize)
	v.SetDefault("outbox_max_attempts", defaults.OutboxMaxAttempts)
	v.SetDefault("outbox_retry_delay", defaults.OutboxRetryDelay)
	v.SetDefault("order_allow_override", false)
	v.SetDefault("delivery_allow_override", false)
	v.SetDefault("smtp_host", "")
	v.SetDefault("smtp_port", defaults.SMTPPort)
	v.SetDefault("smtp_from", "")
	v.SetDefault("smtp_password", "")
	v.SetDefault("invoice_queue_size", defaults.InvoiceQueueSize)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
		// Файла нет — работаем на окружении и defaults.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

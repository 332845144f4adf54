package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Cron     CronConfig     `mapstructure:"cron"`
	Partner  PartnerConfig  `mapstructure:"partner"`
	Campaign CampaignConfig `mapstructure:"campaign"`
	Alert    AlertConfig    `mapstructure:"alert"`
	Sync     SyncConfig     `mapstructure:"sync"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	SyncPass    string `mapstructure:"sync_pass"`
	TriggerPass string `mapstructure:"trigger_pass"`
}

// PartnerConfig holds the upstream fantasy-game API knobs.
type PartnerConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryBudget  int           `mapstructure:"retry_budget"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PageSize     int           `mapstructure:"page_size"`
}

// CampaignConfig holds the marketing-campaign API knobs. An empty token means
// dispatch runs as a documented no-op.
type CampaignConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AlertConfig holds the ops failure-notification channel. An empty webhook URL
// disables alerting.
type AlertConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type SyncConfig struct {
	BatchSize        int           `mapstructure:"batch_size"`
	PageDelay        time.Duration `mapstructure:"page_delay"`
	RunTimeout       time.Duration `mapstructure:"run_timeout"`
	FailedPagesRatio float64       `mapstructure:"failed_pages_ratio"`

	CriticalInterval   time.Duration `mapstructure:"critical_interval"`
	RoundStartWindow   time.Duration `mapstructure:"round_start_window"`
	DeadlineWindow     time.Duration `mapstructure:"deadline_window"`
	RoundEndedWindow   time.Duration `mapstructure:"round_ended_window"`
	DeadlineReminderLo time.Duration `mapstructure:"deadline_reminder_lo"`
	DeadlineReminderHi time.Duration `mapstructure:"deadline_reminder_hi"`
}

func Load(path string, envOnly bool) (Config, error) {
	// A local .env may carry the partner/campaign secrets; absence is fine.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SWUSH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.sync_pass", "@every 5m")
	v.SetDefault("cron.trigger_pass", "@every 10m")
	v.SetDefault("partner.base_url", "https://www.swush.com/syndicate")
	v.SetDefault("partner.timeout", "15s")
	v.SetDefault("partner.retry_budget", 3)
	v.SetDefault("partner.retry_backoff", "1s")
	v.SetDefault("partner.page_size", 10)
	v.SetDefault("campaign.timeout", "30s")
	v.SetDefault("alert.timeout", "10s")
	v.SetDefault("sync.batch_size", 100)
	v.SetDefault("sync.page_delay", "100ms")
	v.SetDefault("sync.run_timeout", "10m")
	v.SetDefault("sync.failed_pages_ratio", 0.1)
	v.SetDefault("sync.critical_interval", "30m")
	v.SetDefault("sync.round_start_window", "2h")
	v.SetDefault("sync.deadline_window", "2h")
	v.SetDefault("sync.round_ended_window", "1h")
	v.SetDefault("sync.deadline_reminder_lo", "20h")
	v.SetDefault("sync.deadline_reminder_hi", "28h")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

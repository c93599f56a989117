package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"
)

// Config keeps runtime settings for the engine, the poller and the bot.
type Config struct {
	TelegramToken string `name:"telegram-token" env:"TELEGRAM_TOKEN" help:"Telegram bot token."`
	DatabaseURL   string `name:"database-url" env:"DATABASE_URL" default:"wehabit.db" help:"SQLite path or postgres:// DSN."`
	AppURL        string `name:"app-url" env:"APP_URL" help:"Mini app link attached to notifications."`

	PollInterval      time.Duration `name:"poll-interval" env:"POLL_INTERVAL" default:"60s" help:"Notification poll interval."`
	ReminderUTCOffset string        `name:"reminder-utc-offset" env:"REMINDER_UTC_OFFSET" default:"+03:00" help:"Offset used for participants without a timezone."`
	CleanupTime       string        `name:"cleanup-time" env:"CLEANUP_TIME" default:"03:00" help:"Daily HH:MM for the feed retention sweep."`
	FeedRetention     time.Duration `name:"feed-retention" env:"FEED_RETENTION" default:"336h" help:"Age after which feed events are deleted."`
	DeliveryBatch     int           `name:"delivery-batch" env:"DELIVERY_BATCH" default:"200" help:"Feed events handled per poll cycle."`

	MaxDeliveryAttempts int           `name:"max-delivery-attempts" env:"MAX_DELIVERY_ATTEMPTS" default:"5"`
	RetryBase           time.Duration `name:"retry-base" env:"RETRY_BASE" default:"1m"`
	RetryMax            time.Duration `name:"retry-max" env:"RETRY_MAX" default:"1h"`

	AchievementsFile string `name:"achievements-file" env:"ACHIEVEMENTS_FILE" help:"YAML achievement table, embedded default when empty."`
	MetricsAddr      string `name:"metrics-addr" env:"METRICS_ADDR" help:"Listen address for /metrics, disabled when empty."`
	LogDir           string `name:"log-dir" env:"LOG_DIR" default:"logs"`
	Debug            bool   `name:"debug" env:"DEBUG"`
}

// Load parses command line arguments with environment fallbacks and applies validation.
func Load(args []string) (Config, error) {
	var cfg Config
	parser, err := kong.New(&cfg,
		kong.Name("wehabit"),
		kong.Description("Shared habit tracker: feed fan-out, achievements and Telegram notifications."),
	)
	if err != nil {
		return cfg, fmt.Errorf("build parser: %w", err)
	}
	if _, err := parser.Parse(args); err != nil {
		return cfg, err
	}

	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if cfg.PollInterval <= 0 {
		return cfg, fmt.Errorf("poll interval must be positive")
	}
	if cfg.MaxDeliveryAttempts <= 0 {
		cfg.MaxDeliveryAttempts = 1
	}
	if cfg.DeliveryBatch <= 0 {
		cfg.DeliveryBatch = 200
	}
	if _, err := cfg.ReminderLocation(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ReminderLocation returns the fixed zone used when a participant has no timezone.
func (c Config) ReminderLocation() (*time.Location, error) {
	offset, err := parseOffset(c.ReminderUTCOffset)
	if err != nil {
		return nil, err
	}
	return time.FixedZone(formatOffsetName(offset), offset), nil
}

// parseOffset accepts "+03:00", "-05:30", "+3" or "0".
func parseOffset(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0" {
		return 0, nil
	}
	sign := 1
	switch raw[0] {
	case '+':
		raw = raw[1:]
	case '-':
		sign = -1
		raw = raw[1:]
	}
	hoursPart, minutesPart, hasMinutes := strings.Cut(raw, ":")
	hours, err := strconv.Atoi(hoursPart)
	if err != nil || hours < 0 || hours > 14 {
		return 0, fmt.Errorf("invalid utc offset %q", raw)
	}
	minutes := 0
	if hasMinutes {
		minutes, err = strconv.Atoi(minutesPart)
		if err != nil || minutes < 0 || minutes > 59 {
			return 0, fmt.Errorf("invalid utc offset %q", raw)
		}
	}
	return sign * (hours*3600 + minutes*60), nil
}

func formatOffsetName(offset int) string {
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("UTC%c%02d:%02d", sign, offset/3600, (offset%3600)/60)
}

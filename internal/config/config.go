package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Discord struct {
		Token    string `yaml:"token" env:"DISCORD_TOKEN"`
		ClientID string `yaml:"client_id" env:"DISCORD_CLIENT_ID"`
		// GuildID pins the bot to one guild. Empty means the first guild
		// reported on READY.
		GuildID string `yaml:"guild_id" env:"DISCORD_GUILD_ID"`
	} `yaml:"discord"`

	Channels struct {
		ClockBoard  string `yaml:"clock_board" env:"CHANNEL_CLOCK_BOARD"`
		Worklog     string `yaml:"worklog" env:"CHANNEL_WORKLOG"`
		Reminder    string `yaml:"reminder" env:"CHANNEL_REMINDER"`
		Leaderboard string `yaml:"leaderboard" env:"CHANNEL_LEADERBOARD"`
	} `yaml:"channels"`

	Roles struct {
		OnDuty string `yaml:"on_duty" env:"ROLE_ON_DUTY"`
	} `yaml:"roles"`

	Locale string `yaml:"locale" env:"BOT_LOCALE"`

	Attendance Attendance `yaml:"attendance"`

	KeepAlive struct {
		Enabled bool   `yaml:"enabled" env:"KEEPALIVE_ENABLED"`
		Addr    string `yaml:"addr" env:"KEEPALIVE_ADDR"`
	} `yaml:"keepalive"`

	Database Database `yaml:"database"`
}

type Attendance struct {
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
	IdleThreshold time.Duration `yaml:"idle_threshold" env:"IDLE_THRESHOLD"`
	AckTimeout    time.Duration `yaml:"ack_timeout" env:"ACK_TIMEOUT"`
	NoticeTTL     time.Duration `yaml:"notice_ttl" env:"NOTICE_TTL"`
	// ReplacePrompt deletes the previous clock-board prompt whenever a new
	// one is posted.
	ReplacePrompt bool `yaml:"replace_prompt" env:"REPLACE_PROMPT"`
}

type Database struct {
	Enabled  bool   `yaml:"enabled" env:"DB_ENABLED"`
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     int    `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	DBName   string `yaml:"dbname" env:"DB_NAME"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE"`
	Table    string `yaml:"table" env:"DB_TABLE"`
}

// Load reads the YAML file at path, expands ${VAR} placeholders, applies
// environment overrides and fills in defaults. A missing file is not an
// error; the environment alone can configure the bot.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("error reading config file: %w", err)
	default:
		// Replace environment variables in the YAML content
		content := string(data)
		for _, env := range os.Environ() {
			pair := strings.SplitN(env, "=", 2)
			if len(pair) != 2 {
				continue
			}
			placeholder := "${" + pair[0] + "}"
			content = strings.ReplaceAll(content, placeholder, pair[1])
		}

		if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
			return nil, fmt.Errorf("error parsing config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	setString(&c.Channels.ClockBoard, "zeitstempeln")
	setString(&c.Channels.Worklog, "arbeitszeiten")
	setString(&c.Channels.Reminder, "stempel-reminder")
	setString(&c.Channels.Leaderboard, "leaderschaft")
	setString(&c.Roles.OnDuty, "Im Dienst")
	setString(&c.Locale, "de")
	setString(&c.KeepAlive.Addr, ":8080")

	setDuration(&c.Attendance.SweepInterval, time.Minute)
	setDuration(&c.Attendance.IdleThreshold, time.Hour)
	setDuration(&c.Attendance.AckTimeout, 10*time.Minute)
	setDuration(&c.Attendance.NoticeTTL, 5*time.Second)

	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	setString(&c.Database.SSLMode, "disable")
	setString(&c.Database.Table, "session_archive")
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Discord.Token) == "" {
		return fmt.Errorf("discord token is required")
	}
	if c.Attendance.SweepInterval < 0 || c.Attendance.IdleThreshold < 0 || c.Attendance.AckTimeout < 0 || c.Attendance.NoticeTTL < 0 {
		return fmt.Errorf("attendance durations must not be negative")
	}
	if c.Database.Enabled && (c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "") {
		return fmt.Errorf("database is enabled but host, user or dbname is missing")
	}
	return nil
}

func setString(field *string, fallback string) {
	if strings.TrimSpace(*field) == "" {
		*field = fallback
	}
}

func setDuration(field *time.Duration, fallback time.Duration) {
	if *field == 0 {
		*field = fallback
	}
}

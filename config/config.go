// Package config provides loading, validation and editing of the bot settings.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is where the settings live unless --config says otherwise.
	DefaultPath = "./configs/system_config.yaml"
	// DefaultDataRoot holds the guild and member records.
	DefaultDataRoot = "./data"
	// DefaultLogDir receives the log files when logging to file is enabled.
	DefaultLogDir = "./logs"
)

// Config is the flat key-value settings document of the bot.
type Config struct {
	Token           string `yaml:"token"`
	Owner           string `yaml:"owner"`
	BotName         string `yaml:"bot_name"`
	DefaultActivity string `yaml:"default_activity"`

	Log       bool   `yaml:"log"`
	Verbosity int    `yaml:"verbosity"`
	DataRoot  string `yaml:"data_root"`

	AutoReboot     bool   `yaml:"auto_reboot"`
	ARTime         string `yaml:"ar_time"`
	ARTimezone     string `yaml:"ar_timezone"`
	ARReminder     bool   `yaml:"ar_reminder"`
	ARReminderTime string `yaml:"ar_reminder_time"`
	ARAnnouncement bool   `yaml:"ar_announcement"`

	DefaultGroup string              `yaml:"default_group"`
	Groups       map[string][]string `yaml:"groups"`
}

// envOverrides are applied on top of the file when set.
type envOverrides struct {
	Token    string `env:"DISCORD_TOKEN"`
	Owner    string `env:"BOT_OWNER"`
	DataRoot string `env:"BOT_DATA_ROOT"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		BotName:         "Zeta-Bot",
		DefaultActivity: "/info",
		Log:             true,
		DataRoot:        DefaultDataRoot,
		AutoReboot:      false,
		ARTime:          "04:00:00",
		ARTimezone:      "Asia/Shanghai",
		ARReminder:      true,
		ARReminderTime:  "03:55:00",
		ARAnnouncement:  true,
		DefaultGroup:    "user",
		Groups: map[string][]string{
			"admin": {
				"info", "join", "leave", "record", "stoprecord",
				"panel", "refresh", "volume", "group", "save",
			},
			"user":      {"info", "join", "leave", "panel", "refresh", "volume"},
			"blacklist": {},
		},
	}
}

// Load reads the settings at path, writing the defaults there first when
// the file does not exist, and applies environment overrides.
func Load(ctx context.Context, path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if err := cfg.Save(path); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, errors.Wrap(err, "reading config file")
	default:
		cfg.Groups = nil
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parsing config file")
		}
		if len(cfg.Groups) == 0 {
			cfg.Groups = Default().Groups
		}
	}

	if err := cfg.applyEnvOverrides(ctx); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Reset overwrites the settings at path with the defaults.
func Reset(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.Save(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, "writing config file")
	}
	return nil
}

func (c *Config) applyEnvOverrides(ctx context.Context) error {
	var env envOverrides
	if err := envconfig.Process(ctx, &env); err != nil {
		return errors.Wrap(err, "reading environment")
	}

	if env.Token != "" {
		c.Token = env.Token
	}
	if env.Owner != "" {
		c.Owner = env.Owner
	}
	if env.DataRoot != "" {
		c.DataRoot = env.DataRoot
	}
	return nil
}

// Validate checks the values the bot cannot start without.
func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New("token is not set (run with --mode=setting or set DISCORD_TOKEN)")
	}
	if _, err := c.OwnerID(); err != nil {
		return err
	}
	if _, ok := c.Groups[c.DefaultGroup]; !ok {
		return errors.Errorf("default group %q is not defined in groups", c.DefaultGroup)
	}

	if c.AutoReboot {
		if _, err := ParseClock(c.ARTime); err != nil {
			return errors.Wrap(err, "ar_time")
		}
		if c.ARReminder {
			if _, err := ParseClock(c.ARReminderTime); err != nil {
				return errors.Wrap(err, "ar_reminder_time")
			}
		}
		if _, err := c.Location(); err != nil {
			return err
		}
	}
	return nil
}

// OwnerID returns the owner identity, 0 when no owner is configured.
func (c *Config) OwnerID() (int64, error) {
	if c.Owner == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(c.Owner, 10, 64)
	if err != nil {
		return 0, errors.Errorf("owner %q is not a Discord user ID", c.Owner)
	}
	return id, nil
}

// Location returns the time zone the reboot schedule runs in.
func (c *Config) Location() (*time.Location, error) {
	if c.ARTimezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.ARTimezone)
	if err != nil {
		return nil, errors.Wrapf(err, "ar_timezone %q", c.ARTimezone)
	}
	return loc, nil
}

// GuildRoot returns the directory of the guild records.
func (c *Config) GuildRoot() string {
	return filepath.Join(c.dataRoot(), "guilds")
}

// MemberRoot returns the directory of the member records.
func (c *Config) MemberRoot() string {
	return filepath.Join(c.dataRoot(), "members")
}

func (c *Config) dataRoot() string {
	if c.DataRoot == "" {
		return DefaultDataRoot
	}
	return c.DataRoot
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour, Minute, Second int
}

// ParseClock parses "HH:MM:SS".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return Clock{}, errors.Errorf("invalid time %q, expected HH:MM:SS", s)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
}

// CronSpec returns the six-field cron spec firing daily at the clock.
func (c Clock) CronSpec() string {
	return fmt.Sprintf("%d %d %d * * *", c.Second, c.Minute, c.Hour)
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

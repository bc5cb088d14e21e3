package config

import (
	"fmt"
	"os"
	"time"
)

// Poll interval bounds
const (
	MinPollInterval = 500 * time.Millisecond
	MaxPollInterval = 5 * time.Minute
)

// Config holds all application configuration
type Config struct {
	// Watcher configuration
	Watcher WatcherConfig `mapstructure:"watcher"`

	// Notification configuration
	Notify NotifyConfig `mapstructure:"notify"`

	// Daemon configuration
	Daemon DaemonConfig `mapstructure:"daemon"`

	// Web server configuration
	Web WebConfig `mapstructure:"web"`
}

// WatcherConfig holds focus watcher policy
type WatcherConfig struct {
	PollInterval      time.Duration `mapstructure:"poll_interval"`      // How often to check the focused window
	Threshold         time.Duration `mapstructure:"threshold"`          // Continuous focus before a nudge
	Cooldown          time.Duration `mapstructure:"cooldown"`           // Minimum gap between nudges per app
	CooldownRetention time.Duration `mapstructure:"cooldown_retention"` // When idle cooldown entries are dropped
}

// NotifyConfig holds notification behavior configuration
type NotifyConfig struct {
	PreferDialog bool   `mapstructure:"prefer_dialog"` // Default channel for API requests
	AppName      string `mapstructure:"app_name"`      // Name shown by the notification server
}

// DaemonConfig holds daemon process configuration
type DaemonConfig struct {
	PIDFile string `mapstructure:"pid_file"` // Path to PID file for daemon management
	LogFile string `mapstructure:"log_file"` // Where the detached daemon writes its log
}

// WebConfig holds web server configuration
type WebConfig struct {
	Host string `mapstructure:"host"` // Host to bind web server to
	Port int    `mapstructure:"port"` // Port for web server
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Watcher: WatcherConfig{
			PollInterval:      2 * time.Second,
			Threshold:         10 * time.Second,
			Cooldown:          5 * time.Minute,
			CooldownRetention: time.Hour,
		},
		Notify: NotifyConfig{
			PreferDialog: false,
			AppName:      "focusnudge",
		},
		Daemon: DaemonConfig{
			PIDFile: fmt.Sprintf("/tmp/focusnudge-%d.pid", os.Getuid()),
			LogFile: "/tmp/focusnudge.log",
		},
		Web: WebConfig{
			Host: "localhost",
			Port: 10000 + os.Getuid(), // Default port based on user ID
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate watcher policy
	if c.Watcher.PollInterval < MinPollInterval {
		return fmt.Errorf("poll interval (%v) cannot be less than minimum (%v)",
			c.Watcher.PollInterval, MinPollInterval)
	}

	if c.Watcher.PollInterval > MaxPollInterval {
		return fmt.Errorf("poll interval (%v) cannot be greater than maximum (%v)",
			c.Watcher.PollInterval, MaxPollInterval)
	}

	if c.Watcher.Threshold < 0 {
		return fmt.Errorf("threshold cannot be negative")
	}

	if c.Watcher.Cooldown < 0 {
		return fmt.Errorf("cooldown cannot be negative")
	}

	if c.Watcher.CooldownRetention < c.Watcher.Cooldown {
		return fmt.Errorf("cooldown retention (%v) cannot be shorter than cooldown (%v)",
			c.Watcher.CooldownRetention, c.Watcher.Cooldown)
	}

	// Validate web config
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web port must be between 1 and 65535, got %d", c.Web.Port)
	}

	if c.Web.Host == "" {
		return fmt.Errorf("web host cannot be empty")
	}

	// Validate daemon config
	if c.Daemon.PIDFile == "" {
		return fmt.Errorf("PID file path cannot be empty")
	}

	return nil
}

// SetPollInterval sets the poll interval with validation
func (c *Config) SetPollInterval(interval time.Duration) error {
	if interval < MinPollInterval {
		return fmt.Errorf("poll interval cannot be less than %v", MinPollInterval)
	}
	if interval > MaxPollInterval {
		return fmt.Errorf("poll interval cannot be greater than %v", MaxPollInterval)
	}
	c.Watcher.PollInterval = interval
	return nil
}

// SetThreshold sets the focus threshold with validation
func (c *Config) SetThreshold(threshold time.Duration) error {
	if threshold < 0 {
		return fmt.Errorf("threshold cannot be negative")
	}
	c.Watcher.Threshold = threshold
	return nil
}

// SetWebPort sets the web server port with validation
func (c *Config) SetWebPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	c.Web.Port = port
	return nil
}

// Address returns the host:port the web server listens on
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Web.Host, c.Web.Port)
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(`Configuration:
  Watcher:
    Poll Interval: %v
    Threshold: %v
    Cooldown: %v
    Cooldown Retention: %v
  Notify:
    Prefer Dialog: %v
    App Name: %s
  Daemon:
    PID File: %s
    Log File: %s
  Web:
    Host: %s
    Port: %d`,
		c.Watcher.PollInterval,
		c.Watcher.Threshold,
		c.Watcher.Cooldown,
		c.Watcher.CooldownRetention,
		c.Notify.PreferDialog,
		c.Notify.AppName,
		c.Daemon.PIDFile,
		c.Daemon.LogFile,
		c.Web.Host,
		c.Web.Port,
	)
}

package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// FOCUSNUDGE_WATCHER_THRESHOLD=15s
const EnvPrefix = "FOCUSNUDGE"

// Loader reads configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence
type Loader struct {
	v *viper.Viper

	mu      sync.Mutex
	current *Config
}

// NewLoader creates a loader. An empty path searches ./focusnudge.yaml and
// $HOME/.config/focusnudge/focusnudge.yaml.
func NewLoader(path string) *Loader {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("focusnudge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/focusnudge")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, Default())

	return &Loader{v: v}
}

// every key needs a default so AutomaticEnv can see it during Unmarshal
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("watcher.poll_interval", d.Watcher.PollInterval)
	v.SetDefault("watcher.threshold", d.Watcher.Threshold)
	v.SetDefault("watcher.cooldown", d.Watcher.Cooldown)
	v.SetDefault("watcher.cooldown_retention", d.Watcher.CooldownRetention)
	v.SetDefault("notify.prefer_dialog", d.Notify.PreferDialog)
	v.SetDefault("notify.app_name", d.Notify.AppName)
	v.SetDefault("daemon.pid_file", d.Daemon.PIDFile)
	v.SetDefault("daemon.log_file", d.Daemon.LogFile)
	v.SetDefault("web.host", d.Web.Host)
	v.SetDefault("web.port", d.Web.Port)
}

// Load reads and validates the configuration
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// ConfigFile returns the file that was read, or "" when running on
// defaults and environment only
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Current returns the last successfully loaded configuration
func (l *Loader) Current() *Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Watch reloads the file whenever it changes and passes every valid
// result to onChange. Invalid edits are logged and ignored. It reports
// false when there is no file to watch.
func (l *Loader) Watch(onChange func(*Config)) bool {
	if l.ConfigFile() == "" {
		return false
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := l.decode()
		if err != nil {
			log.Printf("Ignoring config change in %s: %v", e.Name, err)
			return
		}

		l.mu.Lock()
		l.current = cfg
		l.mu.Unlock()

		log.Printf("Config reloaded from %s", e.Name)
		onChange(cfg)
	})
	l.v.WatchConfig()
	return true
}

// Load reads the configuration once
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}

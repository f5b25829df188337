// Package config loads and validates Warden's TOML configuration into the
// already-parsed shape the supervision core consumes. The core never
// parses a file itself (§6): it is handed a *Config built here.
package config

// Config is the top-level configuration document: main supervisor
// settings, the opaque web block, and the keyed set of programs to
// supervise.
type Config struct {
	Main     MainConfig                `toml:"main"`
	Web      WebConfig                 `toml:"web"`
	Programs map[string]ProgramConfig  `toml:"programs"`
	Webhooks map[string]WebhookConfig  `toml:"webhooks"`
	Include  []string                  `toml:"include"`
}

// MainConfig holds daemon-level settings external to the supervision
// core: identity, pidfile, daemonization, and logging configuration.
type MainConfig struct {
	Name      string `toml:"name"`
	PidFile   string `toml:"pidfile"`
	Daemon    bool   `toml:"daemon"`
	Umask     string `toml:"umask"`
	User      string `toml:"user"`
	Group     string `toml:"group"`
	Directory string `toml:"directory"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"logfile"`
}

// WebConfig is opaque to the core: it configures the HTTP control
// surface, an out-of-scope collaborator.
type WebConfig struct {
	Enabled  bool   `toml:"enabled"`
	Listen   string `toml:"listen"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// ProgramConfig is the on-disk form of §3's ChildConfig, one entry per
// supervised program keyed by name in Config.Programs.
type ProgramConfig struct {
	Command      []string          `toml:"command"`
	CommandLine  string            `toml:"command_line"`
	Shell        bool              `toml:"shell"`
	Environment  map[string]string `toml:"environment"`
	Directory    string            `toml:"directory"`
	User         string            `toml:"user"`
	Umask        string            `toml:"umask"`
	Resources    map[string]uint64 `toml:"resources"`
	Autostart    *bool             `toml:"autostart"`
	Startsecs    int               `toml:"startsecs"`
	Startretries int               `toml:"startretries"`
	Stopsignal   string            `toml:"stopsignal"`
	Stopwaitsecs int               `toml:"stopwaitsecs"`
	Exitcodes    []int             `toml:"exitcodes"`
}

// WebhookConfig configures one outbound notification destination; see
// internal/notify.
type WebhookConfig struct {
	URL           string            `toml:"url"`
	Topics        []string          `toml:"topics"`
	Headers       map[string]string `toml:"headers"`
	TimeoutSecs   int               `toml:"timeout_secs"`
	MaxRetries    int               `toml:"max_retries"`
	AllowInsecure bool              `toml:"allow_insecure"`
}

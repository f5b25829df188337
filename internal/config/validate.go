package config

import (
	"fmt"
	"strings"
)

var validSignals = map[string]bool{
	"TERM": true, "HUP": true, "INT": true, "QUIT": true,
	"KILL": true, "USR1": true, "USR2": true, "STOP": true, "CONT": true,
}

// Validate checks the config for semantic errors the parsing collaborator
// must catch before the core ever sees the value, and returns all of
// them rather than stopping at the first.
func Validate(cfg *Config) []error {
	var errs []error

	for name, p := range cfg.Programs {
		prefix := fmt.Sprintf("programs.%s", name)

		hasCommand := len(p.Command) > 0 && strings.TrimSpace(p.Command[0]) != ""
		hasCommandLine := strings.TrimSpace(p.CommandLine) != ""
		if p.Shell && !hasCommandLine {
			errs = append(errs, fmt.Errorf("%s: shell is true but command_line is empty", prefix))
		}
		if !p.Shell && !hasCommand {
			errs = append(errs, fmt.Errorf("%s: command is required when shell is false", prefix))
		}

		sig := strings.TrimPrefix(strings.ToUpper(p.Stopsignal), "SIG")
		if p.Stopsignal != "" && !validSignals[sig] {
			errs = append(errs, fmt.Errorf("%s: invalid stopsignal %q", prefix, p.Stopsignal))
		}

		if p.Startretries < 0 {
			errs = append(errs, fmt.Errorf("%s: startretries must be >= 0, got %d", prefix, p.Startretries))
		}
	}

	for name, w := range cfg.Webhooks {
		prefix := fmt.Sprintf("webhooks.%s", name)
		if strings.TrimSpace(w.URL) == "" {
			errs = append(errs, fmt.Errorf("%s: url is required", prefix))
		}
	}

	return errs
}

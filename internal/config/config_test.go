package config

import (
	"strings"
	"testing"
)

func TestLoadBytesAppliesDefaults(t *testing.T) {
	data := []byte(`
[main]
name = "warden"

[programs.sleeper]
command = ["sleep", "10"]
`)
	cfg, warnings, err := LoadBytes(data, "test.toml")
	if err != nil {
		t.Fatalf("unexpected error: %v, warnings=%v", err, warnings)
	}

	p := cfg.Programs["sleeper"]
	if p.Startsecs != 1 {
		t.Fatalf("expected default startsecs 1, got %d", p.Startsecs)
	}
	if p.Startretries != 3 {
		t.Fatalf("expected default startretries 3, got %d", p.Startretries)
	}
	if len(p.Exitcodes) != 1 || p.Exitcodes[0] != 0 {
		t.Fatalf("expected default exitcodes [0], got %v", p.Exitcodes)
	}
	if p.Stopsignal != "TERM" {
		t.Fatalf("expected default stopsignal TERM, got %q", p.Stopsignal)
	}
	if p.Autostart == nil || !*p.Autostart {
		t.Fatal("expected default autostart true")
	}
}

func TestLoadBytesRejectsMissingCommand(t *testing.T) {
	data := []byte(`
[programs.broken]
startsecs = 1
`)
	_, _, err := LoadBytes(data, "test.toml")
	if err == nil {
		t.Fatal("expected validation error for missing command")
	}
	if !strings.Contains(err.Error(), "command is required") {
		t.Fatalf("expected command-required error, got %v", err)
	}
}

func TestLoadBytesCollectsMultipleValidationErrors(t *testing.T) {
	data := []byte(`
[programs.bad1]
startretries = -1

[programs.bad2]
command = ["true"]
stopsignal = "NOTASIGNAL"
`)
	_, _, err := LoadBytes(data, "test.toml")
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "startretries") || !strings.Contains(msg, "stopsignal") {
		t.Fatalf("expected both violations reported, got %v", msg)
	}
}

func TestLoadBytesRejectsEmptyWebhookURL(t *testing.T) {
	data := []byte(`
[programs.ok]
command = ["true"]

[webhooks.alerts]
topics = ["process_state"]
`)
	_, _, err := LoadBytes(data, "test.toml")
	if err == nil {
		t.Fatal("expected validation error for missing webhook url")
	}
	if !strings.Contains(err.Error(), "url is required") {
		t.Fatalf("expected url-required error, got %v", err)
	}
}

func TestLoadBytesSurfacesUnknownKeysAsWarnings(t *testing.T) {
	data := []byte(`
[programs.ok]
command = ["true"]
bogus_field = "x"
`)
	_, warnings, err := LoadBytes(data, "test.toml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) == 0 {
		t.Fatal("expected a warning for the unknown field")
	}
}

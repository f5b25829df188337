package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommandHelp(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"--help"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, sub := range []string{"state", "status", "info", "start", "stop", "kill", "version"} {
		if !strings.Contains(out, sub) {
			t.Errorf("help output missing subcommand %q", sub)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"version"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"wardenctl", "commit:", "go:", "os/arch:"} {
		if !strings.Contains(out, want) {
			t.Errorf("version output missing %q", want)
		}
	}
}

func TestUnknownSubcommand(t *testing.T) {
	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"nonexistent"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error for unknown subcommand")
	}
}

func TestStateCommandFailsWithoutDaemon(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"state", "--addr", "127.0.0.1:1"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected a connection error with nothing listening on the address")
	}
}

func TestStartRequiresAtLeastOneArg(t *testing.T) {
	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"start"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected an error for start with no process names")
	}
}

func TestInfoRequiresExactlyOneArg(t *testing.T) {
	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"info", "a", "b"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected an error for info with more than one process name")
	}
}

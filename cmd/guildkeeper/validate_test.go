package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(settingsPath, []byte(`{"channelKeywords":{"billing":"1"},"customCommands":[{"command":"ping","response":"pong"}]}`), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "missing.yaml"))
	t.Setenv("SETTINGS_PATH", settingsPath)

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"validate"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out.String(), "keywords:  1") || !strings.Contains(out.String(), "commands:  1") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestValidateCommandFails(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "missing.yaml"))
	t.Setenv("SETTINGS_PATH", filepath.Join(dir, "nope.json"))

	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected failure for missing settings file")
	}
}

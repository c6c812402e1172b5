package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.DelegateTimeout != DefaultDelegateTimeout {
		t.Fatalf("DelegateTimeout = %v, want %v", cfg.DelegateTimeout, DefaultDelegateTimeout)
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HeadlessAnswer != AnswerNo {
		t.Fatalf("HeadlessAnswer = %q, want %q", cfg.HeadlessAnswer, AnswerNo)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("# empty\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChunkSize != DefaultChunkSize {
		t.Fatalf("ChunkSize = %d, want %d", cfg.ChunkSize, DefaultChunkSize)
	}
}

func TestLoadFromPath_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := strings.Join([]string{
		"delegate_timeout: 3s",
		"done_pause: 0s",
		"headless_answer: quiet",
		"view:",
		"  style: Small",
		"  details: Size",
		"  sort: Date",
		"run_actions:",
		"  text: xdg-open",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DelegateTimeout != 3*time.Second {
		t.Fatalf("DelegateTimeout = %v, want 3s", cfg.DelegateTimeout)
	}
	if cfg.DonePause != 0 {
		t.Fatalf("DonePause = %v, want 0", cfg.DonePause)
	}
	if cfg.HeadlessAnswer != AnswerQuiet {
		t.Fatalf("HeadlessAnswer = %q, want quiet", cfg.HeadlessAnswer)
	}
	if cfg.View.Style != "Small" || cfg.View.Details != "Size" || cfg.View.Sort != "Date" {
		t.Fatalf("View = %+v", cfg.View)
	}
	if cmd, ok := cfg.RunAction("text/plain"); !ok || cmd != "xdg-open" {
		t.Fatalf("RunAction(text/plain) = %q, %v", cmd, ok)
	}
}

func TestLoadFromPath_StrictUnknownKeyErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("delegate_timout: 3s\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFromPath(path); err == nil {
		t.Fatal("expected unknown key to fail")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"zero timeout", func(c *Config) { c.DelegateTimeout = 0 }, "delegate_timeout"},
		{"negative pause", func(c *Config) { c.DonePause = -time.Second }, "done_pause"},
		{"zero chunk", func(c *Config) { c.ChunkSize = 0 }, "chunk_size"},
		{"bad answer", func(c *Config) { c.HeadlessAnswer = "maybe" }, "headless_answer"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad style", func(c *Config) { c.View.Style = "Tiny" }, "view.style"},
		{"bad sort", func(c *Config) { c.View.Sort = "Colour" }, "view.sort"},
		{"empty run cmd", func(c *Config) { c.RunActions["text"] = " " }, "run_actions.text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if verr.Path != tt.path {
				t.Fatalf("Path = %q, want %q", verr.Path, tt.path)
			}
		})
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.HeadlessAnswer = AnswerYes
	cfg.DelegateTimeout = 4 * time.Second
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	got, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.HeadlessAnswer != AnswerYes || got.DelegateTimeout != 4*time.Second {
		t.Fatalf("round trip = %+v", got)
	}
}

func TestLoad_UsesChoicesDir(t *testing.T) {
	td := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", td)
	dir := filepath.Join(td, "filer")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("chunk_size: 512\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChunkSize != 512 {
		t.Fatalf("ChunkSize = %d, want 512", cfg.ChunkSize)
	}
}

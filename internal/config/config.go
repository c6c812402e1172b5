package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Answer policies for action windows that have no one to ask.
const (
	AnswerNo    = "no"
	AnswerYes   = "yes"
	AnswerQuiet = "quiet"
)

const (
	DefaultDelegateTimeout = 10 * time.Second
	DefaultDonePause       = 500 * time.Millisecond
	DefaultChunkSize       = 4096
)

// ViewDefaults are applied to directory views opened without explicit
// Style/Details/Sort arguments.
type ViewDefaults struct {
	Style   string `yaml:"style"`   // Large, Small, Huge
	Details string `yaml:"details"` // None, Summary, Size, Type, Times, Permissions
	Sort    string `yaml:"sort"`    // Name, Type, Date, Size, Owner, Group
}

// TranscriptConfig configures the on-disk log of action windows.
type TranscriptConfig struct {
	// Enabled turns action transcripts on/off
	Enabled bool `yaml:"enabled,omitempty"`
	// File is the transcript path (default: ~/.local/share/filer/actions.log)
	File string `yaml:"file,omitempty"`
	// MaxSizeMB is the maximum file size before rotation (default: 10)
	MaxSizeMB int `yaml:"max_size_mb,omitempty"`
	// MaxFiles is the number of rotated files to keep (default: 3)
	MaxFiles int `yaml:"max_files,omitempty"`
}

// Config holds the filer choices.
type Config struct {
	// Display overrides $DISPLAY when connecting to the X server.
	Display    string `yaml:"display,omitempty"`
	XAuthority string `yaml:"xauthority,omitempty"`

	// DelegateTimeout bounds the wait for a running instance to answer.
	DelegateTimeout time.Duration `yaml:"delegate_timeout"`
	// DonePause is how long an action worker lingers after "Done".
	DonePause time.Duration `yaml:"done_pause"`
	// ChunkSize is the read size used when draining action output.
	ChunkSize int `yaml:"chunk_size"`
	// HeadlessAnswer answers confirmations when no terminal is attached.
	HeadlessAnswer string `yaml:"headless_answer"`
	// TerminalSurface shows action windows on the controlling terminal.
	TerminalSurface bool `yaml:"terminal_surface"`

	LogLevel   string           `yaml:"log_level"`
	View       ViewDefaults     `yaml:"view"`
	Transcript TranscriptConfig `yaml:"transcript,omitempty"`

	// RunActions maps MIME types (or media groups like "text") to the
	// command used by Run for non-executable files.
	RunActions map[string]string `yaml:"run_actions,omitempty"`
}

// ValidationError points at the offending config key.
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DefaultConfig returns the built-in choices.
func DefaultConfig() *Config {
	return &Config{
		DelegateTimeout: DefaultDelegateTimeout,
		DonePause:       DefaultDonePause,
		ChunkSize:       DefaultChunkSize,
		HeadlessAnswer:  AnswerNo,
		TerminalSurface: true,
		LogLevel:        "info",
		View: ViewDefaults{
			Style:   "Large",
			Details: "None",
			Sort:    "Name",
		},
		Transcript: TranscriptConfig{
			MaxSizeMB: 10,
			MaxFiles:  3,
		},
		RunActions: map[string]string{},
	}
}

var (
	validStyles  = []string{"Large", "Small", "Huge"}
	validDetails = []string{"None", "Summary", "Size", "Type", "Times", "Permissions"}
	validSorts   = []string{"Name", "Type", "Date", "Size", "Owner", "Group"}
)

// ValidStyle reports whether s names a view style.
func ValidStyle(s string) bool { return contains(validStyles, s) }

// ValidDetails reports whether s names a details mode.
func ValidDetails(s string) bool { return contains(validDetails, s) }

// ValidSort reports whether s names a sort key.
func ValidSort(s string) bool { return contains(validSorts, s) }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Validate checks the config for values the filer cannot use.
func (c *Config) Validate() error {
	if c.DelegateTimeout <= 0 {
		return &ValidationError{Path: "delegate_timeout", Err: fmt.Errorf("delegate_timeout must be > 0")}
	}
	if c.DonePause < 0 {
		return &ValidationError{Path: "done_pause", Err: fmt.Errorf("done_pause must be >= 0")}
	}
	if c.ChunkSize <= 0 {
		return &ValidationError{Path: "chunk_size", Err: fmt.Errorf("chunk_size must be > 0")}
	}
	switch c.HeadlessAnswer {
	case AnswerNo, AnswerYes, AnswerQuiet:
	default:
		return &ValidationError{Path: "headless_answer", Err: fmt.Errorf("headless_answer must be one of: no, yes, quiet")}
	}
	if c.LogLevel != "debug" && c.LogLevel != "info" && c.LogLevel != "warning" && c.LogLevel != "error" {
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warning, error")}
	}
	if !ValidStyle(c.View.Style) {
		return &ValidationError{Path: "view.style", Err: fmt.Errorf("style must be one of: %s", strings.Join(validStyles, ", "))}
	}
	if !ValidDetails(c.View.Details) {
		return &ValidationError{Path: "view.details", Err: fmt.Errorf("details must be one of: %s", strings.Join(validDetails, ", "))}
	}
	if !ValidSort(c.View.Sort) {
		return &ValidationError{Path: "view.sort", Err: fmt.Errorf("sort must be one of: %s", strings.Join(validSorts, ", "))}
	}
	if c.Transcript.MaxSizeMB < 0 {
		return &ValidationError{Path: "transcript.max_size_mb", Err: fmt.Errorf("max_size_mb must be >= 0")}
	}
	if c.Transcript.MaxFiles < 0 {
		return &ValidationError{Path: "transcript.max_files", Err: fmt.Errorf("max_files must be >= 0")}
	}
	for mime, cmd := range c.RunActions {
		if strings.TrimSpace(mime) == "" {
			return &ValidationError{Path: "run_actions", Err: fmt.Errorf("run_actions contains an empty MIME type")}
		}
		if strings.TrimSpace(cmd) == "" {
			return &ValidationError{Path: "run_actions." + mime, Err: fmt.Errorf("run command must not be empty")}
		}
	}
	return nil
}

// RunAction finds the command configured for a MIME type, falling back to
// the media group ("text" for "text/plain").
func (c *Config) RunAction(mimeType string) (string, bool) {
	if cmd, ok := c.RunActions[mimeType]; ok {
		return cmd, true
	}
	if i := strings.IndexByte(mimeType, '/'); i > 0 {
		cmd, ok := c.RunActions[mimeType[:i]]
		return cmd, ok
	}
	return "", false
}

// RunActionTypes lists the configured MIME types, sorted.
func (c *Config) RunActionTypes() []string {
	out := make([]string, 0, len(c.RunActions))
	for k := range c.RunActions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// GetTranscriptConfig returns transcript settings with defaults applied.
func (c *Config) GetTranscriptConfig() TranscriptConfig {
	tc := c.Transcript
	if tc.MaxSizeMB == 0 {
		tc.MaxSizeMB = 10
	}
	if tc.MaxFiles == 0 {
		tc.MaxFiles = 3
	}
	if tc.File == "" {
		if home, err := os.UserHomeDir(); err == nil {
			tc.File = filepath.Join(home, ".local", "share", "filer", "actions.log")
		}
	}
	return tc
}

// Save writes the config to the default location.
func (c *Config) Save() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path.
func (c *Config) SaveTo(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

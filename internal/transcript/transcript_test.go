package transcript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDisabledLoggerDropsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.log")
	l, err := New(Config{Enabled: false, FilePath: path})
	if err != nil {
		t.Fatal(err)
	}
	l.Log(EventStart, "s1", nil)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("disabled transcript created a file: %v", err)
	}

	var nilLogger *Logger
	nilLogger.Log(EventStart, "s1", nil)
	if err := nilLogger.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestLogWritesSortedDetails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "actions.log")
	l, err := New(Config{Enabled: true, FilePath: path, MaxSizeMB: 1, MaxFiles: 2})
	if err != nil {
		t.Fatal(err)
	}
	l.Log(EventStart, "abc", map[string]any{"kind": "delete", "items": 2})
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, `[START] session=abc items=2 kind="delete"`) {
		t.Fatalf("unexpected entry %q", line)
	}
}

func TestRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.log")
	l, err := New(Config{Enabled: true, FilePath: path, MaxSizeMB: 1, MaxFiles: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	// Pretend the file is full so the next entry rotates.
	l.currentSize = 1024 * 1024
	l.Log(EventOutput, "s", map[string]any{"text": "x"})

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected rotated file: %v", err)
	}
	if l.currentSize == 0 {
		t.Fatal("entry after rotation was not counted")
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("a\nb", 0); got != `a\nb` {
		t.Fatalf("Preview = %q", got)
	}
	if got := Preview("abcdef", 3); got != "abc..." {
		t.Fatalf("Preview = %q", got)
	}
}

package launcher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSpawnRunsInDir(t *testing.T) {
	dir := t.TempDir()
	cmd, err := Spawn([]string{"sh", "-c", "pwd > out"}, dir)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := cmd.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "out"))
	if err != nil {
		t.Fatal(err)
	}
	got, _ := filepath.EvalSymlinks(strings.TrimSpace(string(data)))
	want, _ := filepath.EvalSymlinks(dir)
	if got != want {
		t.Fatalf("child ran in %q, want %q", got, want)
	}
}

func TestSpawnBadDirStillStarts(t *testing.T) {
	cmd, err := Spawn([]string{"true"}, filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := cmd.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestSpawnMissingProgram(t *testing.T) {
	if _, err := Spawn([]string{"filer-no-such-program-xyz"}, ""); err == nil {
		t.Fatal("expected error for missing program")
	}
	if _, err := Spawn(nil, ""); err == nil {
		t.Fatal("expected error for empty argv")
	}
}

func TestSpawnPassesExtraFiles(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	cmd, err := Spawn([]string{"sh", "-c", "echo hi >&3"}, "", w)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	w.Close()
	buf := make([]byte, 16)
	n, _ := r.Read(buf)
	cmd.Wait()
	if strings.TrimSpace(string(buf[:n])) != "hi" {
		t.Fatalf("read %q from fd 3", buf[:n])
	}
}

package action

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rox-desktop/rox-filer-sub001/internal/pipechan"
)

// runScenario runs r in-process against real pipes, answering every
// question with answer(line), and returns the report lines.
func runScenario(t *testing.T, r *Runner, items []string, answer func(line string) byte) ([]string, error) {
	t.Helper()
	pr, cw, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	cr, pw, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	child := pipechan.FromFiles(cr, cw)
	parent := pipechan.FromFiles(pr, pw)
	r.Chan = child

	errc := make(chan error, 1)
	go func() {
		errc <- r.Run(items)
		child.Close()
	}()

	var lines []string
	br := bufio.NewReader(parent.Reader())
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			lines = append(lines, strings.TrimSuffix(line, "\n"))
			if IsQuestion(line) {
				if err := parent.Send(string(answer(line))); err != nil {
					break
				}
			}
		}
		if err != nil {
			break
		}
	}
	parent.Close()
	return lines, <-errc
}

func always(b byte) func(string) byte {
	return func(string) byte { return b }
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("hello"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func assertLines(t *testing.T, got, want []string) {
	t.Helper()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("report mismatch\ngot:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestDeleteDirectoryWithTwoFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "victim")
	os.Mkdir(dir, 0755)
	writeFiles(t, dir, "a", "b")

	lines, err := runScenario(t, &Runner{Kind: Delete}, []string{dir}, always(AnswerYes))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertLines(t, lines, []string{
		dir + ": Scanning...",
		dir + "/a: Delete?",
		dir + "/a: OK",
		dir + "/b: Delete?",
		dir + "/b: OK",
		dir + ": Directory deleted",
		"",
		"Done",
	})
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("directory still exists: %v", err)
	}
}

func TestDeleteQuietAnswerStopsPrompts(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a", "b", "c")
	items := []string{filepath.Join(dir, "a"), filepath.Join(dir, "b"), filepath.Join(dir, "c")}

	lines, err := runScenario(t, &Runner{Kind: Delete}, items, always(AnswerQuiet))
	if err != nil {
		t.Fatal(err)
	}
	prompts := 0
	for _, l := range lines {
		if strings.HasSuffix(l, "Delete?") {
			prompts++
		}
	}
	if prompts != 1 {
		t.Fatalf("got %d prompts, want 1:\n%s", prompts, strings.Join(lines, "\n"))
	}
	for _, p := range items {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("%s was not deleted", p)
		}
	}
}

func TestDeleteNoKeepsFileAndContinues(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "keep", "drop")
	keep, drop := filepath.Join(dir, "keep"), filepath.Join(dir, "drop")

	answer := func(line string) byte {
		if strings.HasPrefix(line, keep) {
			return AnswerNo
		}
		return AnswerYes
	}
	lines, err := runScenario(t, &Runner{Kind: Delete}, []string{keep, drop}, answer)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("answered N but file is gone: %v", err)
	}
	if _, err := os.Stat(drop); !os.IsNotExist(err) {
		t.Fatal("next entry was not processed")
	}
	assertLines(t, lines, []string{
		keep + ": Delete?",
		drop + ": Delete?",
		drop + ": OK",
		"",
		"Done",
	})
}

func TestDeleteErrorsAreReported(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	lines, err := runScenario(t, &Runner{Kind: Delete, Quiet: true}, []string{missing}, always(AnswerYes))
	if err != nil {
		t.Fatal(err)
	}
	if lines[0] != missing+": no such file or directory" {
		t.Fatalf("first line = %q", lines[0])
	}
	if lines[len(lines)-1] != "Done" {
		t.Fatal("run did not finish after an error")
	}
}

func TestInvalidAnswerStopsWorker(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a", "b")
	items := []string{filepath.Join(dir, "a"), filepath.Join(dir, "b")}

	_, err := runScenario(t, &Runner{Kind: Delete}, items, always('X'))
	if !errors.Is(err, ErrPeerGone) {
		t.Fatalf("Run = %v, want ErrPeerGone", err)
	}
	if _, err := os.Stat(items[1]); err != nil {
		t.Fatal("worker kept going after an invalid answer")
	}
}

func TestCopyTree(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src")
	os.Mkdir(src, 0755)
	writeFiles(t, src, "f")
	dest := t.TempDir()

	lines, err := runScenario(t, &Runner{Kind: Copy, Quiet: true, Dest: dest}, []string{src}, always(AnswerYes))
	if err != nil {
		t.Fatal(err)
	}
	assertLines(t, lines, []string{
		src + ": Scanning...",
		src + "/f: OK (5 B)",
		src + ": Directory copied",
		"",
		"Done",
	})
	data, err := os.ReadFile(filepath.Join(dest, "src", "f"))
	if err != nil || string(data) != "hello" {
		t.Fatalf("copied file = %q, %v", data, err)
	}
}

func TestCopyAsksOverwrite(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeFiles(t, src, "f")
	writeFiles(t, dest, "f")

	lines, err := runScenario(t, &Runner{Kind: Copy, Dest: dest}, []string{filepath.Join(src, "f")}, always(AnswerNo))
	if err != nil {
		t.Fatal(err)
	}
	if lines[0] != filepath.Join(src, "f")+": Overwrite?" {
		t.Fatalf("first line = %q", lines[0])
	}
}

func TestCopyIntoItself(t *testing.T) {
	src := t.TempDir()
	lines, err := runScenario(t, &Runner{Kind: Copy, Quiet: true, Dest: src}, []string{src}, always(AnswerYes))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(lines[0], "cannot copy a directory into itself") {
		t.Fatalf("first line = %q", lines[0])
	}
}

func TestMoveWithLeaf(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeFiles(t, src, "old")

	_, err := runScenario(t, &Runner{Kind: Move, Quiet: true, Dest: dest, Leaf: "new"},
		[]string{filepath.Join(src, "old")}, always(AnswerYes))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dest, "new")); err != nil {
		t.Fatalf("moved file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(src, "old")); !os.IsNotExist(err) {
		t.Fatal("source still exists after move")
	}
}

func TestLink(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeFiles(t, src, "f")

	lines, err := runScenario(t, &Runner{Kind: Link, Dest: dest}, []string{filepath.Join(src, "f")}, always(AnswerYes))
	if err != nil {
		t.Fatal(err)
	}
	if lines[0] != filepath.Join(src, "f")+": Link?" {
		t.Fatalf("first line = %q", lines[0])
	}
	target, err := os.Readlink(filepath.Join(dest, "f"))
	if err != nil || target != filepath.Join(src, "f") {
		t.Fatalf("Readlink = %q, %v", target, err)
	}
}

type fakeMounter struct {
	mounted map[string]bool
}

func (m *fakeMounter) IsMounted(p string) (bool, error) { return m.mounted[p], nil }
func (m *fakeMounter) Mount(p string) error            { m.mounted[p] = true; return nil }
func (m *fakeMounter) Unmount(p string) error {
	if p == "/busy" {
		return errors.New("target is busy")
	}
	m.mounted[p] = false
	return nil
}

func TestMountToggles(t *testing.T) {
	m := &fakeMounter{mounted: map[string]bool{"/mnt/usb": true, "/busy": true}}
	lines, err := runScenario(t, &Runner{Kind: Mount, Mounter: m},
		[]string{"/mnt/cd", "/mnt/usb", "/busy"}, always(AnswerYes))
	if err != nil {
		t.Fatal(err)
	}
	assertLines(t, lines, []string{
		"/mnt/cd: Mount?",
		"/mnt/cd: Mounted",
		"/mnt/usb: Unmount?",
		"/mnt/usb: Unmounted",
		"/busy: Unmount?",
		"/busy: target is busy",
		"",
		"Done",
	})
}

func TestLineSplitter(t *testing.T) {
	var s LineSplitter
	if got := s.Write("/a: Del"); len(got) != 0 {
		t.Fatalf("partial chunk produced %v", got)
	}
	got := s.Write("ete?\n/b: OK\n/c")
	if len(got) != 2 || got[0] != "/a: Delete?" || got[1] != "/b: OK" {
		t.Fatalf("lines = %q", got)
	}
	if s.Pending() != "/c" {
		t.Fatalf("Pending = %q", s.Pending())
	}
	if p, text := SplitLine("/x y: OK (1 kB)"); p != "/x y" || text != "OK (1 kB)" {
		t.Fatalf("SplitLine = %q, %q", p, text)
	}
}

func TestIsQuestion(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"/a: Delete?", true},
		{"/a: Overwrite?\n", true},
		{"/mnt: Unmount?", true},
		{"/odd: name: Copy?", true},
		{"/a: OK", false},
		{"/tmp/why?", false},
		{"/a: Really?", false},
		{"Delete?", false},
	}
	for _, tt := range tests {
		if got := IsQuestion(tt.line); got != tt.want {
			t.Errorf("IsQuestion(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestNewlineInNameIsNotAQuestion(t *testing.T) {
	dir := t.TempDir()
	name := "evil?\nrest"
	writeFiles(t, dir, name)

	var asked []string
	answer := func(line string) byte {
		asked = append(asked, line)
		return AnswerYes
	}
	lines, err := runScenario(t, &Runner{Kind: Delete, Quiet: true}, []string{filepath.Join(dir, name)}, answer)
	if err != nil {
		t.Fatal(err)
	}
	if len(asked) != 0 {
		t.Fatalf("answered %q for a quiet run; report:\n%s", asked, strings.Join(lines, "\n"))
	}
	if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
		t.Fatal("file not deleted")
	}
}

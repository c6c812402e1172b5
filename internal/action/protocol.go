// Package action runs file operations (delete, copy, move, link, mount)
// in a worker process and relays its line-oriented report and
// single-byte confirmations to an action window in the parent.
//
// Worker to parent: lines of the form "<path>: <text>\n", where text is a
// question ("Delete?"), "OK", a descriptive result or an error message.
// The run ends with "\nDone\n". Parent to worker: one byte per question,
// 'Y', 'N' or 'Q' (yes to this and everything after).
package action

import (
	"fmt"
	"strings"
)

// Kind is the operation a worker performs.
type Kind string

const (
	Delete Kind = "delete"
	Copy   Kind = "copy"
	Move   Kind = "move"
	Link   Kind = "link"
	Mount  Kind = "mount"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case Delete, Copy, Move, Link, Mount:
		return k, nil
	}
	return "", fmt.Errorf("unknown action kind %q", s)
}

// NeedsDest reports whether the kind takes a destination directory.
func (k Kind) NeedsDest() bool {
	return k == Copy || k == Move || k == Link
}

// Answers.
const (
	AnswerYes   byte = 'Y'
	AnswerNo    byte = 'N'
	AnswerQuiet byte = 'Q'
)

// ValidAnswer reports whether b is one of the answer bytes.
func ValidAnswer(b byte) bool {
	return b == AnswerYes || b == AnswerNo || b == AnswerQuiet
}

// DoneMarker ends every report.
const DoneMarker = "\nDone\n"

// Result texts.
const (
	TextOK          = "OK"
	TextScanning    = "Scanning..."
	TextDirDeleted  = "Directory deleted"
	TextDirCopied   = "Directory copied"
	TextMounted     = "Mounted"
	TextUnmounted   = "Unmounted"
	TextOverwrite   = "Overwrite?"
	TextUnmount     = "Unmount?"
	pathTextDivider = ": "
)

var prompts = map[Kind]string{
	Delete: "Delete?",
	Copy:   "Copy?",
	Move:   "Move?",
	Link:   "Link?",
	Mount:  "Mount?",
}

// Prompt returns the confirmation question for k.
func Prompt(k Kind) string {
	return prompts[k]
}

// IsQuestion reports whether a report line asks for an answer: it must end
// in the divider followed by one of the prompts the worker sends. Other
// text ending in "?", such as a file name split by a newline, is not a
// question.
func IsQuestion(line string) bool {
	line = strings.TrimRight(line, "\n")
	for _, q := range questions {
		if strings.HasSuffix(line, pathTextDivider+q) {
			return true
		}
	}
	return false
}

var questions = func() []string {
	qs := []string{TextOverwrite, TextUnmount}
	for _, q := range prompts {
		qs = append(qs, q)
	}
	return qs
}()

// SplitLine splits "<path>: <text>" into its parts. Lines without a path
// return an empty path.
func SplitLine(line string) (path, text string) {
	line = strings.TrimRight(line, "\n")
	if i := strings.Index(line, pathTextDivider); i >= 0 {
		return line[:i], line[i+len(pathTextDivider):]
	}
	return "", line
}

// LineSplitter reassembles report lines from arbitrary chunks.
type LineSplitter struct {
	partial strings.Builder
}

// Write adds a chunk and returns the lines it completed, without their
// newlines.
func (s *LineSplitter) Write(chunk string) []string {
	var lines []string
	for {
		i := strings.IndexByte(chunk, '\n')
		if i < 0 {
			s.partial.WriteString(chunk)
			return lines
		}
		s.partial.WriteString(chunk[:i])
		lines = append(lines, s.partial.String())
		s.partial.Reset()
		chunk = chunk[i+1:]
	}
}

// Pending returns text received after the last newline.
func (s *LineSplitter) Pending() string {
	return s.partial.String()
}

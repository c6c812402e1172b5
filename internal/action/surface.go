package action

import (
	"log/slog"

	"github.com/rox-desktop/rox-filer-sub001/internal/config"
)

// LogSurface writes report lines to a logger and answers questions by a
// fixed policy. It is used when nobody is around to answer.
type LogSurface struct {
	session *Session
	logger  *slog.Logger
	answer  byte
	lines   LineSplitter
}

// NewLogSurface returns a LogSurface answering by policy (config.AnswerNo,
// AnswerYes or AnswerQuiet).
func NewLogSurface(s *Session, logger *slog.Logger, policy string) *LogSurface {
	return &LogSurface{session: s, logger: logger, answer: PolicyAnswer(policy)}
}

// PolicyAnswer maps a headless answer policy to its answer byte.
func PolicyAnswer(policy string) byte {
	switch policy {
	case config.AnswerYes:
		return AnswerYes
	case config.AnswerQuiet:
		return AnswerQuiet
	}
	return AnswerNo
}

func (l *LogSurface) Append(chunk string) {
	for _, line := range l.lines.Write(chunk) {
		if line == "" {
			continue
		}
		path, text := SplitLine(line)
		l.logger.Info("action", "session", l.session.ID, "path", path, "text", text)
		if IsQuestion(line) {
			if err := l.session.Respond(l.answer); err != nil {
				l.logger.Warn("failed to answer", "session", l.session.ID, "error", err)
			}
		}
	}
}

func (l *LogSurface) Finished() {
	if rest := l.lines.Pending(); rest != "" {
		l.logger.Info("action", "session", l.session.ID, "text", rest)
	}
}

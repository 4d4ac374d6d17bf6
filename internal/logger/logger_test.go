package logger

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func newTestLogger(level LogLevel) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Logger{level: level, logger: log.New(&buf, "", 0)}, &buf
}

func TestLoggerRespectsLevel(t *testing.T) {
	l, buf := newTestLogger(WARN)

	l.Debug("debug message")
	l.Info("info message")
	if buf.Len() != 0 {
		t.Fatalf("expected DEBUG/INFO suppressed at WARN level, got: %q", buf.String())
	}

	l.Warn("warn message")
	if !strings.Contains(buf.String(), "[WARN] warn message") {
		t.Fatalf("expected WARN line, got: %q", buf.String())
	}

	buf.Reset()
	l.Error("error %d", 42)
	if !strings.Contains(buf.String(), "[ERROR] error 42") {
		t.Fatalf("expected formatted ERROR line, got: %q", buf.String())
	}
}

func TestLoggerDebugLevelEmitsEverything(t *testing.T) {
	l, buf := newTestLogger(DEBUG)

	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	out := buf.String()
	for _, want := range []string{"[DEBUG] d", "[INFO] i", "[WARN] w", "[ERROR] e"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %q", want, out)
		}
	}
}

func TestWithTagStampsEveryLine(t *testing.T) {
	l, buf := newTestLogger(DEBUG)
	tagged := l.WithTag("idx-1234")

	tagged.Info("initialize ok")
	if !strings.Contains(buf.String(), "[INFO][idx-1234] initialize ok") {
		t.Fatalf("expected tagged INFO line, got: %q", buf.String())
	}

	buf.Reset()
	l.Info("untagged")
	if strings.Contains(buf.String(), "idx-1234") {
		t.Fatalf("parent logger should not carry the derived tag, got: %q", buf.String())
	}
}

func TestWithTagInheritsLevel(t *testing.T) {
	l, buf := newTestLogger(WARN)
	tagged := l.WithTag("idx-5678")

	tagged.Debug("suppressed")
	if buf.Len() != 0 {
		t.Fatalf("expected DEBUG suppressed through a tagged logger, got: %q", buf.String())
	}
}

func TestGlobalLoggerSetLevel(t *testing.T) {
	original := defaultLogger
	defer func() { defaultLogger = original }()

	var buf bytes.Buffer
	defaultLogger = &Logger{level: INFO, logger: log.New(&buf, "", 0)}

	SetLevel(ERROR)
	Info("should be suppressed")
	if buf.Len() != 0 {
		t.Fatalf("expected suppressed INFO after SetLevel(ERROR), got: %q", buf.String())
	}

	Error("should appear")
	if !strings.Contains(buf.String(), "[ERROR] should appear") {
		t.Fatalf("expected ERROR line, got: %q", buf.String())
	}
}

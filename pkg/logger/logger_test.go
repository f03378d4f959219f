package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"INFO":    logrus.InfoLevel,
		"warning": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"bogus":   logrus.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Fatalf("%s: expected %v, got %v", in, want, got)
		}
	}
}

func TestLogger_FieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOutput("warn", &buf)

	l.Info("hidden", "k", "v")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered at warn level, got %q", buf.String())
	}

	l.Error("pipeline failed", errors.New("boom"), "request_id", "abc", "dangling")
	out := buf.String()
	for _, want := range []string{"pipeline failed", "request_id=abc", "error=boom"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output %q", want, out)
		}
	}
	if strings.Contains(out, "dangling") {
		t.Fatalf("unpaired key should be dropped: %q", out)
	}
}

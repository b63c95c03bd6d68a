package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestComponentAndSetOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	prev := zerolog.GlobalLevel()
	SetLevel("debug")
	defer zerolog.SetGlobalLevel(prev)

	l := Component("extractor")
	l.Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"component":"extractor"`) {
		t.Errorf("log output missing component field: %s", out)
	}
	if !strings.Contains(out, `"message":"hello"`) {
		t.Errorf("log output missing message: %s", out)
	}
}

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		env   string
		level string
		want  zerolog.Level
	}{
		{"development", "", zerolog.DebugLevel},
		{"production", "", zerolog.InfoLevel},
		{"production", "warn", zerolog.WarnLevel},
		{"development", "ERROR", zerolog.ErrorLevel},
		{"staging", "nonsense", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.env, tt.level); got != tt.want {
			t.Errorf("ParseLevel(%q, %q) = %s, want %s", tt.env, tt.level, got, tt.want)
		}
	}
}

func TestSetupWithWriterCopiesToAdditionalWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter("production", "info", &buf)
	logger.Info().Str("component", "overlay").Msg("mounted")

	if !strings.Contains(buf.String(), `"component":"overlay"`) {
		t.Fatalf("expected JSON line in additional writer, got %q", buf.String())
	}
}

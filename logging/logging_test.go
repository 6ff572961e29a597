package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Level: "warn"})

	logger.Info().Msg("hidden")
	logger.Warn().Str("symbol", "005930").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record written at warn level: %s", out)
	}
	if !strings.Contains(out, `"symbol":"005930"`) || !strings.Contains(out, `"message":"shown"`) {
		t.Fatalf("expected JSON record, got %s", out)
	}
}

func TestOpenAppendsToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	logger, closer, err := Open(dir, Options{Level: "info"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	logger.Info().Msg("first")
	closer.Close()

	logger, closer, err = Open(dir, Options{Level: "info"})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	logger.Info().Msg("second")
	closer.Close()

	data, err := os.ReadFile(filepath.Join(dir, "tradepilot.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "first") || !strings.Contains(string(data), "second") {
		t.Fatalf("log file must be appended to, got %s", data)
	}
}

// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("default level = %q, want info", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("default format = %q, want json", cfg.Format)
	}
	if cfg.Caller {
		t.Error("default caller should be false")
	}
	if !cfg.Timestamp {
		t.Error("default timestamp should be true")
	}
}

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{
		Level:     "debug",
		Format:    "json",
		Timestamp: true,
		Output:    &buf,
	})
	defer Init(DefaultConfig())

	Info().Str("component", "wal").Msg("segment rotated")

	out := buf.String()
	if !strings.Contains(out, "segment rotated") {
		t.Errorf("output missing message: %s", out)
	}
	if !strings.Contains(out, `"level":"info"`) {
		t.Errorf("output missing level field: %s", out)
	}
	if !strings.Contains(out, `"component":"wal"`) {
		t.Errorf("output missing component field: %s", out)
	}
	if !strings.Contains(out, `"time":`) {
		t.Errorf("output missing timestamp: %s", out)
	}
}

func TestInitLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Msg("below threshold")
	Warn().Msg("at threshold")

	out := buf.String()
	if strings.Contains(out, "below threshold") {
		t.Errorf("info line emitted at warn level: %s", out)
	}
	if !strings.Contains(out, "at threshold") {
		t.Errorf("warn line missing: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"disabled", zerolog.Disabled},
		{"WARN", zerolog.WarnLevel},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestWithComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	defer Init(DefaultConfig())
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	child := With().Str("component", "snapshot").Logger()
	child.Info().Msg("pruned")

	out := buf.String()
	if !strings.Contains(out, `"component":"snapshot"`) {
		t.Errorf("child logger lost component field: %s", out)
	}
	if !strings.Contains(out, "pruned") {
		t.Errorf("child logger dropped message: %s", out)
	}
}

// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   LogLevel
		wantOK bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"Warning", LevelWarn, true},
		{" error ", LevelError, true},
		{"fatal", LevelFatal, true},
		{"verbose", LevelInfo, false},
		{"", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	defer SetLevel(GetLevel())

	SetLevel(LevelWarn)
	Debugf("bins %d", 16)
	Infof("starting")
	Warnf("stale key %s", "spectrum/bin3")
	Errorf("sink closed")

	out := buf.String()
	if strings.Contains(out, "bins 16") || strings.Contains(out, "starting") {
		t.Errorf("messages below WARN were written: %q", out)
	}
	if !strings.Contains(out, "[WARN]  stale key spectrum/bin3") {
		t.Errorf("missing warning in %q", out)
	}
	if !strings.Contains(out, "[ERROR] sink closed") {
		t.Errorf("missing error in %q", out)
	}
}

func TestEnabled(t *testing.T) {
	defer SetLevel(GetLevel())

	SetLevel(LevelInfo)
	if Enabled(LevelDebug) {
		t.Error("debug should be disabled at INFO")
	}
	if !Enabled(LevelError) {
		t.Error("error should be enabled at INFO")
	}
}

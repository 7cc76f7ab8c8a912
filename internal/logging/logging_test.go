package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/novy-bridge/internal/config"
)

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
		drop  []string
	}{
		{"DEBUG", []string{"dbg", "inf", "err"}, nil},
		{"INFO", []string{"inf", "err"}, []string{"dbg"}},
		{"ERROR", []string{"err"}, []string{"dbg", "inf"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			w, closer := NewWriter(config.LogConfig{Level: tt.level}, &buf)
			defer closer.Close()

			l := log.New(w, "", 0)
			l.Print("[DEBUG] dbg")
			l.Print("[INFO] inf")
			l.Print("[ERROR] err")

			out := buf.String()
			for _, s := range tt.want {
				if !strings.Contains(out, s) {
					t.Errorf("expected %q in output %q", s, out)
				}
			}
			for _, s := range tt.drop {
				if strings.Contains(out, s) {
					t.Errorf("did not expect %q in output %q", s, out)
				}
			}
		})
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	w, closer := NewWriter(config.LogConfig{Level: "INFO", File: path, MaxSizeMB: 1}, nil)

	l := log.New(w, "", 0)
	l.Print("[INFO] written to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file content = %q", data)
	}
}

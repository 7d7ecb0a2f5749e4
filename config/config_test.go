package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[scripts]
dir = "game"
bundle = "patch.db"
entry = "Main"

[runtime]
fps = 30
tick_interval = "500ms"
collect_on_tick = false

[network]
url = "ws://localhost:8765/hotfix"
queue_size = 16

[log]
level = "debug"
format = "json"
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Scripts.Entry != "Main" || c.Scripts.Root != "Lua" {
		t.Errorf("unexpected scripts %+v", c.Scripts)
	}
	if c.Runtime.FPS != 30 || c.Runtime.TickInterval != 500*time.Millisecond || c.Runtime.CollectOnTick {
		t.Errorf("unexpected runtime %+v", c.Runtime)
	}
	if c.Runtime.GUIInterval != time.Second {
		t.Errorf("expected default gui interval, got %v", c.Runtime.GUIInterval)
	}
	if c.Network.QueueSize != 16 || c.Log.Format != "json" {
		t.Errorf("unexpected network/log %+v %+v", c.Network, c.Log)
	}

	dir := filepath.Dir(path)
	if c.ScriptsDir() != filepath.Join(dir, "game") {
		t.Errorf("unexpected scripts dir %s", c.ScriptsDir())
	}
	if c.BundlePath() != filepath.Join(dir, "patch.db") {
		t.Errorf("unexpected bundle path %s", c.BundlePath())
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"fps too high", "[runtime]\nfps = 5000", "FPS"},
		{"zero fps", "[runtime]\nfps = 0", "FPS"},
		{"zero tick", "[runtime]\ntick_interval = \"0s\"", "TickInterval"},
		{"bad level", "[log]\nlevel = \"loud\"", "Level"},
		{"bad format", "[log]\nformat = \"xml\"", "Format"},
		{"http url", "[network]\nurl = \"http://example.com\"", "URL"},
		{"empty entry", "[scripts]\nentry = \"\"", "Entry"},
		{"entry with slash", "[scripts]\nentry = \"a/b\"", "Entry"},
		{"unknown key", "[runtime]\nfsp = 60", "unknown keys"},
		{"syntax", "[runtime\n", "parse error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	c, err := LoadOrDefault(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if c.Scripts.Entry != "Game" || c.Runtime.FPS != 60 {
		t.Errorf("expected defaults, got %+v", c)
	}

	if _, err := LoadOrDefault(writeConfig(t, "[log]\nlevel = \"loud\"")); err == nil {
		t.Error("expected invalid file to fail")
	}
}

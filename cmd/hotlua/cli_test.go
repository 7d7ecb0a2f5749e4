package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/caffeineduck/hotlua/config"
	"github.com/caffeineduck/hotlua/host"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

const testGame = `
local Game = {}
frames = 0
function Game.Update() frames = frames + 1 end
function Game.Language(key) return "<" .. key .. ">" end
function Game.HandleNetMessage(id, body) lastId, lastBody = id, body end
return Game
`

// writeScripts lays out files under dir and returns dir.
func writeScripts(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for p, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func missingConfig(t *testing.T) string {
	return filepath.Join(t.TempDir(), config.FileName)
}

func TestCLIHelp(t *testing.T) {
	output, err := executeCommand(rootCmd, "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, phrase := range []string{"hotlua", "Lua", "run", "console", "bundle", "serve", "--config"} {
		if !strings.Contains(output, phrase) {
			t.Errorf("help output should contain %q", phrase)
		}
	}
}

func TestCLIRunHelp(t *testing.T) {
	output, err := executeCommand(rootCmd, "run", "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, phrase := range []string{"--frames", "--fps", "--entry", "--scripts", "--bundle", "--url"} {
		if !strings.Contains(output, phrase) {
			t.Errorf("run help should contain %q", phrase)
		}
	}
}

func TestCLIRunFrames(t *testing.T) {
	dir := writeScripts(t, map[string]string{"Lua/Game.lua": testGame})
	_, err := executeCommand(rootCmd, "run",
		"--config", missingConfig(t),
		"--log-level", "error",
		"--scripts", dir,
		"--fps", "1000",
		"--frames", "3")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
}

func TestCLIRunNoScripts(t *testing.T) {
	_, err := executeCommand(rootCmd, "run",
		"--config", missingConfig(t),
		"--log-level", "error",
		"--scripts", filepath.Join(t.TempDir(), "absent"),
		"--frames", "1")
	if err == nil || !strings.Contains(err.Error(), "no script source") {
		t.Errorf("expected missing source error, got %v", err)
	}
}

func TestCLIRunBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.FileName)
	os.WriteFile(path, []byte("[runtime]\nfps = -1\n"), 0o644)

	if _, err := executeCommand(rootCmd, "run", "--config", path, "--frames", "1"); err == nil {
		t.Error("expected invalid config to fail")
	}
}

func TestCLIBundle(t *testing.T) {
	src := writeScripts(t, map[string]string{
		"Lua/Game.lua": testGame,
		"Lua/util.lua": "return {}",
	})
	file := filepath.Join(t.TempDir(), "patch.db")
	cfg := missingConfig(t)

	output, err := executeCommand(rootCmd, "bundle", "pack", src, "--config", cfg, "--file", file)
	if err != nil {
		t.Fatalf("pack failed: %v", err)
	}
	if !strings.Contains(output, "packed 2 files") {
		t.Errorf("unexpected pack output %q", output)
	}

	output, err = executeCommand(rootCmd, "bundle", "list", "--config", cfg, "--file", file)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(output, "Lua/Game.lua") || !strings.Contains(output, "Lua/util.lua") {
		t.Errorf("unexpected list output %q", output)
	}

	output, err = executeCommand(rootCmd, "bundle", "cat", "Lua/util.lua", "--config", cfg, "--file", file)
	if err != nil {
		t.Fatalf("cat failed: %v", err)
	}
	if output != "return {}" {
		t.Errorf("unexpected cat output %q", output)
	}

	if _, err := executeCommand(rootCmd, "bundle", "cat", "Lua/none.lua", "--config", cfg, "--file", file); err == nil {
		t.Error("expected missing resource to fail")
	}
}

func TestCLIRunFromBundle(t *testing.T) {
	file := filepath.Join(t.TempDir(), "patch.db")
	src := writeScripts(t, map[string]string{"Lua/Game.lua": testGame})
	if _, err := executeCommand(rootCmd, "bundle", "pack", src, "--config", missingConfig(t), "--file", file); err != nil {
		t.Fatalf("pack failed: %v", err)
	}

	_, err := executeCommand(rootCmd, "run",
		"--config", missingConfig(t),
		"--log-level", "error",
		"--scripts", filepath.Join(t.TempDir(), "absent"),
		"--bundle", file,
		"--fps", "1000",
		"--frames", "2")
	if err != nil {
		t.Fatalf("run from bundle failed: %v", err)
	}
}

func newTestConsole(t *testing.T) (*console, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.Scripts.Dir = writeScripts(t, map[string]string{"Lua/Game.lua": testGame})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	a, err := newApp(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	t.Cleanup(a.close)

	runner := host.NewRunner(host.WithPumper(a.net))
	runner.Register("lua", a.bridge, nil)
	a.net.Start(ctx)
	if err := runner.Start(); err != nil {
		t.Fatalf("runner start failed: %v", err)
	}

	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	return &console{app: a, runner: runner, out: out, errOut: errOut}, out, errOut
}

func TestConsoleEval(t *testing.T) {
	c, out, errOut := newTestConsole(t)

	if !c.handle("1 + 2") {
		t.Fatal("session ended early")
	}
	if out.String() != "3\n" {
		t.Errorf("expected 3, got %q", out.String())
	}
	c.handle("error('x')")
	if !strings.Contains(errOut.String(), "Error:") {
		t.Errorf("expected error output, got %q", errOut.String())
	}
	if c.handle("exit") {
		t.Error("exit should end the session")
	}
}

func TestConsoleCommands(t *testing.T) {
	c, out, errOut := newTestConsole(t)

	c.handle(":update 3")
	c.handle("frames")
	c.handle(":lang title")
	c.handle(":mem")
	c.handle(":bindings")
	c.handle(":tick")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	want := []string{"3 frames", "3", "<title>"}
	for i, w := range want {
		if i >= len(lines) || lines[i] != w {
			t.Fatalf("line %d: expected %q, got %v", i, w, lines)
		}
	}
	if !strings.HasPrefix(lines[3], "[LuaManager] Lua memory : ") {
		t.Errorf("unexpected :mem output %q", lines[3])
	}
	if lines[4] != "Update Language HandleNetMessage" {
		t.Errorf("unexpected :bindings output %q", lines[4])
	}
	if errOut.Len() != 0 {
		t.Errorf("unexpected errors %q", errOut.String())
	}

	c.handle(":nope")
	c.handle(":update x")
	c.handle(":send abc")
	if got := strings.Count(errOut.String(), "Error:"); got != 3 {
		t.Errorf("expected 3 errors, got %d: %q", got, errOut.String())
	}
}

func TestConsoleSendLoopback(t *testing.T) {
	c, out, errOut := newTestConsole(t)

	c.handle(":send 42 hello")
	if errOut.Len() != 0 {
		t.Fatalf("send failed: %q", errOut.String())
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		out.Reset()
		c.handle(":update")
		out.Reset()
		c.handle("lastId, lastBody")
		if out.String() == "42\thello\n" {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Errorf("hotfix message never reached HandleNetMessage, last output %q", out.String())
}

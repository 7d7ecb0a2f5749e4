package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caffeineduck/hotlua/host"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive Lua console inside the running bridge",
	Long: `Start the bridge and read Lua chunks interactively. Frames only
advance when asked, so state can be inspected between them.

Features:
  - Command history (up/down arrows)
  - History search (Ctrl+R)
  - Multi-line input (end line with \)

Commands:
  :mem              print the memory diagnostics line
  :lang <key>       query the Language entry point
  :send <id> <body> send a hotfix message
  :update [n]       step n frames (default 1)
  :tick             run the maintenance tick now
  :bindings         list bound entry points

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func init() {
	addFrameFlags(consoleCmd)
	consoleCmd.Flags().String("history", "", "History file path (default: ~/.hotlua_history)")
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".hotlua_history")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, runner, err := startHost(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()
	defer runner.Stop()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(cmd.ErrOrStderr(), "hotlua console (type 'exit' to quit, Ctrl+D to exit)")
	c := &console{app: a, runner: runner, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}

	var multiLine strings.Builder
	inMultiLine := false

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if inMultiLine {
					multiLine.Reset()
					inMultiLine = false
					rl.SetPrompt("> ")
				}
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(c.out)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		if strings.HasSuffix(line, "\\") {
			multiLine.WriteString(strings.TrimSuffix(line, "\\"))
			multiLine.WriteString("\n")
			inMultiLine = true
			rl.SetPrompt(">> ")
			continue
		}
		if inMultiLine {
			multiLine.WriteString(line)
			line = multiLine.String()
			multiLine.Reset()
			inMultiLine = false
			rl.SetPrompt("> ")
		}

		if !c.handle(line) {
			return nil
		}
	}
}

type console struct {
	app    *app
	runner *host.Runner
	out    io.Writer
	errOut io.Writer
}

// handle runs one input line and reports whether the session continues.
func (c *console) handle(line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return true
	case line == "exit" || line == "quit":
		return false
	case strings.HasPrefix(line, ":"):
		if err := c.command(line[1:]); err != nil {
			fmt.Fprintf(c.errOut, "Error: %v\n", err)
		}
		return true
	}

	results, err := c.app.bridge.Eval(line)
	if err != nil {
		fmt.Fprintf(c.errOut, "Error: %v\n", err)
		return true
	}
	if len(results) > 0 {
		fmt.Fprintln(c.out, strings.Join(results, "\t"))
	}
	return true
}

func (c *console) command(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return fmt.Errorf("empty command")
	}
	b := c.app.bridge

	switch fields[0] {
	case "mem":
		fmt.Fprintln(c.out, b.Diagnostics())
	case "lang":
		if len(fields) != 2 {
			return fmt.Errorf("usage: :lang <key>")
		}
		s, ok := b.Language(fields[1])
		if !ok {
			fmt.Fprintln(c.out, "nil")
			return nil
		}
		fmt.Fprintln(c.out, s)
	case "send":
		if len(fields) < 2 {
			return fmt.Errorf("usage: :send <id> [body]")
		}
		id, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid message id %q", fields[1])
		}
		body := strings.Join(fields[2:], " ")
		if err := b.SendHotfixMessage(int32(id), []byte(body)); err != nil {
			return err
		}
	case "update":
		n := 1
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil || v < 1 {
				return fmt.Errorf("invalid frame count %q", fields[1])
			}
			n = v
		}
		frame := c.frame()
		for i := 0; i < n; i++ {
			c.runner.Step(frame)
		}
		fmt.Fprintf(c.out, "%d frames\n", c.runner.Frames())
	case "tick":
		b.Tick()
	case "bindings":
		fmt.Fprintln(c.out, strings.Join(b.Bound(), " "))
	default:
		return fmt.Errorf("unknown command :%s", fields[0])
	}
	return nil
}

func (c *console) frame() time.Duration {
	return time.Second / time.Duration(c.app.cfg.Runtime.FPS)
}

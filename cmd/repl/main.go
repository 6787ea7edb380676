package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/dop251/goja"

	"github.com/GriffinCanCode/securevm/internal/infrastructure/config"
	"github.com/GriffinCanCode/securevm/internal/infrastructure/logging"
	"github.com/GriffinCanCode/securevm/internal/realm"
	"github.com/GriffinCanCode/securevm/internal/sandbox"
)

func main() {
	cfg := config.LoadOrDefault()

	whitelist := flag.String("whitelist", cfg.Sandbox.WhitelistFile, "Whitelist file (.yaml, .toml or .json)")
	timeout := flag.Duration("timeout", cfg.Sandbox.Timeout, "Evaluation timeout")
	expr := flag.String("e", "", "Evaluate code and exit")
	verbose := flag.Bool("v", false, "Log sandbox internals")
	flag.Parse()

	logger := logging.NewNop()
	if *verbose {
		logger = logging.NewDevelopment()
	}
	defer logger.Sync()

	sc := sandbox.DefaultConfig()
	sc.Timeout = *timeout
	sc.TimerBudget = cfg.Sandbox.TimerBudget
	sc.Location = cfg.Sandbox.Location

	opts := []sandbox.Option{sandbox.WithLogger(logger.Named("sandbox").Logger)}
	if *whitelist != "" {
		wl, err := realm.LoadWhitelist(*whitelist)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load whitelist: %v\n", err)
			os.Exit(1)
		}
		opts = append(opts, sandbox.WithWhitelist(wl))
	}

	c, err := sandbox.New(sc, nil, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create sandbox: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	if *expr != "" {
		if !evalAndPrint(c, *expr) {
			os.Exit(1)
		}
		return
	}

	if err := runREPL(c); err != nil {
		fmt.Fprintf(os.Stderr, "REPL error: %v\n", err)
		os.Exit(1)
	}
}

// runREPL starts an interactive read-eval-print loop
func runREPL(c *sandbox.Context) error {
	history := ""
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, ".securevm_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">> ",
		HistoryFile:     history,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Println("securevm REPL (type 'exit' to quit, ':help' for commands)")
	fmt.Println()

	var buffer strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buffer.Reset()
			rl.SetPrompt(">> ")
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if buffer.Len() == 0 {
			trimmed := strings.TrimSpace(line)
			switch {
			case trimmed == "":
				continue
			case trimmed == "exit" || trimmed == "quit":
				return nil
			case strings.HasPrefix(trimmed, ":"):
				handleREPLCommand(c, trimmed)
				continue
			}
		}

		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)

		// Keep reading while the input is an unfinished statement
		if incomplete(buffer.String()) {
			rl.SetPrompt(".. ")
			continue
		}

		evalAndPrint(c, buffer.String())
		buffer.Reset()
		rl.SetPrompt(">> ")
	}
}

// incomplete reports whether code fails to parse only because it ends early.
func incomplete(code string) bool {
	_, err := goja.Compile("repl", code, false)
	return err != nil && strings.Contains(err.Error(), "Unexpected end of input")
}

// handleREPLCommand handles REPL meta-commands
func handleREPLCommand(c *sandbox.Context, cmd string) {
	switch cmd {
	case ":help", ":h", ":?":
		fmt.Println("REPL Commands:")
		fmt.Println("  :help, :h, :?     Show this help")
		fmt.Println("  :warnings         Show globals the sanitizer could not remove")
		fmt.Println("  :stats            Show membrane wrapper counts")
		fmt.Println("  exit, quit        Exit REPL")
	case ":warnings":
		warnings := c.Warnings()
		if len(warnings) == 0 {
			fmt.Println("No sanitization warnings")
		}
		for _, w := range warnings {
			fmt.Println(w.String())
		}
	case ":stats":
		stats := c.Stats()
		fmt.Printf("Wrappers: %d inward, %d outward\n", stats.Inward, stats.Outward)
	default:
		fmt.Printf("Unknown command: %s (type :help for commands)\n", cmd)
	}
}

// evalAndPrint runs code and prints console output and the result
func evalAndPrint(c *sandbox.Context, code string) bool {
	result, err := c.Execute(context.Background(), code)
	if result != nil {
		for _, entry := range result.Console {
			fmt.Printf("[%s] %s\n", entry.Level, entry.Message)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}

	switch {
	case result.JSON != "":
		fmt.Println(result.JSON)
	case result.Value == nil:
		fmt.Println("undefined")
	default:
		fmt.Printf("%v\n", result.Value)
	}
	if result.Pending > 0 {
		fmt.Printf("(%d timer callbacks still queued)\n", result.Pending)
	}
	return true
}

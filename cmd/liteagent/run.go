package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"liteagent/internal/protocol"
	"liteagent/internal/session"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <source-dir> <code-file>",
	Short: "Execute a Python file in a sandboxed container",
	Long: `Copy <source-dir> into a shadow directory, start a container with the
template's resource limits, run <code-file> inside it and print the parsed
result. Pass "-" as the code file to read from standard input.

The snippet's last value is reported by assigning it:
  _liteagent_result = my_value

Example:
  liteagent run ./project snippet.py
  echo '_liteagent_result = 6 * 7' | liteagent run ./project -
  liteagent run --template web --set timeout=90 ./project fetch.py`,
	Args: cobra.ExactArgs(2),
	RunE: runRun,
}

var (
	runTemplate string
	runSets     []string
	runJSON     bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runTemplate, "template", "", "configuration template (default, secure, ml, web, or a loaded custom name)")
	runCmd.Flags().StringArrayVar(&runSets, "set", nil, "template override as key=value (repeatable)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the result as JSON")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, kind, err := setup(ctx)
	if err != nil {
		return err
	}
	if runTemplate != "" {
		cfg.Template = runTemplate
	}

	code, err := readCode(args[1])
	if err != nil {
		return err
	}

	ov, err := session.ParseOverrides(runSets)
	if err != nil {
		return err
	}

	factory, store, err := newFactory(ctx, cfg, log)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	var res protocol.Result
	err = factory.With(ctx, args[0], kind, cfg.Template, ov, func(s *session.Session) error {
		log.Info("session prepared", "session", s.ID(), "engine", kind, "template", s.Template())
		var execErr error
		res, execErr = s.Execute(ctx, code)
		return execErr
	})
	if err != nil {
		return err
	}
	return printResult(res)
}

func readCode(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read code file: %w", err)
	}
	return string(b), nil
}

func printResult(res protocol.Result) error {
	if runJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"success": res.Success,
			"result":  res.Value,
			"logs":    res.Logs,
		})
	}

	if res.Logs != "" {
		fmt.Fprint(os.Stderr, res.Logs)
		if res.Logs[len(res.Logs)-1] != '\n' {
			fmt.Fprintln(os.Stderr)
		}
	}
	if res.Value != nil {
		fmt.Println(formatValue(res.Value))
	}
	if !res.Success {
		return fmt.Errorf("execution failed")
	}
	return nil
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64, bool, nil:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

// Command wmkeys loads keyboard shortcut bindings and serves them to an
// input layer over a local WebSocket endpoint.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

// exitError carries a non-zero exit code without printing another message.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := buildRootCommand(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if exitErr, ok := err.(exitError); ok {
			return exitErr.code
		}
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

func buildRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "wmkeys",
		Short: "Keyboard shortcut registry for window managers",
		Long: `wmkeys - map key combinations like "super + shift + d" to actions

Commands:
  wmkeys init              Write the default config if it is missing
  wmkeys check             Validate the config and every binding
  wmkeys list              Print the registered bindings
  wmkeys lookup KEY        Find the binding for a key event
  wmkeys serve             Serve key events over WebSocket`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := parseLogLevel(opts.logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default: XDG config dir)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug/info/warn/error)")

	root.AddCommand(buildInitCommand(opts))
	root.AddCommand(buildCheckCommand(opts))
	root.AddCommand(buildListCommand(opts))
	root.AddCommand(buildLookupCommand(opts))
	root.AddCommand(buildServeCommand(opts))
	return root
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid --log-level %q", s)
	}
	return level, nil
}

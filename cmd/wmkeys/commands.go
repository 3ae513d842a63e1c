package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wmkeys/internal/app"
	"wmkeys/internal/config"
	"wmkeys/internal/hotkeys"
	"wmkeys/internal/keysym"
)

func (o *rootOptions) path() string {
	if o.configPath != "" {
		return o.configPath
	}
	return config.ResolvePath()
}

func (o *rootOptions) load() (config.Config, error) {
	return config.Load(o.path())
}

func buildInitCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default config if it is missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				path = opts.configPath
				cfg  config.Config
				err  error
			)
			if path == "" {
				path, cfg, err = config.EnsureDefaultFile()
			} else {
				cfg, err = config.EnsureFile(path)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bindings)\n", path, len(cfg.Bindings))
			return nil
		},
	}
}

func buildCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config and every binding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			path := opts.path()
			cfg, err := config.Load(path)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return exitError{code: 1}
			}
			reg, err := app.BuildRegistry(cfg)
			if err != nil {
				for _, line := range strings.Split(err.Error(), "\n") {
					fmt.Fprintln(cmd.ErrOrStderr(), line)
				}
				return exitError{code: 1}
			}
			fmt.Fprintf(out, "%s: ok (%d bindings)\n", path, reg.Len())
			return nil
		},
	}
}

func buildListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the registered bindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			reg, err := app.BuildRegistry(cfg)
			if reg == nil {
				return err
			}
			if err != nil {
				slog.Warn("[WARN-CONFIG] some bindings were skipped", "error", err)
			}

			descriptions := app.Descriptions(cfg)
			names := keysym.Default()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BINDING\tMODIFIERS\tKEYSYM\tNAME\tDESCRIPTION")
			for _, b := range reg.Bindings() {
				fmt.Fprintf(tw, "%s\t%s\t%#06x\t%s\t%s\n",
					b.Origin(), b.Modifiers(), uint32(b.Key()), names.Name(b.Key()), descriptions[b.Origin()])
			}
			return tw.Flush()
		},
	}
}

func buildLookupCommand(opts *rootOptions) *cobra.Command {
	var mods string
	cmd := &cobra.Command{
		Use:   "lookup KEY",
		Short: "Find the binding for a key event",
		Long: `Resolve KEY to a keysym and report which binding a key event with the
given modifier state would trigger. Lock modifiers such as numlock are
accepted in --mods and are ignored the same way the daemon ignores them.`,
		Example: "  wmkeys lookup --mods super,shift d\n  wmkeys lookup --mods super,numlock Return",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			reg, err := app.BuildRegistry(cfg)
			if reg == nil {
				return err
			}
			if err != nil {
				slog.Warn("[WARN-CONFIG] some bindings were skipped", "error", err)
			}

			mask, err := hotkeys.ParseModifierList(mods, ',')
			if err != nil {
				return err
			}
			key, ok := reg.LookupKey(args[0])
			if !ok {
				return fmt.Errorf("%w: %q", hotkeys.ErrUnknownKey, args[0])
			}

			b := reg.Handle(mask, key)
			if b == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "no binding for %s %#06x\n", mask, uint32(key))
				return exitError{code: 1}
			}
			fmt.Fprintln(cmd.OutOrStdout(), b.Origin())
			return nil
		},
	}
	cmd.Flags().StringVarP(&mods, "mods", "m", "", "Comma-separated modifiers held with KEY")
	return cmd
}

func buildServeCommand(opts *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve key events over WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(a.LogHandler(slog.Default().Handler())))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address, overrides the config")
	return cmd
}

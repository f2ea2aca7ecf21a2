// Package main is the entry point for the pulse CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/flemzord/pulse/internal/core"
	"github.com/flemzord/pulse/pkg/app"
	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pulse",
		Short:         "Watch Dragonite and Rotom and relay changes to Discord",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.PersistentFlags().String("data-dir", "", "Persistent data directory (default $XDG_DATA_HOME/pulse)")
	root.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", app.LogFormatText, "Log format: text or json")

	root.AddCommand(
		versionCmd(),
		startCmd(),
		configCmd(),
		snapshotCmd(),
		initCmd(),
		serviceCmd(),
	)
	return root
}

// runParams reads the persistent flags.
func runParams(cmd *cobra.Command) (app.RunParams, error) {
	flags := cmd.Flags()
	cfgPath, _ := flags.GetString("config")
	dataDir, _ := flags.GetString("data-dir")
	levelName, _ := flags.GetString("log-level")
	format, _ := flags.GetString("log-format")

	level, err := app.ParseLogLevel(levelName)
	if err != nil {
		return app.RunParams{}, err
	}
	return app.RunParams{
		ConfigPath: cfgPath,
		DataDir:    dataDir,
		LogLevel:   level,
		LogFormat:  format,
		Version:    version,
		Commit:     commit,
		Date:       date,
	}, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pulse %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Fprintln(out, "\nNo compiled modules.")
				return
			}
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range mods {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start pulse with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := runParams(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx, params)
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration and provision every module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := runParams(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				params.ConfigPath = args[0]
			}
			params.LogOutput = cmd.ErrOrStderr()
			rt, err := app.Build(params)
			if err != nil {
				return err
			}
			// Provisioned but never started: stop only what Build opened.
			defer stopProvisioned(rt)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK (%d modules)\n", len(rt.ModuleIDs))
			for _, id := range rt.ModuleIDs {
				fmt.Fprintf(out, "  %s\n", id)
			}
			return nil
		},
	})
	return cmd
}

func stopProvisioned(rt *app.Runtime) {
	for _, id := range rt.ModuleIDs {
		mod, ok := rt.App.Module(id)
		if !ok {
			continue
		}
		if s, ok := mod.(core.Stopper); ok {
			_ = s.Stop(context.Background())
		}
	}
	rt.Close()
}

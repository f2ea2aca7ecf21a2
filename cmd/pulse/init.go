package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/charmbracelet/huh"
	"github.com/flemzord/pulse/pkg/app"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var snowflakePattern = regexp.MustCompile(`^\d{5,20}$`)

// initAnswers are collected by the init form.
type initAnswers struct {
	ChannelID     string
	Backend       string
	DragoniteHost string
	DragoniteUser string
	RotomURL      string
	Banned        bool
	Disabled      bool
	Offline       bool
	Gateway       bool
}

func defaultInitAnswers() initAnswers {
	return initAnswers{
		Backend:       "file",
		DragoniteHost: "127.0.0.1",
		DragoniteUser: "dragonite",
		RotomURL:      "http://127.0.0.1:7072",
		Banned:        true,
		Disabled:      true,
		Offline:       true,
	}
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				path = app.DefaultConfigPath()
			}
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			answers := defaultInitAnswers()
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				if err := initForm(&answers).Run(); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						return nil
					}
					return err
				}
			}

			data, err := renderInitConfig(answers)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s\n", path)
			fmt.Fprintln(out, "Secrets are read from DISCORD_TOKEN, DRAGONITE_PASSWORD and PULSE_ADMIN_TOKEN.")
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	cmd.Flags().BoolP("yes", "y", false, "Accept defaults without prompting")
	return cmd
}

func initForm(a *initAnswers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Discord channel ID").
				Description("Leave empty to log notifications instead").
				Value(&a.ChannelID).
				Validate(func(s string) error {
					if s != "" && !snowflakePattern.MatchString(s) {
						return errors.New("must be a numeric Discord ID")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Snapshot backend").
				Options(
					huh.NewOption("JSON files", "file"),
					huh.NewOption("SQLite", "sqlite"),
					huh.NewOption("Redis", "redis"),
				).
				Value(&a.Backend),
		),
		huh.NewGroup(
			huh.NewInput().Title("Dragonite MySQL host").Value(&a.DragoniteHost),
			huh.NewInput().Title("Dragonite MySQL user").Value(&a.DragoniteUser),
			huh.NewInput().Title("Rotom API URL").Value(&a.RotomURL),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Watch banned accounts?").Value(&a.Banned),
			huh.NewConfirm().Title("Watch disabled sessions?").Value(&a.Disabled),
			huh.NewConfirm().Title("Watch offline devices?").Value(&a.Offline),
			huh.NewConfirm().Title("Enable the HTTP status gateway?").Value(&a.Gateway),
		),
	)
}

// renderInitConfig builds pulse.yaml from the answers. Secrets are written
// as environment references, never inline.
func renderInitConfig(a initAnswers) ([]byte, error) {
	modules := map[string]any{
		"snapshot.store": map[string]any{"backend": a.Backend},
		"channel.discord": map[string]any{
			"token":      "${DISCORD_TOKEN:-}",
			"channel_id": a.ChannelID,
		},
	}

	needDragonite := a.Banned || a.Disabled
	if needDragonite {
		modules["source.dragonite"] = map[string]any{
			"host":     a.DragoniteHost,
			"user":     a.DragoniteUser,
			"password": "${DRAGONITE_PASSWORD}",
			"database": "dragonite",
		}
	}
	if a.Offline {
		modules["source.rotom"] = map[string]any{"base_url": a.RotomURL}
	}

	watchers := map[string]any{}
	if a.Banned {
		watchers["banned"] = map[string]any{"interval": "5m", "window": "24h", "providers": []string{"nk", "ptc"}}
	}
	if a.Disabled {
		watchers["disabled"] = map[string]any{"interval": "5m", "window": "24h"}
	}
	if a.Offline {
		watchers["offline"] = map[string]any{"interval": "1m", "threshold": "10m"}
	}
	if len(watchers) > 0 {
		modules["watch"] = watchers
	}

	if a.Gateway {
		modules["gateway.http"] = map[string]any{
			"bind": "127.0.0.1:8080",
			"auth": map[string]any{"bearer_token": "${PULSE_ADMIN_TOKEN}"},
		}
	}

	return yaml.Marshal(map[string]any{
		"version": "1",
		"modules": modules,
	})
}

// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lodestone/lodestone/internal/config"
)

// newConfigCommand creates the `lodestone config` command tree.
// Subcommands that read configuration use the App's ConfigProvider.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage lodestone configuration",
		Long: `Manage lodestone configuration.

Configuration is stored in:
  - Linux: ~/.config/lodestone/config.cue
  - macOS: ~/Library/Application Support/lodestone/config.cue
  - Windows: %APPDATA%\lodestone\config.cue

Every key can be overridden with a LODESTONE_* environment variable,
for example LODESTONE_ASSETS_WORKERS=16.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			return showConfig(cmd.Context(), app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			return initConfig(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			path, err := app.configPath()
			if err != nil {
				return app.fail(ExitUsage, err)
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			s, err := app.session(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(s.cfg))
			return nil
		},
	})

	return cfgCmd
}

// configPath returns the --config path, or the default file location.
func (a *App) configPath() (string, error) {
	if a.flags.configPath != "" {
		return a.flags.configPath, nil
	}
	return config.DefaultPath(a.ConfigDir)
}

func showConfig(ctx context.Context, app *App) error {
	s, err := app.session(ctx)
	if err != nil {
		return err
	}

	w := app.stdout
	keyStyle := CmdStyle
	valueStyle := SuccessStyle

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if s.cfgPath != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), s.cfgPath)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("assets.host"), valueStyle.Render(s.cfg.Assets.Host))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("assets.workers"), valueStyle.Render(strconv.Itoa(s.cfg.Assets.Workers)))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("http.user_agent"), valueStyle.Render(s.cfg.HTTP.UserAgent))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("install.platform"), valueStyle.Render(s.cfg.Install.Platform))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("log.level"), valueStyle.Render(s.cfg.Log.Level))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("ui.verbose"), valueStyle.Render(strconv.FormatBool(s.cfg.UI.Verbose)))

	return nil
}

func initConfig(app *App) error {
	path, err := app.configPath()
	if err != nil {
		return app.fail(ExitUsage, err)
	}

	written, err := config.CreateDefaultConfigAt(path)
	if err != nil {
		return app.fail(ExitUsage, err)
	}

	if !written {
		fmt.Fprintf(app.stdout, "%s %s\n", SubtitleStyle.Render("Configuration already exists at"), path)
		return nil
	}
	fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("✓ Created configuration at"), path)
	return nil
}

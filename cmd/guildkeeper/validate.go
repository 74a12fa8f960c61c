package main

import (
	"fmt"

	"guildkeeper/internal/config"
	"guildkeeper/internal/settings"

	"github.com/spf13/cobra"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config and settings files and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			s, err := settings.Load(cfg.SettingsPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "settings:  %s (OK)\n", cfg.SettingsPath)
			fmt.Fprintf(out, "  keywords:  %d\n", len(s.ChannelKeywords))
			fmt.Fprintf(out, "  commands:  %d\n", len(s.CustomCommands))
			fmt.Fprintf(out, "  welcome:   %t\n", s.WelcomeMessage != "")
			fmt.Fprintf(out, "  auto role: %t\n", s.AutoRoleID != "")
			fmt.Fprintf(out, "generator: %s", cfg.Generator.Provider)
			if cfg.Generator.APIKey == "" {
				fmt.Fprint(out, " (NO API KEY)")
			}
			fmt.Fprintln(out)
			if err := cfg.RequireDiscord(); err != nil {
				fmt.Fprintf(out, "discord:   %v\n", err)
			}
			return nil
		},
	}
}

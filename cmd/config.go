package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/surge-downloader/ytdlp-remote/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change saved settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Show the file contents, not env or flag overrides.
		saved, err := config.LoadSettings()
		if err != nil {
			return err
		}
		meta := config.GetSettingsMetadata()
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for _, cat := range config.CategoryOrder() {
			fmt.Fprintf(tw, "[%s]\n", cat)
			for _, m := range meta[cat] {
				v, _ := saved.Get(m.Key)
				fmt.Fprintf(tw, "  %s\t%s\t%s\n", m.Key, v, m.Description)
			}
		}
		return tw.Flush()
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the effective value of a setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := settings.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a saved setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		saved, err := config.LoadSettings()
		if err != nil {
			return err
		}
		if err := saved.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := config.SaveSettings(saved); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		v, _ := saved.Get(args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], v)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.GetSettingsPath())
	},
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/surge-downloader/ytdlp-remote/internal/config"
	"github.com/surge-downloader/ytdlp-remote/internal/state"
	"github.com/surge-downloader/ytdlp-remote/internal/utils"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently dispatched downloads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		failedOnly, _ := cmd.Flags().GetBool("failed")
		prune, _ := cmd.Flags().GetBool("prune")

		hist, err := state.Open(state.DefaultPath(config.GetStateDir()))
		if err != nil {
			return err
		}
		defer func() { _ = hist.Close() }()

		ctx := context.Background()
		if prune {
			days := settings.General.HistoryRetentionDays
			if days <= 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "History retention is disabled; nothing pruned.")
				return nil
			}
			n, err := hist.Prune(ctx, time.Now().AddDate(0, 0, -days))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d entries older than %d days.\n", n, days)
			return nil
		}

		status := ""
		if failedOnly {
			status = state.StatusFailed
		}
		entries, err := hist.List(ctx, status, limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No downloads dispatched yet.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tWHEN\tSTATUS\tURL\tDETAIL")
		for _, e := range entries {
			detail := e.Message
			if e.Error != "" {
				detail = utils.Elide(e.Error, 50)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				shortID(e.TaskID),
				e.CreatedAt.Local().Format("2006-01-02 15:04"),
				e.Status,
				utils.DisplayURL(e.URL, 50),
				detail,
			)
		}
		return tw.Flush()
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of entries to show (0 for all)")
	historyCmd.Flags().Bool("failed", false, "Only show dispatches the WebUI did not accept")
	historyCmd.Flags().Bool("prune", false, "Delete entries older than the configured retention")
	rootCmd.AddCommand(historyCmd)
}

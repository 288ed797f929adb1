package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/surge-downloader/ytdlp-remote/internal/dispatch"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a queued or running task on the WebUI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		d := dispatch.New(svc, dispatch.WithLogger(logger.Named("dispatch")))

		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout())
		defer cancel()
		ok, err := d.Cancel(ctx, args[0])
		if err != nil {
			return fmt.Errorf("cancel failed: %s", describeError(err))
		}
		if !ok {
			return fmt.Errorf("WebUI did not cancel task %s", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cancelled: %s\n", args[0])
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove finished tasks from the WebUI queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		d := dispatch.New(svc, dispatch.WithLogger(logger.Named("dispatch")))

		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout())
		defer cancel()
		if err := d.ClearCompleted(ctx); err != nil {
			return fmt.Errorf("clear failed: %s", describeError(err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Cleared completed tasks.")
		return nil
	},
}

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "List the download locations configured on the WebUI",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout())
		defer cancel()
		locations, err := svc.Locations(ctx)
		if err != nil {
			return fmt.Errorf("failed to list locations: %s", describeError(err))
		}
		if len(locations) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No locations configured; downloads use the WebUI default.")
			return nil
		}
		for _, l := range locations {
			fmt.Fprintln(cmd.OutOrStdout(), l)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(locationsCmd)
}

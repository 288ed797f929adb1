package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/surge-downloader/ytdlp-remote/internal/poller"
	"github.com/surge-downloader/ytdlp-remote/internal/types"
	"github.com/surge-downloader/ytdlp-remote/internal/utils"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Poll the WebUI queue once and print the readings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		p := poller.New(svc, poller.WithLogger(logger.Named("poller")))
		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout())
		defer cancel()
		pollErr := p.Poll(ctx)

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(p.Readings()); err != nil {
				return err
			}
		} else {
			printReadings(cmd.OutOrStdout(), svc.Endpoint().String(), p.Readings())
		}
		if pollErr != nil {
			return fmt.Errorf("queue poll failed: %s", describeError(pollErr))
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "Print readings as JSON")
	rootCmd.AddCommand(statusCmd)
}

// printReadings writes a short report. Colors are used only when w is a
// terminal that supports them.
func printReadings(w io.Writer, endpoint string, readings []types.Reading) {
	out := termenv.NewOutput(w)
	green := out.Color("2")
	yellow := out.Color("3")

	fmt.Fprintln(w, out.String("WebUI "+endpoint).Bold())
	for _, r := range readings {
		state := out.String(r.State.String())
		switch r.State {
		case types.ReadingFresh:
			state = state.Foreground(green)
		case types.ReadingStale:
			state = state.Foreground(yellow)
		default:
			state = state.Faint()
		}

		fmt.Fprintf(w, "  %-10s %3d  %s\n", r.Name, r.Value, state)
		for _, line := range readingLines(r) {
			fmt.Fprintf(w, "      %s\n", line)
		}
	}
	if len(readings) > 0 && !readings[0].UpdatedAt.IsZero() {
		fmt.Fprintln(w, out.String("updated "+readings[0].UpdatedAt.Format(time.RFC3339)).Faint())
	}
}

// readingLines lists the titles a reading carries, at most five.
func readingLines(r types.Reading) []string {
	const maxLines = 5
	var titles []string
	switch r.Name {
	case poller.ReadingActive:
		if r.Value == 1 {
			titles = append(titles, itemLine(types.Item(r.Detail)))
		}
	default:
		for _, it := range poller.QueueItems(r) {
			titles = append(titles, itemLine(it))
		}
	}
	if len(titles) > maxLines {
		more := len(titles) - maxLines
		titles = append(titles[:maxLines], fmt.Sprintf("... and %d more", more))
	}
	return titles
}

func itemLine(it types.Item) string {
	title := it.Title()
	if strings.Contains(title, "://") {
		title = utils.DisplayURL(title, 60)
	} else {
		title = utils.Elide(title, 60)
	}
	if title == "" {
		title = "(untitled)"
	}
	if id := it.ID(); id != "" && id != it.Title() {
		return fmt.Sprintf("%s [%s]", title, shortID(id))
	}
	return title
}

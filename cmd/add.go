package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/surge-downloader/ytdlp-remote/internal/config"
	"github.com/surge-downloader/ytdlp-remote/internal/core"
	"github.com/surge-downloader/ytdlp-remote/internal/dispatch"
	"github.com/surge-downloader/ytdlp-remote/internal/state"
	"github.com/surge-downloader/ytdlp-remote/internal/utils"
)

// readClipboard is swapped in tests.
var readClipboard = clipboard.ReadAll

var addCmd = &cobra.Command{
	Use:   "add [url]...",
	Short: "Queue one or more URLs on the WebUI",
	Long: `Queue one or more URLs on the WebUI. When a serve daemon is running locally
the request is handed to it; otherwise it is sent directly and the command
waits for the WebUI to acknowledge it.`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringP("location", "l", "", "Named download location on the WebUI")
	addCmd.Flags().BoolP("audio-only", "a", false, "Download audio only")
	addCmd.Flags().BoolP("force", "f", false, "Download again even if the WebUI already has it")
	addCmd.Flags().StringP("batch", "b", "", "File containing URLs to queue (one per line)")
	addCmd.Flags().Bool("clipboard", false, "Queue the URL currently on the clipboard")
	addCmd.Flags().Bool("direct", false, "Talk to the WebUI even if a daemon is running")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	urls, err := collectURLs(cmd, args)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URL given: pass one as an argument, use --batch, or --clipboard")
	}

	paramsFor := addParams(cmd)
	direct, _ := cmd.Flags().GetBool("direct")
	if addr := readActiveAddr(); addr != "" && !direct {
		return addViaDaemon(cmd, addr, urls, paramsFor)
	}
	return addDirect(cmd, urls, paramsFor)
}

func collectURLs(cmd *cobra.Command, args []string) ([]string, error) {
	var urls []string
	urls = append(urls, args...)

	if batchFile, _ := cmd.Flags().GetString("batch"); batchFile != "" {
		fileURLs, err := readURLsFromFile(batchFile)
		if err != nil {
			return nil, err
		}
		urls = append(urls, fileURLs...)
	}

	if useClipboard, _ := cmd.Flags().GetBool("clipboard"); useClipboard {
		text, err := readClipboard()
		if err != nil {
			return nil, fmt.Errorf("failed to read clipboard: %w", err)
		}
		if text = strings.TrimSpace(text); text != "" {
			urls = append(urls, text)
		}
	}
	return urls, nil
}

// addParams returns a builder for the raw command parameters. Flags win over
// the configured defaults.
func addParams(cmd *cobra.Command) func(url string) map[string]any {
	location := settings.General.DefaultLocation
	if cmd.Flags().Changed("location") {
		location, _ = cmd.Flags().GetString("location")
	}
	audioOnly := settings.General.DefaultAudioOnly
	if cmd.Flags().Changed("audio-only") {
		audioOnly, _ = cmd.Flags().GetBool("audio-only")
	}
	force, _ := cmd.Flags().GetBool("force")

	return func(url string) map[string]any {
		params := map[string]any{
			dispatch.ParamURL:       url,
			dispatch.ParamAudioOnly: audioOnly,
			dispatch.ParamForce:     force,
		}
		if location != "" {
			params[dispatch.ParamLocation] = location
		}
		return params
	}
}

func addViaDaemon(cmd *cobra.Command, addr string, urls []string, paramsFor func(string) map[string]any) error {
	out := cmd.OutOrStdout()
	failed := 0
	for _, u := range urls {
		resp, err := sendToDaemon(addr, paramsFor(u))
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Failed: %s: %v\n", u, err)
			failed++
			continue
		}
		fmt.Fprintf(out, "Sent to daemon: %s [%s]\n", utils.DisplayURL(u, 60), shortID(resp.TaskID))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d downloads were not accepted", failed, len(urls))
	}
	return nil
}

func addDirect(cmd *cobra.Command, urls []string, paramsFor func(string) map[string]any) error {
	svc, err := newService()
	if err != nil {
		return err
	}

	opts := []dispatch.Option{dispatch.WithLogger(logger.Named("dispatch"))}
	if hist, err := state.Open(state.DefaultPath(config.GetStateDir())); err != nil {
		logger.Warn("dispatch history unavailable", zap.Error(err))
	} else {
		defer func() { _ = hist.Close() }()
		opts = append(opts, dispatch.WithRecorder(hist))
	}
	d := dispatch.New(svc, opts...)

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	failed := 0

	var tasks []*dispatch.Task
	for _, u := range urls {
		task, err := d.Dispatch(cmd.Context(), paramsFor(u))
		if err != nil {
			fmt.Fprintf(errOut, "Invalid: %q: %v\n", u, err)
			failed++
			continue
		}
		tasks = append(tasks, task)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout()*2)
	defer cancel()
	for _, task := range tasks {
		outcome, err := task.Wait(ctx)
		if err != nil {
			fmt.Fprintf(errOut, "Timed out: %s\n", task.Request.URL)
			failed++
			continue
		}
		if !outcome.Succeeded() {
			fmt.Fprintf(errOut, "Failed: %s: %s\n", task.Request.URL, describeError(outcome.Err))
			failed++
			continue
		}
		msg := outcome.Ack.Message
		if msg == "" {
			msg = "accepted"
		}
		fmt.Fprintf(out, "Queued: %s (%s)\n", utils.DisplayURL(task.Request.URL, 60), msg)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d downloads were not queued", failed, len(urls))
	}
	return nil
}

// describeError turns transport errors into a short user-facing line.
func describeError(err error) string {
	switch {
	case core.IsUnreachable(err):
		return "WebUI unreachable: " + err.Error()
	case core.IsRejected(err):
		return "WebUI rejected the request: " + err.Error()
	case core.IsDecode(err):
		return "unexpected reply from WebUI: " + err.Error()
	}
	return err.Error()
}

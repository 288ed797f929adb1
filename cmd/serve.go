package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/surge-downloader/ytdlp-remote/internal/config"
	"github.com/surge-downloader/ytdlp-remote/internal/dispatch"
	"github.com/surge-downloader/ytdlp-remote/internal/events"
	"github.com/surge-downloader/ytdlp-remote/internal/poller"
	"github.com/surge-downloader/ytdlp-remote/internal/state"
	"github.com/surge-downloader/ytdlp-remote/internal/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the WebUI queue and accept download commands over local HTTP",
	Long: `Run in the foreground as a daemon. The queue is polled on a fixed interval
and the derived readings are served on GET /readings. Download commands are
accepted on POST /download and forwarded to the WebUI.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.EnsureDirs(); err != nil {
			return err
		}

		isMaster, err := AcquireLock()
		if err != nil {
			return err
		}
		if !isMaster {
			return errors.New("a serve daemon is already running")
		}
		defer func() {
			if err := ReleaseLock(); err != nil {
				logger.Warn("failed to release lock", zap.Error(err))
			}
		}()

		listen, _ := cmd.Flags().GetString("listen")
		if !cmd.Flags().Changed("listen") {
			listen = settings.Polling.ListenAddr
		}
		interval, _ := cmd.Flags().GetDuration("interval")
		if !cmd.Flags().Changed("interval") {
			interval = settings.Polling.Interval
		}
		quiet, _ := cmd.Flags().GetBool("quiet")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		if quiet {
			out = io.Discard
		}
		return runDaemon(ctx, listen, interval, out)
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "Local address to listen on (default from settings)")
	serveCmd.Flags().Duration("interval", poller.DefaultInterval, "Queue poll interval")
	serveCmd.Flags().BoolP("quiet", "q", false, "Do not print events to stdout")
	rootCmd.AddCommand(serveCmd)
}

// runDaemon wires poller, dispatcher and HTTP surface together and blocks
// until ctx is done.
func runDaemon(ctx context.Context, listen string, interval time.Duration, out io.Writer) error {
	svc, err := newService()
	if err != nil {
		return err
	}

	bus := events.NewBus()
	dispatchOpts := []dispatch.Option{
		dispatch.WithLogger(logger.Named("dispatch")),
		dispatch.WithBus(bus),
	}
	hist, err := state.Open(state.DefaultPath(config.GetStateDir()))
	if err != nil {
		logger.Warn("dispatch history unavailable", zap.Error(err))
	} else {
		defer func() { _ = hist.Close() }()
		dispatchOpts = append(dispatchOpts, dispatch.WithRecorder(hist))
		if days := settings.General.HistoryRetentionDays; days > 0 {
			if n, err := hist.Prune(ctx, time.Now().AddDate(0, 0, -days)); err != nil {
				logger.Warn("history prune failed", zap.Error(err))
			} else if n > 0 {
				logger.Info("pruned dispatch history", zap.Int64("removed", n))
			}
		}
	}
	d := dispatch.New(svc, dispatchOpts...)

	p := poller.New(svc,
		poller.WithInterval(interval),
		poller.WithLogger(logger.Named("poller")),
		poller.WithBus(bus),
	)

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", listen, err)
	}
	addr := ln.Addr().String()

	savePID()
	defer removePID()
	saveActiveAddr(addr)
	defer removeActiveAddr()

	dm := &daemon{dispatcher: d, poller: p, bus: bus, endpoint: svc.Endpoint().String(), log: logger.Named("http")}
	srv := &http.Server{
		Handler:           dm.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		// Requests end with the daemon; Shutdown alone never stops /events streams.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	consumerDone := startHeadlessConsumer(ctx, bus, out)

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		p.Run(ctx)
	}()

	logger.Info("daemon started", zap.String("listen", addr), zap.String("endpoint", svc.Endpoint().String()), zap.Duration("interval", interval))
	fmt.Fprintf(out, "ytdlp-remote %s serving on http://%s (WebUI %s, polling every %s)\n", Version, addr, svc.Endpoint(), interval)
	fmt.Fprintln(out, "Press Ctrl+C to exit.")

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = err
	}

	fmt.Fprintln(out, "\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), requestTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	drainCtx, drainCancel := context.WithTimeout(context.Background(), requestTimeout())
	defer drainCancel()
	if err := d.Drain(drainCtx); err != nil {
		logger.Warn("in-flight dispatches abandoned", zap.Error(err))
	}
	<-pollerDone
	<-consumerDone
	logger.Info("daemon stopped")
	return runErr
}

// startHeadlessConsumer prints bus events as one line each until ctx is done.
func startHeadlessConsumer(ctx context.Context, bus *events.Bus, out io.Writer) <-chan struct{} {
	ch, unsubscribe := bus.Subscribe(64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if line := describeEvent(msg); line != "" {
					fmt.Fprintln(out, line)
				}
			}
		}
	}()
	return done
}

func describeEvent(msg any) string {
	switch m := msg.(type) {
	case events.ReadingsUpdatedMsg:
		var active, pending, completed int
		for _, r := range m.Readings {
			switch r.Name {
			case poller.ReadingActive:
				active = r.Value
			case poller.ReadingPending:
				pending = r.Value
			case poller.ReadingCompleted:
				completed = r.Value
			}
		}
		return fmt.Sprintf("[%s] active=%d pending=%d completed=%d", m.At.Format("15:04:05"), active, pending, completed)
	case events.PollFailedMsg:
		return fmt.Sprintf("[%s] poll failed (%d in a row): %s", m.At.Format("15:04:05"), m.Failures, describeError(m.Err))
	case events.DownloadQueuedMsg:
		return fmt.Sprintf("Queued: %s [%s]", utils.DisplayURL(m.URL, 60), shortID(m.TaskID))
	case events.DownloadErrorMsg:
		return fmt.Sprintf("Error: %s [%s]: %s", utils.DisplayURL(m.URL, 60), shortID(m.TaskID), describeError(m.Err))
	case events.TaskCancelledMsg:
		if m.Success {
			return fmt.Sprintf("Cancelled: %s", m.ID)
		}
		return fmt.Sprintf("Cancel refused: %s", m.ID)
	}
	return ""
}

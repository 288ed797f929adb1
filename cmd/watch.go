package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/surge-downloader/ytdlp-remote/internal/config"
	"github.com/surge-downloader/ytdlp-remote/internal/dispatch"
	"github.com/surge-downloader/ytdlp-remote/internal/events"
	"github.com/surge-downloader/ytdlp-remote/internal/poller"
	"github.com/surge-downloader/ytdlp-remote/internal/state"
	"github.com/surge-downloader/ytdlp-remote/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open a live dashboard of the WebUI queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		if !cmd.Flags().Changed("interval") {
			interval = settings.Polling.Interval
		}
		return runWatch(cmd.Context(), interval)
	},
}

func init() {
	watchCmd.Flags().Duration("interval", poller.DefaultInterval, "Queue poll interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(parent context.Context, interval time.Duration) error {
	svc, err := newService()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	bus := events.NewBus()
	dispatchOpts := []dispatch.Option{
		dispatch.WithLogger(logger.Named("dispatch")),
		dispatch.WithBus(bus),
	}
	if hist, err := state.Open(state.DefaultPath(config.GetStateDir())); err != nil {
		logger.Warn("dispatch history unavailable", zap.Error(err))
	} else {
		defer func() { _ = hist.Close() }()
		dispatchOpts = append(dispatchOpts, dispatch.WithRecorder(hist))
	}
	d := dispatch.New(svc, dispatchOpts...)

	p := poller.New(svc,
		poller.WithInterval(interval),
		poller.WithLogger(logger.Named("poller")),
		poller.WithBus(bus),
	)

	// Subscribe before the first poll so the initial readings are not missed.
	ch, unsubscribe := bus.Subscribe(64)
	defer unsubscribe()

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		p.Run(ctx)
	}()

	m := tui.NewRootModel(p, d, ch, svc.Endpoint().String())
	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	_, runErr := prog.Run()
	cancel()
	<-pollerDone

	drainCtx, drainCancel := context.WithTimeout(context.Background(), requestTimeout())
	defer drainCancel()
	if err := d.Drain(drainCtx); err != nil {
		logger.Warn("in-flight dispatches abandoned", zap.Error(err))
	}

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", runErr)
	}
	return nil
}

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tracewire/bt2-go/internal/config"
	"github.com/tracewire/bt2-go/pkg/bt2"
)

type liveOptions struct {
	action       string
	pollInterval time.Duration
	paramsJSON   string
	maxEvents    int
}

func newLiveCmd() *cobra.Command {
	var o liveOptions
	cmd := &cobra.Command{
		Use:   "live [flags] URL",
		Short: "Follow an LTTng live session",
		Long: `Connects to an LTTng relay daemon and prints the events of a live
session until the session ends or the command is interrupted.

URL has the form net://HOST[:PORT]/host/TARGET_HOST/SESSION.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := o.params(cmd, args)
			if err != nil {
				return err
			}
			interval := globalCfg.Live.PollInterval
			if cmd.Flags().Changed("poll-interval") {
				interval = o.pollInterval
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runLive(ctx, cmd, params, interval, o.maxEvents)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.action, "session-not-found-action", "", "continue, fail or end (default from config)")
	f.DurationVar(&o.pollInterval, "poll-interval", 0, "wait between updates when no data is available (default from config)")
	f.StringVar(&o.paramsJSON, "params-json", "", "source.ctf.lttng-live parameters as a JSON object")
	f.IntVar(&o.maxEvents, "max-events", 0, "stop after this many events (0: no limit)")
	return cmd
}

func (o liveOptions) params(cmd *cobra.Command, args []string) (bt2.LttngLiveParams, error) {
	var p bt2.LttngLiveParams
	if len(args) == 1 {
		p.URL = args[0]
	}
	action := globalCfg.Live.SessionNotFoundAction
	if cmd.Flags().Changed("session-not-found-action") {
		action = o.action
	}
	if action != "" {
		a, err := bt2.ParseSessionNotFoundAction(action)
		if err != nil {
			return p, err
		}
		p.SessionNotFoundAction = &a
	}
	p, err := config.ParseLttngLiveParams(o.paramsJSON, p)
	if err != nil {
		return p, err
	}
	if p.URL == "" {
		return p, fmt.Errorf("live: a URL is required")
	}
	return p, nil
}

func runLive(ctx context.Context, cmd *cobra.Command, params bt2.LttngLiveParams, interval time.Duration, maxEvents int) error {
	lib, lvl, err := open()
	if err != nil {
		return err
	}
	defer closeLibrary(cmd, lib)

	s, err := lib.NewLiveStream(lvl, params)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	n := 0
	announced := false
	for {
		st, err := s.Update()
		if err != nil {
			return err
		}
		if s.HasMetadata() && !announced {
			announced = true
			logger.Info(ctx, "live session metadata received", "url", params.URL)
		}
		for ev := range s.Events() {
			fmt.Fprintln(out, ev)
			n++
			if maxEvents > 0 && n >= maxEvents {
				return nil
			}
		}
		switch st {
		case bt2.RunEnd:
			logger.Info(ctx, "live session ended", "url", params.URL, "events", n)
			return nil
		case bt2.RunTryAgain:
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(interval):
			}
		default:
			if ctx.Err() != nil {
				return nil
			}
		}
	}
}

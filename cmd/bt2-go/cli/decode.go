package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/tracewire/bt2-go/internal/config"
	"github.com/tracewire/bt2-go/pkg/bt2"
)

type decodeOptions struct {
	traceName      string
	clockOffsetS   int64
	clockOffsetNs  int64
	forceUnixEpoch bool
	paramsJSON     string
	limit          int
	summary        bool
}

func newDecodeCmd() *cobra.Command {
	var o decodeOptions
	cmd := &cobra.Command{
		Use:   "decode [flags] TRACE_DIR...",
		Short: "Print the events of CTF traces on disk",
		Long: `Reads the CTF traces found in the given directories through
source.ctf.fs and filter.utils.muxer and prints their events in time order.

--params-json takes source.ctf.fs parameters as a JSON object, for example
'{"inputs": ["/tmp/trace"], "clock-class-offset-s": 3}'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := o.params(cmd, args)
			if err != nil {
				return err
			}
			return runDecode(cmd, params, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.traceName, "trace-name", "", "override the trace name")
	f.Int64Var(&o.clockOffsetS, "clock-offset-s", 0, "add seconds to every clock class offset")
	f.Int64Var(&o.clockOffsetNs, "clock-offset-ns", 0, "add nanoseconds to every clock class offset")
	f.BoolVar(&o.forceUnixEpoch, "force-unix-epoch", false, "force the origin of every clock class to the Unix epoch")
	f.StringVar(&o.paramsJSON, "params-json", "", "source.ctf.fs parameters as a JSON object")
	f.IntVar(&o.limit, "limit", 0, "stop after this many events (0: no limit)")
	f.BoolVar(&o.summary, "summary", false, "print the trace and stream properties after the events")
	return cmd
}

func (o decodeOptions) params(cmd *cobra.Command, args []string) (bt2.CtfFsParams, error) {
	p := bt2.CtfFsParams{Inputs: args}
	f := cmd.Flags()
	if f.Changed("trace-name") {
		p.TraceName = &o.traceName
	}
	if f.Changed("clock-offset-s") {
		p.ClockClassOffsetS = &o.clockOffsetS
	}
	if f.Changed("clock-offset-ns") {
		p.ClockClassOffsetNs = &o.clockOffsetNs
	}
	if f.Changed("force-unix-epoch") {
		p.ForceClockClassOriginUnixEpoch = &o.forceUnixEpoch
	}
	p, err := config.ParseCtfFsParams(o.paramsJSON, p)
	if err != nil {
		return p, err
	}
	if len(p.Inputs) == 0 {
		return p, bt2.ErrCtfSourceRequiresInputs
	}
	return p, nil
}

func runDecode(cmd *cobra.Command, params bt2.CtfFsParams, o decodeOptions) error {
	lib, lvl, err := open()
	if err != nil {
		return err
	}
	defer closeLibrary(cmd, lib)

	it, err := lib.NewTraceIterator(lvl, params)
	if err != nil {
		return err
	}
	defer it.Close()

	out := cmd.OutOrStdout()
	n := 0
	for ev, err := range it.All() {
		if err != nil {
			return err
		}
		fmt.Fprintln(out, ev)
		n++
		if o.limit > 0 && n >= o.limit {
			break
		}
	}
	if o.summary {
		printSummary(out, it.TraceProperties(), it.StreamProperties())
	}
	logger.Debug(cmd.Context(), "decoded trace", "events", n)
	return nil
}

func printSummary(w io.Writer, trace bt2.TraceProperties, streams []bt2.StreamProperties) {
	fmt.Fprintf(w, "trace: %q\n", trace.Name)
	if trace.UUID.Valid {
		fmt.Fprintf(w, "  uuid: %s\n", trace.UUID.UUID)
	}
	for _, k := range slices.Sorted(maps.Keys(trace.Env)) {
		fmt.Fprintf(w, "  env %s = %v\n", k, trace.Env[k])
	}
	for _, s := range streams {
		fmt.Fprintf(w, "stream %d", s.ID)
		if s.Name != "" {
			fmt.Fprintf(w, " %q", s.Name)
		}
		if c := s.Clock; c != nil {
			fmt.Fprintf(w, " clock=%s freq=%d offset=%ds+%dcy", c.Name, c.Frequency, c.OffsetSeconds, c.OffsetCycles)
			if c.UnixEpochOrigin {
				fmt.Fprint(w, " unix-epoch")
			}
		}
		fmt.Fprintln(w)
	}
}

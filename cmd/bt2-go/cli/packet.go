package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracewire/bt2-go/pkg/bt2/ctf"
)

type packetOptions struct {
	metadata       string
	maxRequestSize uint64
	clockOffsetS   int64
	clockOffsetNs  int64
	forceUnixEpoch bool
}

func newPacketCmd() *cobra.Command {
	var o packetOptions
	cmd := &cobra.Command{
		Use:   "packet --metadata PATH STREAM_FILE...",
		Short: "Print the packet properties of CTF data stream files",
		Long: `Decodes the header and context of every packet in the given CTF data
stream files using the trace's metadata file, and prints one line per
packet. Fields absent from a packet print as NA.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPacket(cmd, args, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.metadata, "metadata", "", "path to the trace's metadata file (required)")
	f.Uint64Var(&o.maxRequestSize, "max-request-size", 0, "bytes requested from the medium at once (default from config)")
	f.Int64Var(&o.clockOffsetS, "clock-offset-s", 0, "add seconds to every clock class offset")
	f.Int64Var(&o.clockOffsetNs, "clock-offset-ns", 0, "add nanoseconds to every clock class offset")
	f.BoolVar(&o.forceUnixEpoch, "force-unix-epoch", false, "force the origin of every clock class to the Unix epoch")
	_ = cmd.MarkFlagRequired("metadata")
	return cmd
}

func runPacket(cmd *cobra.Command, files []string, o packetOptions) error {
	lib, lvl, err := open()
	if err != nil {
		return err
	}
	defer closeLibrary(cmd, lib)

	cfg := ctf.DecoderConfig{
		LogLevel:                       lvl,
		ClockClassOffsetS:              o.clockOffsetS,
		ClockClassOffsetNs:             o.clockOffsetNs,
		ForceClockClassOriginUnixEpoch: o.forceUnixEpoch,
		MaxRequestSize:                 globalCfg.Decoder.MaxRequestSize,
	}
	if cmd.Flags().Changed("max-request-size") {
		cfg.MaxRequestSize = o.maxRequestSize
	}
	dec, err := ctf.NewPacketDecoder(lib, o.metadata, cfg)
	if err != nil {
		return err
	}
	defer dec.Close()

	out := cmd.OutOrStdout()
	for _, path := range files {
		data, err := os.ReadFile(path) // #nosec G304 -- user-selected stream file
		if err != nil {
			return err
		}
		n, err := printPackets(out, dec, path, data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		logger.Debug(cmd.Context(), "decoded stream file", "path", path, "packets", n)
	}
	return nil
}

// printPackets walks the packets of one stream file. It stops at the
// first packet whose total size is unknown or zero.
func printPackets(w io.Writer, dec *ctf.PacketDecoder, path string, data []byte) (int, error) {
	var off uint64
	n := 0
	for off < uint64(len(data)) {
		props, ok, err := dec.PacketProperties(data[off:])
		if err != nil {
			return n, err
		}
		if !ok {
			break
		}
		fmt.Fprintf(w, "%s@%d: %s\n", path, off, props)
		n++
		if props.TotalSizeBits == nil || *props.TotalSizeBits < 8 {
			break
		}
		off += *props.TotalSizeBits / 8
	}
	return n, nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tracewire/bt2-go/pkg/bt2"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the wrapper and libbabeltrace2 versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "bt2-go version: %s\n", bt2.WrapperVersion())
			fmt.Fprintf(out, "libbabeltrace2: %s (%s)\n", bt2.UpstreamVersion(), bt2.UpstreamBuild())
			return nil
		},
	}
}

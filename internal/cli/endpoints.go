package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/dtmirror/internal/mirror"
)

// NewEndpointsCommand creates the endpoints command.
func NewEndpointsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "List live endpoints and how the mirror table treats them",
		Long: `List every endpoint in the live API catalog with its mirror table entry.

Endpoints missing from the mirror table are listed as "missing" and make the
command fail, the same way a mirror run would.`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEndpoints(rootOpts, cmd)
		},
	}

	return cmd
}

func runEndpoints(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	sess, err := newSession(opts, cmd)
	if err != nil {
		return formatter.Fail("failed to configure mirror", err)
	}

	statuses, err := sess.mirror.Survey(cmd.Context())
	if statuses == nil && err != nil {
		return formatter.Fail("endpoint discovery failed", err)
	}

	if formatter.Format == "json" {
		if err != nil {
			return formatter.Fail("mirror table incomplete", err)
		}
		return formatter.Success(statuses)
	}

	writeStatuses(formatter, statuses)
	if err != nil {
		return formatter.Fail("mirror table incomplete", err)
	}
	return nil
}

func writeStatuses(formatter *OutputFormatter, statuses []mirror.Status) {
	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	mirrored := 0
	for _, s := range statuses {
		switch {
		case !s.Configured:
			fmt.Fprintf(tw, "missing\t%s\t\n", s.Endpoint)
		case s.Mirror:
			mirrored++
			fmt.Fprintf(tw, "mirror\t%s\t%s\n", s.Endpoint, s.URICol)
		default:
			fmt.Fprintf(tw, "skip\t%s\t%s\n", s.Endpoint, s.Reason)
		}
	}
	tw.Flush()
	fmt.Fprintf(formatter.Writer, "%d of %d endpoints mirrored\n", mirrored, len(statuses))
}

package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/dtmirror/internal/config"
	"github.com/roach88/dtmirror/internal/mirror"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose      bool
	Format       string // "text" | "json" | "sql" | "yaml"
	EnvFile      string
	MirrorConfig string
	PageLimit    int
	SampleLimit  int

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to mirror.UUIDv7Generator.
	RunIDs mirror.RunIDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "sql", "yaml"}

// NewRootCommand creates the root command for the dtmirror CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	mirrorOpts := &MirrorOptions{RootOptions: opts}

	cmd := &cobra.Command{
		Use:   "dtmirror <database.db>",
		Short: "Mirror the IETF Datatracker into SQLite",
		Long: `Mirror the IETF Datatracker API into a single SQLite database.

The live endpoint catalog is checked against the mirror table, each mirrored
endpoint is introspected, relations are discovered from sample records, and
every record is imported into typed tables with foreign keys and junction
tables.

Environment:
` + config.Usage() + `
Example:
  dtmirror ietf.db
  dtmirror --overwrite --sample-limit 1000 ietf.db
  IETFDATA_DT_URL=http://localhost:8000/ dtmirror dev.db`,
		Args:          usageArgs(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMirror(mirrorOpts, args[0], cmd)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|sql|yaml)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.PersistentFlags().StringVar(&opts.MirrorConfig, "mirror-config", "", "CUE mirror table replacing the built-in one")
	cmd.PersistentFlags().IntVar(&opts.PageLimit, "page-limit", 0, "records requested per page (default from IETFDATA_PAGE_LIMIT)")
	cmd.PersistentFlags().IntVar(&opts.SampleLimit, "sample-limit", 0, "records scanned per endpoint to resolve relations, 0 scans until resolved")

	cmd.Flags().BoolVar(&mirrorOpts.Overwrite, "overwrite", false, "replace an existing database file")

	// Add subcommands
	cmd.AddCommand(NewEndpointsCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))

	return cmd
}

// usageArgs marks argument count errors as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return WrapExitError(ExitCommandError, "invalid arguments", err)
		}
		return nil
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

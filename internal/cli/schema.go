package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Infer the mirror schema without writing a database",
		Long: `Run catalog discovery, introspection and relation discovery, then print
the result without touching any database.

Formats:
  sql   the DDL a mirror run would execute (default for text)
  yaml  the inferred endpoint registry
  json  the inferred endpoint registry

Example:
  dtmirror schema > ietf.sql
  dtmirror schema --format yaml --sample-limit 200`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(rootOpts, cmd)
		},
	}

	return cmd
}

func runSchema(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	sess, err := newSession(opts, cmd)
	if err != nil {
		return formatter.Fail("failed to configure mirror", err)
	}

	plan, err := sess.mirror.Plan(cmd.Context())
	if err != nil {
		return formatter.Fail("schema inference failed", err)
	}
	formatter.VerboseLog("%d endpoints, %d tables", plan.Registry.Len(), len(plan.DDL.Tables))

	switch opts.Format {
	case "yaml":
		if err := plan.Registry.WriteYAML(formatter.Writer); err != nil {
			return WrapExitError(ExitFailure, "failed to write registry", err)
		}
		return nil
	case "json":
		return formatter.Success(plan.Registry.Describe())
	}

	fmt.Fprint(formatter.Writer, plan.DDL.SQL())
	return nil
}

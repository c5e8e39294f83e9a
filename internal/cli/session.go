package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/dtmirror/internal/config"
	"github.com/roach88/dtmirror/internal/datatracker"
	"github.com/roach88/dtmirror/internal/mirror"
)

// session is everything a command needs to talk to the API.
type session struct {
	settings *config.Settings
	table    *config.MirrorTable
	client   *datatracker.Client
	mirror   *mirror.Mirror
	logger   *slog.Logger
}

// newLogger configures logging based on the verbose flag.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	return slog.New(handler)
}

// newSession reads settings from the environment, applies flag overrides,
// loads the mirror table and builds the API client.
func newSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	slog.SetDefault(logger)

	settings, err := config.LoadSettings(opts.EnvFile)
	if err != nil {
		return nil, err
	}

	// Flags override the environment.
	if opts.PageLimit != 0 {
		settings.PageLimit = opts.PageLimit
	}
	if opts.SampleLimit != 0 || flagChanged(cmd, "sample-limit") {
		settings.SampleLimit = opts.SampleLimit
	}
	if opts.MirrorConfig != "" {
		settings.MirrorConfig = opts.MirrorConfig
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	table, err := config.LoadMirrorTable(settings.MirrorConfig)
	if err != nil {
		return nil, err
	}
	logger.Debug("mirror table loaded", "source", table.Source, "entries", table.Len())

	clientOpts := []datatracker.Option{datatracker.WithLogger(logger)}
	if settings.Authorization != "" {
		clientOpts = append(clientOpts, datatracker.WithAuthorization(settings.Authorization))
	}
	client, err := datatracker.New(settings.BaseURL, clientOpts...)
	if err != nil {
		return nil, err
	}

	m := mirror.New(client, mirror.Options{
		Table:       table,
		Prefix:      settings.TablePrefix,
		PageLimit:   settings.PageLimit,
		SampleLimit: settings.SampleLimit,
		Logger:      logger,
		RunIDs:      opts.RunIDs,
	})

	return &session{settings: settings, table: table, client: client, mirror: m, logger: logger}, nil
}

func flagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flag(name)
	return f != nil && f.Changed
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

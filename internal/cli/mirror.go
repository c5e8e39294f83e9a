package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/dtmirror/internal/mirror"
	"github.com/roach88/dtmirror/internal/relations"
	"github.com/roach88/dtmirror/internal/store"
)

// MirrorOptions holds flags for the mirror run.
type MirrorOptions struct {
	*RootOptions
	Overwrite bool
}

// RunSummary is the JSON payload of a completed run.
type RunSummary struct {
	RunID        string `json:"run_id"`
	Database     string `json:"database"`
	Endpoints    int    `json:"endpoints"`
	Tables       int    `json:"tables"`
	Records      int    `json:"records"`
	JunctionRows int    `json:"junction_rows"`
	Resolved     int    `json:"relations_resolved"`
	External     int    `json:"relations_external"`
	Unused       int    `json:"relations_unused"`
}

func runMirror(opts *MirrorOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(path); err == nil && !opts.Overwrite {
		_ = formatter.Error(ErrCodeUsage, fmt.Sprintf("%s already exists", path), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s already exists, pass --overwrite to replace it", path))
	}

	sess, err := newSession(opts.RootOptions, cmd)
	if err != nil {
		return formatter.Fail("failed to configure mirror", err)
	}

	// Setup signal handling so Ctrl-C aborts the run
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			sess.logger.Info("received signal, aborting", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	db := &lazyDatabase{path: path, overwrite: opts.Overwrite, logger: sess.logger}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			sess.logger.Error("error closing database", "error", closeErr)
		}
	}()

	result, err := sess.mirror.Run(ctx, db)
	if err != nil {
		return formatter.Fail("mirror failed", err)
	}

	formatter.VerboseLog("%d requests, %d served from cache", sess.client.Stats().Requests, sess.client.Stats().CacheHits)
	if formatter.Format == "json" {
		rel := result.Plan.Relations
		return formatter.Success(RunSummary{
			RunID:        result.RunID,
			Database:     path,
			Endpoints:    result.Plan.Registry.Len(),
			Tables:       len(result.Plan.DDL.Tables),
			Records:      result.Import.Records(),
			JunctionRows: result.Import.JunctionRows(),
			Resolved:     rel.Count(relations.OutcomeResolved),
			External:     rel.Count(relations.OutcomeExternal),
			Unused:       rel.Count(relations.OutcomeUnused),
		})
	}
	return formatter.Success(sess.mirror.Summary(result))
}

// lazyDatabase opens the destination on the first DDL statement, so a run
// that fails before materializing leaves an existing file untouched.
type lazyDatabase struct {
	path      string
	overwrite bool
	logger    *slog.Logger
	st        *store.Store
}

var _ mirror.Database = (*lazyDatabase)(nil)

func (d *lazyDatabase) open() error {
	if d.overwrite {
		if err := os.Remove(d.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", d.path, err)
		}
	}
	st, err := store.Open(d.path)
	if err != nil {
		return err
	}
	d.logger.Info("database created", "path", d.path)
	d.st = st
	return nil
}

func (d *lazyDatabase) Materialize(ctx context.Context, ddl []string) error {
	if d.st == nil {
		if err := d.open(); err != nil {
			return err
		}
	}
	return d.st.Materialize(ctx, ddl)
}

func (d *lazyDatabase) Write(ctx context.Context, batch []store.Statement) (int64, error) {
	if d.st == nil {
		return 0, errors.New("database not open")
	}
	return d.st.Write(ctx, batch)
}

func (d *lazyDatabase) Vacuum(ctx context.Context) error {
	if d.st == nil {
		return errors.New("database not open")
	}
	return d.st.Vacuum(ctx)
}

func (d *lazyDatabase) Close() error {
	if d.st == nil {
		return nil
	}
	return d.st.Close()
}

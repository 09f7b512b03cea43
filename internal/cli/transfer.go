package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/boltview/internal/apperr"
	"github.com/roach88/boltview/internal/export"
	"github.com/roach88/boltview/internal/jobs"
	"github.com/roach88/boltview/internal/query"
)

// TransferOptions holds flags for the export and import commands.
type TransferOptions struct {
	*RootOptions
	As     string
	Query  string
	DryRun bool
}

// formatFor returns the file format named by --as, or inferred from the
// file extension.
func formatFor(as, path string) (export.Format, error) {
	if as != "" {
		return export.ParseFormat(as)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return export.FormatJSON, nil
	case ".csv":
		return export.FormatCSV, nil
	case ".sqlite", ".sqlite3", ".db":
		return export.FormatSQLite, nil
	}
	return "", apperr.Newf(apperr.CodeInvalidArgument, "transfer", "cannot infer format of %s; use --as", path)
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TransferOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <db> <file>",
		Short: "Write the entries of a database to a file",
		Long: `Write the entries of a database to a JSON, CSV or SQLite file.

Keys and values are stored base64-encoded in JSON and CSV, so any bytes
survive an export followed by an import. The export reads one consistent
snapshot; a cancelled export removes the partial file.

Example:
  boltview export --path ./app.db users users.json
  boltview export --path ./app.db users users.csv --query prefix:a`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&opts.As, "as", "", "file format (json|csv|sqlite); inferred from the extension by default")
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "export only entries matching this query")

	return cmd
}

func runExport(opts *TransferOptions, cmd *cobra.Command, db, path string) error {
	if err := opts.requireLocal("export"); err != nil {
		return err
	}
	format, err := formatFor(opts.As, path)
	if err != nil {
		return fail("invalid format", err)
	}
	req := jobs.Request{Kind: jobs.KindExport, DB: db, Format: format, Path: path}
	if opts.Query != "" {
		if req.Query, err = query.Parse(opts.Query, nil); err != nil {
			return fail("invalid query", err)
		}
	}

	svc, closeFn, err := opts.openService(false)
	if err != nil {
		return err
	}
	defer closeFn()

	cfg := opts.Config
	sched := jobs.New(svc.Environment(),
		jobs.WithWorkers(cfg.Workers),
		jobs.WithPageSize(cfg.PageSize),
		jobs.WithLogger(opts.Logger),
	)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.CloseTimeout)
		defer cancel()
		if err := sched.Shutdown(ctx); err != nil {
			opts.Logger.Warn("jobs still running at exit", "error", err)
		}
	}()

	f := opts.formatter(cmd)
	u, err := follow(cmd.Context(), sched.Submit(req), cfg.JobTimeout, f)
	if err != nil {
		return fail("export failed", err)
	}
	switch u.Status {
	case jobs.StatusSucceeded:
	case jobs.StatusCancelled:
		return NewExitError(ExitFailure, "export cancelled")
	default:
		return fail("export failed", u.Err)
	}

	n := u.Result.Exported
	return f.Render(map[string]any{"db": db, "path": path, "format": format, "exported": n}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "exported %d records to %s\n", n, path)
		return err
	})
}

// follow reports a job's progress until its final update. The job is
// abandoned when ctx ends or the timeout passes.
func follow(ctx context.Context, h *jobs.Handle, timeout time.Duration, f *OutputFormatter) (jobs.Update, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		select {
		case u, ok := <-h.Updates():
			if !ok {
				final, _ := h.Result()
				return final, nil
			}
			if u.Final {
				return u, nil
			}
			f.VerboseLog("%s: scanned %d entries", h.Kind(), u.Scanned)
		case <-ctx.Done():
			h.Abandon()
			return jobs.Update{}, apperr.JobFailed(h.ID(), ctx.Err())
		}
	}
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TransferOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <db> <file>",
		Short: "Load entries from a file into a database and commit",
		Long: `Load entries from a JSON, CSV or SQLite file written by export, then
commit. The database is created if needed and existing keys are overwritten.
Nothing is written if any record fails.

Example:
  boltview import --path ./app.db users users.json
  boltview import --path ./app.db users users.csv --dry-run`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, cmd, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&opts.As, "as", "", "file format (json|csv|sqlite); inferred from the extension by default")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "read and apply the file, then discard the changes")

	return cmd
}

func runImport(opts *TransferOptions, cmd *cobra.Command, db, path string) error {
	if err := opts.requireLocal("import"); err != nil {
		return err
	}
	format, err := formatFor(opts.As, path)
	if err != nil {
		return fail("invalid format", err)
	}

	svc, closeFn, err := opts.openService(true)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := cmd.Context()
	n, err := svc.Import(ctx, db, export.ReadFile(path, format))
	if err != nil {
		if _, pending := svc.Pending(); pending {
			_ = svc.Abort(ctx)
		}
		return fail("import failed", err)
	}

	action := "imported"
	switch {
	case n == 0:
		if _, pending := svc.Pending(); pending {
			_ = svc.Abort(ctx)
		}
	case opts.DryRun:
		action = "would import"
		if err := svc.Abort(ctx); err != nil {
			return fail("abort failed", err)
		}
	default:
		if err := svc.Commit(ctx); err != nil {
			return fail("commit failed", err)
		}
	}

	return opts.formatter(cmd).Render(map[string]any{"db": db, "path": path, "imported": n, "dry_run": opts.DryRun}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s %d records into %s\n", action, n, db)
		return err
	})
}

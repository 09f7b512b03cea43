package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/boltview/internal/apperr"
	"github.com/roach88/boltview/internal/store"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the databases of a store",
		Long: `List the databases of a store in ascending name order.

The default database is shown as "(unnamed)".

Example:
  boltview list --path ./app.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, closeFn, err := rootOpts.openSession(false)
			if err != nil {
				return err
			}
			defer closeFn()

			names, err := sess.ListDatabases(cmd.Context())
			if err != nil {
				return fail("failed to list databases", err)
			}
			return rootOpts.formatter(cmd).Render(map[string]any{"databases": names}, func(w io.Writer) error {
				for _, n := range names {
					fmt.Fprintln(w, n)
				}
				return nil
			})
		},
	}
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <db> <key>",
		Short: "Print the value stored at a key",
		Long: `Print the value stored at a key.

Exits with status 2 when the database or key does not exist.

Example:
  boltview get --path ./app.db users alice`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, closeFn, err := rootOpts.openSession(false)
			if err != nil {
				return err
			}
			defer closeFn()

			db, key := args[0], []byte(args[1])
			value, found, err := sess.Get(cmd.Context(), db, key)
			if err != nil {
				return fail("failed to read key", err)
			}
			if !found {
				return fail("failed to read key", apperr.Newf(apperr.CodeNotFound, "get", "key %q not found in %s", key, db))
			}
			return rootOpts.formatter(cmd).Render(entryOf(key, value), func(w io.Writer) error {
				_, err := fmt.Fprintln(w, printable(value))
				return err
			})
		},
	}
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put <db> <key> <value>",
		Short: "Set a key and commit",
		Long: `Set a key to a value and commit. The database is created if needed.

Example:
  boltview put --path ./app.db users alice '{"age":30}'`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeOne(rootOpts, cmd, "put", func(sess session) error {
				return sess.Put(cmd.Context(), args[0], []byte(args[1]), []byte(args[2]))
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <db> <key>",
		Short: "Delete a key and commit",
		Long: `Delete a key and commit.

Exits with status 2 when the database or key does not exist.

Example:
  boltview delete --path ./app.db users alice`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeOne(rootOpts, cmd, "delete", func(sess session) error {
				return sess.Delete(cmd.Context(), args[0], []byte(args[1]))
			})
		},
	}
}

// writeOne applies one edit and commits it, aborting if the edit fails.
func writeOne(rootOpts *RootOptions, cmd *cobra.Command, op string, edit func(session) error) error {
	sess, closeFn, err := rootOpts.openSession(true)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := cmd.Context()
	if err := edit(sess); err != nil {
		if abortErr := sess.Abort(ctx); abortErr != nil && !apperr.Is(abortErr, apperr.CodeInvalidArgument) {
			rootOpts.Logger.Warn("abort failed", "error", abortErr)
		}
		return fail(op+" failed", err)
	}
	if err := sess.Commit(ctx); err != nil {
		return fail("commit failed", err)
	}
	return rootOpts.formatter(cmd).Render(map[string]any{"op": op, "committed": true}, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, "committed")
		return err
	})
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [db]",
		Short: "Show database or store statistics",
		Long: `Show statistics for one database, or for the whole store when no
database is named.

Example:
  boltview stats --path ./app.db
  boltview stats --path ./app.db users`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return dbStats(rootOpts, cmd, args[0])
			}
			return envStats(rootOpts, cmd)
		},
	}
}

func dbStats(rootOpts *RootOptions, cmd *cobra.Command, db string) error {
	sess, closeFn, err := rootOpts.openSession(false)
	if err != nil {
		return err
	}
	defer closeFn()

	st, err := sess.Stats(cmd.Context(), db)
	if err != nil {
		return fail("failed to read stats", err)
	}
	return rootOpts.formatter(cmd).Render(st, func(w io.Writer) error {
		fmt.Fprintf(w, "database:   %s\n", st.Name)
		fmt.Fprintf(w, "entries:    %d\n", st.Entries)
		fmt.Fprintf(w, "depth:      %d\n", st.Depth)
		fmt.Fprintf(w, "pages:      %d (branch %d, leaf %d, overflow %d)\n",
			st.Pages(), st.BranchPages, st.LeafPages, st.OverflowPages)
		fmt.Fprintf(w, "size:       %d bytes\n", st.Bytes())
		return nil
	})
}

func envStats(rootOpts *RootOptions, cmd *cobra.Command) error {
	if err := rootOpts.requireLocal("stats"); err != nil {
		return err
	}
	svc, closeFn, err := rootOpts.openService(false)
	if err != nil {
		return err
	}
	defer closeFn()

	st, err := svc.EnvStats(cmd.Context())
	if err != nil {
		return fail("failed to read stats", err)
	}
	return rootOpts.formatter(cmd).Render(st, func(w io.Writer) error {
		writeEnvStats(w, st)
		return nil
	})
}

func writeEnvStats(w io.Writer, st store.EnvStats) {
	fmt.Fprintf(w, "path:       %s\n", st.Path)
	fmt.Fprintf(w, "mode:       %s\n", st.Mode)
	fmt.Fprintf(w, "databases:  %d / %d\n", st.Databases, st.MaxDatabases)
	fmt.Fprintf(w, "page size:  %d\n", st.PageSize)
	fmt.Fprintf(w, "map size:   %d\n", st.MapSize)
	fmt.Fprintf(w, "data size:  %d\n", st.DataSize)
	fmt.Fprintf(w, "last txid:  %d\n", st.LastTxID)
	fmt.Fprintf(w, "readers:    %d\n", st.OpenReaders)
	fmt.Fprintf(w, "free pages: %d (pending %d)\n", st.FreePages, st.PendingPages)
}

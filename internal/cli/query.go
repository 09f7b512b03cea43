package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/boltview/internal/decode"
	"github.com/roach88/boltview/internal/query"
	"github.com/roach88/boltview/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Limit   int
	Decoder string
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <db> <expr>",
		Short: "Print the entries of a database that match a query",
		Long: `Print the entries of a database that match a query, in key order.

Query syntax:
  exact:KEY            one key
  prefix:P  or  P      keys starting with P
  range:[LO..HI)       keys between LO and HI; [ ] inclusive, ( ) exclusive
  regex:RE             keys matching a regular expression
  jsonpath:EXPR or $…  values whose decoded form matches a JSONPath

Example:
  boltview query --path ./app.db users prefix:al
  boltview query --path ./app.db users '$.age' --decoder json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd, args[0], args[1])
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "maximum number of entries (0 for no limit)")
	cmd.Flags().StringVar(&opts.Decoder, "decoder", "auto", "value decoder for JSONPath queries")

	return cmd
}

func runQuery(opts *QueryOptions, cmd *cobra.Command, db, expr string) error {
	if err := opts.requireLocal("query"); err != nil {
		return err
	}
	d, err := decode.Lookup(opts.Decoder)
	if err != nil {
		return fail("unknown decoder", err)
	}
	q, err := query.Parse(expr, d)
	if err != nil {
		return fail("invalid query", err)
	}
	if opts.Limit > 0 {
		q = q.WithLimit(opts.Limit)
	}

	svc, closeFn, err := opts.openService(false)
	if err != nil {
		return err
	}
	defer closeFn()

	f := opts.formatter(cmd)
	f.VerboseLog("running %s on %s", q, db)

	var entries []Entry
	err = svc.Query(cmd.Context(), db, q, func(rec store.Record) error {
		if f.Format == "json" {
			entries = append(entries, entryOf(rec.Key, rec.Value))
			return nil
		}
		_, err := fmt.Fprintf(f.Writer, "%s\t%s\n", printable(rec.Key), printable(rec.Value))
		return err
	})
	if err != nil {
		return fail("query failed", err)
	}
	if f.Format == "json" {
		if entries == nil {
			entries = []Entry{}
		}
		return f.Success(map[string]any{"query": q.String(), "entries": entries})
	}
	return nil
}

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/boltview/internal/apperr"
	"github.com/roach88/boltview/internal/config"
	"github.com/roach88/boltview/internal/store"
)

// RootOptions holds global flags and the configuration loaded from them.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	Path       string
	ReadOnly   bool
	Create     bool
	Remote     string

	// Config is set before any subcommand runs.
	Config *config.Config
	Logger *slog.Logger

	// Tokens overrides write-token generation (for testing).
	Tokens store.TokenGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{config.OutputText, config.OutputJSON}

// NewRootCommand creates the root command for the boltview CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boltview",
		Short: "boltview - inspect and edit embedded key-value stores",
		Long: `Browse, query and edit bbolt stores.

Edits are collected in one write transaction with undo and redo, and become
visible to other readers only on commit.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(opts, cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", config.DefaultOutput, fmt.Sprintf("output format (%s)", strings.Join(ValidFormats, "|")))
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default boltview.yaml)")
	cmd.PersistentFlags().StringVarP(&opts.Path, "path", "p", "", "path to the store file")
	cmd.PersistentFlags().BoolVar(&opts.ReadOnly, "read-only", false, "open the store read-only")
	cmd.PersistentFlags().BoolVar(&opts.Create, "create", false, "create the store file if it does not exist")
	cmd.PersistentFlags().StringVar(&opts.Remote, "remote", "", "base URL of a running 'boltview serve'")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewPutCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewBrowseCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))

	return cmd
}

// setup loads the configuration and installs the logger.
func setup(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigFile, cmd.Flags())
	if err != nil {
		return WrapExitError(ExitFailure, "invalid configuration", err)
	}
	opts.Config = cfg
	opts.Format = cfg.Output
	opts.Verbose = cfg.Verbose

	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: cfg.Level(),
	})
	opts.Logger = slog.New(handler)
	slog.SetDefault(opts.Logger)

	if cfg.File != "" {
		opts.Logger.Debug("loaded config", "file", cfg.File)
	}
	return nil
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// Execute runs the CLI with args and returns the process exit code. Errors
// are reported on stdout in JSON mode and on stderr otherwise.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	f := &OutputFormatter{Format: opts.Format, Writer: stderr, Verbose: opts.Verbose}
	if opts.Format == config.OutputJSON {
		f.Writer = stdout
	}
	code := string(apperr.CodeOf(err))
	if code == "" {
		code = "ERROR"
	}
	_ = f.Error(code, err.Error(), nil)
	return GetExitCode(err)
}

package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/boltview/internal/app"
	"github.com/roach88/boltview/internal/jobs"
	"github.com/roach88/boltview/internal/tui"
)

// NewBrowseCommand creates the browse command.
func NewBrowseCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse [path]",
		Short: "Open the interactive browser",
		Long: `Open a store in the interactive terminal browser.

Move between databases and entries, preview decoded values, run queries,
and edit with undo and redo. Nothing is written until you commit. Press ?
inside the browser for the key bindings; bindings can be changed in the
keymap section of boltview.yaml.

Example:
  boltview browse ./app.db
  boltview browse --read-only ./app.db`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				rootOpts.Config.Path = args[0]
			}
			return runBrowse(rootOpts, cmd)
		},
	}
	return cmd
}

func runBrowse(opts *RootOptions, cmd *cobra.Command) error {
	if err := opts.requireLocal("browse"); err != nil {
		return err
	}
	cfg := opts.Config
	if cfg.Path == "" {
		return NewExitError(ExitFailure, "no store path: pass one or set path in boltview.yaml")
	}

	keys, err := tui.DefaultKeyMap().WithOverrides(cfg.Keymap)
	if err != nil {
		return WrapExitError(ExitFailure, "invalid keymap", err)
	}
	styles, err := tui.NewStyles(cfg.Theme)
	if err != nil {
		return WrapExitError(ExitFailure, "invalid theme", err)
	}

	exec := app.NewServiceExecutor(opts.manager(),
		app.WithJobTimeout(cfg.JobTimeout),
		app.WithSchedulerOptions(
			jobs.WithWorkers(cfg.Workers),
			jobs.WithPageSize(cfg.PageSize),
			jobs.WithLogger(opts.Logger),
		),
		app.WithExecutorLogger(opts.Logger),
	)
	defer func() {
		if err := exec.Close(); err != nil {
			opts.Logger.Error("error closing store", "error", err)
		}
	}()

	initial := app.NewState()
	initial.EntryLimit = cfg.EntryLimit
	loop := app.NewLoop(exec, app.WithLoopLogger(opts.Logger), app.WithInitialState(initial))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	loop.Dispatch(app.OpenEnv{Path: cfg.Path, Mode: opts.mode(true)})

	uiErr := tui.Run(ctx, loop, tui.WithKeyMap(keys), tui.WithStyles(styles))

	loop.Stop()
	loopErr := <-loopDone
	if uiErr != nil {
		return WrapExitError(ExitFailure, "browser error", uiErr)
	}
	if loopErr != nil && !errors.Is(loopErr, context.Canceled) {
		return WrapExitError(ExitFailure, "browser error", loopErr)
	}
	return nil
}

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robdennis/trappist/internal/pack/watch"
)

func newWatchCmd(app *App) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a directory and import pack exports dropped into it",
		RunE: func(cmd *cobra.Command, args []string) error {
			watchDir := dir
			if watchDir == "" {
				watchDir = app.cfg.Watch.Dir
			}
			if watchDir == "" {
				return fmt.Errorf("no watch directory configured; pass --dir or set watch.dir")
			}

			if err := app.engine.Load(cmd.Context()); err != nil {
				return err
			}

			fmt.Printf("Watching %s for pack exports. Ctrl-C to stop.\n", watchDir)
			watcher := watch.NewWatcher(app.engine, watchDir, app.logger)
			if err := watcher.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Directory to watch (defaults to the configured one)")
	return cmd
}

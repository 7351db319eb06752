// Command notebookctl works on a course notebook from the shell: scaffolding,
// leaf creation, compilation, enrichment passes, document import and a
// recompile-on-save watcher.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariavasulin/YouLearn/internal/app"
	"github.com/ariavasulin/YouLearn/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	root    string
	layout  string
	verbose bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "notebookctl",
		Short:         "Manage a course notebook",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.root, "root", "", "notebook root (default $TREE_ROOT or .)")
	root.PersistentFlags().StringVar(&g.layout, "layout", "", "layout file (default $LAYOUT_FILE)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newInitCmd(g),
		newCreateLeafCmd(g),
		newLeavesCmd(g),
		newCompileCmd(g),
		newEnrichCmd(g),
		newImportCmd(g),
		newWatchCmd(g),
		newReadCmd(g),
		newLsCmd(g),
	)
	return root
}

func (g *globalFlags) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (g *globalFlags) config() (config.Config, error) {
	cfg := config.Load()
	if g.root != "" {
		cfg.TreeRoot = g.root
	}
	if g.layout != "" {
		cfg.LayoutFile = g.layout
	}
	return cfg, cfg.Validate()
}

// open builds the notebook service for one command. The caller closes it.
func (g *globalFlags) open(cmd *cobra.Command) (*app.App, config.Config, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, cfg, err
	}
	a, err := app.Build(cmd.Context(), cfg, g.logger(cmd))
	if err != nil {
		return nil, cfg, err
	}
	return a, cfg, nil
}

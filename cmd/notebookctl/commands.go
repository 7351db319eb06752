package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ariavasulin/YouLearn/internal/compile"
	"github.com/ariavasulin/YouLearn/internal/enrich"
	"github.com/ariavasulin/YouLearn/internal/notebook"
	"github.com/ariavasulin/YouLearn/internal/parser"
	"github.com/ariavasulin/YouLearn/internal/watch"
	"github.com/spf13/cobra"
)

func newInitCmd(g *globalFlags) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new notebook in the root directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			written, err := a.Notebook.Init(title)
			if err != nil {
				return err
			}
			if len(written) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "notebook already initialized")
				return nil
			}
			for _, p := range written {
				fmt.Fprintln(cmd.OutOrStdout(), "created", p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "course title")
	return cmd
}

func newCreateLeafCmd(g *globalFlags) *cobra.Command {
	var (
		ordinal int
		meta    map[string]string
	)
	cmd := &cobra.Command{
		Use:   "create-leaf KIND",
		Short: "Create a leaf from its template and register it",
		Example: `  notebookctl create-leaf lecture --ordinal 6 --meta date="Feb 7" --meta topic=Sequences
  notebookctl create-leaf session`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Notebook.CreateLeaf(notebook.LeafRequest{
				Kind:     args[0],
				Ordinal:  ordinal,
				Metadata: meta,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created %s %s at %s\n", res.Kind, res.ID, res.Path)
			if res.Warning != nil {
				fmt.Fprintf(out, "warning: %s (%s): %s\n", res.Warning.Code, res.Warning.Container, res.Warning.Message)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&ordinal, "ordinal", 0, "leaf number for numbered kinds (0 picks the next free one)")
	cmd.Flags().StringToStringVar(&meta, "meta", nil, "template metadata as key=value")
	return cmd
}

func newLeavesCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "leaves",
		Short: "List every leaf of the notebook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			leaves, err := a.Notebook.ListLeaves()
			if err != nil {
				return err
			}
			for _, l := range leaves {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-12s %s\n", l.Kind, l.ID, l.Path)
			}
			return nil
		},
	}
}

func newCompileCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "compile [TARGET]",
		Short: "Compile a leaf or the whole notebook (default aggregate)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			target := notebook.AggregateTarget
			if len(args) == 1 {
				target = args[0]
			}
			res, err := a.Compiler.Compile(cmd.Context(), target)
			if err != nil {
				return err
			}
			printCompile(cmd, a.Artifacts, res)
			return nil
		},
	}
}

func printCompile(cmd *cobra.Command, store *compile.ArtifactStore, res *compile.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d pages, %d bytes in %s\n",
		res.Target, res.Pages, res.Size, res.Duration.Round(time.Millisecond))
	fmt.Fprintln(out, filepath.Join(store.Dir(), res.Artifact))
	for _, e := range res.PageMap {
		fmt.Fprintf(out, "  p.%-4d %s\n", e.Page, e.Title)
	}
}

func newEnrichCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Run enrichment passes and show their output",
	}
	for _, pass := range enrich.Passes {
		cmd.AddCommand(newPassCmd(g, pass))
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "report",
		Short: "Print the fact-check report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := enrich.LoadReport(a.Notebook)
			if errors.Is(err, notebook.ErrNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "no report yet")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), enrich.FormatReport(r))
			return nil
		},
	})
	return cmd
}

func newPassCmd(g *globalFlags, pass enrich.PassID) *cobra.Command {
	return &cobra.Command{
		Use:   string(pass),
		Short: fmt.Sprintf("Run the %s pass over leaves changed since its last run", pass),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.Enricher.Run(cmd.Context(), pass)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out.Skipped {
				fmt.Fprintf(w, "%s skipped: %s\n", pass, out.Message)
				return nil
			}
			fmt.Fprintf(w, "%s: %s\n", pass, out.Message)
			for _, p := range out.Delta {
				fmt.Fprintln(w, "  changed", p)
			}
			if out.Written != "" {
				fmt.Fprintln(w, "  wrote", out.Written)
			}
			for _, p := range out.Truncated {
				fmt.Fprintln(w, "  truncated", p)
			}
			for _, p := range out.Dropped {
				fmt.Fprintln(w, "  dropped", p)
			}
			return nil
		},
	}
}

func newImportCmd(g *globalFlags) *cobra.Command {
	var (
		dest      string
		overwrite bool
		sourceURL string
		raw       bool
	)
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Convert a document to markdown under the notebook's resources",
		Long: "Convert a text, markdown, CSV, HTML, PDF or DOCX document to markdown.\n" +
			"The result is written to " + parser.ImportDir + "/<title>.md unless --dest is given.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cfg, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			res, err := parser.Import(a.Notebook, filepath.Base(args[0]), data, parser.ImportOptions{
				Options: parser.Options{
					Readable:          cfg.ImportReadable && !raw,
					SourceURL:         sourceURL,
					PdftotextFallback: cfg.PDFFallbackPdftotext,
				},
				Dest:      dest,
				Overwrite: overwrite,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %q to %s (%d sections, %d bytes)\n",
				res.Title, res.Path, res.Sections, res.Bytes)
			return nil
		},
	}
	cmd.Flags().StringVar(&dest, "dest", "", "destination path inside the notebook")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing destination")
	cmd.Flags().StringVar(&sourceURL, "source-url", "", "original URL of an HTML page")
	cmd.Flags().BoolVar(&raw, "raw", false, "keep the whole HTML page instead of extracting the article")
	return cmd
}

func newWatchCmd(g *globalFlags) *cobra.Command {
	var (
		target   string
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Recompile whenever a source file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			w := watch.New(a.Notebook.Root(), a.Compiler, watch.Options{
				Debounce:   debounce,
				Target:     target,
				IgnoreDirs: []string{a.Artifacts.Dir()},
				OnCompile: func(res *compile.Result, err error) {
					if err != nil {
						return
					}
					printCompile(cmd, a.Artifacts, res)
				},
			}, g.logger(cmd).With("component", "watch"))
			return w.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&target, "target", notebook.AggregateTarget, "compile target")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "quiet period before a rebuild")
	return cmd
}

func newReadCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "read PATH",
		Short: "Print a file from the notebook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := a.Notebook.Read(args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newLsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [DIR]",
		Short: "List a notebook directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			entries, err := a.Notebook.List(dir)
			if err != nil {
				return err
			}
			for _, e := range entries {
				name := e.Name
				if e.Dir {
					name += "/"
				}
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

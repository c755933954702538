package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ogulcanaydogan/research-deck/internal/config"
	"github.com/ogulcanaydogan/research-deck/internal/imagegen"
	"github.com/ogulcanaydogan/research-deck/internal/llm"
	"github.com/ogulcanaydogan/research-deck/internal/pipeline"
	"github.com/ogulcanaydogan/research-deck/internal/report"
	"github.com/ogulcanaydogan/research-deck/internal/slides"
	"github.com/ogulcanaydogan/research-deck/internal/store"
	"github.com/ogulcanaydogan/research-deck/pkg/schema"
	"github.com/ogulcanaydogan/research-deck/pkg/types"
)

type cliError struct {
	code int
	err  error
}

func (e cliError) Error() string { return e.err.Error() }

func (e cliError) Unwrap() error { return e.err }

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		var ce cliError
		if errors.As(err, &ce) {
			fmt.Fprintln(os.Stderr, ce.err)
			os.Exit(ce.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var ociPullFunc = store.PullOCI
var ociPublishFunc = store.PublishOCI

var textClientFunc = func(cfg config.ServiceConfig) llm.TextClient { return llm.NewClient(cfg) }
var imageClientFunc = func(cfg config.ServiceConfig) llm.ImageClient { return llm.NewClient(cfg) }

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "deckgen",
		Short:         "Turn research notes into a slide deck with generated images",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newInitCommand())
	root.AddCommand(newRunCommand())
	root.AddCommand(newValidateCommand())
	root.AddCommand(newReportCommand())
	root.AddCommand(newPublishCommand())
	root.AddCommand(newPullCommand())
	return root
}

// newLogger writes text logs to a terminal and JSON lines anywhere else,
// e.g. when stderr is captured by CI.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if f, ok := w.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newInitCommand() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default deckgen.yaml",
		RunE: func(_ *cobra.Command, _ []string) error {
			if fileExists(cfgPath) {
				fmt.Printf("%s already exists\n", cfgPath)
				return nil
			}
			if err := store.WriteFileAtomic(cfgPath, []byte(config.DefaultYAML), 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", cfgPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", config.DefaultPath, "config file to create")
	return cmd
}

type runFlags struct {
	cfgPath      string
	envFile      string
	research     string
	checkpoint   string
	outDir       string
	slides       int
	maxRetries   int
	initialDelay int
	reportPath   string
	format       string
	verbose      bool
}

func newRunCommand() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate (or resume) the deck and request one image per valid slide",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(f.cfgPath)
			if err != nil {
				return cliError{code: 1, err: err}
			}
			applyRunFlags(cmd, f, &cfg)
			if err := cfg.Validate(); err != nil {
				return cliError{code: 1, err: err}
			}
			if err := cfg.ResolveAPIKeys(f.envFile); err != nil {
				return cliError{code: 1, err: err}
			}
			if f.format != "json" && f.format != "md" {
				return cliError{code: 1, err: fmt.Errorf("unsupported format %s", f.format)}
			}

			logger := newLogger(cmd.ErrOrStderr(), f.verbose)
			generator := &imagegen.Generator{
				Client:    imageClientFunc(cfg.Image.ServiceConfig),
				Model:     cfg.Image.Model,
				Size:      cfg.Image.Size,
				OutputDir: cfg.Pipeline.OutputDir,
				Backoff: imagegen.Backoff{
					MaxRetries:   cfg.Pipeline.MaxRetries,
					InitialDelay: cfg.Pipeline.InitialDelay(),
				},
				Logger: logger,
			}
			summary, err := pipeline.Run(context.Background(), pipeline.Options{
				Store:        store.NewFileStore(cfg.Pipeline.CheckpointPath),
				Text:         textClientFunc(cfg.Text),
				TextModel:    cfg.Text.Model,
				Images:       generator,
				ResearchPath: cfg.Pipeline.ResearchPath,
				OutputDir:    cfg.Pipeline.OutputDir,
				SlideCount:   cfg.Pipeline.SlideCount,
				Logger:       logger,
			})
			if err != nil {
				return cliError{code: 1, err: err}
			}

			fmt.Fprintln(cmd.OutOrStdout(), summary.Line())
			for _, o := range summary.Outcomes {
				if !o.Success {
					fmt.Fprintf(cmd.OutOrStdout(), "slide %d failed: %s\n", o.SlideNumber, o.Error)
				}
			}
			if f.reportPath != "" {
				if err := writeSummary(f.reportPath, f.format, summary); err != nil {
					return cliError{code: 1, err: err}
				}
				fmt.Fprintln(cmd.OutOrStdout(), f.reportPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.cfgPath, "config", config.DefaultPath, "config file")
	cmd.Flags().StringVar(&f.envFile, "env-file", ".env", "optional dotenv file with API keys")
	cmd.Flags().StringVar(&f.research, "research", "", "research text file (overrides config)")
	cmd.Flags().StringVar(&f.checkpoint, "checkpoint", "", "slide checkpoint file (overrides config)")
	cmd.Flags().StringVar(&f.outDir, "out-dir", "", "image output directory (overrides config)")
	cmd.Flags().IntVar(&f.slides, "slides", 0, "number of slides to request (overrides config)")
	cmd.Flags().IntVar(&f.maxRetries, "max-retries", 0, "image retries after the first attempt (overrides config)")
	cmd.Flags().IntVar(&f.initialDelay, "initial-delay", 0, "first retry delay in milliseconds (overrides config)")
	cmd.Flags().StringVar(&f.reportPath, "report", "", "write a run summary to this path")
	cmd.Flags().StringVar(&f.format, "format", "json", "summary format (json|md)")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "debug logging, including raw model output")
	return cmd
}

// applyRunFlags overrides config values only for flags set on the command
// line, so a zero retry count can still be requested explicitly.
func applyRunFlags(cmd *cobra.Command, f runFlags, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("research") {
		cfg.Pipeline.ResearchPath = f.research
	}
	if changed("checkpoint") {
		cfg.Pipeline.CheckpointPath = f.checkpoint
	}
	if changed("out-dir") {
		cfg.Pipeline.OutputDir = f.outDir
	}
	if changed("slides") {
		cfg.Pipeline.SlideCount = f.slides
	}
	if changed("max-retries") {
		cfg.Pipeline.MaxRetries = f.maxRetries
	}
	if changed("initial-delay") {
		cfg.Pipeline.InitialDelayMS = f.initialDelay
	}
}

func writeSummary(path, format string, s types.RunSummary) error {
	if format == "md" {
		return report.WriteMarkdown(path, s)
	}
	return report.WriteJSON(path, s)
}

func newValidateCommand() *cobra.Command {
	var checkpoint, schemaPath, outDir string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a slide checkpoint and list invalid slides",
		RunE: func(cmd *cobra.Command, _ []string) error {
			deck, err := store.NewFileStore(checkpoint).Load()
			if err != nil {
				return cliError{code: 1, err: err}
			}
			if schemaPath != "" {
				abs, err := filepath.Abs(schemaPath)
				if err != nil {
					return err
				}
				violations, err := schema.Validate(abs, deck)
				if err != nil {
					return cliError{code: 1, err: err}
				}
				if len(violations) > 0 {
					for _, v := range violations {
						fmt.Fprintln(cmd.OutOrStdout(), v)
					}
					return cliError{code: 1, err: fmt.Errorf("%s does not satisfy %s", checkpoint, schemaPath)}
				}
			}
			_, invalid := slides.Validate(deck)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d slides, %d valid, %d invalid\n", len(deck), len(deck)-len(invalid), len(invalid))
			for _, w := range invalid {
				fmt.Fprintln(out, w.String())
			}

			images, err := imagegen.Inventory(outDir, deck)
			if err != nil {
				return cliError{code: 1, err: err}
			}
			for _, o := range images {
				if o.Success {
					fmt.Fprintf(out, "slide %d image %s (%d bytes)\n", o.SlideNumber, o.Digest, o.SizeBytes)
				} else {
					fmt.Fprintf(out, "slide %d image missing\n", o.SlideNumber)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&checkpoint, "checkpoint", store.DefaultCheckpointPath, "slide checkpoint file")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "additional JSON schema the deck must satisfy")
	cmd.Flags().StringVar(&outDir, "out-dir", imagegen.DefaultOutputDir, "image directory to inventory")
	return cmd
}

func newReportCommand() *cobra.Command {
	var inPath, outPath string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate markdown report from a run summary JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if inPath == "" {
				return fmt.Errorf("--in is required")
			}
			s, err := report.ReadJSON(inPath)
			if err != nil {
				return err
			}
			if outPath == "" {
				fmt.Fprint(cmd.OutOrStdout(), report.BuildMarkdown(s))
				return nil
			}
			if err := report.WriteMarkdown(outPath, s); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "run summary json input")
	cmd.Flags().StringVar(&outPath, "out", "", "markdown output (stdout when empty)")
	return cmd
}

func newPublishCommand() *cobra.Command {
	var inPath, ociRef string
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a slide checkpoint to an OCI registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if inPath == "" || ociRef == "" {
				return fmt.Errorf("--in and --oci are required")
			}
			if _, err := store.NewFileStore(inPath).Load(); err != nil {
				return cliError{code: 1, err: err}
			}
			pinned, err := ociPublishFunc(inPath, ociRef)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pinned)
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", store.DefaultCheckpointPath, "checkpoint path")
	cmd.Flags().StringVar(&ociRef, "oci", "", "OCI destination")
	return cmd
}

func newPullCommand() *cobra.Command {
	var ociRef, outPath string
	var force bool
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Pull a slide checkpoint from an OCI registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(ociRef) == "" {
				return fmt.Errorf("--oci is required")
			}
			if fileExists(outPath) && !force {
				return fmt.Errorf("%s already exists; pass --force to overwrite", outPath)
			}
			if err := ociPullFunc(ociRef, outPath); err != nil {
				return err
			}
			deck, err := store.NewFileStore(outPath).Load()
			if err != nil {
				return cliError{code: 1, err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pulled %d slides to %s\n", len(deck), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&ociRef, "oci", "", "OCI source reference")
	cmd.Flags().StringVar(&outPath, "out", store.DefaultCheckpointPath, "checkpoint destination")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing checkpoint")
	return cmd
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

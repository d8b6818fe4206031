package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/skill-translator/internal/service"
	"github.com/MimeLyc/skill-translator/pkg/file"
)

type translateFlags struct {
	source string
	target string
	outDir string
	stdout bool
	force  bool
}

func newTranslateCommand(flags *rootFlags) *cobra.Command {
	tf := &translateFlags{}
	cmd := &cobra.Command{
		Use:   "translate FILE...",
		Short: "Translate Markdown files next to the originals",
		Long: "Translate each FILE and write <name>.<lang><ext> beside it, or into --out.\n" +
			"Results are cached exactly as for the HTTP service.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			app, err := newApp(cfg, true)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTranslate(ctx, app.orchestrator, args, tf, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&tf.source, "source", "", "source language (default SOURCE_LANGUAGE)")
	cmd.Flags().StringVar(&tf.target, "target", "", "target language (default TARGET_LANGUAGE)")
	cmd.Flags().StringVarP(&tf.outDir, "out", "o", "", "directory for translated files")
	cmd.Flags().BoolVar(&tf.stdout, "stdout", false, "print translations instead of writing files")
	cmd.Flags().BoolVar(&tf.force, "force", false, "ignore cached translations")
	return cmd
}

type batchTranslator interface {
	TranslateBatch(ctx context.Context, items []service.BatchItem, skipCached bool, opts service.Options) service.BatchResponse
	Config() service.OrchestratorConfig
}

func runTranslate(ctx context.Context, tr batchTranslator, paths []string, tf *translateFlags, stdout, stderr io.Writer) error {
	items := make([]service.BatchItem, len(paths))
	for i, path := range paths {
		items[i].Path = filepath.ToSlash(path)
		content, err := os.ReadFile(path)
		if err != nil {
			items[i].DecodeErr = err
			continue
		}
		items[i].Content = content
	}

	resp := tr.TranslateBatch(ctx, items, !tf.force, service.Options{
		SourceLanguage: tf.source,
		TargetLanguage: tf.target,
	})

	for i, r := range resp.Results {
		if !r.Succeeded() {
			fmt.Fprintf(stderr, "%s: %s: %v\n", paths[i], service.KindOf(r.Err), r.Err)
			continue
		}
		for _, w := range r.Result.Warnings {
			fmt.Fprintf(stderr, "%s: warning: %s\n", paths[i], w)
		}
		if tf.stdout {
			fmt.Fprint(stdout, r.Result.Content)
			continue
		}

		lang := r.Result.Metadata.TargetLanguage
		if lang == "" {
			lang = tr.Config().TargetLanguage
		}
		out := outputPath(paths[i], lang, tf.outDir)
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		if err := os.WriteFile(out, []byte(r.Result.Content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		fmt.Fprintf(stderr, "%s -> %s (%s)\n", paths[i], out, r.State)
	}

	fmt.Fprintf(stderr, "%d files: %d successful (%d cached), %d failed\n",
		resp.TotalFiles, resp.Successful, resp.CachedCount, resp.Failed)
	if resp.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", resp.Failed, resp.TotalFiles)
	}
	return nil
}

// outputPath turns docs/SKILL.md into docs/SKILL.zh-CN.md, placed in outDir
// when one is given.
func outputPath(path, lang, outDir string) string {
	out := file.ReplaceExt(path, "."+lang+filepath.Ext(path))
	if outDir != "" {
		out = filepath.Join(outDir, filepath.Base(out))
	}
	return out
}

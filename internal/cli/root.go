// Package cli implements the architect command.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"projectarchitect/internal/bootstrap"
	"projectarchitect/internal/config"
	"projectarchitect/internal/pipeline"
	"projectarchitect/internal/safeio"
	"projectarchitect/internal/util/jsonutil"
)

type options struct {
	file      string
	out       string
	name      string
	fake      bool
	overwrite bool
	dryRun    bool
	json      bool
}

// LoadConfig is replaced in tests.
type LoadConfig func() (*config.Config, error)

// NewRootCommand creates the architect command.
func NewRootCommand(load LoadConfig) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "architect [description...]",
		Short: "Turn a project description into a generated project",
		Long: `Runs the analyze, architect, structure, code and dependency stages
against the configured model and writes the project under --out.

The description is taken from the arguments or from --file.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), load, opts, args, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "read the description from a file")
	f.StringVarP(&opts.out, "out", "o", "out", "directory the project is written under")
	f.StringVar(&opts.name, "name", "", "project name (derived from the description when empty)")
	f.BoolVar(&opts.fake, "fake", false, "answer from the offline demo script instead of a model")
	f.BoolVar(&opts.overwrite, "overwrite", false, "replace files that already exist")
	f.BoolVar(&opts.dryRun, "dry-run", false, "run the pipeline without writing files")
	f.BoolVar(&opts.json, "json", false, "print the run snapshot as JSON")

	gf := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(gf)
	cmd.PersistentFlags().AddGoFlagSet(gf)

	return cmd
}

// Execute runs the architect command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer klog.Flush()

	if err := NewRootCommand(config.Load).ExecuteContext(ctx); err != nil {
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

func run(ctx context.Context, load LoadConfig, opts *options, args []string, w io.Writer) error {
	desc, err := description(opts.file, args)
	if err != nil {
		return err
	}
	cfg, err := load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.fake {
		cfg.LLM.Provider = "fake"
	}

	orch, err := bootstrap.Orchestrator(ctx, *cfg)
	if err != nil {
		return err
	}
	snap, err := orch.Execute(ctx, pipeline.Request{Description: desc, ProjectName: opts.name})
	if err != nil {
		return err
	}

	dest := filepath.Join(opts.out, snap.ProjectName)
	var written []string
	if !opts.dryRun {
		fsys, err := safeio.NewSafeFS(dest)
		if err != nil {
			return err
		}
		written, err = fsys.WriteBundle(snap.Outputs.Bundle(), opts.overwrite)
		if err != nil {
			if errors.Is(err, safeio.ErrExists) {
				return fmt.Errorf("%w (use --overwrite to replace)", err)
			}
			return err
		}
		klog.V(1).InfoS("project written", "run_id", snap.ID, "dest", dest, "files", len(written))
	}

	if opts.json {
		b, err := jsonutil.MarshalNoEscapeIndent(snap, "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	_, err = fmt.Fprint(w, summary(snap, dest, written))
	return err
}

func description(file string, args []string) (string, error) {
	if file != "" {
		if len(args) > 0 {
			return "", errors.New("pass the description as arguments or with --file, not both")
		}
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read description: %w", err)
		}
		return string(b), nil
	}
	desc := strings.TrimSpace(strings.Join(args, " "))
	if desc == "" {
		return "", errors.New("a project description is required")
	}
	return desc, nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/guregu/null.v3"

	"github.com/jptrs93/troto/internal/compiler"
	"github.com/jptrs93/troto/internal/config"
	"github.com/jptrs93/troto/internal/discover"
	"github.com/jptrs93/troto/internal/generate"
)

// env is what the command needs from the process, so tests can supply their
// own.
type env struct {
	fs        afero.Fs
	stdout    io.Writer
	stderr    io.Writer
	lookupEnv func(string) (string, bool)
}

type flags struct {
	configPath string
	root       string
	out        string
	protoPaths []string
	check      bool
	verbose    bool
	stdout     bool
}

func newRootCommand(e env) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "troto [flags] PATH...",
		Short: "Compile TypeScript interface definitions to protobuf IDL",
		Long: `troto compiles .ts files declaring interfaces and type aliases into proto3
IDL, one .proto file per source. Directories are searched recursively.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), e, cmd, f, args)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", config.DefaultFile, "config file")
	fl.StringVar(&f.root, "root", "", "project root that module names are relative to")
	fl.StringVar(&f.out, "out", "", "output directory (default: next to the sources)")
	fl.StringArrayVar(&f.protoPaths, "proto_path", nil, "directory searched for forced imports (repeatable)")
	fl.BoolVar(&f.check, "check", false, "compile the emitted IDL and cross-check it")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "log each pipeline stage")
	fl.BoolVar(&f.stdout, "stdout", false, "print the IDL instead of writing files")
	return cmd
}

// flagConfig holds only the flags given on the command line, so unset flags
// do not override the file or environment.
func flagConfig(fl *pflag.FlagSet, f flags) config.Config {
	var conf config.Config
	if fl.Changed("root") {
		conf.Root = null.StringFrom(f.root)
	}
	if fl.Changed("out") {
		conf.Out = null.StringFrom(f.out)
	}
	if fl.Changed("proto_path") {
		conf.ProtoPaths = f.protoPaths
	}
	if fl.Changed("check") {
		conf.Check = null.BoolFrom(f.check)
	}
	return conf
}

func run(ctx context.Context, e env, cmd *cobra.Command, f flags, args []string) error {
	logger := logrus.New()
	logger.SetOutput(e.stderr)
	if f.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	conf, err := config.Consolidate(e.fs, f.configPath, cmd.Flags().Changed("config"), e.lookupEnv, flagConfig(cmd.Flags(), f))
	if err != nil {
		return err
	}
	root := conf.Root.String
	if len(args) == 0 {
		args = []string{root}
	}
	paths, err := discover.Sources(e.fs, root, conf.Ignore.String, args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no %s sources found", discover.SourceExt)
	}
	logger.WithField("files", len(paths)).Debug("Discovered sources")

	sources, err := compiler.LoadSources(e.fs, root, paths)
	if err != nil {
		return err
	}
	outDir := root
	if conf.Out.Valid {
		outDir = conf.Out.String
	}
	c := &compiler.Compiler{
		Types:      conf.TypeTable(),
		ProtoPaths: conf.ProtoPaths,
		Fs:         e.fs,
		Logger:     logger,
		Check:      conf.Check.Bool,
		OutDir:     filepath.ToSlash(outDir),
	}
	outputs, err := c.Compile(ctx, sources)
	if err != nil {
		return err
	}

	if f.stdout {
		for _, out := range outputs {
			if _, err := e.stdout.Write(out.Content); err != nil {
				return err
			}
		}
		return nil
	}
	files := make([]generate.OutputFile, len(outputs))
	for i, out := range outputs {
		files[i] = generate.OutputFile{Path: filepath.FromSlash(out.Path), Content: out.Content}
	}
	written, err := generate.WriteFiles(e.fs, files)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"files": len(files), "changed": written}).Info("Generated IDL")
	return nil
}

func main() {
	e := env{
		fs:        afero.NewOsFs(),
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		lookupEnv: os.LookupEnv,
	}
	if err := newRootCommand(e).ExecuteContext(context.Background()); err != nil {
		color.New(color.FgRed).Fprintln(e.stderr, err)
		os.Exit(1)
	}
}

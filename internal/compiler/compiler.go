// Package compiler runs the whole pipeline over a set of source files.
package compiler

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/jptrs93/troto/internal/generate"
	protogen "github.com/jptrs93/troto/internal/generate/proto"
	"github.com/jptrs93/troto/internal/ir"
	"github.com/jptrs93/troto/internal/lower"
	"github.com/jptrs93/troto/internal/parser"
	"github.com/jptrs93/troto/internal/protocheck"
	"github.com/jptrs93/troto/internal/resolve"
	"github.com/jptrs93/troto/internal/wellknown"
)

// Source is one input file. Path is slash-separated and relative to the
// project root; it determines the module name and the output path.
type Source struct {
	Path    string
	Content []byte
}

type Output struct {
	Source  string
	Path    string
	Content []byte
}

type Compiler struct {
	// Types provides external types. Defaults to wellknown.Default().
	Types wellknown.Provider
	// ProtoPaths are searched for forced imports and, when Check is set, for
	// imports that are not generated in the same run. With no proto paths
	// forced imports are not checked.
	ProtoPaths []string
	Fs         afero.Fs
	Logger     logrus.FieldLogger
	// Check compiles the emitted IDL and cross-checks it against the schema.
	Check bool
	// OutDir is prepended to output paths.
	OutDir string
}

func (c *Compiler) fs() afero.Fs {
	if c.Fs == nil {
		return afero.NewOsFs()
	}
	return c.Fs
}

func (c *Compiler) logger() logrus.FieldLogger {
	if c.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		return l
	}
	return c.Logger
}

// Compile produces one IDL document per source, in input order. Any error
// aborts the whole compilation; the error reported is the first one in file
// order.
func (c *Compiler) Compile(ctx context.Context, sources []Source) ([]Output, error) {
	log := c.logger()

	files, err := c.parse(ctx, sources)
	if err != nil {
		return nil, err
	}

	types := c.Types
	if types == nil {
		types = wellknown.Default()
	}
	resolved, err := resolve.Resolve(files, resolve.Config{
		Types:           types,
		ProtoFileExists: c.protoFileExists,
	})
	if err != nil {
		return nil, err
	}
	log.WithField("files", len(resolved)).Debug("Resolved sources")

	irFiles := make([]*ir.File, 0, len(resolved))
	for _, r := range resolved {
		f, err := lower.File(r)
		if err != nil {
			return nil, err
		}
		for _, msg := range f.Messages() {
			if err := ir.AssignNumbers(msg); err != nil {
				return nil, err
			}
		}
		log.WithFields(logrus.Fields{
			"file":     f.Source,
			"messages": len(f.Messages()),
			"services": len(f.Services()),
		}).Debug("Built schema")
		irFiles = append(irFiles, f)
	}

	gen := protogen.Generator{}
	generated, err := gen.Generate(irFiles, generate.Options{OutDir: c.OutDir})
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", gen.Name(), err)
	}

	if c.Check {
		docs := make([]protocheck.Document, len(irFiles))
		for i, f := range irFiles {
			docs[i] = protocheck.Document{File: f, Content: generated[i].Content}
		}
		checker := &protocheck.Checker{ProtoPaths: c.ProtoPaths, Fs: c.fs()}
		if err := checker.Check(ctx, docs); err != nil {
			return nil, err
		}
		log.Debug("Emitted IDL passed the output check")
	}

	outputs := make([]Output, len(generated))
	for i, out := range generated {
		outputs[i] = Output{Source: irFiles[i].Source, Path: out.Path, Content: out.Content}
	}
	return outputs, nil
}

// parse parses every source concurrently. Each task writes only its own
// slot, so the earliest failing file can be picked afterwards.
func (c *Compiler) parse(ctx context.Context, sources []Source) ([]*parser.File, error) {
	files := make([]*parser.File, len(sources))
	errs := make([]error, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			files[i], errs[i] = parser.Parse(src.Path, src.Content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	log := c.logger()
	for _, f := range files {
		log.WithField("file", f.Path).Debug("Parsed source")
	}
	return files, nil
}

func (c *Compiler) protoFileExists(importPath string) bool {
	if len(c.ProtoPaths) == 0 {
		return true
	}
	fs := c.fs()
	for _, dir := range c.ProtoPaths {
		if ok, _ := afero.Exists(fs, filepath.Join(dir, filepath.FromSlash(importPath))); ok {
			return true
		}
	}
	return false
}

// LoadSources reads the given files. Paths are taken relative to root and
// converted to the slash-separated form Source expects.
func LoadSources(fs afero.Fs, root string, paths []string) ([]Source, error) {
	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", p, err)
		}
		content, err := afero.ReadFile(fs, p)
		if err != nil {
			return nil, fmt.Errorf("read source %s: %w", p, err)
		}
		sources = append(sources, Source{Path: path.Clean(filepath.ToSlash(rel)), Content: content})
	}
	return sources, nil
}

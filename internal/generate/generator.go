// Package generate defines the interface output generators implement and the
// writing of their results.
package generate

import "github.com/jptrs93/troto/internal/ir"

type OutputFile struct {
	Path    string
	Content []byte
}

type Options struct {
	// OutDir is prepended to every output path. When empty, outputs are
	// written next to their sources.
	OutDir string
}

type Generator interface {
	Name() string
	Generate(files []*ir.File, options Options) ([]OutputFile, error)
}

// Package protogen renders IR files as proto3 IDL documents.
package protogen

import (
	"path"

	"github.com/jptrs93/troto/internal/generate"
	"github.com/jptrs93/troto/internal/ir"
)

type Generator struct{}

var _ generate.Generator = Generator{}

func (g Generator) Name() string {
	return "proto"
}

func (g Generator) Generate(files []*ir.File, options generate.Options) ([]generate.OutputFile, error) {
	outputs := make([]generate.OutputFile, 0, len(files))
	for _, file := range files {
		outPath := file.Path
		if options.OutDir != "" {
			outPath = path.Join(options.OutDir, outPath)
		}
		outputs = append(outputs, generate.OutputFile{
			Path:    outPath,
			Content: Render(file),
		})
	}
	return outputs, nil
}

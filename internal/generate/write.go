package generate

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// WriteFiles writes every output, creating directories as needed. Files whose
// current content already matches are left untouched so their modification
// times stay stable. It returns the number of files written.
func WriteFiles(fs afero.Fs, outputs []OutputFile) (int, error) {
	written := 0
	for _, file := range outputs {
		if current, err := afero.ReadFile(fs, file.Path); err == nil && bytes.Equal(current, file.Content) {
			continue
		}
		if err := fs.MkdirAll(filepath.Dir(file.Path), 0o755); err != nil {
			return written, fmt.Errorf("create dir %s: %w", filepath.Dir(file.Path), err)
		}
		if err := afero.WriteFile(fs, file.Path, file.Content, 0o644); err != nil {
			return written, fmt.Errorf("write file %s: %w", file.Path, err)
		}
		written++
	}
	return written, nil
}

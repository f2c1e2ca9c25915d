package generate

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFiles(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "out/a.proto", []byte("stale"), 0o644))

	n, err := WriteFiles(fs, []OutputFile{
		{Path: "out/a.proto", Content: []byte("a")},
		{Path: "out/nested/dir/b.proto", Content: []byte("b")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := afero.ReadFile(fs, "out/a.proto")
	require.NoError(t, err)
	assert.Equal(t, "a", string(got))

	got, err = afero.ReadFile(fs, "out/nested/dir/b.proto")
	require.NoError(t, err)
	assert.Equal(t, "b", string(got))
}

func TestWriteFilesSkipsUnchanged(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "a.proto", []byte("same"), 0o644))
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, fs.Chtimes("a.proto", old, old))

	n, err := WriteFiles(fs, []OutputFile{{Path: "a.proto", Content: []byte("same")}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	info, err := fs.Stat("a.proto")
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old))
}

func TestWriteFilesReadOnly(t *testing.T) {
	t.Parallel()

	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	_, err := WriteFiles(fs, []OutputFile{{Path: "x/a.proto", Content: []byte("a")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x")
}

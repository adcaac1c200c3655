package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() { _ = os.Chdir(old) }
}

func TestEnsureSubdDir_CreatesDirectoryInCWD(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	got, err := EnsureSubdDir("spool")
	require.NoError(t, err)

	want := filepath.Join(tmp, "spool")
	require.Equal(t, want, got)

	fi, err := os.Stat(want)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		perm := fi.Mode().Perm()
		require.Equal(t, os.FileMode(0o700), perm&0o700)
	}
}

func TestEnsureSubdDir_AbsolutePathKept(t *testing.T) {
	want := filepath.Join(t.TempDir(), "abs", "spool")

	got, err := EnsureSubdDir(want)
	require.NoError(t, err)
	require.Equal(t, want, got)

	again, err := EnsureSubdDir(want)
	require.NoError(t, err)
	require.Equal(t, got, again)
}

func TestEnsureSubdDir_FailsIfFileWithSameNameExists(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	require.NoError(t, os.WriteFile("spool", []byte("x"), 0o660))

	_, err := EnsureSubdDir("spool")
	require.Error(t, err, "should fail when a file exists with the same name")
}

func TestBaseName(t *testing.T) {
	cases := map[string]string{
		"a.txt":                     "a.txt",
		"docs/reports/q1.pdf":       "q1.pdf",
		`C:\Users\alice\report.doc`: "report.doc",
		"  spaced.txt ":             "spaced.txt",
		"dir/":                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, BaseName(in), in)
	}
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "pdf", Extension("Report.PDF"))
	assert.Equal(t, "gz", Extension("archive.tar.gz"))
	assert.Equal(t, "", Extension("README"))
	assert.Equal(t, "", Extension("trailing."))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentType("a.pdf"))
	assert.Equal(t, "image/png", ContentType("b.PNG"))
	assert.Equal(t, "text/plain", ContentType("notes.txt"))
	assert.Equal(t, DefaultContentType, ContentType("blob"))
	assert.Equal(t, DefaultContentType, ContentType("x.unknownext"))
}

func TestPresentation(t *testing.T) {
	assert.Equal(t, "file/view-pdf/", LinkPrefix("application/pdf"))
	assert.Equal(t, "fa-file-pdf-o", IconClass("application/pdf"))
	assert.Equal(t, "file/view-image/", LinkPrefix("image/png"))
	assert.Equal(t, "file/download/", LinkPrefix("application/x-unknown"))
	assert.Equal(t, "fa-file-o", IconClass("application/x-unknown"))
}

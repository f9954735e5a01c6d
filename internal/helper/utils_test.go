package helper

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoredFileName(t *testing.T) {
	a := StoredFileName("Report.PDF")
	b := StoredFileName("Report.PDF")

	assert.True(t, strings.HasSuffix(a, ".pdf"))
	assert.Len(t, a, 36+len(".pdf"))
	assert.NotEqual(t, a, b)
	assert.Len(t, StoredFileName("noext"), 36)
}

func TestCreateFolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, CreateFolder(dir))
	require.NoError(t, CreateFolder(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadUniverseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbols:\n  - AAPL\n  - MSFT\n  - NVDA\n"), 0o644))

	symbols, err := loadUniverseFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, symbols)
}

func TestLoadUniverseFile_Errors(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		_, err := loadUniverseFile("")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadUniverseFile(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("no symbols", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.yaml")
		require.NoError(t, os.WriteFile(path, []byte("symbols: []\n"), 0o644))
		_, err := loadUniverseFile(path)
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("symbols: [unclosed\n"), 0o644))
		_, err := loadUniverseFile(path)
		assert.Error(t, err)
	})
}

package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/snagmail/snagmail/pkg/readmodel"
	"github.com/stretchr/testify/require"
)

// TestSuite runs the readmodel contract suite on the SQLite store.
func TestSuite(t *testing.T) {
	readmodel.StoreSuite(t, func(t *testing.T) (readmodel.Store, func()) {
		s, err := Open(filepath.Join(t.TempDir(), "readmodels.db"))
		require.NoError(t, err)
		return s, func() { _ = s.Close() }
	})
}

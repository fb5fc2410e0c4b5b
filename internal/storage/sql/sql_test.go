package sql_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ncrq/authguard/internal/storage"
	sqladapter "github.com/ncrq/authguard/internal/storage/sql"
	"github.com/ncrq/authguard/internal/storage/storagetest"
)

func TestSQLiteAdapter(t *testing.T) {
	storagetest.RunTestSuite(t, func() storage.Adapter {
		a, err := sqladapter.Open(sqladapter.DialectSQLite3, ":memory:")
		require.NoError(t, err)
		require.NoError(t, a.Migrate(context.Background()))
		return a
	})
}

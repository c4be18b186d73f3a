package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/radieske/kmarket/internal/shared/db"
	"github.com/radieske/kmarket/internal/store"
)

// NewDB abre um SQLite em memória já migrado para testes de pacotes que usam o store
func NewDB(t testing.TB) *store.DB {
	t.Helper()
	sqlDB, err := db.ConnectSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	d := store.New(sqlDB, store.SQLite)
	require.NoError(t, d.Migrate(context.Background()))
	return d
}

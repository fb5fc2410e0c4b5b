// Package storagetest is a conformance suite run against every
// storage.Adapter implementation, adapted from the teacher's
// storage/storagetest package: one RunTestSuite entry point exercised
// by each backend's own _test.go file.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ncrq/authguard/internal/storage"
)

// RunTestSuite exercises the CRUD-with-where-DSL contract every
// storage.Adapter must satisfy, independent of backend. It runs
// against the verification model so the suite is portable to backends
// (like the SQL adapter) that only know about §3's fixed schema.
func RunTestSuite(t *testing.T, newAdapter func() storage.Adapter) {
	t.Run("CreateAndFindOne", func(t *testing.T) { testCreateAndFindOne(t, newAdapter()) })
	t.Run("FindOneNotFound", func(t *testing.T) { testFindOneNotFound(t, newAdapter()) })
	t.Run("UpdateMutatesMatchingRow", func(t *testing.T) { testUpdate(t, newAdapter()) })
	t.Run("DeleteRemovesRow", func(t *testing.T) { testDelete(t, newAdapter()) })
	t.Run("CountAndFindManyRespectWhere", func(t *testing.T) { testCountAndFindMany(t, newAdapter()) })
	t.Run("FindManyRespectsLimitOffset", func(t *testing.T) { testLimitOffset(t, newAdapter()) })
}

const model = storage.ModelVerification

func verification(id, identifier, value string) storage.Record {
	return storage.Record{
		"id":         id,
		"identifier": identifier,
		"value":      value,
		"expires_at": "2030-01-01T00:00:00Z",
		"created_at": "2026-01-01T00:00:00Z",
	}
}

func testCreateAndFindOne(t *testing.T, a storage.Adapter) {
	ctx := context.Background()
	created, err := a.Create(ctx, model, verification("v1", "v1-ident", "123456"))
	require.NoError(t, err)
	require.Equal(t, "123456", created["value"])

	got, err := a.FindOne(ctx, storage.Query{Model: model, Where: []storage.Where{storage.Eq("id", "v1")}})
	require.NoError(t, err)
	require.Equal(t, "123456", got["value"])
}

func testFindOneNotFound(t *testing.T, a storage.Adapter) {
	ctx := context.Background()
	_, err := a.FindOne(ctx, storage.Query{Model: model, Where: []storage.Where{storage.Eq("id", "missing")}})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func testUpdate(t *testing.T, a storage.Adapter) {
	ctx := context.Background()
	_, err := a.Create(ctx, model, verification("v2", "v2-ident", "111111"))
	require.NoError(t, err)

	updated, err := a.Update(ctx, model, []storage.Where{storage.Eq("id", "v2")}, storage.Record{"value": "222222"})
	require.NoError(t, err)
	require.Equal(t, "222222", updated["value"])
}

func testDelete(t *testing.T, a storage.Adapter) {
	ctx := context.Background()
	_, err := a.Create(ctx, model, verification("v3", "v3-ident", "333333"))
	require.NoError(t, err)

	require.NoError(t, a.Delete(ctx, model, []storage.Where{storage.Eq("id", "v3")}))
	_, err = a.FindOne(ctx, storage.Query{Model: model, Where: []storage.Where{storage.Eq("id", "v3")}})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func testCountAndFindMany(t *testing.T, a storage.Adapter) {
	ctx := context.Background()
	for _, id := range []string{"count-a1", "count-a2", "count-a3"} {
		_, err := a.Create(ctx, model, verification(id, id+"-ident", "000000"))
		require.NoError(t, err)
	}
	_, err := a.Create(ctx, model, verification("count-b1", "count-b1-ident", "999999"))
	require.NoError(t, err)

	n, err := a.Count(ctx, model, []storage.Where{storage.Eq("value", "000000")})
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	many, err := a.FindMany(ctx, storage.Query{Model: model, Where: []storage.Where{storage.Eq("value", "000000")}})
	require.NoError(t, err)
	require.Len(t, many, 3)
}

func testLimitOffset(t *testing.T, a storage.Adapter) {
	ctx := context.Background()
	for _, id := range []string{"page-a", "page-b", "page-c", "page-d", "page-e"} {
		_, err := a.Create(ctx, model, verification(id, id+"-ident", "page-value"))
		require.NoError(t, err)
	}

	page, err := a.FindMany(ctx, storage.Query{
		Model: model,
		Where: []storage.Where{storage.Eq("value", "page-value")},
		Limit: 2, Offset: 1,
		SortBy: []storage.Sort{{Field: "id", Direction: storage.SortAsc}},
	})
	require.NoError(t, err)
	require.Len(t, page, 2)
}

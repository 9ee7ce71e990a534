// Package dbtest opens throwaway SQLite databases for package tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-booking/internal/database"
	"ms-booking/internal/models"
)

// NewSQLite returns a bun.DB on a private in-memory database with the schema
// created. A single connection serialises all access, so code under test must
// issue every statement of a transaction through that transaction.
func NewSQLite(t testing.TB) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.CreateSchema(context.Background(), db))
	return db
}

// SeedUser inserts a user row and returns its id.
func SeedUser(t testing.TB, db bun.IDB, email, role string) int64 {
	t.Helper()

	u := &models.User{Email: email, FullName: email, Role: role, CreatedAt: time.Now().UTC()}
	_, err := db.NewInsert().Model(u).Exec(context.Background())
	require.NoError(t, err)
	return u.ID
}

// Count returns the number of rows in model's table.
func Count(t testing.TB, db bun.IDB, model interface{}) int {
	t.Helper()

	n, err := db.NewSelect().Model(model).Count(context.Background())
	require.NoError(t, err)
	return n
}

// Package admins picks the administrator an approval request is routed to.
package admins

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/models"
)

const op = "resolve admin"

// Resolver returns the id of the admin who should review a new booking.
// db is the caller's transaction; implementations must not use another
// connection. apperrors.ErrNoAdmin is returned when nobody is available.
type Resolver interface {
	ResolveAdmin(ctx context.Context, db bun.IDB) (int64, error)
}

// RoleResolver picks the lowest-id user holding the admin role.
type RoleResolver struct{}

func (RoleResolver) ResolveAdmin(ctx context.Context, db bun.IDB) (int64, error) {
	var id int64
	err := db.NewSelect().
		Model((*models.User)(nil)).
		Column("id").
		Where("role = ?", models.RoleAdmin).
		OrderExpr("id ASC").
		Limit(1).
		Scan(ctx, &id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.New(apperrors.KindNoAdmin, op, "no user with the admin role")
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// StaticResolver always routes to one configured admin. The id must still
// belong to a user with the admin role.
type StaticResolver struct {
	AdminID int64
}

func (r StaticResolver) ResolveAdmin(ctx context.Context, db bun.IDB) (int64, error) {
	if r.AdminID <= 0 {
		return 0, apperrors.New(apperrors.KindNoAdmin, op, "no static admin configured")
	}
	ok, err := isAdmin(ctx, db, r.AdminID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, apperrors.Newf(apperrors.KindNoAdmin, op, "static admin %d is not an admin user", r.AdminID)
	}
	return r.AdminID, nil
}

func isAdmin(ctx context.Context, db bun.IDB, id int64) (bool, error) {
	return db.NewSelect().
		Model((*models.User)(nil)).
		Where("id = ?", id).
		Where("role = ?", models.RoleAdmin).
		Exists(ctx)
}

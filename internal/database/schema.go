package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

// Models lists every table the service touches, in creation order.
func Models() []interface{} {
	return []interface{}{
		(*models.User)(nil),
		(*models.Booking)(nil),
		(*models.ApprovalRecord)(nil),
		(*models.AnalyticsEvent)(nil),
		(*models.AnalyticsDelivery)(nil),
		(*models.Notification)(nil),
	}
}

// CreateSchema creates the tables from the bun models. Production Postgres
// uses the SQL files in migrations/ instead.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, m := range Models() {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}
	return nil
}

// DropSchema drops the tables in reverse order.
func DropSchema(ctx context.Context, db bun.IDB) error {
	ms := Models()
	for i := len(ms) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(ms[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", ms[i], err)
		}
	}
	return nil
}

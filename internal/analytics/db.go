package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

// DB handles analytics database operations
type DB struct {
	Bun *bun.DB
}

func (d *DB) conn(idb bun.IDB) bun.IDB {
	if idb == nil {
		return d.Bun
	}
	return idb
}

// ListUndelivered returns up to limit analytics rows with no delivery
// record, oldest first.
func (d *DB) ListUndelivered(ctx context.Context, idb bun.IDB, limit int) ([]models.AnalyticsEvent, error) {
	var events []models.AnalyticsEvent
	err := d.conn(idb).NewSelect().
		Model(&events).
		Where("NOT EXISTS (SELECT 1 FROM analytics_deliveries AS d WHERE d.analytics_id = ae.id)").
		OrderExpr("ae.id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list undelivered analytics: %w", err)
	}
	return events, nil
}

// MarkDelivered records delivery of the given analytics ids.
func (d *DB) MarkDelivered(ctx context.Context, idb bun.IDB, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	rows := make([]models.AnalyticsDelivery, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, models.AnalyticsDelivery{AnalyticsID: id, DeliveredAt: at})
	}
	if _, err := d.conn(idb).NewInsert().Model(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("mark analytics delivered: %w", err)
	}
	return nil
}

// CountUndelivered is the relay backlog.
func (d *DB) CountUndelivered(ctx context.Context, idb bun.IDB) (int, error) {
	n, err := d.conn(idb).NewSelect().
		Model((*models.AnalyticsEvent)(nil)).
		Where("NOT EXISTS (SELECT 1 FROM analytics_deliveries AS d WHERE d.analytics_id = ae.id)").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count undelivered analytics: %w", err)
	}
	return n, nil
}

// StatusTotals aggregates bookings per type and status.
func (d *DB) StatusTotals(ctx context.Context, idb bun.IDB) ([]StatusTotal, error) {
	var totals []StatusTotal
	err := d.conn(idb).NewSelect().
		Model((*models.Booking)(nil)).
		ColumnExpr("booking_type").
		ColumnExpr("status").
		ColumnExpr("COUNT(*) AS bookings").
		ColumnExpr("COALESCE(SUM(price), 0) AS revenue").
		Group("booking_type", "status").
		OrderExpr("booking_type ASC, status ASC").
		Scan(ctx, &totals)
	if err != nil {
		return nil, fmt.Errorf("aggregate bookings: %w", err)
	}
	return totals, nil
}

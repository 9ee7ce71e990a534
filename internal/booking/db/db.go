package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/models"
)

// DB is the booking store. Every method takes the bun.IDB to run on, which
// is the coordinator's transaction for writes. A nil idb falls back to the
// pool.
type DB struct {
	Bun *bun.DB
}

func (d *DB) conn(idb bun.IDB) bun.IDB {
	if idb == nil {
		return d.Bun
	}
	return idb
}

// ---------------- BOOKINGS ----------------

// InsertBooking → insert a booking row and fill in its ID
func (d *DB) InsertBooking(ctx context.Context, idb bun.IDB, b *models.Booking) error {
	if _, err := d.conn(idb).NewInsert().Model(b).Exec(ctx); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// GetBooking → fetch one booking by type and id
func (d *DB) GetBooking(ctx context.Context, idb bun.IDB, t models.BookingType, id int64) (*models.Booking, error) {
	var b models.Booking
	err := d.conn(idb).NewSelect().
		Model(&b).
		Where("id = ?", id).
		Where("booking_type = ?", t).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.KindNotFound, "get booking", "%s booking %d not found", t, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &b, nil
}

// UpdateBookingStatus → move b to status if it is still in one of from.
// Reports false when nothing matched.
func (d *DB) UpdateBookingStatus(ctx context.Context, idb bun.IDB, b *models.Booking, status models.BookingStatus, from []models.BookingStatus) (bool, error) {
	now := time.Now().UTC()
	res, err := d.conn(idb).NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", now).
		Where("id = ?", b.ID).
		Where("booking_type = ?", b.Type).
		Where("status IN (?)", bun.In(from)).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}
	if n == 1 {
		b.Status = status
		b.UpdatedAt = now
	}
	return n == 1, nil
}

// ListBookingsByUser → newest first
func (d *DB) ListBookingsByUser(ctx context.Context, idb bun.IDB, userID int64) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.conn(idb).NewSelect().
		Model(&bookings).
		Where("user_id = ?", userID).
		OrderExpr("id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// ---------------- APPROVALS ----------------

// InsertApproval → insert the pending approval for a new booking
func (d *DB) InsertApproval(ctx context.Context, idb bun.IDB, a *models.ApprovalRecord) error {
	if _, err := d.conn(idb).NewInsert().Model(a).Exec(ctx); err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}

// LockApproval reads the approval for (t, id) and, on Postgres, holds a row
// lock until the transaction ends. SQLite transactions already exclude each
// other.
func (d *DB) LockApproval(ctx context.Context, idb bun.IDB, t models.BookingType, id int64) (*models.ApprovalRecord, error) {
	conn := d.conn(idb)
	var a models.ApprovalRecord
	q := conn.NewSelect().
		Model(&a).
		Where("booking_type = ?", t).
		Where("booking_id = ?", id).
		Limit(1)
	if conn.Dialect().Name() != dialect.SQLite {
		q = q.For("UPDATE")
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.KindNotFound, "lock approval", "no approval for %s booking %d", t, id)
	}
	if err != nil {
		return nil, fmt.Errorf("lock approval: %w", err)
	}
	return &a, nil
}

// GetApproval → plain read of the approval for (t, id)
func (d *DB) GetApproval(ctx context.Context, idb bun.IDB, t models.BookingType, id int64) (*models.ApprovalRecord, error) {
	var a models.ApprovalRecord
	err := d.conn(idb).NewSelect().
		Model(&a).
		Where("booking_type = ?", t).
		Where("booking_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.KindNotFound, "get approval", "no approval for %s booking %d", t, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get approval: %w", err)
	}
	return &a, nil
}

// ResolveApproval writes a's status, admin, notes and resolved_at, but only
// while the stored row is still pending. Reports false when it was not.
func (d *DB) ResolveApproval(ctx context.Context, idb bun.IDB, a *models.ApprovalRecord) (bool, error) {
	res, err := d.conn(idb).NewUpdate().
		Model(a).
		Column("status", "admin_id", "notes", "resolved_at").
		Where("id = ?", a.ID).
		Where("status = ?", models.ApprovalStatusPending).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("resolve approval: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve approval: %w", err)
	}
	return n == 1, nil
}

// ---------------- ANALYTICS & NOTIFICATIONS ----------------

// InsertAnalyticsEvent → append one analytics row
func (d *DB) InsertAnalyticsEvent(ctx context.Context, idb bun.IDB, e *models.AnalyticsEvent) error {
	if _, err := d.conn(idb).NewInsert().Model(e).Exec(ctx); err != nil {
		return fmt.Errorf("insert analytics event: %w", err)
	}
	return nil
}

// InsertNotification → append one notification row
func (d *DB) InsertNotification(ctx context.Context, idb bun.IDB, n *models.Notification) error {
	if _, err := d.conn(idb).NewInsert().Model(n).Exec(ctx); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotificationsByUser → newest first, at most limit rows (0 means all)
func (d *DB) ListNotificationsByUser(ctx context.Context, idb bun.IDB, userID int64, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	q := d.conn(idb).NewSelect().
		Model(&notifications).
		Where("user_id = ?", userID).
		OrderExpr("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

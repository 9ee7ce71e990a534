package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// ApprovalRecord gates a booking's final status. One row per
// (booking_type, booking_id); it is written once at creation and mutated
// exactly once on resolution.
type ApprovalRecord struct {
	bun.BaseModel `bun:"table:booking_approvals"`

	ID          int64          `bun:"id,pk,autoincrement" json:"id"`
	BookingType BookingType    `bun:"booking_type,notnull,unique:booking_approvals_booking_key" json:"bookingType"`
	BookingID   int64          `bun:"booking_id,notnull,unique:booking_approvals_booking_key" json:"bookingId"`
	Status      ApprovalStatus `bun:"status,notnull" json:"status"`
	AdminID     *int64         `bun:"admin_id" json:"adminId,omitempty"`
	Notes       *string        `bun:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time      `bun:"created_at,notnull" json:"createdAt"`
	ResolvedAt  *time.Time     `bun:"resolved_at" json:"resolvedAt,omitempty"`
}

func (a *ApprovalRecord) IsResolved() bool {
	return a.Status != ApprovalStatusPending
}

// Decision is the verdict an admin records on a pending approval.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

func (d Decision) ApprovalStatus() ApprovalStatus {
	return ApprovalStatus(d)
}

func (d Decision) BookingStatus() BookingStatus {
	return BookingStatus(d)
}

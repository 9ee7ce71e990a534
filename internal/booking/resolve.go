package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/models"
)

const resolveOp = "resolve booking approval"

// ApproveBooking resolves the pending approval for (t, id) as approved.
// notes is optional.
func (s *Service) ApproveBooking(ctx context.Context, t models.BookingType, id, adminID int64, notes *string) error {
	return s.resolve(ctx, t, id, adminID, models.DecisionApproved, notes)
}

// RejectBooking resolves the pending approval for (t, id) as rejected.
// notes must not be blank.
func (s *Service) RejectBooking(ctx context.Context, t models.BookingType, id, adminID int64, notes string) error {
	return s.resolve(ctx, t, id, adminID, models.DecisionRejected, &notes)
}

// resolve locks the approval, checks it is still pending, records the
// decision, moves the booking and notifies its owner, all in one
// transaction. Of several concurrent calls on one key at most one commits;
// the others get AlreadyResolved, or a serialization error once retries run
// out.
func (s *Service) resolve(ctx context.Context, t models.BookingType, id, adminID int64, d models.Decision, notes *string) error {
	notes, err := validateResolution(t, id, adminID, d, notes)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s/%d", t, id)

	err = s.Tx.Run(ctx, "resolve_booking_approval", func(ctx context.Context, tx bun.Tx) error {
		approval, err := s.Store.LockApproval(ctx, tx, t, id)
		if err != nil {
			return err
		}
		if approval.IsResolved() {
			return alreadyResolved(key, string(approval.Status))
		}

		now := s.now()
		approval.Status = d.ApprovalStatus()
		approval.AdminID = &adminID
		approval.Notes = notes
		approval.ResolvedAt = &now
		ok, err := s.Store.ResolveApproval(ctx, tx, approval)
		if err != nil {
			return err
		}
		if !ok {
			return alreadyResolved(key, "resolved")
		}

		b, err := s.Store.GetBooking(ctx, tx, t, id)
		if err != nil {
			return err
		}
		next := d.BookingStatus()
		if !b.CanTransitionTo(next) {
			return alreadyResolved(key, string(b.Status))
		}
		ok, err = s.Store.UpdateBookingStatus(ctx, tx, b, next, models.Resolvable())
		if err != nil {
			return err
		}
		if !ok {
			return alreadyResolved(key, "resolved")
		}

		return s.Store.InsertNotification(ctx, tx, ownerNotification(b, adminID, d, notes, now))
	})
	if err != nil {
		s.Logger.Warn("APPROVAL", fmt.Sprintf("%s %s by admin %d failed: %v", d, key, adminID, err))
		return err
	}

	s.Metrics.ApprovalResolved(string(t), string(d))
	s.Logger.LogApproval(strings.ToUpper(string(d)), key, fmt.Sprintf("admin %d", adminID))
	return nil
}

// validateResolution normalises notes: blank approval notes become nil,
// rejection notes are required.
func validateResolution(t models.BookingType, id, adminID int64, d models.Decision, notes *string) (*string, error) {
	fields := map[string]string{}
	if !t.Valid() {
		fields["bookingType"] = "oneof=flight hotel"
	}
	if id <= 0 {
		fields["bookingId"] = "gt=0"
	}
	if adminID <= 0 {
		fields["adminId"] = "gt=0"
	}

	var trimmed *string
	if notes != nil {
		if n := strings.TrimSpace(*notes); n != "" {
			trimmed = &n
		}
	}
	if d == models.DecisionRejected && trimmed == nil {
		fields["notes"] = "required"
	}

	if len(fields) > 0 {
		return nil, apperrors.Validation(resolveOp, fields)
	}
	return trimmed, nil
}

func alreadyResolved(key, status string) error {
	return apperrors.Newf(apperrors.KindAlreadyResolved, resolveOp, "approval %s is already %s", key, status)
}

func ownerNotification(b *models.Booking, adminID int64, d models.Decision, notes *string, now time.Time) *models.Notification {
	n := &models.Notification{
		UserID:    b.UserID,
		AdminID:   &adminID,
		CreatedAt: now,
	}
	switch d {
	case models.DecisionApproved:
		n.Title = "Booking approved"
		n.Type = models.NotificationSuccess
	default:
		n.Title = "Booking rejected"
		n.Type = models.NotificationWarning
	}
	n.Message = fmt.Sprintf("Your %s booking %s (%s) was %s.", b.Type, b.BookingReference, b.Summary(), d)
	if notes != nil {
		n.Message += " Notes: " + *notes
	}
	return n
}

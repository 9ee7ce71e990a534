package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/models"
)

func (s *Service) CreateFlightBooking(ctx context.Context, in models.FlightBookingInput) (*models.Booking, error) {
	return s.create(ctx, in)
}

func (s *Service) CreateHotelBooking(ctx context.Context, in models.HotelBookingInput) (*models.Booking, error) {
	return s.create(ctx, in)
}

// create writes the booking, its pending approval, the analytics event and
// the admin notification in one transaction, in that order.
func (s *Service) create(ctx context.Context, in models.BookingInput) (*models.Booking, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	t := in.BookingType()

	var created *models.Booking
	err := s.Tx.Run(ctx, "create_"+string(t)+"_booking", func(ctx context.Context, tx bun.Tx) error {
		ref, err := s.newReference(t)
		if err != nil {
			return err
		}
		now := s.now()

		b := in.ToBooking(ref, now)
		if err := s.Store.InsertBooking(ctx, tx, b); err != nil {
			return err
		}

		approval := &models.ApprovalRecord{
			BookingType: t,
			BookingID:   b.ID,
			Status:      models.ApprovalStatusPending,
			CreatedAt:   now,
		}
		if err := s.Store.InsertApproval(ctx, tx, approval); err != nil {
			return err
		}

		event := &models.AnalyticsEvent{
			EventType: models.BookingCreatedEventType(t),
			UserID:    b.UserID,
			Data:      analyticsPayload(b),
			CreatedAt: now,
		}
		if err := s.Store.InsertAnalyticsEvent(ctx, tx, event); err != nil {
			return err
		}

		adminID, err := s.resolveAdmin(ctx, tx, b)
		if err != nil {
			return err
		}
		notification := &models.Notification{
			UserID:    b.UserID,
			AdminID:   adminID,
			Title:     fmt.Sprintf("New %s booking awaiting approval", t),
			Message:   fmt.Sprintf("Booking %s (%s) by user %d requires review.", b.BookingReference, b.Summary(), b.UserID),
			Type:      models.NotificationInfo,
			CreatedAt: now,
		}
		if err := s.Store.InsertNotification(ctx, tx, notification); err != nil {
			return err
		}

		created = b
		return nil
	})
	if err != nil {
		s.Logger.Error("BOOKING", fmt.Sprintf("Create %s booking for user %d failed: %v", t, bookingUser(in), err))
		return nil, err
	}

	s.Metrics.BookingCreated(string(t))
	s.Logger.LogBooking("CREATE", created.BookingReference, fmt.Sprintf("%s booking %d for user %d", t, created.ID, created.UserID))
	return created, nil
}

// resolveAdmin applies the no-admin policy. A nil id is only returned when
// unassigned notifications are allowed.
func (s *Service) resolveAdmin(ctx context.Context, tx bun.Tx, b *models.Booking) (*int64, error) {
	id, err := s.Admins.ResolveAdmin(ctx, tx)
	if err == nil {
		return &id, nil
	}
	if errors.Is(err, apperrors.ErrNoAdmin) && s.opts.AllowUnassignedAdmin {
		s.Logger.Warn("BOOKING", fmt.Sprintf("No admin available for %s, notification left unassigned", b.BookingReference))
		return nil, nil
	}
	return nil, err
}

func analyticsPayload(b *models.Booking) map[string]interface{} {
	data := map[string]interface{}{
		"bookingId":        b.ID,
		"bookingReference": b.BookingReference,
		"bookingType":      string(b.Type),
		"price":            b.Price,
	}
	switch b.Type {
	case models.BookingTypeFlight:
		data["airline"] = b.Airline
		data["flightNumber"] = b.FlightNumber
		data["origin"] = b.Origin
		data["destination"] = b.Destination
		data["departureDate"] = b.DepartureDate.Format(models.DateLayout)
		if b.ReturnDate != nil {
			data["returnDate"] = b.ReturnDate.Format(models.DateLayout)
		}
		data["passengers"] = b.Passengers
	case models.BookingTypeHotel:
		data["hotelName"] = b.HotelName
		data["hotelCity"] = b.HotelCity
		data["checkInDate"] = b.CheckInDate.Format(models.DateLayout)
		data["checkOutDate"] = b.CheckOutDate.Format(models.DateLayout)
		data["guests"] = b.Guests
		data["rooms"] = b.Rooms
	}
	return data
}

func bookingUser(in models.BookingInput) int64 {
	switch v := in.(type) {
	case models.FlightBookingInput:
		return v.UserID
	case models.HotelBookingInput:
		return v.UserID
	}
	return 0
}

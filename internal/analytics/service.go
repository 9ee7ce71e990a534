package analytics

import (
	"context"

	"ms-booking/internal/models"
)

// StatusTotal is the number of bookings and their summed price for one
// (type, status) pair.
type StatusTotal struct {
	BookingType string  `bun:"booking_type" json:"bookingType"`
	Status      string  `bun:"status" json:"status"`
	Bookings    int     `bun:"bookings" json:"bookings"`
	Revenue     float64 `bun:"revenue" json:"revenue"`
}

// Summary is the booking analytics overview served to operators.
type Summary struct {
	Totals          []StatusTotal `json:"totals"`
	TotalBookings   int           `json:"totalBookings"`
	ApprovedRevenue float64       `json:"approvedRevenue"`
	PendingReview   int           `json:"pendingReview"`
	// RelayBacklog counts analytics events not yet forwarded downstream.
	RelayBacklog int `json:"relayBacklog"`
}

// Service handles analytics operations
type Service struct {
	DB *DB
}

func NewService(db *DB) *Service {
	return &Service{DB: db}
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	totals, err := s.DB.StatusTotals(ctx, nil)
	if err != nil {
		return nil, err
	}
	backlog, err := s.DB.CountUndelivered(ctx, nil)
	if err != nil {
		return nil, err
	}

	out := &Summary{Totals: totals, RelayBacklog: backlog}
	for _, t := range totals {
		out.TotalBookings += t.Bookings
		switch models.BookingStatus(t.Status) {
		case models.BookingStatusApproved:
			out.ApprovedRevenue += t.Revenue
		case models.BookingStatusPending, models.BookingStatusConfirmed:
			out.PendingReview += t.Bookings
		}
	}
	return out, nil
}

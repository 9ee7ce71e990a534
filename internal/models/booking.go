package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingType string

const (
	BookingTypeFlight BookingType = "flight"
	BookingTypeHotel  BookingType = "hotel"
)

func (t BookingType) Valid() bool {
	return t == BookingTypeFlight || t == BookingTypeHotel
}

// ParseBookingType accepts the path/wire spelling of a booking type.
func ParseBookingType(s string) (BookingType, bool) {
	t := BookingType(s)
	return t, t.Valid()
}

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusApproved  BookingStatus = "approved"
	BookingStatusRejected  BookingStatus = "rejected"
)

// Booking is the single storage row for both variants. Columns belonging to
// the other variant stay NULL.
type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID               int64         `bun:"id,pk,autoincrement" json:"id"`
	Type             BookingType   `bun:"booking_type,notnull" json:"type"`
	UserID           int64         `bun:"user_id,notnull" json:"userId"`
	BookingReference string        `bun:"booking_reference,notnull,unique" json:"bookingReference"`
	Status           BookingStatus `bun:"status,notnull" json:"status"`
	Price            float64       `bun:"price,notnull" json:"price"`

	Airline       string     `bun:"airline,nullzero" json:"airline,omitempty"`
	FlightNumber  string     `bun:"flight_number,nullzero" json:"flightNumber,omitempty"`
	Origin        string     `bun:"origin,nullzero" json:"origin,omitempty"`
	Destination   string     `bun:"destination,nullzero" json:"destination,omitempty"`
	DepartureDate *time.Time `bun:"departure_date" json:"departureDate,omitempty"`
	ReturnDate    *time.Time `bun:"return_date" json:"returnDate,omitempty"`
	Passengers    int        `bun:"passengers,nullzero" json:"passengers,omitempty"`

	HotelName    string     `bun:"hotel_name,nullzero" json:"hotelName,omitempty"`
	HotelCity    string     `bun:"hotel_city,nullzero" json:"hotelCity,omitempty"`
	CheckInDate  *time.Time `bun:"check_in_date" json:"checkInDate,omitempty"`
	CheckOutDate *time.Time `bun:"check_out_date" json:"checkOutDate,omitempty"`
	Guests       int        `bun:"guests,nullzero" json:"guests,omitempty"`
	Rooms        int        `bun:"rooms,nullzero" json:"rooms,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// CanTransitionTo reports whether the booking may move to next. Status only
// advances pending/confirmed -> approved|rejected.
func (b *Booking) CanTransitionTo(next BookingStatus) bool {
	switch b.Status {
	case BookingStatusPending, BookingStatusConfirmed:
		return next == BookingStatusApproved || next == BookingStatusRejected
	default:
		return false
	}
}

// Resolvable lists the statuses a booking may be resolved from.
func Resolvable() []BookingStatus {
	return []BookingStatus{BookingStatusPending, BookingStatusConfirmed}
}

// Summary is a short human label used in notification text.
func (b *Booking) Summary() string {
	if b.Type == BookingTypeFlight {
		return b.Airline + " " + b.FlightNumber + " " + b.Origin + " → " + b.Destination
	}
	return b.HotelName + ", " + b.HotelCity
}

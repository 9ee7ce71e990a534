package models

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"ms-booking/internal/apperrors"
)

const DateLayout = "2006-01-02"

// MaxPrice is the largest value the NUMERIC(12,2) price column holds. It
// matches the lte rule on the price tags.
const MaxPrice = 9999999999.99

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	v.RegisterValidation("notblank", validators.NotBlank)
	v.RegisterValidation("cents", hasCents)
	return v
}

// hasCents accepts floats whose shortest decimal form has at most two
// fractional digits.
func hasCents(fl validator.FieldLevel) bool {
	s := strconv.FormatFloat(fl.Field().Float(), 'f', -1, 64)
	dot := strings.IndexByte(s, '.')
	return dot < 0 || len(s)-dot-1 <= 2
}

// BookingInput is the tagged variant accepted by the creation workflow.
// Only FlightBookingInput and HotelBookingInput implement it.
type BookingInput interface {
	BookingType() BookingType
	Validate() error
	ToBooking(reference string, now time.Time) *Booking
	isBookingInput()
}

type FlightBookingInput struct {
	UserID        int64   `json:"userId" validate:"required,gt=0"`
	Airline       string  `json:"airline" validate:"required,notblank,max=64"`
	FlightNumber  string  `json:"flightNumber" validate:"required,notblank,max=16"`
	Origin        string  `json:"origin" validate:"required,notblank,max=64"`
	Destination   string  `json:"destination" validate:"required,notblank,max=64,nefield=Origin"`
	DepartureDate string  `json:"departureDate" validate:"required,datetime=2006-01-02"`
	ReturnDate    string  `json:"returnDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Passengers    int     `json:"passengers,omitempty" validate:"omitempty,gte=1,lte=9"`
	Price         float64 `json:"price" validate:"required,gt=0,lte=9999999999.99,cents"`
}

func (FlightBookingInput) BookingType() BookingType { return BookingTypeFlight }
func (FlightBookingInput) isBookingInput()          {}

func (in FlightBookingInput) Validate() error {
	fields := structErrors(validate.Struct(in))
	if fields == nil {
		fields = map[string]string{}
	}
	if _, ok := fields["destination"]; !ok && strings.TrimSpace(in.Destination) == strings.TrimSpace(in.Origin) {
		fields["destination"] = "nefield=Origin"
	}
	if _, ok := fields["departureDate"]; !ok && in.ReturnDate != "" {
		if _, ok := fields["returnDate"]; !ok {
			dep, _ := time.Parse(DateLayout, in.DepartureDate)
			ret, _ := time.Parse(DateLayout, in.ReturnDate)
			if ret.Before(dep) {
				fields["returnDate"] = "must not be before departureDate"
			}
		}
	}
	if len(fields) > 0 {
		return apperrors.Validation("validate flight booking", fields)
	}
	return nil
}

func (in FlightBookingInput) ToBooking(reference string, now time.Time) *Booking {
	dep := mustDate(in.DepartureDate)
	b := &Booking{
		Type:             BookingTypeFlight,
		UserID:           in.UserID,
		BookingReference: reference,
		Status:           BookingStatusConfirmed,
		Price:            in.Price,
		Airline:          strings.TrimSpace(in.Airline),
		FlightNumber:     strings.TrimSpace(in.FlightNumber),
		Origin:           strings.TrimSpace(in.Origin),
		Destination:      strings.TrimSpace(in.Destination),
		DepartureDate:    &dep,
		Passengers:       orOne(in.Passengers),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if in.ReturnDate != "" {
		ret := mustDate(in.ReturnDate)
		b.ReturnDate = &ret
	}
	return b
}

type HotelBookingInput struct {
	UserID       int64   `json:"userId" validate:"required,gt=0"`
	HotelName    string  `json:"hotelName" validate:"required,notblank,max=128"`
	HotelCity    string  `json:"hotelCity" validate:"required,notblank,max=64"`
	CheckInDate  string  `json:"checkInDate" validate:"required,datetime=2006-01-02"`
	CheckOutDate string  `json:"checkOutDate" validate:"required,datetime=2006-01-02"`
	Guests       int     `json:"guests,omitempty" validate:"omitempty,gte=1,lte=20"`
	Rooms        int     `json:"rooms,omitempty" validate:"omitempty,gte=1,lte=10"`
	Price        float64 `json:"price" validate:"required,gt=0,lte=9999999999.99,cents"`
}

func (HotelBookingInput) BookingType() BookingType { return BookingTypeHotel }
func (HotelBookingInput) isBookingInput()          {}

func (in HotelBookingInput) Validate() error {
	fields := structErrors(validate.Struct(in))
	if fields == nil {
		fields = map[string]string{}
	}
	_, badIn := fields["checkInDate"]
	_, badOut := fields["checkOutDate"]
	if !badIn && !badOut {
		checkIn, _ := time.Parse(DateLayout, in.CheckInDate)
		checkOut, _ := time.Parse(DateLayout, in.CheckOutDate)
		if !checkOut.After(checkIn) {
			fields["checkOutDate"] = "must be after checkInDate"
		}
	}
	if len(fields) > 0 {
		return apperrors.Validation("validate hotel booking", fields)
	}
	return nil
}

func (in HotelBookingInput) ToBooking(reference string, now time.Time) *Booking {
	checkIn := mustDate(in.CheckInDate)
	checkOut := mustDate(in.CheckOutDate)
	return &Booking{
		Type:             BookingTypeHotel,
		UserID:           in.UserID,
		BookingReference: reference,
		Status:           BookingStatusConfirmed,
		Price:            in.Price,
		HotelName:        strings.TrimSpace(in.HotelName),
		HotelCity:        strings.TrimSpace(in.HotelCity),
		CheckInDate:      &checkIn,
		CheckOutDate:     &checkOut,
		Guests:           orOne(in.Guests),
		Rooms:            orOne(in.Rooms),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func structErrors(err error) map[string]string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields[fe.Field()] = rule
	}
	return fields
}

// mustDate is only called on already validated input.
func mustDate(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic("models: unvalidated date " + s)
	}
	return t
}

func orOne(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

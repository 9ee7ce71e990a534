package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/booking/db"
	"ms-booking/internal/database/dbtest"
	"ms-booking/internal/models"
)

func setupTestDB(t *testing.T) *db.DB {
	return &db.DB{Bun: dbtest.NewSQLite(t)}
}

func hotelBooking(ref string) *models.Booking {
	checkIn := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	checkOut := checkIn.AddDate(0, 0, 3)
	now := time.Now().UTC()
	return &models.Booking{
		Type:             models.BookingTypeHotel,
		UserID:           7,
		BookingReference: ref,
		Status:           models.BookingStatusConfirmed,
		Price:            420,
		HotelName:        "Grand Plaza",
		HotelCity:        "Rome",
		CheckInDate:      &checkIn,
		CheckOutDate:     &checkOut,
		Guests:           2,
		Rooms:            1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func pendingApproval(b *models.Booking) *models.ApprovalRecord {
	return &models.ApprovalRecord{
		BookingType: b.Type,
		BookingID:   b.ID,
		Status:      models.ApprovalStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestInsertAndGetBooking(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	b := hotelBooking("HB00000001")
	require.NoError(t, store.InsertBooking(ctx, nil, b))
	assert.NotZero(t, b.ID)

	got, err := store.GetBooking(ctx, nil, models.BookingTypeHotel, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grand Plaza", got.HotelName)
	assert.Equal(t, models.BookingStatusConfirmed, got.Status)
	assert.Empty(t, got.Airline)
	assert.Nil(t, got.DepartureDate)

	_, err = store.GetBooking(ctx, nil, models.BookingTypeFlight, b.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "type is part of the key")
}

func TestInsertBookingDuplicateReference(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.InsertBooking(ctx, nil, hotelBooking("HB00000001")))
	assert.Error(t, store.InsertBooking(ctx, nil, hotelBooking("HB00000001")))
}

func TestUpdateBookingStatusIsConditional(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	b := hotelBooking("HB00000002")
	require.NoError(t, store.InsertBooking(ctx, nil, b))

	ok, err := store.UpdateBookingStatus(ctx, nil, b, models.BookingStatusApproved, models.Resolvable())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.BookingStatusApproved, b.Status)

	ok, err = store.UpdateBookingStatus(ctx, nil, b, models.BookingStatusRejected, models.Resolvable())
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.GetBooking(ctx, nil, b.Type, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusApproved, got.Status)
}

func TestLockAndResolveApproval(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	b := hotelBooking("HB00000003")
	require.NoError(t, store.InsertBooking(ctx, nil, b))
	require.NoError(t, store.InsertApproval(ctx, nil, pendingApproval(b)))

	a, err := store.LockApproval(ctx, nil, b.Type, b.ID)
	require.NoError(t, err)
	assert.False(t, a.IsResolved())

	admin := int64(3)
	notes := "looks fine"
	now := time.Now().UTC()
	a.Status = models.ApprovalStatusApproved
	a.AdminID = &admin
	a.Notes = &notes
	a.ResolvedAt = &now

	ok, err := store.ResolveApproval(ctx, nil, a)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ResolveApproval(ctx, nil, a)
	require.NoError(t, err)
	assert.False(t, ok, "second resolution must not match")

	got, err := store.GetApproval(ctx, nil, b.Type, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, got.Status)
	require.NotNil(t, got.AdminID)
	assert.Equal(t, admin, *got.AdminID)
	require.NotNil(t, got.Notes)
	assert.Equal(t, notes, *got.Notes)
	assert.NotNil(t, got.ResolvedAt)
}

func TestLockApprovalNotFound(t *testing.T) {
	store := setupTestDB(t)

	_, err := store.LockApproval(context.Background(), nil, models.BookingTypeFlight, 42)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestApprovalUniquePerBooking(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	b := hotelBooking("HB00000004")
	require.NoError(t, store.InsertBooking(ctx, nil, b))
	require.NoError(t, store.InsertApproval(ctx, nil, pendingApproval(b)))
	assert.Error(t, store.InsertApproval(ctx, nil, pendingApproval(b)))
}

func TestNotificationsAndAnalytics(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.InsertNotification(ctx, nil, &models.Notification{
			UserID:    7,
			Title:     "Booking update",
			Message:   "m",
			Type:      models.NotificationInfo,
			CreatedAt: time.Now().UTC(),
		}))
	}
	list, err := store.ListNotificationsByUser(ctx, nil, 7, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Greater(t, list[0].ID, list[1].ID)

	empty, err := store.ListNotificationsByUser(ctx, nil, 8, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	e := &models.AnalyticsEvent{
		EventType: models.BookingCreatedEventType(models.BookingTypeHotel),
		UserID:    7,
		Data:      map[string]interface{}{"bookingReference": "HB00000005", "price": 420.0},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.InsertAnalyticsEvent(ctx, nil, e))
	assert.NotZero(t, e.ID)
}

func TestListBookingsByUser(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.InsertBooking(ctx, nil, hotelBooking("HB00000006")))
	require.NoError(t, store.InsertBooking(ctx, nil, hotelBooking("HB00000007")))

	list, err := store.ListBookingsByUser(ctx, nil, 7)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "HB00000007", list[0].BookingReference)
}

package voucher

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/models"
)

func approvedBooking() *models.Booking {
	return &models.Booking{
		ID:               12,
		Type:             models.BookingTypeHotel,
		UserID:           7,
		BookingReference: "HB00000012",
		Status:           models.BookingStatusApproved,
	}
}

func TestSealAndOpen(t *testing.T) {
	g, err := NewGenerator("voucher-secret")
	require.NoError(t, err)

	token, err := g.Seal(approvedBooking())
	require.NoError(t, err)

	claims, err := g.Open(token)
	require.NoError(t, err)
	assert.Equal(t, "HB00000012", claims.Reference)
	assert.Equal(t, models.BookingTypeHotel, claims.Type)
	assert.Equal(t, int64(12), claims.BookingID)
	assert.Equal(t, int64(7), claims.UserID)
	assert.False(t, claims.IssuedAt.IsZero())
}

func TestOpenRejectsForeignOrTamperedTokens(t *testing.T) {
	g, _ := NewGenerator("voucher-secret")
	other, _ := NewGenerator("another-secret")

	token, err := g.Seal(approvedBooking())
	require.NoError(t, err)

	_, err = other.Open(token)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	tampered := []byte(token)
	if tampered[10] == 'A' {
		tampered[10] = 'B'
	} else {
		tampered[10] = 'A'
	}
	_, err = g.Open(string(tampered))
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = g.Open("!!")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestGenerateRequiresApproval(t *testing.T) {
	g, _ := NewGenerator("voucher-secret")

	b := approvedBooking()
	png, err := g.Generate(b)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	b.Status = models.BookingStatusConfirmed
	_, err = g.Generate(b)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"ms-booking/internal/models"
)

var referenceSpace = big.NewInt(100_000_000)

// ReferencePrefix is FB for flights and HB for hotels.
func ReferencePrefix(t models.BookingType) string {
	if t == models.BookingTypeFlight {
		return "FB"
	}
	return "HB"
}

// GenerateBookingReference returns the prefix followed by eight random
// digits, e.g. HB04718233.
func GenerateBookingReference(t models.BookingType) (string, error) {
	n, err := rand.Int(rand.Reader, referenceSpace)
	if err != nil {
		return "", fmt.Errorf("generate booking reference: %w", err)
	}
	return fmt.Sprintf("%s%08d", ReferencePrefix(t), n.Int64()), nil
}

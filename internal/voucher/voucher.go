// Package voucher issues QR vouchers for approved bookings. The QR content
// is a sealed token that only holders of the secret can open.
package voucher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/skip2/go-qrcode"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/models"
)

type Claims struct {
	Reference string               `json:"reference"`
	Type      models.BookingType   `json:"type"`
	BookingID int64                `json:"booking_id"`
	UserID    int64                `json:"user_id"`
	Status    models.BookingStatus `json:"status"`
	IssuedAt  time.Time            `json:"issued_at"`
}

type Generator struct {
	aead cipher.AEAD
	size int
}

func NewGenerator(secret string) (*Generator, error) {
	key := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Generator{aead: aead, size: 256}, nil
}

// Seal returns the URL-safe token for b. Only approved bookings get one.
func (g *Generator) Seal(b *models.Booking) (string, error) {
	if b.Status != models.BookingStatusApproved {
		return "", apperrors.Newf(apperrors.KindValidation, "issue voucher", "booking %s is %s, not approved", b.BookingReference, b.Status)
	}
	data, err := json.Marshal(Claims{
		Reference: b.BookingReference,
		Type:      b.Type,
		BookingID: b.ID,
		UserID:    b.UserID,
		Status:    b.Status,
		IssuedAt:  time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}

	nonce := make([]byte, g.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := g.aead.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Generate returns a PNG QR code carrying the sealed token.
func (g *Generator) Generate(b *models.Booking) ([]byte, error) {
	token, err := g.Seal(b)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, g.size)
}

// Open verifies and decodes a token produced by Seal.
func (g *Generator) Open(token string) (*Claims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "open voucher", err)
	}
	n := g.aead.NonceSize()
	if len(raw) < n {
		return nil, apperrors.New(apperrors.KindValidation, "open voucher", "token too short")
	}
	data, err := g.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "open voucher", fmt.Errorf("token rejected: %w", err))
	}
	var c Claims
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "open voucher", err)
	}
	return &c, nil
}

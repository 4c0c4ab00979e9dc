package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// QRTokenIssuer mints single-use gate tokens. Tokens embed the outpass id and
// issue timestamp for operator readability; the random suffix is what makes
// them unguessable.
type QRTokenIssuer struct {
	ttl time.Duration
}

// NewQRTokenIssuer builds an issuer with the given token lifetime.
func NewQRTokenIssuer(ttl time.Duration) QRTokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return QRTokenIssuer{ttl: ttl}
}

// TTL returns the configured token lifetime.
func (i QRTokenIssuer) TTL() time.Duration { return i.ttl }

// Issue mints a token for an outpass and returns it with its expiry.
func (i QRTokenIssuer) Issue(outpassID uint, now time.Time) (string, time.Time, error) {
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return "", time.Time{}, fmt.Errorf("generate token suffix: %w", err)
	}

	token := fmt.Sprintf("QR-%08d-%d-%s", outpassID, now.Unix(), hex.EncodeToString(suffix))

	return token, now.Add(i.ttl), nil
}

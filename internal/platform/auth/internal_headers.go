package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Headers set by the platform gateway after it has authenticated the
// caller. They are trusted only when the signature verifies.
const (
	HeaderSubject = "X-Custody-Subject"
	HeaderEmail   = "X-Custody-Email"
	HeaderRoles   = "X-Custody-Roles"

	HeaderInternalAuthTimestamp = "X-Custody-Auth-Ts"
	HeaderInternalAuthSignature = "X-Custody-Auth-Sig"
)

// SignedHeaders is the gateway assertion covered by the internal signature.
type SignedHeaders struct {
	Timestamp string
	Method    string
	Path      string
	RequestID string
	Subject   string
	Email     string
	Roles     string
}

func (h SignedHeaders) canonical() string {
	return strings.Join([]string{
		strings.TrimSpace(h.Timestamp),
		strings.ToUpper(strings.TrimSpace(h.Method)),
		strings.TrimSpace(h.Path),
		strings.TrimSpace(h.RequestID),
		strings.TrimSpace(h.Subject),
		strings.TrimSpace(h.Email),
		strings.TrimSpace(h.Roles),
	}, "\n")
}

func ComputeInternalAuthSignature(secret string, h SignedHeaders) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("internal auth secret is required")
	}
	if strings.TrimSpace(h.Timestamp) == "" {
		return "", errors.New("timestamp is required")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	if _, err := mac.Write([]byte(h.canonical())); err != nil {
		return "", fmt.Errorf("hmac: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

func VerifyInternalAuthSignature(secret string, h SignedHeaders, signature string) error {
	expected, err := ComputeInternalAuthSignature(secret, h)
	if err != nil {
		return err
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return errors.New("signature is required")
	}
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return errors.New("invalid signature")
	}
	return nil
}

func VerifyInternalAuthTimestamp(ts string, now time.Time, maxSkew time.Duration) error {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return errors.New("timestamp is required")
	}
	parsed, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}
	if maxSkew <= 0 {
		return nil
	}

	tsTime := time.Unix(parsed, 0).UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if tsTime.After(now.Add(maxSkew)) || tsTime.Before(now.Add(-maxSkew)) {
		return errors.New("timestamp outside allowed skew")
	}
	return nil
}

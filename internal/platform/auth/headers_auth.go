package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

type GatewayHeadersAuthenticator struct {
	Secret  string
	MaxSkew time.Duration
	now     func() time.Time
}

func NewGatewayHeadersAuthenticator(secret string) (*GatewayHeadersAuthenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("CUSTODY_INTERNAL_AUTH_SECRET is required")
	}
	return &GatewayHeadersAuthenticator{
		Secret:  secret,
		MaxSkew: 5 * time.Minute,
		now:     time.Now,
	}, nil
}

func (a *GatewayHeadersAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	signed := SignedHeaders{
		Timestamp: strings.TrimSpace(r.Header.Get(HeaderInternalAuthTimestamp)),
		Method:    r.Method,
		Path:      r.URL.Path,
		RequestID: r.Header.Get("X-Request-Id"),
		Subject:   strings.TrimSpace(r.Header.Get(HeaderSubject)),
		Email:     strings.TrimSpace(r.Header.Get(HeaderEmail)),
		Roles:     strings.TrimSpace(r.Header.Get(HeaderRoles)),
	}
	if signed.Subject == "" {
		return Identity{}, ErrUnauthenticated
	}
	sig := strings.TrimSpace(r.Header.Get(HeaderInternalAuthSignature))
	if signed.Timestamp == "" || sig == "" {
		return Identity{}, ErrUnauthenticated
	}

	now := time.Now
	if a.now != nil {
		now = a.now
	}
	if err := VerifyInternalAuthTimestamp(signed.Timestamp, now().UTC(), a.MaxSkew); err != nil {
		return Identity{}, err
	}
	if err := VerifyInternalAuthSignature(a.Secret, signed, sig); err != nil {
		return Identity{}, err
	}

	return Identity{
		Subject: signed.Subject,
		Email:   signed.Email,
		Roles:   parseCSV(signed.Roles),
	}, nil
}

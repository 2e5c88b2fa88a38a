package credential

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultWarningThreshold is how long before expiry a session counts as
// expiring soon.
const DefaultWarningThreshold = 5 * time.Minute

// Reason classifies why a token could not be decoded.
type Reason string

// Decode failure reasons
const (
	ReasonEmpty    Reason = "empty"
	ReasonSegments Reason = "segments"
	ReasonEncoding Reason = "encoding"
	ReasonPayload  Reason = "payload"
)

// DecodeError is returned for any token whose claims cannot be read.
type DecodeError struct {
	Reason Reason
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("decode credential: %s", e.Reason)
	}
	return fmt.Sprintf("decode credential: %s: %v", e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Claims are the fields of a token the client cares about.
type Claims struct {
	Subject   string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	// HasExpiry is false when the token carries no exp claim.
	HasExpiry bool
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

var parser = jwt.NewParser()

// Decode reads the claims of token without checking its signature.
func Decode(token string) (*Claims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &DecodeError{Reason: ReasonEmpty}
	}
	if strings.Count(token, ".") != 2 {
		return nil, &DecodeError{Reason: ReasonSegments, Err: jwt.ErrTokenMalformed}
	}

	var tc tokenClaims
	_, _, err := parser.ParseUnverified(token, &tc)
	// An unknown or missing alg only matters for verification, which is
	// never done here. The claims are already populated in that case.
	if err != nil && !errors.Is(err, jwt.ErrTokenUnverifiable) {
		return nil, classify(err)
	}

	c := &Claims{Subject: tc.Subject, Role: tc.Role}
	if tc.IssuedAt != nil {
		c.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
		c.HasExpiry = true
	}
	return c, nil
}

func classify(err error) *DecodeError {
	var corrupt base64.CorruptInputError
	if errors.As(err, &corrupt) {
		return &DecodeError{Reason: ReasonEncoding, Err: err}
	}
	return &DecodeError{Reason: ReasonPayload, Err: err}
}

func expiry(token string) (time.Time, bool) {
	c, err := Decode(token)
	if err != nil || !c.HasExpiry {
		return time.Time{}, false
	}
	return c.ExpiresAt, true
}

// IsExpired reports whether token is unusable at now. Tokens that fail to
// decode or have no exp claim are expired.
func IsExpired(token string, now time.Time) bool {
	exp, ok := expiry(token)
	if !ok {
		return true
	}
	return !now.Before(exp)
}

// TimeUntilExpiry returns the time left before token expires, or zero.
func TimeUntilExpiry(token string, now time.Time) time.Duration {
	exp, ok := expiry(token)
	if !ok {
		return 0
	}
	if d := exp.Sub(now); d > 0 {
		return d
	}
	return 0
}

// IsExpiringSoon reports whether token is still valid but expires within
// threshold. An expired token is not expiring soon.
func IsExpiringSoon(token string, now time.Time, threshold time.Duration) bool {
	remaining := TimeUntilExpiry(token, now)
	return remaining > 0 && remaining <= threshold
}

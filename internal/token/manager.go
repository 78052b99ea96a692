// Package token signs and parses the access/refresh JWT pair.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"mytune-auth/internal/model"
)

type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Reason is the internal cause of a rejected token. It is only ever logged
// or counted; callers outside the service see model.ErrInvalidToken.
type Reason string

const (
	ReasonMalformed        Reason = "malformed"
	ReasonSignature        Reason = "bad_signature"
	ReasonExpired          Reason = "expired"
	ReasonWrongType        Reason = "wrong_type"
	ReasonRevoked          Reason = "revoked"
	ReasonStoreUnavailable Reason = "store_unavailable"
)

type ValidationError struct {
	Reason Reason
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return "token rejected: " + string(e.Reason)
	}
	return fmt.Sprintf("token rejected: %s: %v", e.Reason, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the rejection reason, defaulting to malformed.
func ReasonOf(err error) Reason {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Reason
	}
	return ReasonMalformed
}

type Claims struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Type     Type   `json:"type"`
	jwt.RegisteredClaims
}

type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewManager(accessSecret string, refreshSecret string, accessTTL time.Duration, refreshTTL time.Duration) (*Manager, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("access and refresh secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}

	return &Manager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// SetClock replaces the time source used for iat/exp and validation.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

func (m *Manager) AccessTTL() time.Duration {
	return m.accessTTL
}

func (m *Manager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

func (m *Manager) NewTokenID() string {
	return uuid.NewString()
}

// Sign produces one token of the pair. Both tokens of a pair are signed from
// the same identity and jti and differ only in type, key and lifetime.
func (m *Manager) Sign(identity model.Identity, jti string, typ Type) (string, error) {
	secret, ttl, err := m.keyFor(typ)
	if err != nil {
		return "", err
	}

	now := m.now().UTC()
	claims := Claims{
		Email:    identity.Email,
		Nickname: identity.Nickname,
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(identity.UserID, 10),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

// Parse verifies signature, algorithm, expiry and type. It does not consult
// the session store.
func (m *Manager) Parse(tokenString string, expected Type) (*model.AuthClaims, error) {
	secret, _, err := m.keyFor(expected)
	if err != nil {
		return nil, &ValidationError{Reason: ReasonWrongType, Err: err}
	}

	var claims Claims
	_, err = jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, classify(err)
	}

	if claims.Type != expected {
		return nil, &ValidationError{Reason: ReasonWrongType, Err: fmt.Errorf("got %q, want %q", claims.Type, expected)}
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, &ValidationError{Reason: ReasonMalformed, Err: fmt.Errorf("subject %q", claims.Subject)}
	}
	if claims.ID == "" {
		return nil, &ValidationError{Reason: ReasonMalformed, Err: errors.New("missing jti")}
	}

	out := &model.AuthClaims{
		UserID:   userID,
		Email:    claims.Email,
		Nickname: claims.Nickname,
		Type:     string(claims.Type),
		TokenID:  claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

func (m *Manager) keyFor(typ Type) ([]byte, time.Duration, error) {
	switch typ {
	case TypeAccess:
		return m.accessSecret, m.accessTTL, nil
	case TypeRefresh:
		return m.refreshSecret, m.refreshTTL, nil
	default:
		return nil, 0, fmt.Errorf("unknown token type %q", typ)
	}
}

func classify(err error) *ValidationError {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &ValidationError{Reason: ReasonExpired, Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &ValidationError{Reason: ReasonSignature, Err: err}
	default:
		return &ValidationError{Reason: ReasonMalformed, Err: err}
	}
}

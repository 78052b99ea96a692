// Package password hashes and verifies peppered passwords with bcrypt.
package password

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const DefaultCost = 12

type Hasher struct {
	pepper []byte
	cost   int
	// dummy is compared against on unknown-email logins. It shares the
	// configured cost so the response time matches a real verification.
	dummy []byte
}

func NewHasher(pepper string, cost int) (*Hasher, error) {
	if pepper == "" {
		return nil, errors.New("password pepper is required")
	}
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	h := &Hasher{pepper: []byte(pepper), cost: cost}
	dummy, err := bcrypt.GenerateFromPassword(h.peppered("timing-equaliser"), cost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}
	h.dummy = dummy

	return h, nil
}

func (h *Hasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(h.peppered(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hash. Every failure, including a
// malformed hash, is reported as false.
func (h *Hasher) Verify(plaintext string, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), h.peppered(plaintext)) == nil
}

// DummyVerify burns one comparison and always reports false.
func (h *Hasher) DummyVerify(plaintext string) bool {
	_ = bcrypt.CompareHashAndPassword(h.dummy, h.peppered(plaintext))
	return false
}

// peppered keys an HMAC with the pepper so arbitrarily long inputs stay
// under bcrypt's 72 byte limit.
func (h *Hasher) peppered(plaintext string) []byte {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(plaintext))
	sum := mac.Sum(nil)

	out := make([]byte, base64.RawStdEncoding.EncodedLen(len(sum)))
	base64.RawStdEncoding.Encode(out, sum)
	return out
}

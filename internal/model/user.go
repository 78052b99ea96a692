package model

import "time"

type User struct {
	ID               int64      `json:"id"`
	Email            string     `json:"email"`
	Nickname         string     `json:"nickname"`
	PasswordHash     string     `json:"-"`
	IsActive         bool       `json:"isActive"`
	LoginAttempts    int        `json:"-"`
	LastLoginAttempt *time.Time `json:"-"`
	LastLoginAt      *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Public strips the accounting and credential fields.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Nickname:  u.Nickname,
		CreatedAt: u.CreatedAt,
	}
}

type PublicUser struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Nickname  string    `json:"nickname"`
	CreatedAt time.Time `json:"createdAt"`
}

// Identity is the snapshot embedded in both tokens of a pair and in the session entry.
type Identity struct {
	UserID   int64
	Email    string
	Nickname string
}

type AuthClaims struct {
	UserID    int64     `json:"sub"`
	Email     string    `json:"email"`
	Nickname  string    `json:"nickname"`
	Type      string    `json:"type"`
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

func (c AuthClaims) Identity() Identity {
	return Identity{UserID: c.UserID, Email: c.Email, Nickname: c.Nickname}
}

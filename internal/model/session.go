package model

import "time"

// Session is the immutable store entry behind a token pair.
type Session struct {
	UserID    int64     `json:"userId"`
	Email     string    `json:"email"`
	Nickname  string    `json:"nickname"`
	JTI       string    `json:"jti"`
	CreatedAt time.Time `json:"createdAt"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type AuthResult struct {
	User PublicUser `json:"user"`
	TokenPair
}

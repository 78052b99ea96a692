package service

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"mytune-auth/internal/model"
	"mytune-auth/pkg/apierror"
)

const (
	maxEmailLength    = 255
	minPasswordLength = 8
	maxPasswordLength = 128
	minNicknameLength = 2
	maxNicknameLength = 50
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return apierror.Validation("email", "email is required", model.ErrInvalidInput)
	}
	if len(email) > maxEmailLength {
		return apierror.Validation("email", "email is too long", model.ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return apierror.Validation("email", "email is not a valid address", model.ErrInvalidInput)
	}
	return nil
}

func validatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < minPasswordLength || n > maxPasswordLength {
		return apierror.Validation("password", "password must be between 8 and 128 characters", model.ErrInvalidInput)
	}

	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if !lower || !upper || !digit || !special {
		return apierror.Validation("password",
			"password must contain at least one lowercase letter, one uppercase letter, one number and one special character",
			model.ErrInvalidInput)
	}
	return nil
}

func validateNickname(nickname string) error {
	n := utf8.RuneCountInString(nickname)
	if n < minNicknameLength || n > maxNicknameLength {
		return apierror.Validation("nickname", "nickname must be between 2 and 50 characters", model.ErrInvalidInput)
	}
	return nil
}

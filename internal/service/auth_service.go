package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"mytune-auth/internal/event"
	"mytune-auth/internal/metrics"
	"mytune-auth/internal/model"
	"mytune-auth/internal/session"
	"mytune-auth/internal/token"
	"mytune-auth/pkg/apierror"
)

const DefaultStoreTimeout = 3 * time.Second

type AuthOptions struct {
	// StoreTimeout bounds every user store and session store call.
	StoreTimeout time.Duration
	// RevokeScan makes LogoutAll also sweep the whole session keyspace.
	RevokeScan bool
	Metrics    *metrics.Metrics
	// Events receives security events. Nil disables publishing.
	Events event.Bus
	Now    func() time.Time
}

type AuthService struct {
	users        UserStore
	sessions     session.Store
	tokens       *token.Manager
	hasher       CredentialVerifier
	governor     LoginGovernor
	storeTimeout time.Duration
	revokeScan   bool
	metrics      *metrics.Metrics
	events       event.Bus
	now          func() time.Time
}

func NewAuthService(users UserStore, sessions session.Store, tokens *token.Manager, hasher CredentialVerifier, governor LoginGovernor, opts AuthOptions) *AuthService {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultStoreTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &AuthService{
		users:        users,
		sessions:     sessions,
		tokens:       tokens,
		hasher:       hasher,
		governor:     governor,
		storeTimeout: opts.StoreTimeout,
		revokeScan:   opts.RevokeScan,
		metrics:      opts.Metrics,
		events:       opts.Events,
		now:          opts.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.AuthResult, error) {
	email := normalizeEmail(req.Email)
	nickname := strings.TrimSpace(req.Nickname)

	if err := validateEmail(email); err != nil {
		return model.AuthResult{}, err
	}
	if err := validatePassword(req.Password); err != nil {
		return model.AuthResult{}, err
	}
	if err := validateNickname(nickname); err != nil {
		return model.AuthResult{}, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	sctx, cancel := s.storeContext(ctx)
	user, err := s.users.Create(sctx, model.User{
		Email:        email,
		Nickname:     nickname,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	})
	cancel()
	if errors.Is(err, model.ErrEmailTaken) || errors.Is(err, model.ErrNicknameTaken) {
		return model.AuthResult{}, err
	}
	if err != nil {
		s.metrics.StoreError("user_create")
		return model.AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	slog.Info("user registered", "user_id", user.ID)
	s.emit(event.TypeUserRegistered, user.ID, nil)

	pair, err := s.issueTokenPair(ctx, identityOf(user))
	if err != nil {
		return model.AuthResult{}, err
	}
	return model.AuthResult{User: user.Public(), TokenPair: pair}, nil
}

// Login runs the governor, then the verifier. A locked account is rejected
// before the password is looked at.
func (s *AuthService) Login(ctx context.Context, email string, password string) (model.AuthResult, error) {
	email = normalizeEmail(email)

	sctx, cancel := s.storeContext(ctx)
	user, err := s.users.FindByEmail(sctx, email)
	cancel()
	if errors.Is(err, model.ErrUserNotFound) {
		s.hasher.DummyVerify(password)
		s.metrics.Login(metrics.LoginInvalid)
		slog.Warn("login rejected", "reason", "unknown_email")
		return model.AuthResult{}, model.ErrInvalidCredentials
	}
	if err != nil {
		s.metrics.Login(metrics.LoginStoreFailure)
		s.metrics.StoreError("user_find")
		return model.AuthResult{}, fmt.Errorf("find user: %w", err)
	}

	if !user.IsActive {
		s.metrics.Login(metrics.LoginDisabled)
		slog.Warn("login rejected", "reason", "disabled", "user_id", user.ID)
		return model.AuthResult{}, model.ErrAccountDisabled
	}

	now := s.now().UTC()
	if remaining := s.governor.LockRemaining(user, now); remaining > 0 {
		s.metrics.Login(metrics.LoginLocked)
		slog.Warn("login rejected", "reason", "locked", "user_id", user.ID, "retry_after", remaining)
		return model.AuthResult{}, &model.LockedError{RetryAfter: remaining}
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		sctx, cancel := s.storeContext(ctx)
		attempts, err := s.users.RecordFailedLogin(sctx, user.ID, now, s.governor.Window)
		cancel()
		if err != nil {
			s.metrics.StoreError("user_record_failure")
			return model.AuthResult{}, fmt.Errorf("record failed login: %w", err)
		}

		failure := s.governor.AfterFailure(attempts)
		if errors.Is(failure, model.ErrAccountLocked) {
			s.metrics.Login(metrics.LoginLocked)
			s.emit(event.TypeAccountLocked, user.ID, map[string]any{"attempts": attempts})
		} else {
			s.metrics.Login(metrics.LoginInvalid)
			s.emit(event.TypeLoginFailed, user.ID, map[string]any{"attempts": attempts})
		}
		slog.Warn("login rejected", "reason", "wrong_password", "user_id", user.ID, "attempts", attempts)
		return model.AuthResult{}, failure
	}

	sctx, cancel = s.storeContext(ctx)
	err = s.users.ResetLoginAccounting(sctx, user.ID, now)
	cancel()
	if err != nil {
		s.metrics.StoreError("user_reset_accounting")
		return model.AuthResult{}, fmt.Errorf("reset login accounting: %w", err)
	}

	pair, err := s.issueTokenPair(ctx, identityOf(user))
	if err != nil {
		return model.AuthResult{}, err
	}

	s.metrics.Login(metrics.LoginSuccess)
	slog.Info("user logged in", "user_id", user.ID)
	s.emit(event.TypeLoginSucceeded, user.ID, nil)
	return model.AuthResult{User: user.Public(), TokenPair: pair}, nil
}

// ValidateToken checks signature, expiry, type and session presence. Every
// rejection surfaces as model.ErrInvalidToken except a session store outage,
// which surfaces as model.ErrSessionStoreUnavailable.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string, expected token.Type) (*model.AuthClaims, error) {
	claims, err := s.tokens.Parse(tokenString, expected)
	if err != nil {
		return nil, s.reject(token.ReasonOf(err), err)
	}

	sctx, cancel := s.storeContext(ctx)
	exists, err := s.sessions.Exists(sctx, claims.TokenID)
	cancel()
	if err != nil {
		return nil, s.storeFailure("session_exists", err)
	}
	if !exists {
		return nil, s.reject(token.ReasonRevoked, nil)
	}

	return claims, nil
}

// Refresh rotates a refresh token. Only the call that deletes the old
// session may mint the new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	claims, err := s.ValidateToken(ctx, refreshToken, token.TypeRefresh)
	if err != nil {
		return model.TokenPair{}, err
	}

	sctx, cancel := s.storeContext(ctx)
	user, err := s.users.FindByID(sctx, claims.UserID)
	cancel()
	if errors.Is(err, model.ErrUserNotFound) || (err == nil && !user.IsActive) {
		return model.TokenPair{}, s.reject(token.ReasonRevoked, errors.New("user missing or inactive"))
	}
	if err != nil {
		s.metrics.StoreError("user_find")
		return model.TokenPair{}, fmt.Errorf("find user: %w", err)
	}

	sctx, cancel = s.storeContext(ctx)
	deleted, err := s.sessions.Delete(sctx, claims.TokenID)
	cancel()
	if err != nil {
		return model.TokenPair{}, s.storeFailure("session_delete", err)
	}
	if !deleted {
		return model.TokenPair{}, s.reject(token.ReasonRevoked, errors.New("session already rotated"))
	}
	s.metrics.SessionsRevokedBy(metrics.RevokeRotation, 1)

	return s.issueTokenPair(ctx, identityOf(user))
}

// Logout revokes one session. Revoking an absent session is not an error.
func (s *AuthService) Logout(ctx context.Context, jti string) error {
	sctx, cancel := s.storeContext(ctx)
	deleted, err := s.sessions.Delete(sctx, jti)
	cancel()
	if err != nil {
		return s.storeFailure("session_delete", err)
	}
	if deleted {
		s.metrics.SessionsRevokedBy(metrics.RevokeLogout, 1)
	}
	return nil
}

// LogoutAll revokes every session of the user and returns how many were
// removed. Sessions created concurrently may survive.
func (s *AuthService) LogoutAll(ctx context.Context, userID int64) (int, error) {
	sctx, cancel := s.storeContext(ctx)
	revoked, err := s.sessions.DeleteAllForUser(sctx, userID)
	cancel()
	if err != nil {
		return 0, s.storeFailure("session_delete_all", err)
	}

	if s.revokeScan {
		swept, err := s.sweepUnindexed(ctx, userID)
		if err != nil {
			return revoked, err
		}
		revoked += swept
	}

	s.metrics.SessionsRevokedBy(metrics.RevokeLogoutAll, revoked)
	slog.Info("sessions revoked", "user_id", userID, "count", revoked)
	s.emit(event.TypeSessionsRevoked, userID, map[string]any{"count": revoked})
	return revoked, nil
}

func (s *AuthService) sweepUnindexed(ctx context.Context, userID int64) (int, error) {
	sctx, cancel := s.storeContext(ctx)
	all, err := s.sessions.ScanByPrefix(sctx, session.KeyPrefix)
	cancel()
	if err != nil {
		return 0, s.storeFailure("session_scan", err)
	}

	swept := 0
	for _, sess := range all {
		if sess.UserID != userID {
			continue
		}
		sctx, cancel := s.storeContext(ctx)
		deleted, err := s.sessions.Delete(sctx, sess.JTI)
		cancel()
		if err != nil {
			return swept, s.storeFailure("session_delete", err)
		}
		if deleted {
			swept++
		}
	}
	return swept, nil
}

// Profile returns model.ErrUserNotFound for deleted or deactivated users.
func (s *AuthService) Profile(ctx context.Context, userID int64) (model.PublicUser, error) {
	sctx, cancel := s.storeContext(ctx)
	user, err := s.users.FindByID(sctx, userID)
	cancel()
	if err != nil {
		if !errors.Is(err, model.ErrUserNotFound) {
			s.metrics.StoreError("user_find")
		}
		return model.PublicUser{}, err
	}
	if !user.IsActive {
		return model.PublicUser{}, model.ErrUserNotFound
	}
	return user.Public(), nil
}

// ListSessions returns the user's live sessions, newest first.
func (s *AuthService) ListSessions(ctx context.Context, userID int64) ([]model.Session, error) {
	sctx, cancel := s.storeContext(ctx)
	sessions, err := s.sessions.ListByUser(sctx, userID)
	cancel()
	if err != nil {
		return nil, s.storeFailure("session_list", err)
	}

	slices.SortFunc(sessions, func(a, b model.Session) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
	return sessions, nil
}

// ChangePassword replaces the hash and revokes every session of the user,
// including the caller's. Wrong current passwords go through the governor
// like failed logins.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current string, next string) error {
	if err := validatePassword(next); err != nil {
		return err
	}
	if current == next {
		return apierror.Validation("newPassword", "new password must differ from the current one", model.ErrInvalidInput)
	}

	sctx, cancel := s.storeContext(ctx)
	user, err := s.users.FindByID(sctx, userID)
	cancel()
	if err != nil {
		return err
	}
	if !user.IsActive {
		return model.ErrUserNotFound
	}

	now := s.now().UTC()
	if remaining := s.governor.LockRemaining(user, now); remaining > 0 {
		slog.Warn("password change rejected", "reason", "locked", "user_id", userID, "retry_after", remaining)
		return &model.LockedError{RetryAfter: remaining}
	}

	// A wrong current password counts against the same budget as a failed login.
	if !s.hasher.Verify(current, user.PasswordHash) {
		sctx, cancel := s.storeContext(ctx)
		attempts, err := s.users.RecordFailedLogin(sctx, userID, now, s.governor.Window)
		cancel()
		if err != nil {
			s.metrics.StoreError("user_record_failure")
			return fmt.Errorf("record failed password check: %w", err)
		}

		failure := s.governor.AfterFailure(attempts)
		fields := map[string]any{"attempts": attempts, "source": "change_password"}
		if errors.Is(failure, model.ErrAccountLocked) {
			s.emit(event.TypeAccountLocked, userID, fields)
		} else {
			s.emit(event.TypeLoginFailed, userID, fields)
		}
		slog.Warn("password change rejected", "reason", "wrong_password", "user_id", userID, "attempts", attempts)
		return failure
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	sctx, cancel = s.storeContext(ctx)
	err = s.users.UpdatePassword(sctx, userID, hash)
	cancel()
	if err != nil {
		s.metrics.StoreError("user_update_password")
		return fmt.Errorf("update password: %w", err)
	}

	if _, err := s.LogoutAll(ctx, userID); err != nil {
		return err
	}
	slog.Info("password changed", "user_id", userID)
	s.emit(event.TypePasswordChanged, userID, nil)
	return nil
}

// issueTokenPair is the only path that creates sessions.
func (s *AuthService) issueTokenPair(ctx context.Context, identity model.Identity) (model.TokenPair, error) {
	jti := s.tokens.NewTokenID()

	access, err := s.tokens.Sign(identity, jti, token.TypeAccess)
	if err != nil {
		return model.TokenPair{}, err
	}
	refresh, err := s.tokens.Sign(identity, jti, token.TypeRefresh)
	if err != nil {
		return model.TokenPair{}, err
	}

	sess := model.Session{
		UserID:    identity.UserID,
		Email:     identity.Email,
		Nickname:  identity.Nickname,
		JTI:       jti,
		CreatedAt: s.now().UTC(),
	}

	sctx, cancel := s.storeContext(ctx)
	err = s.sessions.Save(sctx, sess, s.tokens.RefreshTTL())
	cancel()
	if err != nil {
		return model.TokenPair{}, s.storeFailure("session_save", err)
	}
	s.metrics.SessionIssued()

	return model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.tokens.AccessTTL() / time.Second),
	}, nil
}

func (s *AuthService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// reject logs the detailed cause and returns the collapsed error.
func (s *AuthService) reject(reason token.Reason, cause error) error {
	s.metrics.TokenRejected(string(reason))
	if cause != nil {
		slog.Debug("token rejected", "reason", reason, "error", cause)
	} else {
		slog.Debug("token rejected", "reason", reason)
	}
	return model.ErrInvalidToken
}

// storeFailure fails closed. The result always matches
// model.ErrSessionStoreUnavailable.
func (s *AuthService) storeFailure(op string, err error) error {
	s.metrics.StoreError(op)
	slog.Error("session store failure", "op", op, "error", err)
	if errors.Is(err, model.ErrSessionStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", model.ErrSessionStoreUnavailable, op, err)
}

func (s *AuthService) emit(t event.Type, userID int64, fields map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Publish(event.Event{Type: t, UserID: userID, Fields: fields, Timestamp: s.now().UTC()})
}

func identityOf(u model.User) model.Identity {
	return model.Identity{UserID: u.ID, Email: u.Email, Nickname: u.Nickname}
}

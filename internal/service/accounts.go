package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"

	"github.com/iliyamo/theatre-service/internal/model"
	"github.com/iliyamo/theatre-service/internal/repository"
	"github.com/iliyamo/theatre-service/internal/utils"
)

// TokenSettings controls how tokens are issued.
type TokenSettings struct {
	Secret         string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

// TokenPair is what login, register and refresh hand back.
type TokenPair struct {
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// Accounts registers users and issues tokens.
type Accounts struct {
	Users  UserStore
	Tokens TokenStore
	Cfg    TokenSettings
	Log    zerolog.Logger
}

// NewAccounts wires Accounts from the given stores.
func NewAccounts(s Stores, cfg TokenSettings, logger zerolog.Logger) *Accounts {
	return &Accounts{
		Users:  s.Users,
		Tokens: s.Tokens,
		Cfg:    cfg,
		Log:    logger.With().Str("component", "accounts").Logger(),
	}
}

// CreateUser validates the credentials and stores a new user.
func (a *Accounts) CreateUser(ctx context.Context, email, password string, staff bool) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	verr := &ValidationError{}
	if email == "" {
		verr.Add("email", msgRequired)
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		verr.Add("email", "Enter a valid email address.")
	}
	if len(password) < utils.MinPasswordLength {
		verr.Add("password", fmt.Sprintf("Ensure this field has at least %d characters.", utils.MinPasswordLength))
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(password, a.Cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{Email: email, PasswordHash: hash, IsStaff: staff}
	if err := a.Users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, NewValidationError("email", "user with this email already exists.")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	a.Log.Info().Uint64("user_id", u.ID).Bool("staff", staff).Msg("user created")
	return u, nil
}

// EnsureStaff creates a staff account unless the email is already taken.
// created reports whether a new user was stored.
func (a *Accounts) EnsureStaff(ctx context.Context, email, password string) (u *model.User, created bool, err error) {
	existing, err := a.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	switch {
	case err == nil:
		if !existing.IsStaff {
			a.Log.Warn().Uint64("user_id", existing.ID).Msg("admin email belongs to a non-staff user")
		}
		return existing, false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, false, fmt.Errorf("load user: %w", err)
	}
	u, err = a.CreateUser(ctx, email, password, true)
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// Register creates a regular user and logs them in.
func (a *Accounts) Register(ctx context.Context, email, password string) (*model.User, TokenPair, error) {
	u, err := a.CreateUser(ctx, email, password, false)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := a.issue(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// Login checks the credentials and issues a new token pair.
func (a *Accounts) Login(ctx context.Context, email, password string) (*model.User, TokenPair, error) {
	u, err := a.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, TokenPair{}, ErrInvalidCredentials
		}
		return nil, TokenPair{}, fmt.Errorf("load user: %w", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	pair, err := a.issue(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (a *Accounts) Refresh(ctx context.Context, raw string) (*model.User, TokenPair, error) {
	hash := utils.HashRefreshRaw(strings.TrimSpace(raw))
	userID, err := a.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, TokenPair{}, ErrInvalidToken
		}
		return nil, TokenPair{}, fmt.Errorf("validate refresh: %w", err)
	}
	if err := a.Tokens.RevokeByHash(ctx, hash); err != nil {
		return nil, TokenPair{}, fmt.Errorf("revoke refresh: %w", err)
	}
	u, err := a.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, TokenPair{}, ErrInvalidToken
		}
		return nil, TokenPair{}, fmt.Errorf("load user: %w", err)
	}
	pair, err := a.issue(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// Logout revokes the given refresh token, or every refresh token of the
// user when raw is empty.
func (a *Accounts) Logout(ctx context.Context, userID uint64, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return a.Tokens.RevokeAllForUser(ctx, userID)
	}
	hash := utils.HashRefreshRaw(raw)
	owner, err := a.Tokens.ValidateRefresh(ctx, hash)
	if err != nil || owner != userID {
		return ErrInvalidToken
	}
	return a.Tokens.RevokeByHash(ctx, hash)
}

// Me returns the user behind an access token.
func (a *Accounts) Me(ctx context.Context, userID uint64) (*model.User, error) {
	u, err := a.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

func (a *Accounts) issue(ctx context.Context, u *model.User) (TokenPair, error) {
	access, err := utils.NewAccessToken(a.Cfg.Secret, u.ID, u.IsStaff, a.Cfg.AccessTTLMin)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access: %w", err)
	}
	refresh, err := utils.NewRefreshToken(a.Cfg.RefreshTTLDays)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh: %w", err)
	}
	if err := a.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh: %w", err)
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

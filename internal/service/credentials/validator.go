// Package credentials verifies identifier and password against the user store.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nkiryanov/authcore/internal/apperrors"
	"github.com/nkiryanov/authcore/internal/models"
	"github.com/nkiryanov/authcore/internal/repository"
)

// Compared against when user is not found so the response time does not tell whether identifier exists
const dummyPassword = "dummy-password-for-timing"

type Options struct {
	Hasher PasswordHasher // BcryptHasher if nil

	// Login methods that accept verified accounts only
	RequireVerified map[models.LoginMethod]bool
}

func DefaultOptions() Options {
	return Options{
		Hasher:          BcryptHasher{},
		RequireVerified: map[models.LoginMethod]bool{models.LoginMethodPhone: true},
	}
}

type Validator struct {
	users           repository.UserRepo
	hasher          PasswordHasher
	requireVerified map[models.LoginMethod]bool
	dummyHash       string
}

func NewValidator(users repository.UserRepo, opts Options) (*Validator, error) {
	if opts.Hasher == nil {
		opts.Hasher = BcryptHasher{}
	}

	dummyHash, err := opts.Hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("can't prepare dummy hash: %w", err)
	}

	return &Validator{
		users:           users,
		hasher:          opts.Hasher,
		requireVerified: opts.RequireVerified,
		dummyHash:       dummyHash,
	}, nil
}

// Validate returns the user if the password matches and the account may log in.
//
// Unknown identifier and wrong password both give apperrors.ErrInvalidCredentials.
// Blocked accounts give ErrAccountInactive or ErrAccountUnverified, only after the password matched.
func (v *Validator) Validate(ctx context.Context, identifier string, password string, method models.LoginMethod) (models.User, error) {
	normalized, err := Normalize(identifier, method)
	if err != nil {
		// Malformed identifier can't belong to anybody
		_ = v.hasher.Compare(v.dummyHash, password)
		return models.User{}, apperrors.ErrInvalidCredentials
	}

	user, err := v.lookup(ctx, normalized, method)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = v.hasher.Compare(v.dummyHash, password)
		return models.User{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.User{}, apperrors.Infrastructure(fmt.Errorf("user lookup: %w", err))
	}

	if err := v.hasher.Compare(user.PasswordHash, password); err != nil {
		return models.User{}, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		return models.User{}, apperrors.ErrAccountInactive
	}
	if v.requireVerified[method] && !user.IsVerified {
		return models.User{}, apperrors.ErrAccountUnverified
	}

	return user, nil
}

func (v *Validator) lookup(ctx context.Context, identifier string, method models.LoginMethod) (models.User, error) {
	if method == models.LoginMethodPhone {
		return v.users.GetUserByPhone(ctx, identifier)
	}
	return v.users.GetUserByEmail(ctx, identifier)
}

func (v *Validator) TouchLastLogin(ctx context.Context, user models.User, at time.Time, ip string) error {
	if err := v.users.TouchLastLogin(ctx, user.ID, at, ip); err != nil {
		return apperrors.Infrastructure(fmt.Errorf("touch last login: %w", err))
	}
	return nil
}

type CreateUserParams struct {
	Email      string
	Phone      string
	Password   string
	IsActive   bool
	IsVerified bool
}

// CreateUser seeds credential record. Used by operator tooling and tests.
func (v *Validator) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	var user models.User

	if params.Password == "" {
		return user, fmt.Errorf("%w: empty password", apperrors.ErrValidation)
	}
	if params.Email == "" && params.Phone == "" {
		return user, fmt.Errorf("%w: email or phone required", apperrors.ErrValidation)
	}

	create := repository.CreateUserParams{
		IsActive:   params.IsActive,
		IsVerified: params.IsVerified,
	}

	if params.Email != "" {
		email, err := Normalize(params.Email, models.LoginMethodEmail)
		if err != nil {
			return user, err
		}
		create.Email = &email
	}
	if params.Phone != "" {
		phone, err := Normalize(params.Phone, models.LoginMethodPhone)
		if err != nil {
			return user, err
		}
		create.Phone = &phone
	}

	hash, err := v.hasher.Hash(params.Password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}
	create.PasswordHash = hash

	user, err = v.users.CreateUser(ctx, create)
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

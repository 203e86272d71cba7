package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

type Service interface {
	CreateAccount(ctx context.Context, in CreateInput) (*Account, error)
	Authenticate(ctx context.Context, username, password string) (*Account, error)
	UpdateAccount(ctx context.Context, current *Account, in UpdateInput) error
}

type service struct {
	store     Store
	hasher    PasswordHasher
	dummyHash string
	now       func() time.Time
}

func NewService(store Store, hasher PasswordHasher) Service {
	s := &service{
		store:  store,
		hasher: hasher,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}

	// Unknown usernames are verified against this hash so that they cost the
	// same as a wrong password.
	dummy, err := hasher.Hash("account-service-dummy-secret")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to prepare dummy password hash, unknown users will hash the candidate instead")
	}
	s.dummyHash = dummy

	return s
}

func (s *service) CreateAccount(ctx context.Context, in CreateInput) (*Account, error) {
	for field, value := range map[string]string{
		"first_name": in.FirstName,
		"last_name":  in.LastName,
		"username":   in.Username,
		"password":   in.Password,
	} {
		if strings.TrimSpace(value) == "" {
			return nil, &ValidationError{Err: fmt.Errorf("%s cannot be empty", field)}
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if errors.Is(err, ErrPasswordTooLong) {
		return nil, &ValidationError{Err: err}
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to hash password")
		return nil, fmt.Errorf("internal error hashing password: %w", err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate account id: %w", err)
	}

	now := s.now()
	a := &Account{
		ID:           id,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Username:     NormalizeUsername(in.Username),
		PasswordHash: hash,
		IsVerified:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Create(ctx, a); err != nil {
		if errors.Is(err, ErrUsernameExists) {
			return nil, ErrUsernameExists
		}
		log.Error().Err(err).Msg("Failed to create account in store")
		return nil, fmt.Errorf("failed to save account: %w", err)
	}

	return a, nil
}

// Authenticate resolves the account owning username if password matches its
// stored hash. Every failure to match returns ErrInvalidCredentials.
func (s *service) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	a, err := s.store.FindByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.burnHash(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	ok, err := s.hasher.Verify(password, a.PasswordHash)
	if err != nil {
		log.Error().Err(err).Str("account_id", a.ID.String()).Msg("Stored password hash is unusable")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return a, nil
}

// burnHash spends one hashing round on a candidate that has no account.
// Without a dummy hash the candidate itself is hashed, which costs the same.
func (s *service) burnHash(password string) {
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(password, s.dummyHash)
		return
	}
	_, _ = s.hasher.Hash(password)
}

// UpdateAccount applies the present mutable fields of in to current and
// refreshes account_updated. current is refreshed in place on success.
func (s *service) UpdateAccount(ctx context.Context, current *Account, in UpdateInput) error {
	if in.Username != nil && NormalizeUsername(*in.Username) != current.Username {
		return ErrImmutableField
	}
	if in.Empty() {
		return ErrEmptyUpdate
	}
	for field, value := range map[string]*string{
		"first_name": in.FirstName,
		"last_name":  in.LastName,
		"password":   in.Password,
	} {
		if value != nil && strings.TrimSpace(*value) == "" {
			return &ValidationError{Err: fmt.Errorf("%s cannot be empty", field)}
		}
	}

	patch := Patch{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		UpdatedAt: s.now(),
	}
	if patch.UpdatedAt.Before(current.UpdatedAt) {
		patch.UpdatedAt = current.UpdatedAt
	}

	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if errors.Is(err, ErrPasswordTooLong) {
			return &ValidationError{Err: err}
		}
		if err != nil {
			log.Error().Err(err).Msg("Failed to hash password")
			return fmt.Errorf("failed to generate hash password: %w", err)
		}
		patch.PasswordHash = &hash
	}

	if err := s.store.Update(ctx, current.Username, patch); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		log.Error().Err(err).Msg("Failed to update account")
		return fmt.Errorf("failed to update account '%s': %w", current.ID, err)
	}

	if patch.FirstName != nil {
		current.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		current.LastName = *patch.LastName
	}
	if patch.PasswordHash != nil {
		current.PasswordHash = *patch.PasswordHash
	}
	current.UpdatedAt = patch.UpdatedAt

	return nil
}

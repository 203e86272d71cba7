package account

import (
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

// Account is the stored account record. Password and verification data are
// never serialised into responses.
type Account struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	FirstName          string     `json:"first_name" db:"first_name"`
	LastName           string     `json:"last_name" db:"last_name"`
	Username           string     `json:"username" db:"username"`
	PasswordHash       string     `json:"-" db:"password"`
	IsVerified         bool       `json:"is_verified" db:"is_verified"`
	VerificationToken  *string    `json:"-" db:"verification_token"`
	VerificationExpiry *time.Time `json:"-" db:"verification_expiry"`
	CreatedAt          time.Time  `json:"account_created" db:"account_created"`
	UpdatedAt          time.Time  `json:"account_updated" db:"account_updated"`
}

// CreateInput carries the client-settable fields of a new account.
type CreateInput struct {
	FirstName string
	LastName  string
	Username  string
	Password  string
}

// UpdateInput is a partial update. Nil fields are left untouched.
// Username is only compared against the current one; it is never written.
type UpdateInput struct {
	FirstName *string
	LastName  *string
	Password  *string
	Username  *string
}

// Empty reports whether the input carries no mutable field.
func (in UpdateInput) Empty() bool {
	return in.FirstName == nil && in.LastName == nil && in.Password == nil
}

// Patch is what the store applies to a record. PasswordHash is already hashed.
type Patch struct {
	FirstName    *string
	LastName     *string
	PasswordHash *string
	UpdatedAt    time.Time
}

// NormalizeUsername trims and lower-cases a username. Usernames are
// case-insensitive everywhere they are stored or looked up.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

package account

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

// Store is durable keyed storage for accounts. Username is the natural key
// and is expected in normalised form.
type Store interface {
	Ping(ctx context.Context) error
	FindByUsername(ctx context.Context, username string) (*Account, error)
	Create(ctx context.Context, account *Account) error
	Update(ctx context.Context, username string, patch Patch) error
}

type postgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *postgresStore) FindByUsername(ctx context.Context, username string) (*Account, error) {
	query := `
		SELECT id, first_name, last_name, username, password, is_verified,
		       verification_token, verification_expiry, account_created, account_updated
		FROM accounts
		WHERE username = $1
	`

	var a Account
	if err := s.db.GetContext(ctx, &a, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, classify(fmt.Errorf("repository: failed to get account by username: %w", err))
	}

	return &a, nil
}

func (s *postgresStore) Create(ctx context.Context, account *Account) error {
	query := `
		INSERT INTO accounts (id, first_name, last_name, username, password, is_verified, account_created, account_updated)
		VALUES (:id, :first_name, :last_name, :username, :password, :is_verified, :account_created, :account_updated)
	`

	if _, err := s.db.NamedExecContext(ctx, query, account); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrUsernameExists
		}
		return classify(fmt.Errorf("repository: failed to insert account: %w", err))
	}

	return nil
}

func (s *postgresStore) Update(ctx context.Context, username string, patch Patch) error {
	query := `
		UPDATE accounts
		SET first_name = COALESCE($1, first_name),
		    last_name = COALESCE($2, last_name),
		    password = COALESCE($3, password),
		    account_updated = $4
		WHERE username = $5
	`

	res, err := s.db.ExecContext(ctx, query, patch.FirstName, patch.LastName, patch.PasswordHash, patch.UpdatedAt, username)
	if err != nil {
		return classify(fmt.Errorf("repository: failed to update account: %w", err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// classify marks connectivity failures so callers can tell an unreachable
// store from a query that went wrong. Values too long for their column are
// client input errors.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.StringDataRightTruncationDataException {
		return &ValidationError{Err: err}
	}

	var connErr *pgconn.ConnectError
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &connErr) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

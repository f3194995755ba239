package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrDuplicate        = errors.New("duplicate record")
	ErrMissingReference = errors.New("referenced record does not exist")
	ErrListFull         = errors.New("list is full")
)

// classify maps constraint violations to store errors and wraps everything else with op.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w (%s)", op, ErrDuplicate, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%s: %w (%s)", op, ErrMissingReference, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

package infra

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// IsNoRows reports whether err is the pgx empty-result sentinel. Adapters
// use it to translate store misses without importing pgx at call sites.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

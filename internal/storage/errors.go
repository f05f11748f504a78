package storage

import (
	"database/sql"

	"github.com/go-redis/redis/v8"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// errors
var (
	ErrAlreadyExists = errors.New("object already exists")
	ErrDoesNotExist  = errors.New("object does not exist")
	ErrInvalidKey    = errors.New("invalid session-key")
	ErrUnknownTable  = errors.New("frame-log record table does not exist")
)

// handleStorageError maps redis and PostgreSQL errors to the storage
// errors. Other errors are wrapped using the given description.
func handleStorageError(err error, description string) error {
	if err == sql.ErrNoRows || err == redis.Nil {
		return ErrDoesNotExist
	}

	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return ErrAlreadyExists
		case "undefined_table":
			return errors.Wrap(ErrUnknownTable, pqErr.Message)
		}
	}

	return errors.Wrap(err, description)
}

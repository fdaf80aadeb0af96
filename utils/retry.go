// utils/retry.go
package utils

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Retry runs fn up to attempts times with exponential backoff starting
// at base. Constraint violations are never retried, since a unique or
// foreign-key failure will not heal on the next try.
func Retry(attempts int, base time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		time.Sleep(base << i)
	}
	return err
}

// IsTransient reports whether an error is worth retrying.
func IsTransient(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrForeignKeyViolated) ||
		errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return false
	}
	return true
}

package repository

import (
	"errors"

	"rollouthq/internal/apperr"

	"gorm.io/gorm"
)

// translate turns driver-level duplicate key errors into apperr.Conflict.
// Requires the DB to be opened with gorm.Config{TranslateError: true}.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Wrap(apperr.Conflict, what+" already exists", err)
	}
	return err
}

package errx

import (
	"errors"
	"net/http"

	"gorm.io/gorm"
)

// WrapGorm maps gorm errors to AppError with appropriate status codes.
func WrapGorm(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Wrap(ErrNotFound, err, http.StatusNotFound, StorageNotFoundMessage)
	}

	return New(err, http.StatusBadGateway, StorageErrorMessage)
}

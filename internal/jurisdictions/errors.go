package jurisdictions

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound  = errors.New("jurisdiction not found")
	ErrDuplicate = errors.New("jurisdiction already exists")
	ErrInvalid   = errors.New("invalid jurisdiction")
)

func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalid) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

package app

import (
	"fmt"
	"net/http"

	"github.com/fieldrec/fieldstream/internal/fault"
)

type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("Internal server error: %s", e.Message)
}

// httpStatus maps the error taxonomy onto response codes. Unclassified
// errors stay 500.
func httpStatus(err error) int {
	switch fault.KindOf(err) {
	case fault.KindValidation:
		return http.StatusBadRequest
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindConflict:
		return http.StatusConflict
	case fault.KindUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
